package provisioner

import (
	"context"
	"fmt"
)

// DestroyNode deletes the resource backing node. Nodes this provisioner did
// not spawn are left alone. Errors are logged and never returned.
func (p *Provisioner) DestroyNode(ctx context.Context, node *Node) {
	if err := p.Destroy(ctx, node); err != nil {
		p.log.Error("Failed to destroy node", "node", node.Name, "error", err)
	}
}

// Destroy is DestroyNode for callers that report failures themselves.
// Backend errors are wrapped in ErrTeardown.
func (p *Provisioner) Destroy(ctx context.Context, node *Node) error {
	if node == nil {
		p.log.Warn("Refusing to destroy a nil node")
		return nil
	}
	if !node.AutoSpawned {
		p.log.Warn("Refusing to destroy a node that was not spawned by this provisioner", "node", node.Name)
		return nil
	}

	if err := p.backend.Delete(ctx, node.Name, p.Namespace()); err != nil {
		recordDestroy(p.backend.Driver(), "failure")
		return fmt.Errorf("%w: failed to delete node '%s': %w", ErrTeardown, node.Name, err)
	}

	p.nodes.Delete(node.Name)
	recordDestroy(p.backend.Driver(), "success")
	p.log.Info("Node destroyed", "node", node.Name)
	return nil
}
