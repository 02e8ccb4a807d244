package provisioner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gammadia/spawner/namegen"
	"github.com/gammadia/spawner/provisioner/internal"
)

type state string

const (
	stateRequested         state = "requested"
	stateSubmitted         state = "submitted"
	stateWaitingForAddress state = "waiting-for-address"
	stateReady             state = "ready"
	stateFailed            state = "failed"
)

const cleanupTimeout = time.Minute

// CreateNode submits a new resource and waits for it to get a network address.
//
// If no address shows up within the polling budget the resource is deleted
// once, on a best-effort basis, and ErrTimeout is returned.
func (p *Provisioner) CreateNode(ctx context.Context, req Request) (node *Node, err error) {
	s := p.settings.Load()
	if s == nil {
		return nil, ErrNotInitialized
	}

	started := time.Now()
	defer func() {
		recordCreation(p.backend.Driver(), outcome(err), time.Since(started).Seconds())
	}()

	// The size ends up in label values, which must start with an alphanumeric
	if req.Size < 0 {
		return nil, fmt.Errorf("%w: size must not be negative, got %d", ErrInvalidRequest, req.Size)
	}
	if !p.CanHandle(req.Size) {
		return nil, fmt.Errorf("%w: workload of size %d was rejected", ErrCapacity, req.Size)
	}

	name := namegen.ResourceName(s.prefix, req.Size)
	token := namegen.Token()
	spec := p.resourceSpec(s, name, req.Size, token)
	log := p.log.With("node", name, "size", req.Size)
	log.Debug("Node requested", "state", stateRequested)

	release := p.pending.Acquire()
	defer release()

	if err := p.backend.Submit(ctx, s.namespace, spec); err != nil {
		log.Error("Failed to submit node", "state", stateFailed, "error", err)
		return nil, fmt.Errorf("%w: failed to submit node '%s': %w", ErrProvisioning, name, err)
	}
	log.Info("Submitted node, waiting for its address", "state", stateSubmitted, "wait", s.policy.Budget())

	address, attempts, err := internal.Poll(ctx, s.policy, func(attempt int) (string, bool) {
		address, err := p.backend.Address(ctx, name, s.namespace)
		if err != nil {
			log.Debug("Failed to read node status", "state", stateWaitingForAddress, "attempt", attempt, "error", err)
			return "", false
		}
		if address == "" {
			log.Debug("Node has no address yet", "state", stateWaitingForAddress, "attempt", attempt)
		}
		return address, address != ""
	})
	if err != nil {
		log.Error("Node did not become ready", "state", stateFailed, "attempts", attempts, "error", err)
		p.cleanup(ctx, log, name, s.namespace)

		if errors.Is(err, internal.ErrAttemptsExhausted) {
			return nil, fmt.Errorf("%w: node '%s' got no address after %s and %d attempts", ErrTimeout, name, s.policy.Budget(), attempts)
		}
		return nil, fmt.Errorf("abandoned node '%s' while waiting for its address: %w", name, err)
	}

	node = &Node{
		Name:          name,
		Driver:        p.backend.Driver(),
		Address:       address,
		Port:          s.port,
		Token:         token,
		AutoSpawned:   true,
		MaxRuntime:    s.maxRuntime,
		MaxUploadTime: s.maxUploadTime,
		CreatedAt:     time.Now(),
	}
	p.nodes.Store(name, node)

	log.Info("Node is ready", "state", stateReady, "address", address, "attempts", attempts)
	return node, nil
}

// cleanup deletes a resource that never became ready. Failures are only
// logged: the resource may leak if the backend keeps refusing.
func (p *Provisioner) cleanup(ctx context.Context, log *slog.Logger, name, namespace string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := p.backend.Delete(ctx, name, namespace); err != nil {
		log.Warn("Failed to delete unready node, it may leak", "error", err)
		return
	}
	log.Debug("Deleted unready node")
}

func (p *Provisioner) resourceSpec(s *settings, name string, size int, token string) *ResourceSpec {
	return &ResourceSpec{
		Name: name,
		Labels: map[string]string{
			LabelApp:         s.prefix,
			LabelProvisioner: p.name.String(),
			LabelSize:        strconv.Itoa(size),
		},
		Image:    s.image,
		Port:     s.port,
		Requests: s.requests,
		Limits:   s.limits,
		Env:      p.CreateArgs(token),
	}
}
