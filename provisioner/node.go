package provisioner

import (
	"net"
	"strconv"
	"time"
)

// Request describes a single CreateNode call.
type Request struct {
	// Size is the workload size hint. It only shows up in the resource name
	// and labels, requested resources are fixed.
	Size int
}

// Node is a provisioned worker. It is only built once the backend reported a
// network address for it.
type Node struct {
	Name          string        `json:"name" yaml:"name"`
	Driver        string        `json:"driver" yaml:"driver"`
	Address       string        `json:"address" yaml:"address"`
	Port          int           `json:"port" yaml:"port"`
	Token         string        `json:"token" yaml:"token"`
	AutoSpawned   bool          `json:"auto-spawned" yaml:"auto-spawned"`
	MaxRuntime    time.Duration `json:"max-runtime" yaml:"max-runtime"`
	MaxUploadTime time.Duration `json:"max-upload-time" yaml:"max-upload-time"`
	CreatedAt     time.Time     `json:"created-at" yaml:"created-at"`
}

func (n *Node) Endpoint() string {
	return net.JoinHostPort(n.Address, strconv.Itoa(n.Port))
}
