package provisioner

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned when a required setting is missing or invalid.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrNotInitialized is returned by CreateNode before Initialize succeeded.
	ErrNotInitialized = fmt.Errorf("%w: provisioner is not initialized", ErrConfiguration)
	// ErrInvalidRequest is returned for requests no backend could accept.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrCapacity is returned when the admission check rejects a workload.
	ErrCapacity = errors.New("capacity exceeded")
	// ErrProvisioning is returned when the backend refused to create a resource.
	ErrProvisioning = errors.New("provisioning failed")
	// ErrTimeout is returned when a node got no address within the polling budget.
	ErrTimeout = errors.New("timed out waiting for node")
	// ErrTeardown wraps backend failures while destroying a node. It never
	// leaves DestroyNode.
	ErrTeardown = errors.New("teardown failed")
)

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, ErrCapacity):
		return "rejected"
	case errors.Is(err, ErrProvisioning):
		return "provisioning"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}
