package provisioner

import "context"

const (
	LabelApp         = "app"
	LabelProvisioner = "spawner.gammadia.io/provisioner"
	LabelSize        = "spawner.gammadia.io/size"
)

// Backend is the compute substrate a Provisioner drives. There is one
// implementation per substrate (kubernetes, local docker, openstack).
type Backend interface {
	// Driver is the static identifier of the backend.
	Driver() string
	// RequiredKeys lists the settings the backend needs on top of the common ones.
	RequiredKeys() []string

	Submit(ctx context.Context, namespace string, spec *ResourceSpec) error
	// Address returns the network address of the resource, or an empty string
	// while none has been assigned yet.
	Address(ctx context.Context, name, namespace string) (string, error)
	Delete(ctx context.Context, name, namespace string) error
}

type Resources struct {
	CPU    string `json:"cpu" yaml:"cpu"`
	Memory string `json:"memory" yaml:"memory"`
}

// ResourceSpec is the declarative description of one node submitted to a
// Backend. It is built fresh for every CreateNode call.
type ResourceSpec struct {
	Name     string            `json:"name" yaml:"name"`
	Labels   map[string]string `json:"labels" yaml:"labels"`
	Image    string            `json:"image" yaml:"image"`
	Port     int               `json:"port" yaml:"port"`
	Requests Resources         `json:"requests" yaml:"requests"`
	Limits   Resources         `json:"limits" yaml:"limits"`
	Env      map[string]string `json:"-" yaml:"-"`
}
