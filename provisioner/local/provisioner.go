// Package local spawns nodes as containers on the local Docker daemon.
package local

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/gammadia/spawner/provisioner"
	"github.com/gammadia/spawner/provisioner/internal"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/samber/lo"
	"k8s.io/apimachinery/pkg/api/resource"
)

const (
	Driver = "local"

	LabelNamespace = "spawner.gammadia.io/namespace"
)

// DockerClient is the subset of the Docker SDK used by the backend.
type DockerClient interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

type Backend struct {
	docker DockerClient
	config Config
	log    *slog.Logger
}

// Backend implements provisioner.Backend
var _ provisioner.Backend = (*Backend)(nil)

func New(config Config) (*Backend, error) {
	docker, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to init docker client: %w", err)
	}
	if _, err := docker.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to reach docker daemon: %w", err)
	}

	return NewWithClient(docker, config), nil
}

func NewWithClient(docker DockerClient, config Config) *Backend {
	return &Backend{
		docker: docker,
		config: config,
		log:    lo.Ternary(config.Logger != nil, config.Logger, slog.Default()),
	}
}

func (b *Backend) Driver() string {
	return Driver
}

func (b *Backend) RequiredKeys() []string {
	return nil
}

func (b *Backend) Submit(ctx context.Context, namespace string, spec *provisioner.ResourceSpec) error {
	hostConfig, err := hostConfig(spec)
	if err != nil {
		return err
	}
	if b.config.Network != "" {
		hostConfig.NetworkMode = container.NetworkMode(b.config.Network)
	}

	labels := lo.Assign(spec.Labels, map[string]string{LabelNamespace: namespace})
	env := lo.MapToSlice(spec.Env, func(name, value string) string {
		return fmt.Sprintf("%s=%s", name, value)
	})
	sort.Strings(env)

	resp, err := b.docker.ContainerCreate(ctx, &container.Config{
		Image:  spec.Image,
		Env:    env,
		Labels: labels,
	}, hostConfig, nil, nil, spec.Name)
	if err != nil {
		return fmt.Errorf("failed to create container '%s': %w", spec.Name, err)
	}

	if err := b.docker.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// Nothing must be left behind when Submit fails
		if err := b.remove(context.WithoutCancel(ctx), resp.ID); err != nil {
			b.log.Warn("Failed to remove container that did not start", "container", spec.Name, "error", err)
		}
		return fmt.Errorf("failed to start container '%s': %w", spec.Name, err)
	}

	b.log.Debug("Started container", "container", spec.Name, "id", resp.ID)
	return nil
}

func (b *Backend) Address(ctx context.Context, name, _ string) (string, error) {
	info, err := b.docker.ContainerInspect(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to inspect container '%s': %w", name, err)
	}
	if info.State != nil && (info.State.Status == "exited" || info.State.Status == "dead") {
		return "", fmt.Errorf("container '%s' is %s", name, info.State.Status)
	}
	if info.NetworkSettings == nil {
		return "", nil
	}

	if b.config.Network != "" {
		if endpoint, ok := info.NetworkSettings.Networks[b.config.Network]; ok && endpoint != nil {
			return endpoint.IPAddress, nil
		}
		return "", nil
	}

	networks := lo.Keys(info.NetworkSettings.Networks)
	sort.Strings(networks)
	for _, name := range networks {
		if endpoint := info.NetworkSettings.Networks[name]; endpoint != nil && endpoint.IPAddress != "" {
			return endpoint.IPAddress, nil
		}
	}
	return "", nil
}

func (b *Backend) Delete(ctx context.Context, name, _ string) error {
	if err := b.remove(ctx, name); err != nil {
		return fmt.Errorf("failed to remove container '%s': %w", name, err)
	}
	return nil
}

func (b *Backend) remove(ctx context.Context, id string) error {
	return internal.RetryWithContext(ctx, 3, func() error {
		err := b.docker.ContainerRemove(ctx, id, container.RemoveOptions{RemoveVolumes: true, Force: true})
		if client.IsErrNotFound(err) {
			return nil
		}
		return err
	})
}

func hostConfig(spec *provisioner.ResourceSpec) (*container.HostConfig, error) {
	cpu, err := resource.ParseQuantity(spec.Limits.CPU)
	if err != nil {
		return nil, fmt.Errorf("invalid cpu limit '%s': %w", spec.Limits.CPU, err)
	}
	memory, err := resource.ParseQuantity(spec.Limits.Memory)
	if err != nil {
		return nil, fmt.Errorf("invalid memory limit '%s': %w", spec.Limits.Memory, err)
	}
	reservation, err := resource.ParseQuantity(spec.Requests.Memory)
	if err != nil {
		return nil, fmt.Errorf("invalid memory request '%s': %w", spec.Requests.Memory, err)
	}

	return &container.HostConfig{
		Resources: container.Resources{
			NanoCPUs:          cpu.MilliValue() * 1_000_000,
			Memory:            memory.Value(),
			MemoryReservation: reservation.Value(),
		},
	}, nil
}
