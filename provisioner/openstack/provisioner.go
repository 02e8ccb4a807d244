// Package openstack spawns nodes as OpenStack servers.
package openstack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"sync"
	"time"

	"github.com/gammadia/spawner/provisioner"
	"github.com/gophercloud/gophercloud"
	"github.com/gophercloud/gophercloud/openstack"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/keypairs"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/servers"
	"github.com/samber/lo"
)

const (
	Driver = "openstack"

	KeyImage  = "openstack-image"
	KeyFlavor = "openstack-flavor"

	MetadataNamespace     = "spawner-namespace"
	MetadataProvisionedAt = "spawner-provisioned-at"
)

// compute is the subset of the compute API used by the backend.
type compute interface {
	Create(opts servers.CreateOptsBuilder) (*servers.Server, error)
	Get(id string) (*servers.Server, error)
	FindByName(name string) (*servers.Server, error)
	Addresses(id string) (map[string][]servers.Address, error)
	Delete(id string) error
}

type Backend struct {
	compute compute
	config  Config
	log     *slog.Logger

	// server IDs by name, filled by Submit
	ids sync.Map
}

// Backend implements provisioner.Backend
var _ provisioner.Backend = (*Backend)(nil)

func New(config Config) (*Backend, error) {
	opts, err := openstack.AuthOptionsFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to get auth options from env: %w", err)
	}

	providerClient, err := openstack.AuthenticatedClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get authenticated client: %w", err)
	}

	client, err := openstack.NewComputeV2(providerClient, gophercloud.EndpointOpts{
		Region: os.Getenv("OS_REGION_NAME"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get compute client: %w", err)
	}

	return newBackend(&gophercloudCompute{client: client}, config), nil
}

func newBackend(compute compute, config Config) *Backend {
	return &Backend{
		compute: compute,
		config:  config,
		log:     lo.Ternary(config.Logger != nil, config.Logger, slog.Default()),
	}
}

func (b *Backend) Driver() string {
	return Driver
}

func (b *Backend) RequiredKeys() []string {
	return []string{provisioner.KeySecurityGroup, KeyImage, KeyFlavor}
}

func (b *Backend) Submit(_ context.Context, namespace string, spec *provisioner.ResourceSpec) error {
	userData, err := userData(spec)
	if err != nil {
		return err
	}

	metadata := lo.Assign(spec.Labels, map[string]string{
		MetadataNamespace:     namespace,
		MetadataProvisionedAt: time.Now().Format(time.RFC3339),
	})

	var opts servers.CreateOptsBuilder = servers.CreateOpts{
		Name:           spec.Name,
		ImageRef:       b.config.Image,
		FlavorRef:      b.config.Flavor,
		Networks:       b.config.Networks,
		SecurityGroups: b.config.SecurityGroups,
		Metadata:       metadata,
		UserData:       userData,
	}
	if b.config.KeyName != "" {
		opts = keypairs.CreateOptsExt{
			CreateOptsBuilder: opts,
			KeyName:           b.config.KeyName,
		}
	}

	server, err := b.compute.Create(opts)
	if err != nil {
		return fmt.Errorf("failed to create server '%s': %w", spec.Name, err)
	}

	b.ids.Store(spec.Name, server.ID)
	b.log.Debug("Created server", "server", spec.Name, "id", server.ID)
	return nil
}

func (b *Backend) Address(_ context.Context, name, _ string) (string, error) {
	id, err := b.serverID(name)
	if err != nil {
		return "", err
	}

	server, err := b.compute.Get(id)
	if err != nil {
		return "", fmt.Errorf("failed to get server '%s': %w", name, err)
	}
	switch server.Status {
	case "ERROR":
		return "", fmt.Errorf("server '%s' is in error state", name)
	case "ACTIVE":
	default:
		return "", nil
	}

	addresses, err := b.compute.Addresses(id)
	if err != nil {
		return "", fmt.Errorf("failed to get server addresses for '%s': %w", name, err)
	}
	return ipv4Address(addresses), nil
}

func (b *Backend) Delete(_ context.Context, name, _ string) error {
	id, err := b.serverID(name)
	if err != nil {
		return err
	}

	if err := b.compute.Delete(id); err != nil {
		var notFound gophercloud.ErrDefault404
		if errors.As(err, &notFound) {
			b.ids.Delete(name)
			return nil
		}
		return fmt.Errorf("failed to delete server '%s': %w", name, err)
	}

	b.ids.Delete(name)
	return nil
}

func (b *Backend) serverID(name string) (string, error) {
	if id, ok := b.ids.Load(name); ok {
		return id.(string), nil
	}

	server, err := b.compute.FindByName(name)
	if err != nil {
		return "", fmt.Errorf("failed to find server '%s': %w", name, err)
	}
	b.ids.Store(name, server.ID)
	return server.ID, nil
}

func ipv4Address(allAddresses map[string][]servers.Address) string {
	networks := lo.Keys(allAddresses)
	slices.Sort(networks)
	for _, network := range networks {
		for _, address := range allAddresses[network] {
			if address.Version == 4 && address.Address != "" {
				return address.Address
			}
		}
	}
	return ""
}

type gophercloudCompute struct {
	client *gophercloud.ServiceClient
}

func (c *gophercloudCompute) Create(opts servers.CreateOptsBuilder) (*servers.Server, error) {
	return servers.Create(c.client, opts).Extract()
}

func (c *gophercloudCompute) Get(id string) (*servers.Server, error) {
	return servers.Get(c.client, id).Extract()
}

func (c *gophercloudCompute) FindByName(name string) (*servers.Server, error) {
	pages, err := servers.List(c.client, servers.ListOpts{
		Name: "^" + regexp.QuoteMeta(name) + "$",
	}).AllPages()
	if err != nil {
		return nil, err
	}

	found, err := servers.ExtractServers(pages)
	if err != nil {
		return nil, err
	}
	if len(found) != 1 {
		return nil, fmt.Errorf("expected one server named '%s', found %d", name, len(found))
	}
	return &found[0], nil
}

func (c *gophercloudCompute) Addresses(id string) (map[string][]servers.Address, error) {
	pages, err := servers.ListAddresses(c.client, id).AllPages()
	if err != nil {
		return nil, err
	}
	return servers.ExtractAddresses(pages)
}

func (c *gophercloudCompute) Delete(id string) error {
	return servers.Delete(c.client, id).ExtractErr()
}
