package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gammadia/spawner/provisioner"
	"github.com/gammadia/spawner/provisioner/kubernetes"
	"github.com/gammadia/spawner/provisioner/local"
	"github.com/gammadia/spawner/provisioner/openstack"
	"github.com/gammadia/spawner/spawnctl/flags"
	"github.com/gammadia/spawner/spawnctl/log"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/servers"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// createProvisioner builds the provider selected by the provisioner flag and
// initializes it.
func createProvisioner(ctx context.Context) (*provisioner.Provisioner, error) {
	backend, err := createBackend()
	if err != nil {
		return nil, fmt.Errorf("unable to create provisioner '%s': %w", viper.GetString(flags.Provisioner), err)
	}

	p := provisioner.New(
		backend,
		provisioner.NewConfig(viper.GetViper()),
		provisioner.WithLogger(log.Base.With("component", "provisioner")),
	)
	if err := p.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("unable to initialize provisioner '%s': %w", p.DriverName(), err)
	}
	return p, nil
}

func createBackend() (provisioner.Backend, error) {
	logger := log.Base.With("component", "backend")
	switch p := viper.GetString(flags.Provisioner); p {
	case kubernetes.Driver:
		config := kubernetes.Config{
			Logger:         logger,
			Kubeconfig:     viper.GetString(flags.Kubeconfig),
			ServiceAccount: viper.GetString(flags.KubernetesServiceAcct),
		}
		logger.Debug("Backend config", "provisioner", p, "config", string(lo.Must(json.Marshal(config))))
		return kubernetes.New(config)

	case local.Driver:
		config := local.Config{
			Logger:  logger,
			Network: viper.GetString(flags.LocalNetwork),
		}
		logger.Debug("Backend config", "provisioner", p, "config", string(lo.Must(json.Marshal(config))))
		return local.New(config)

	case openstack.Driver:
		config := openstack.Config{
			Logger: logger,
			Image:  viper.GetString(openstack.KeyImage),
			Flavor: viper.GetString(openstack.KeyFlavor),
			Networks: lo.Map(
				viper.GetStringSlice(flags.OpenstackNetworks),
				func(s string, _ int) servers.Network {
					return servers.Network{UUID: s}
				},
			),
			SecurityGroups: viper.GetStringSlice(provisioner.KeySecurityGroup),
			KeyName:        viper.GetString(flags.OpenstackKeyName),
		}
		logger.Debug("Backend config", "provisioner", p, "config", string(lo.Must(json.Marshal(config))))
		return openstack.New(config)

	default:
		return nil, fmt.Errorf("unknown provisioner")
	}
}
