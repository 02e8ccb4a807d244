package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/gammadia/spawner/provisioner"
	"github.com/gammadia/spawner/provisioner/kubernetes"
	"github.com/gammadia/spawner/provisioner/local"
	"github.com/gammadia/spawner/provisioner/openstack"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/servers"
	"github.com/spf13/viper"
)

func main() {
	var driver = os.Getenv("PROVISIONER")
	var backend provisioner.Backend
	var err error

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	switch driver {
	case local.Driver:
		backend, err = local.New(local.Config{Logger: logger})
	case kubernetes.Driver:
		backend, err = kubernetes.New(kubernetes.Config{Logger: logger, Kubeconfig: os.Getenv("KUBECONFIG")})
	case openstack.Driver:
		backend, err = openstack.New(openstack.Config{
			Logger: logger,
			Image:  "spawner-node-template",
			Flavor: "a1-ram2-disk20-perf1",
			Networks: []servers.Network{
				{UUID: "dcf25c41-9057-4bc2-8475-a2e3c5d8c662"}, // ext-net-1
			},
			SecurityGroups: []string{"spawner-node"},
		})
	default:
		backend, err = nil, fmt.Errorf("unknown provisioner '%s'", driver)
	}
	if err != nil {
		fmt.Println(fmt.Errorf("unable to create provisioner '%s': %w", driver, err).Error())
		os.Exit(1)
	}

	// Settings come from the same SPAWNER_* variables spawnctl reads
	v := viper.New()
	v.SetEnvPrefix("spawner")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetDefault(provisioner.KeyPollInterval, 2*time.Second)
	v.SetDefault(provisioner.KeySecurityGroup, "spawner-node")
	v.SetDefault(openstack.KeyImage, "spawner-node-template")
	v.SetDefault(openstack.KeyFlavor, "a1-ram2-disk20-perf1")

	p := provisioner.New(backend, provisioner.NewConfig(v), provisioner.WithLogger(logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := p.Initialize(ctx); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}

	var wg sync.WaitGroup
	for size := 1; size <= 3; size++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			node, err := p.CreateNode(ctx, provisioner.Request{Size: size})
			if err != nil {
				logger.Error("Create failed", "size", size, "error", err)
				return
			}
			logger.Info("Created", "node", node.Name, "endpoint", node.Endpoint(), "pending", p.Pending())
		}()
	}
	wg.Wait()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	p.Shutdown(shutdownCtx)
}
