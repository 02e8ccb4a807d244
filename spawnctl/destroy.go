package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/gammadia/spawner/provisioner"
	"github.com/gammadia/spawner/spawnctl/log"
	"github.com/spf13/cobra"
)

var destroyCmd = &cobra.Command{
	Use:   "destroy NAME...",
	Short: "Destroy nodes previously created by spawnctl",
	Args:  cobra.MinimumNArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := createProvisioner(cmd.Context())
		if err != nil {
			return err
		}

		var failed []string
		for _, name := range args {
			spinner := newSpinner(fmt.Sprintf("Destroying node '%s'", name))
			if err := destroyNode(cmd.Context(), p, name); err != nil {
				spinner.Fail()
				failed = append(failed, name)
				log.Error("Failed to destroy node", "node", name, "error", err)
				continue
			}
			spinner.Success()
		}

		if len(failed) > 0 {
			return fmt.Errorf("failed to destroy %d node(s): %s", len(failed), strings.Join(failed, ", "))
		}
		return nil
	},
}

type destroyer interface {
	DriverName() string
	Destroy(ctx context.Context, node *provisioner.Node) error
}

func destroyNode(ctx context.Context, p destroyer, name string) error {
	return p.Destroy(ctx, &provisioner.Node{
		Name:        name,
		Driver:      p.DriverName(),
		AutoSpawned: true,
	})
}
