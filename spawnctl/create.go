package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gammadia/spawner/provisioner"
	"github.com/gammadia/spawner/spawnctl/flags"
	"github.com/gammadia/spawner/spawnctl/log"
	"github.com/gammadia/spawner/spawnctl/ui"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Provision a node and wait until it has an address",
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		size := lo.Must(cmd.Flags().GetInt("size"))
		output := lo.Must(cmd.Flags().GetString("output"))
		hold := lo.Must(cmd.Flags().GetBool("hold"))

		if output != "yaml" && output != "json" {
			return fmt.Errorf("unknown output format '%s'", output)
		}

		p, err := createProvisioner(cmd.Context())
		if err != nil {
			return err
		}

		spinner := newSpinner(fmt.Sprintf("Creating node (waiting up to %s)", flags.Timeout()))
		node, err := p.CreateNode(cmd.Context(), provisioner.Request{Size: size})
		if err != nil {
			spinner.Fail()
			return err
		}
		spinner.Success(fmt.Sprintf("Node '%s' is ready at %s", node.Name, node.Endpoint()))

		if err := printNode(cmd.OutOrStdout(), node, output); err != nil {
			return err
		}

		if hold {
			log.Info("Holding node until interrupted", "node", node.Name)
			<-cmd.Context().Done()

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			p.Shutdown(ctx)
		}
		return nil
	},
}

func init() {
	createCmd.Flags().Int("size", 0, "workload size hint of the node")
	createCmd.Flags().StringP("output", "o", "yaml", "output format (yaml, json)")
	createCmd.Flags().Bool("hold", false, "destroy the node when interrupted")
}

func printNode(w io.Writer, node *provisioner.Node, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(node)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(node)
	default:
		return fmt.Errorf("unknown output format '%s'", format)
	}
}

// newSpinner only animates when stderr is a terminal.
func newSpinner(msg string) *ui.Spinner {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil
	}
	return ui.NewSpinner(os.Stderr, msg)
}
