package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/gammadia/spawner/spawnctl/flags"
	"github.com/gammadia/spawner/spawnctl/log"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// Versioning information set at build time
var version, commit = "dev", "n/a"

var spawnctlCmd = &cobra.Command{
	Use:   "spawnctl",
	Short: "Spawnctl provisions ephemeral worker nodes.",

	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return log.Init(os.Stderr)
	},
}

func init() {
	spawnctlCmd.AddCommand(checkCmd)
	spawnctlCmd.AddCommand(createCmd)
	spawnctlCmd.AddCommand(destroyCmd)
	spawnctlCmd.AddCommand(versionCmd)

	flags.Register(spawnctlCmd.PersistentFlags())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	spawnctlCmd.SetOut(os.Stdout)
	if err := spawnctlCmd.ExecuteContext(ctx); err != nil {
		lo.Must(fmt.Fprintln(os.Stderr, color.HiRedString(fmt.Sprint(err))))
		os.Exit(1)
	}
}
