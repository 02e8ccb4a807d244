package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the settings and check that the storage bucket is reachable",
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		spinner := newSpinner("Checking settings and storage")
		p, err := createProvisioner(cmd.Context())
		if err != nil {
			spinner.Fail()
			return err
		}

		spinner.Success(fmt.Sprintf("Provisioner '%s' is ready (namespace %s, up to %d machines)", p.DriverName(), p.Namespace(), p.MaxMachines()))
		return nil
	},
}
