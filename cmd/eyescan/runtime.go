package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var runtimeCmd = &cobra.Command{
	Use:   "runtime",
	Short: "Load the configured models and print their status",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newContainer(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		c.Warm(cmd.Context())

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(c.Service().Runtime())
	},
}
