package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"go-eye-inspector/internal/report"
	"go-eye-inspector/pkg/models"
)

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Print the explanation table coverage",
	RunE: func(cmd *cobra.Command, args []string) error {
		table := report.NewTable()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DIAGNOSIS\tSEVERITY\tRECOMMENDATIONS\tADVICE")
		for _, dx := range models.AllDiagnoses() {
			for _, sev := range models.AllSeverities() {
				e := table.Lookup(dx, sev)
				fmt.Fprintf(w, "%s\t%s\t%d\t%t\n", dx, sev, len(e.Recommendations), e.MedicalAdvice != "")
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\n%d entries\n", table.Size())
		return table.Validate()
	},
}
