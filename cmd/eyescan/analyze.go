package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go-eye-inspector/internal/logger"
	"go-eye-inspector/pkg/models"
)

// fileResult is one line of analyze output
type fileResult struct {
	File     string                   `json:"file"`
	Response *models.AnalysisResponse `json:"response,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>...",
	Short: "Analyze one or more eye photographs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, _ := cmd.Flags().GetString("profile")
		pretty, _ := cmd.Flags().GetBool("pretty")

		c, err := newContainer(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		enc := json.NewEncoder(cmd.OutOrStdout())
		if pretty {
			enc.SetIndent("", "  ")
		}

		failed := 0
		for _, file := range args {
			out := fileResult{File: file}
			data, err := os.ReadFile(file)
			if err == nil {
				out.Response, err = c.Service().Analyze(cmd.Context(), data, profile)
			}
			if err != nil {
				failed++
				out.Error = err.Error()
				logger.WithError(err).WithField("file", file).Warn("Analysis failed")
			}
			if err := enc.Encode(out); err != nil {
				return err
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(args))
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().String("profile", "standard", "Analysis profile: standard, fast or heuristic")
	analyzeCmd.Flags().Bool("pretty", false, "Indent JSON output")
}
