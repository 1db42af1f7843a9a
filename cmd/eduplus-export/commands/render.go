package commands

import (
	"fmt"

	"eduplus-export/internal/components/telemetry"
	"eduplus-export/internal/exporter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(renderCmd)
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Renders the text reports of every exported homework again, without fetching anything.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		opts := cfg.ExporterOptions(exporter.Filter{})

		renderer := exporter.NewRenderer(opts.JsonDir, opts.TextDir, telemetry.SlogAPI{})
		summary, err := renderer.RenderAll(cmd.Context())
		if err != nil {
			return fmt.Errorf("render reports: %w", err)
		}

		printSummary(summary, opts)
		return nil
	},
}
