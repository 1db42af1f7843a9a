package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"eduplus-export/internal/components/chrono"
	"eduplus-export/internal/components/telemetry"
	"eduplus-export/internal/exporter"

	"github.com/spf13/cobra"
)

func init() {
	scrapeCmd.Flags().StringVar(&courseId, "course", "", "The course to export, overrides course_id in the config.")
	scrapeCmd.Flags().StringVar(&only, "only", "", "Only export homeworks whose name contains or closely matches this.")
	scrapeCmd.Flags().StringVar(&dumpDir, "dump-http", "", "Write every http request and response into this directory.")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--course <id>] [--only <name>] [--dump-http <dir>]",
	Short: "Exports every homework of a course and renders the text reports.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		shutdown, err := telemetry.SetupOtel(ctx, serviceName, cfg.Otlp)
		if err != nil {
			return fmt.Errorf("setup tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err := shutdown(shutdownCtx)
			if err != nil {
				slog.Warn("failed to flush traces", "err", err)
			}
		}()

		client, err := createClient(cfg)
		if err != nil {
			return err
		}
		opts := cfg.ExporterOptions(exporter.Filter{Query: only})
		pipeline := exporter.NewPipeline(client, opts, chrono.NewStandardTime(), telemetry.SlogAPI{})

		slog.Info("exporting course", "course_id", opts.CourseId, "only", only)
		t1 := time.Now()
		summary, err := pipeline.Run(ctx)
		if err != nil {
			return fmt.Errorf("export interrupted: %w", err)
		}
		slog.Info("export time", "seconds", time.Since(t1).Seconds())

		printSummary(summary, opts)
		return nil
	},
}
