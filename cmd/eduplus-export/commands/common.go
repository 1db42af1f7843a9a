package commands

import (
	"fmt"
	"os"

	"eduplus-export/internal/components/telemetry"
	"eduplus-export/internal/config"
	"eduplus-export/internal/exporter"
	"eduplus-export/internal/scrapers/eduplus"

	"github.com/jedib0t/go-pretty/v6/table"
)

// flags shared by the commands that talk to eduplus
var (
	courseId string
	only     string
	dumpDir  string
)

// loadConfig reads the config and applies the command line overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("read config: %w", err)
	}
	if courseId != "" {
		cfg.CourseId = courseId
	}
	return cfg, nil
}

func createClient(cfg config.Config) (*eduplus.Client, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var dump telemetry.MessageOutput
	if dumpDir != "" {
		output, err := telemetry.NewFilesystemOutput(dumpDir)
		if err != nil {
			return nil, fmt.Errorf("create http dump directory: %w", err)
		}
		dump = output
	}

	client, err := eduplus.NewClient(cfg.ClientOptions(dump), telemetry.SlogAPI{})
	if err != nil {
		return nil, fmt.Errorf("initialize eduplus client: %w", err)
	}
	return client, nil
}

func printSummary(summary exporter.Summary, opts exporter.Options) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"", "Count"})
	t.AppendRows([]table.Row{
		{"Homeworks", summary.Homeworks},
		{"Exported", summary.Exported},
		{"Without questions", summary.Empty},
		{"Rendered", summary.Rendered},
		{"Reprocessed", summary.Reprocessed},
		{"Failed", summary.Failed},
	})
	t.AppendFooter(table.Row{"Output", fmt.Sprintf("%s, %s", opts.JsonDir, opts.TextDir)})
	t.SetStyle(table.StyleRounded)
	t.Render()
}
