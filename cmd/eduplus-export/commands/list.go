package commands

import (
	"fmt"
	"os"

	"eduplus-export/internal/exporter"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	listCmd.Flags().StringVar(&courseId, "course", "", "The course to list, overrides course_id in the config.")
	listCmd.Flags().StringVar(&only, "only", "", "Only list homeworks whose name contains or closely matches this.")
	listCmd.Flags().StringVar(&dumpDir, "dump-http", "", "Write every http request and response into this directory.")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list [--course <id>] [--only <name>]",
	Short: "Prints the published homeworks of a course.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := createClient(cfg)
		if err != nil {
			return err
		}

		homeworks, err := client.Homeworks(cmd.Context(), cfg.CourseId)
		if err != nil {
			return fmt.Errorf("list homeworks: %w", err)
		}
		homeworks = exporter.Filter{Query: only}.Apply(homeworks)

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"#", "Homework", "Id"})
		for i, hw := range homeworks {
			t.AppendRow(table.Row{i + 1, hw.Name, hw.Id})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}
