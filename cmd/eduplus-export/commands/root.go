package commands

import (
	"context"

	"eduplus-export/internal/components/telemetry"
	"eduplus-export/internal/config"

	"github.com/spf13/cobra"
)

const serviceName = "eduplus-export"

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "eduplus-export",
	Short: "eduplus-export exports eduplus.net homework questions into json and text files.",
	// errors are logged by main
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultFile, "The json5 config file, searched for in parent directories when given as a bare name.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logs.")
}

// ExecuteContext runs the command line, deferred cleanups of the command have run by the
// time it returns.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
