// Package cli implements the sunbird command-line interface using Cobra.
// The serve command runs the HTTP API; the others drive the engine
// directly against the configured store.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/promotebya/sunbird-client-sub002/internal/daemon"
	"github.com/promotebya/sunbird-client-sub002/internal/logging"
)

var (
	cfg      daemon.Config
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "sunbird",
	Short: "sunbird: weekly engagement engine",
	Long: `sunbird runs the weekly engagement engine for paired users:
seeded weekly challenge rotation with tiered unlocks, daily streaks with a
once-a-week catch-up, and pair point totals driving weekly goals.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = daemon.LoadConfig()
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides config)")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version
	daemon.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
