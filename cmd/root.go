package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"telecalc/internal/clock"
	"telecalc/internal/config"
	"telecalc/internal/logger"
)

var version = "1.0.0"

// app is the state shared by all subcommands.
type app struct {
	configPath string
	cfg        *config.Config
	clock      clock.Clock
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "telecalc",
		Short: "Telecom billing calculators: anchor-based proration, pricing and bill scanning",
		Long: `telecalc prices partial billing cycles of monthly telecom subscriptions.

A billing cycle runs from one anchor day to the same day of the next month;
short months clamp the anchor to their last day. The calculators are available
on the command line and, with "telecalc serve", as a JSON/SSE HTTP API with a
bilingual (Arabic/English) chat assistant.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath
			if path == "" {
				path = os.Getenv("CONFIG_FILE")
			}
			cfg, err := config.LoadFile(path)
			if err != nil {
				return err
			}
			if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			a.cfg = cfg
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML configuration file (default: $CONFIG_FILE)")

	rootCmd.AddCommand(
		newServeCmd(a),
		newProrateCmd(a),
		newCycleCmd(a),
		newPriceCmd(a),
		newScanCmd(a),
	)
	return rootCmd
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	log := logger.WithComponent("cmd")

	if err := newRootCmd(&app{clock: clock.Real{}}).Execute(); err != nil {
		log.Debug().Err(err).Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
