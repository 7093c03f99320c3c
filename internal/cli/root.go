package cli

import (
	"fmt"

	"github.com/buemura/scanhub/internal/config"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configFlag   string
	outputFlag   string
	serverFlag   string
	logLevelFlag string
)

// appConfig holds the loaded configuration, available after PersistentPreRunE.
var appConfig *config.Config

var rootCmd = &cobra.Command{
	Use:   "scanhub",
	Short: "scanhub runs and tracks asynchronous website vulnerability scans",
	Long: `scanhub accepts scan requests over a JSON API, runs them in the
background and keeps every job's status and results for polling.

Run "scanhub serve" to start the API, and the "scan" commands to talk to it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var (
			cfg *config.Config
			err error
		)
		if configFlag != "" {
			cfg, err = config.LoadFromFile(configFlag)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		config.ApplyFlags(cfg, cmd)

		outputFlag = cfg.OutputFormat
		serverFlag = cfg.ServerURL

		appConfig = cfg
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "config file (default ~/.scanhub.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "table", "output format: table, json, markdown")
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "http://localhost:8080", "scanhub server URL")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "log level: debug, info, warn, error")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(versionCmd)
}
