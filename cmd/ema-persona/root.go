package main

import (
	"fmt"
	"os"

	"github.com/koscakluka/ema-persona/internal/config"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ema-persona",
	Short: "Talk with KYUROKU.ainas by text or voice",
	Long: `ema-persona runs a persona chat in the terminal and the proxy that
relays its requests to Gemini.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./config.yaml or ~/.ema-persona/config.yaml)")
	rootCmd.AddCommand(chatCmd, serveCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
