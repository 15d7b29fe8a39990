package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"vocacare-intake-go/internal/config"
	"vocacare-intake-go/internal/logger"
)

var envFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "vocacare",
		Short: "Patient intake poller for voice-agent call results",
		Long: `vocacare polls the intake backend for the latest voice-agent webhook,
normalizes the collected patient fields and serves them to the front desk.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env)")

	rootCmd.AddCommand(serveCmd(), exportCmd(), summarizeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *logger.Logger, error) {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, nil, err
	}
	log := logger.NewWith(logger.Options{Environment: cfg.Environment, Level: cfg.LogLevel})
	return cfg, log.With("service", "vocacare"), nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}
