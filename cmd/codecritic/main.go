// Command codecritic reviews source files from the terminal using the same
// pipeline as the HTTP server.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/codecritic/codecritic/config"
	"github.com/spf13/cobra"
)

var (
	flagConfig   string
	flagProvider string
	flagModel    string
	flagVerbose  bool
)

var rootCmd = &cobra.Command{
	Use:           "codecritic",
	Short:         "AI code review from the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", config.DefaultConfigPath, "Path to the config file")
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "", "Model provider (openrouter, anthropic)")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "Model ID override")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log pipeline progress to stderr")

	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(validateKeyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig applies the file, then the environment, then flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagProvider != "" {
		cfg.Model.Provider = flagProvider
	}
	cfg.ApplyEnv(func(key string) string {
		// Flags take precedence over the environment.
		if key == "MODEL_PROVIDER" && flagProvider != "" {
			return ""
		}
		return os.Getenv(key)
	})
	if flagModel != "" {
		cfg.Model.Name = flagModel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
