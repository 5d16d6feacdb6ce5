// Package cmd wires the memkit CLI. Each command resolves the config,
// constructs the engine pieces it needs, and exits nonzero on failure.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/memkit/internal/config"
)

var (
	configPath string
	verbose    bool
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memkit",
		Short: "Markdown memory retrieval and maintenance engine",
		Long: "memkit retrieves relevant chunks from a markdown corpus, injects them\n" +
			"into a dated document once per session per day, and keeps the corpus\n" +
			"healthy through digests, compaction, and consent-gated optimization.",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default $MEMKIT_CONFIG or ./memkit.json5)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(searchCmd())
	cmd.AddCommand(hookCmd())
	cmd.AddCommand(injectCmd())
	cmd.AddCommand(warmCmd())
	cmd.AddCommand(digestCmd())
	cmd.AddCommand(statusCmd())
	return cmd
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if env := os.Getenv("MEMKIT_CONFIG"); env != "" {
		return env
	}
	return "memkit.json5"
}

func loadConfig() *config.Config {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	return cfg
}
