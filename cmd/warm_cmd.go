package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/memkit/internal/config"
	"github.com/nextlevelbuilder/memkit/internal/memory"
)

func warmCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Chunk and cache every corpus document",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			engine := memory.NewEngine(cfg)
			if err := engine.Warm(cmd.Context()); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			fmt.Printf("Warmed %d document(s), cache is %d bytes.\n",
				engine.Cache().Len(), engine.Cache().SizeBytes())

			if !watch {
				return
			}

			// Watch mode keeps the process alive and re-warms whenever the
			// config file or a corpus document changes, so the cache stays
			// hot between invocations.
			watcher, err := config.NewWatcher(resolveConfigPath())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			watcher.OnChange(func(next *config.Config) {
				e := memory.NewEngine(next)
				if err := e.Warm(cmd.Context()); err != nil {
					fmt.Fprintf(os.Stderr, "Warm after reload failed: %s\n", err)
					return
				}
				fmt.Printf("Re-warmed %d document(s).\n", e.Cache().Len())
			})
			if err := watcher.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			defer watcher.Stop()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "stay running and re-warm on config or corpus changes")
	return cmd
}
