package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/memkit/internal/inject"
	"github.com/nextlevelbuilder/memkit/internal/memory"
)

func injectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inject [session-id] [query...]",
		Short: "Search and inject results into today's dated document",
		Args:  cobra.MinimumNArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			sessionID := args[0]
			query := strings.Join(args[1:], " ")

			engine := memory.NewEngine(cfg)
			results := engine.Search(query, memory.Options{
				Dir:        cfg.MemoryDir,
				MaxResults: cfg.MaxResults,
				MinScore:   cfg.MinScore,
			})
			if len(results) == 0 {
				fmt.Println("No relevant memory.")
				return
			}

			n, err := inject.NewWriter(cfg).Inject(sessionID, query, results)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			if n == 0 {
				fmt.Println("Already injected for this session today.")
				return
			}
			fmt.Printf("Injected %d snippet(s).\n", n)
		},
	}
}
