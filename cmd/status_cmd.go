package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/memkit/internal/corpus"
	"github.com/nextlevelbuilder/memkit/internal/lifecycle"
	"github.com/nextlevelbuilder/memkit/internal/memory"
)

type statusReport struct {
	Enabled        bool   `json:"enabled"`
	MemoryDir      string `json:"memoryDir"`
	Documents      int    `json:"documents"`
	CachedDocs     int    `json:"cachedDocs"`
	CacheBytes     int    `json:"cacheBytes"`
	Phase          string `json:"phase"`
	PendingConsent bool   `json:"pendingConsent"`
	SnoozeUntil    string `json:"snoozeUntil,omitempty"`
	OptimizedAt    string `json:"optimizedAt,omitempty"`
}

func statusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show corpus, cache, and maintenance status",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			engine := memory.NewEngine(cfg)
			st := lifecycle.NewStateStore(cfg.StatePath()).Load()
			now := time.Now()

			report := statusReport{
				Enabled:        cfg.Enabled,
				MemoryDir:      cfg.MemoryDir,
				Documents:      len(corpus.Scan(cfg.MemoryDir)),
				CachedDocs:     engine.Cache().Len(),
				CacheBytes:     engine.Cache().SizeBytes(),
				Phase:          string(st.Phase(now)),
				PendingConsent: st.PendingConsent,
			}
			if st.SnoozeUntil > 0 {
				report.SnoozeUntil = time.UnixMilli(st.SnoozeUntil).Format(time.RFC3339)
			}
			if st.OptimizedAt > 0 {
				report.OptimizedAt = time.UnixMilli(st.OptimizedAt).Format(time.RFC3339)
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					fmt.Fprintf(os.Stderr, "Error: %s\n", err)
					os.Exit(1)
				}
				return
			}

			fmt.Printf("Enabled:      %v\n", report.Enabled)
			fmt.Printf("Memory dir:   %s\n", report.MemoryDir)
			fmt.Printf("Documents:    %d\n", report.Documents)
			fmt.Printf("Cached docs:  %d (%d bytes)\n", report.CachedDocs, report.CacheBytes)
			fmt.Printf("Phase:        %s\n", report.Phase)
			if report.SnoozeUntil != "" {
				fmt.Printf("Snoozed until %s\n", report.SnoozeUntil)
			}
			if report.OptimizedAt != "" {
				fmt.Printf("Last optimized %s\n", report.OptimizedAt)
			}
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}
