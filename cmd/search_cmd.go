package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/memkit/internal/memory"
)

func searchCmd() *cobra.Command {
	var dir string
	var maxResults int
	var minScore float64
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "search [query...]",
		Short: "Search the memory corpus",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			if dir != "" {
				cfg.MemoryDir = dir
			}
			if maxResults > 0 {
				cfg.MaxResults = maxResults
			}
			if minScore >= 0 {
				cfg.MinScore = minScore
			}

			engine := memory.NewEngine(cfg)
			results := engine.Search(strings.Join(args, " "), memory.Options{
				Dir:        cfg.MemoryDir,
				MaxResults: cfg.MaxResults,
				MinScore:   cfg.MinScore,
			})
			printResults(results, jsonOutput)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "memory directory to search (overrides config)")
	cmd.Flags().IntVar(&maxResults, "max-results", 0, "maximum results to return")
	cmd.Flags().Float64Var(&minScore, "min-score", -1, "minimum relevance score")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func printResults(results []memory.SearchResult, jsonOutput bool) {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
		return
	}
	if len(results) == 0 {
		fmt.Println("No results.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tPATH\tSNIPPET")
	for _, r := range results {
		snippet := strings.ReplaceAll(r.Snippet, "\n", " ")
		if len(snippet) > 80 {
			cut := 80
			for cut > 0 && !utf8.RuneStart(snippet[cut]) {
				cut--
			}
			snippet = snippet[:cut] + "…"
		}
		fmt.Fprintf(w, "%.2f\t%s\t%s\n", r.Score, r.Path, snippet)
	}
	w.Flush()
}
