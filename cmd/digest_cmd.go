package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/memkit/internal/lifecycle"
	"github.com/nextlevelbuilder/memkit/internal/sessions"
)

func digestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "Regenerate the cross-session digest",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			if err := lifecycle.RefreshDigest(cfg, sessions.NewStore(cfg.SessionsDir)); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			fmt.Printf("Digest written to %s\n", cfg.DigestPath())
		},
	}
}
