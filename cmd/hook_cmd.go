package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/memkit/internal/inject"
	"github.com/nextlevelbuilder/memkit/internal/lifecycle"
	"github.com/nextlevelbuilder/memkit/internal/memory"
	"github.com/nextlevelbuilder/memkit/internal/sessions"
	"github.com/nextlevelbuilder/memkit/pkg/protocol"
)

func hookCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hook",
		Short: "Handle a host lifecycle event from stdin",
		Long: "Reads one JSON event from stdin, runs the lifecycle actions it\n" +
			"triggers, and on ordinary turns attempts a first-message injection,\n" +
			"printing the injection result as JSON.",
		Run: func(cmd *cobra.Command, args []string) {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: read stdin: %s\n", err)
				os.Exit(1)
			}

			ev, err := protocol.ParseHookEvent(data)
			if err != nil {
				if errors.Is(err, protocol.ErrIgnoreEvent) {
					return
				}
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}

			cfg := loadConfig()
			engine := memory.NewEngine(cfg)
			writer := inject.NewWriter(cfg)
			machine := lifecycle.NewMachine(cfg, engine, writer, sessions.NewStore(cfg.SessionsDir))

			machine.HandleEvent(cmd.Context(), ev)

			if ev.IsTurn() {
				res := inject.HandleFirstMessage(cfg, engine, writer, ev.SessionID, ev.Message)
				if err := json.NewEncoder(os.Stdout).Encode(res); err != nil {
					fmt.Fprintf(os.Stderr, "Error: %s\n", err)
					os.Exit(1)
				}
			}
		},
	}
}
