package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/fahmaliyi/pinguard/cli"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Line-mode interface for terminals without TUI support",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Piped input is shared with the command reader.
		var read cli.LineReader
		if term.IsTerminal(int(os.Stdin.Fd())) {
			read = cli.TerminalPINReader(os.Stdin, os.Stdout)
		}
		return withApp(cmd.Context(), slog.Default(), func(ctx context.Context, app *cli.App) error {
			return cli.NewShell(app, os.Stdin, cmd.OutOrStdout(), read).Run(ctx)
		})
	},
}
