package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/fahmaliyi/pinguard/cli"
	"github.com/spf13/cobra"
)

var pinCmd = &cobra.Command{
	Use:   "pin",
	Short: "Manage the reveal PIN",
}

var pinStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a PIN is set",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), slog.Default(), func(ctx context.Context, app *cli.App) error {
			return cli.PINStatus(ctx, app, cmd.OutOrStdout())
		})
	},
}

var pinResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove the PIN after verifying it",
	Long: `Reset asks for confirmation and the current PIN, then removes it.
A new PIN is requested the next time you reveal your balance.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), slog.Default(), func(ctx context.Context, app *cli.App) error {
			read := cli.TerminalPINReader(os.Stdin, os.Stdout)
			return cli.ResetPIN(ctx, app, cli.HuhConfirm, read, cmd.OutOrStdout())
		})
	},
}

func init() {
	pinCmd.AddCommand(pinStatusCmd, pinResetCmd)
}
