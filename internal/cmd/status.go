package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// CmdStatus prints the live summary of one sync run as JSON.
func CmdStatus() *cobra.Command {
	return &cobra.Command{
		Use:   "status <root-task-id>",
		Short: "Show the progress of a sync run",
		Args:  cobra.ExactArgs(1),
		RunE: runCommand(func(ctx *Context, args []string) error {
			comp, err := ctx.wire()
			if err != nil {
				return err
			}
			summary, err := comp.engine.SyncStatus(ctx, args[0])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(ctx.Command.OutOrStdout(), string(out))
			return nil
		}),
	}
}

// CmdCancel best-effort cancels every non-terminal task of a run.
func CmdCancel() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <root-task-id>",
		Short: "Cancel a sync run",
		Args:  cobra.ExactArgs(1),
		RunE: runCommand(func(ctx *Context, args []string) error {
			comp, err := ctx.wire()
			if err != nil {
				return err
			}
			cancelled, err := comp.engine.CancelSync(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(ctx.Command.OutOrStdout(), "cancelled %d tasks\n", cancelled)
			return nil
		}),
	}
}
