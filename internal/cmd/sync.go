package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uroborus2s/campus-sync/internal/logger"
	syncengine "github.com/uroborus2s/campus-sync/internal/sync"
)

// CmdSync starts a full sync run for one term. Expansion is synchronous; job
// execution continues in the server's worker pool.
func CmdSync() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync <term>",
		Short: "Expand a term's pending occurrences into the task tree",
		Args:  cobra.ExactArgs(1),
		RunE:  runCommand(runSync),
	}
	cmd.Flags().StringSlice("course", nil, "restrict the run to the given course ids")
	return cmd
}

func runSync(ctx *Context, args []string) error {
	courseIDs, err := ctx.Command.Flags().GetStringSlice("course")
	if err != nil {
		return err
	}
	comp, err := ctx.wire()
	if err != nil {
		return err
	}

	rootID, err := comp.engine.StartFullSync(ctx, args[0], syncengine.Options{CourseIDs: courseIDs})
	if err != nil {
		return err
	}
	logger.Info(ctx, "Full sync started", "term", args[0], "root", rootID)
	fmt.Fprintln(ctx.Command.OutOrStdout(), rootID)
	return nil
}

// CmdIncremental runs one incremental sync pass for a term.
func CmdIncremental() *cobra.Command {
	return &cobra.Command{
		Use:   "incremental <term>",
		Short: "Reconcile occurrences changed since the term's checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: runCommand(func(ctx *Context, args []string) error {
			comp, err := ctx.wire()
			if err != nil {
				return err
			}
			return comp.engine.IncrementalSync(ctx, args[0])
		}),
	}
}
