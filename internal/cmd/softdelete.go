package cmd

import (
	"github.com/spf13/cobra"
)

// CmdSoftDelete drives the soft-delete lifecycle from the command line.
func CmdSoftDelete() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "soft-delete",
		Short: "Soft-delete occurrences and sweep pending deletions",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "start <occurrence-id>...",
			Short: "Mark occurrences deleted and schedule their event deletions",
			Args:  cobra.MinimumNArgs(1),
			RunE: runCommand(func(ctx *Context, args []string) error {
				comp, err := ctx.wire()
				if err != nil {
					return err
				}
				return comp.aggregator.SoftDelete(ctx, args)
			}),
		},
		&cobra.Command{
			Use:   "sweep <term>",
			Short: "Flip pending occurrences whose deletion jobs all finished",
			Args:  cobra.ExactArgs(1),
			RunE: runCommand(func(ctx *Context, args []string) error {
				comp, err := ctx.wire()
				if err != nil {
					return err
				}
				return comp.aggregator.CompleteSoftDelete(ctx, args[0])
			}),
		},
	)
	return cmd
}
