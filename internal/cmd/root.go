// Package cmd implements the campus-sync command line interface.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/uroborus2s/campus-sync/internal/build"
)

// NewRootCommand creates the root command with every subcommand attached.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   build.AppSlug,
		Short: "Course-to-calendar synchronization engine",
		Long: `campus-sync expands a term's course occurrences into an idempotent task
tree, fans calendar events out to teacher and student calendars, creates
check-in sheets, and tracks per-occurrence sync status.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	cmd.PersistentFlags().String("config", "", "path to the configuration file")
	cmd.PersistentFlags().Bool("quiet", false, "suppress console log output")

	cmd.AddCommand(
		CmdServer(),
		CmdSync(),
		CmdIncremental(),
		CmdStatus(),
		CmdCancel(),
		CmdSoftDelete(),
		CmdMigrate(),
		CmdVersion(),
	)
	return cmd
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
