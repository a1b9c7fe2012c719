package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uroborus2s/campus-sync/internal/build"
)

// CmdVersion prints the build version.
func CmdVersion() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), build.Version)
		},
	}
}
