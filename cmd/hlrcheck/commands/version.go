package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hlrcheck/hlr-batch/internal/version"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the hlrcheck version.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Current)
		},
	})
}
