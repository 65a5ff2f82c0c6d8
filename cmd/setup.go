package cmd

import (
	"github.com/bnema/wayime/internal/setup"
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactively configure the host input method",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setup.Run(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
