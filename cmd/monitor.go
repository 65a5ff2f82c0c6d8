package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/bnema/wayime/internal/bridge"
	"github.com/bnema/wayime/internal/ui"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch focus and composition state live",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		interval, _ := cmd.Flags().GetDuration("interval")
		path := socketPath()
		fetch := func(ctx context.Context) (bridge.Status, error) {
			return fetchStatus(ctx, path)
		}

		model := ui.NewMonitorModel(ctx, path, fetch, interval)
		_, err := ui.RunProgram(ctx, model, ui.DefaultProgramConfig())
		return err
	},
}

func init() {
	monitorCmd.Flags().Duration("interval", 0, "poll interval (default 250ms)")
	rootCmd.AddCommand(monitorCmd)
}
