package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bnema/wayime/internal/bridge"
	"github.com/bnema/wayime/internal/ipc"
	"github.com/bnema/wayime/internal/ui"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the running bridge",
	Long:  `Show connected clients, surfaces and the focus and composition state of every seat.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := socketPath()
		st, err := fetchStatus(cmd.Context(), path)
		if err != nil {
			return fmt.Errorf("bridge is not reachable at %s: %w", path, err)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st.Fields())
		}
		fmt.Fprint(cmd.OutOrStdout(), ui.RenderStatus(st, path))
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("json", false, "print the raw status report as JSON")
	rootCmd.AddCommand(statusCmd)
}

// fetchStatus dials the bridge for one status request.
func fetchStatus(ctx context.Context, path string) (bridge.Status, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	client, err := ipc.Dial(ctx, path)
	if err != nil {
		return bridge.Status{}, err
	}
	defer client.Close()

	reply, err := client.Status()
	if err != nil {
		return bridge.Status{}, fmt.Errorf("failed to get status: %w", err)
	}
	return bridge.ParseStatus(reply), nil
}
