package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/bnema/wayime/internal/replay"
	"github.com/bnema/wayime/internal/ui"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay SCENARIO.yaml",
	Short: "Run a scripted text-input session and print its transcript",
	Long: `Run a YAML scenario against an in-process bridge core. Every client event
and host call is recorded; expectations in the scenario are checked and the
command fails if any of them does not hold.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringP("format", "f", "json", "transcript format (json or cbor)")
	replayCmd.Flags().StringP("output", "o", "", "write the transcript to a file instead of stdout")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("format")
	format, err := replay.ParseFormat(name)
	if err != nil {
		return err
	}

	sc, err := replay.LoadFile(args[0])
	if err != nil {
		return err
	}
	tr, err := replay.Run(sc)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create transcript: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := tr.Encode(out, format); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}

	if tr.Failed() {
		for _, f := range tr.Failures {
			fmt.Fprintln(cmd.ErrOrStderr(), ui.ErrorStyle.Render(ui.IconError+" "+f))
		}
		return fmt.Errorf("%d expectation(s) failed in %q", len(tr.Failures), sc.Name)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), ui.SuccessStyle.Render(fmt.Sprintf("%s %s: %d steps", ui.IconSuccess, sc.Name, len(tr.Steps))))
	return nil
}
