package ui

import (
	"context"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// ProgramConfig holds configuration for running a UI program
type ProgramConfig struct {
	AltScreen   bool
	Output      io.Writer
	Input       io.Reader
	GracePeriod time.Duration // Wait this long for a clean exit after cancel
}

// DefaultProgramConfig returns default configuration
func DefaultProgramConfig() ProgramConfig {
	return ProgramConfig{
		AltScreen:   true,
		GracePeriod: 2 * time.Second,
	}
}

// RunProgram runs model until it quits or ctx is cancelled. It returns the
// final model.
func RunProgram(ctx context.Context, model tea.Model, cfg ProgramConfig) (tea.Model, error) {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	if cfg.Output != nil {
		opts = append(opts, tea.WithOutput(cfg.Output))
	}
	if cfg.Input != nil {
		opts = append(opts, tea.WithInput(cfg.Input))
	}

	program := tea.NewProgram(model, opts...)

	type result struct {
		model tea.Model
		err   error
	}
	done := make(chan result, 1)
	go func() {
		m, err := program.Run()
		done <- result{m, err}
	}()

	select {
	case r := <-done:
		return r.model, programErr(ctx, r.err)
	case <-ctx.Done():
		program.Quit()
		select {
		case r := <-done:
			return r.model, programErr(ctx, r.err)
		case <-time.After(cfg.GracePeriod):
			// Force kill the program if it's not responding
			program.Kill()
			r := <-done
			return r.model, programErr(ctx, r.err)
		}
	}
}

// programErr hides the error bubbletea reports when it was stopped through
// its context.
func programErr(ctx context.Context, err error) error {
	if err == nil || ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("ui program failed: %w", err)
}
