package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/bnema/wayime/internal/bridge"
	"github.com/bnema/wayime/internal/config"
	"github.com/bnema/wayime/internal/ibus"
	"github.com/bnema/wayime/internal/logger"
	"github.com/bnema/wayime/internal/textinput"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the text-input bridge",
	Long: `Run the text-input bridge. Clients connect over the bridge socket, and
each seat is connected to the configured host input method.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("seat", "", "default seat name")
	serveCmd.Flags().String("module", "", `host input method ("ibus" or "none")`)
	serveCmd.Flags().String("locale", "", "input locale, e.g. zh_CN.UTF-8")
	serveCmd.Flags().Bool("no-watch", false, "do not reload the config file on change")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	policy, err := cfg.FlushPolicy()
	if err != nil {
		logger.Warn("falling back to an undetermined locale", "err", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hosts := &hostSet{module: cfg.InputMethod.Module, address: cfg.InputMethod.IBusAddress}
	defer hosts.close()

	seats := make([]textinput.SeatID, 0, len(cfg.Server.Seats))
	for _, name := range cfg.Server.Seats {
		seats = append(seats, textinput.SeatID(name))
	}

	srv, err := bridge.NewServer(bridge.Options{
		SocketPath: socketPath(),
		Seat:       textinput.SeatID(cfg.Server.Seat),
		Seats:      seats,
		Policy:     policy,
		MaxVersion: cfg.Protocol.MaxVersion,
		Hosts:      hosts.create,
	})
	if err != nil {
		return fmt.Errorf("failed to create bridge: %w", err)
	}

	if noWatch, _ := cmd.Flags().GetBool("no-watch"); !noWatch {
		config.Watch(func(c *config.Config, err error) {
			if err != nil {
				logger.Warn("config reload failed", "err", err)
				return
			}
			if c.Logging.LogLevel != "" {
				logger.SetLevel(c.Logging.LogLevel)
			}
			p, err := c.FlushPolicy()
			if err != nil {
				logger.Warn("invalid locale in reloaded config", "err", err)
			}
			srv.SetPolicy(p)
		})
	}

	logger.Info("starting wayime", "version", Version, "module", policy.Module, "locale", policy.Locale, "commit_before_leave", policy.CommitBeforeLeave())
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("bridge stopped: %w", err)
	}
	logger.Info("wayime stopped")
	return nil
}

// hostSet creates one host per seat and closes them on shutdown.
type hostSet struct {
	module  string
	address string

	mu     sync.Mutex
	closer []func() error
}

func (s *hostSet) create(ctx context.Context, ti *textinput.TextInput, post func(func())) textinput.Host {
	if !strings.EqualFold(s.module, "ibus") {
		logger.Info("no host input method configured", "seat", ti.Seat(), "module", s.module)
		return textinput.NopHost{}
	}

	h, err := ibus.Connect(ctx, s.address, ti, post)
	if err != nil {
		logger.Warn("IBus unavailable, seat runs without an input method", "seat", ti.Seat(), "err", err)
		return textinput.NopHost{}
	}

	s.mu.Lock()
	s.closer = append(s.closer, h.Close)
	s.mu.Unlock()
	return h
}

func (s *hostSet) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.closer {
		if err := c(); err != nil {
			logger.Debug("closing host", "err", err)
		}
	}
	s.closer = nil
}
