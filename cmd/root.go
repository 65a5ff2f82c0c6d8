package cmd

import (
	"fmt"

	"github.com/bnema/wayime/internal/config"
	"github.com/bnema/wayime/internal/ipc"
	"github.com/bnema/wayime/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "wayime",
		Short: "wayime - Wayland text-input bridge",
		Long: `wayime bridges Wayland text-input clients to a host input method.
It tracks keyboard focus and per-surface input state, forwards surrounding
text and content hints to IBus, and delivers compositions back as preedit
and commit events.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}
)

// Execute runs the root command
func Execute() error {
	rootCmd.Version = Version
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/wayime/wayime.toml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("socket", "", "bridge socket path")
}

// flagKeys maps config keys to the flags that override them.
var flagKeys = map[string]string{
	"logging.log_level":   "log-level",
	"server.socket_path":  "socket",
	"server.seat":         "seat",
	"input_method.module": "module",
	"input_method.locale": "locale",
}

// bindFlags binds the flags of the running command. Flags a command does
// not define are skipped.
func bindFlags(cmd *cobra.Command) error {
	for key, name := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	return nil
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd); err != nil {
		return err
	}
	if configPath != "" {
		config.SetConfigPath(configPath)
	}
	if err := config.Init(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if level := config.Get().Logging.LogLevel; level != "" {
		logger.SetLevel(level)
	}
	return nil
}

// socketPath returns the configured socket or the runtime default. An
// empty result lets ipc report why no default could be found.
func socketPath() string {
	if p := config.Get().Server.SocketPath; p != "" {
		return p
	}
	p, _ := ipc.DefaultSocketPath()
	return p
}
