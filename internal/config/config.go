// Package config handles configuration management using Viper
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bnema/wayime/internal/textinput"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	InputMethod InputMethodConfig `mapstructure:"input_method"`
	Protocol    ProtocolConfig    `mapstructure:"protocol"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig contains bridge server settings
type ServerConfig struct {
	SocketPath string `mapstructure:"socket_path"` // Empty means the runtime dir default
	Seat       string   `mapstructure:"seat"`
	Seats      []string `mapstructure:"seats"` // Further seats served besides Seat
}

// InputMethodConfig selects the host input method and how compositions are
// flushed.
type InputMethodConfig struct {
	Module               string `mapstructure:"module"`       // "ibus" or "none"
	Locale               string `mapstructure:"locale"`       // Empty means LC_ALL/LC_CTYPE/LANG
	IBusAddress          string `mapstructure:"ibus_address"` // Empty means IBUS_ADDRESS or the address file
	SelectionWorkarounds bool   `mapstructure:"selection_workarounds"`
}

// ProtocolConfig limits the advertised protocol.
type ProtocolConfig struct {
	MaxVersion uint32 `mapstructure:"max_version"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	LogLevel string `mapstructure:"log_level"` // Override LOG_LEVEL env var
}

const configName = "wayime"

var (
	// DefaultConfig provides sensible defaults
	DefaultConfig = Config{
		Server: ServerConfig{
			Seat: "seat0",
		},
		InputMethod: InputMethodConfig{
			Module:               "ibus",
			SelectionWorkarounds: true,
		},
		Protocol: ProtocolConfig{
			MaxVersion: textinput.MaxVersion,
		},
	}

	mu  sync.RWMutex
	cfg *Config

	// Override config path if set
	configPathOverride string
)

// SetConfigPath allows overriding the config path
func SetConfigPath(path string) {
	configPathOverride = path
}

// Init initializes the configuration system
func Init() error {
	viper.SetConfigName(configName)
	viper.SetConfigType("toml")

	if configPathOverride != "" {
		viper.SetConfigFile(configPathOverride)
	} else {
		for _, dir := range searchPaths() {
			viper.AddConfigPath(dir)
		}
	}

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, use defaults
	}

	return load()
}

func setDefaults() {
	viper.SetDefault("server.socket_path", DefaultConfig.Server.SocketPath)
	viper.SetDefault("server.seat", DefaultConfig.Server.Seat)
	viper.SetDefault("server.seats", []string{})

	viper.SetDefault("input_method.module", DefaultConfig.InputMethod.Module)
	viper.SetDefault("input_method.locale", DefaultConfig.InputMethod.Locale)
	viper.SetDefault("input_method.ibus_address", DefaultConfig.InputMethod.IBusAddress)
	viper.SetDefault("input_method.selection_workarounds", DefaultConfig.InputMethod.SelectionWorkarounds)

	viper.SetDefault("protocol.max_version", DefaultConfig.Protocol.MaxVersion)

	viper.SetDefault("logging.log_level", DefaultConfig.Logging.LogLevel)
}

// searchPaths lists config directories, highest priority first.
func searchPaths() []string {
	var dirs []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		dirs = append(dirs, filepath.Join(xdg, configName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".config", configName))
	}
	return append(dirs, ".")
}

func load() error {
	c := &Config{}
	if err := viper.Unmarshal(c); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	if c.Protocol.MaxVersion == 0 || c.Protocol.MaxVersion > textinput.MaxVersion {
		return fmt.Errorf("protocol.max_version must be between 1 and %d, got %d", textinput.MaxVersion, c.Protocol.MaxVersion)
	}
	Set(c)
	return nil
}

// Get returns the current configuration
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if cfg == nil {
		// Return defaults if not initialized
		d := DefaultConfig
		return &d
	}
	return cfg
}

// Set sets the current configuration (for testing)
func Set(c *Config) {
	mu.Lock()
	cfg = c
	mu.Unlock()
}

// Watch reloads the configuration whenever the file changes and passes the
// new value to fn. A file that fails to parse keeps the previous config.
func Watch(fn func(*Config, error)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		if err := viper.ReadInConfig(); err != nil {
			fn(Get(), fmt.Errorf("error reading config file: %w", err))
			return
		}
		err := load()
		fn(Get(), err)
	})
	viper.WatchConfig()
}

// Locale returns the configured locale, falling back to the environment.
func (c *Config) Locale() string {
	if c.InputMethod.Locale != "" {
		return c.InputMethod.Locale
	}
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// FlushPolicy builds the text-input flush policy from the input method
// section.
func (c *Config) FlushPolicy() (textinput.FlushPolicy, error) {
	p, err := textinput.ParseFlushPolicy(c.InputMethod.Module, c.Locale(), c.InputMethod.SelectionWorkarounds)
	if err != nil {
		return p, fmt.Errorf("invalid locale %q: %w", c.Locale(), err)
	}
	return p, nil
}

// Save saves the current configuration to file
func Save() error {
	configPath := GetConfigPath()

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// SetValue changes one key, e.g. "input_method.locale", and saves.
func SetValue(key string, value interface{}) error {
	if !isKnownKey(key) {
		return fmt.Errorf("unknown config key %q", key)
	}
	viper.Set(key, value)
	if err := load(); err != nil {
		return err
	}
	return Save()
}

// Keys returns every known configuration key, sorted.
func Keys() []string {
	keys := []string{
		"server.socket_path",
		"server.seat",
		"server.seats",
		"input_method.module",
		"input_method.locale",
		"input_method.ibus_address",
		"input_method.selection_workarounds",
		"protocol.max_version",
		"logging.log_level",
	}
	sort.Strings(keys)
	return keys
}

func isKnownKey(key string) bool {
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	if configPathOverride != "" {
		return configPathOverride
	}

	if viper.ConfigFileUsed() != "" {
		return viper.ConfigFileUsed()
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, configName, configName+".toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return configName + ".toml"
	}
	return filepath.Join(home, ".config", configName, configName+".toml")
}
