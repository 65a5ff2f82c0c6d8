package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

// useConfigFile points the package at a fresh file in a temp dir.
func useConfigFile(t *testing.T, content string) string {
	t.Helper()
	viper.Reset()
	path := filepath.Join(t.TempDir(), "wayime.toml")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	SetConfigPath(path)
	t.Cleanup(func() {
		SetConfigPath("")
		Set(nil)
		viper.Reset()
	})
	return path
}

func TestInit(t *testing.T) {
	t.Run("initializes with defaults when no config exists", func(t *testing.T) {
		viper.Reset()
		t.Setenv("HOME", t.TempDir())
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Cleanup(func() { Set(nil) })

		require.NoError(t, Init())

		c := Get()
		assert.Equal(t, "seat0", c.Server.Seat)
		assert.Equal(t, "ibus", c.InputMethod.Module)
		assert.True(t, c.InputMethod.SelectionWorkarounds)
		assert.Equal(t, uint32(2), c.Protocol.MaxVersion)
	})

	t.Run("reads sections from file", func(t *testing.T) {
		useConfigFile(t, `
[server]
socket_path = "/run/user/1000/ime.sock"
seat = "seat1"

[input_method]
module = "none"
locale = "ja_JP.UTF-8"
selection_workarounds = false

[protocol]
max_version = 1

[logging]
log_level = "debug"
`)
		require.NoError(t, Init())

		c := Get()
		assert.Equal(t, "/run/user/1000/ime.sock", c.Server.SocketPath)
		assert.Equal(t, "seat1", c.Server.Seat)
		assert.Equal(t, "none", c.InputMethod.Module)
		assert.Equal(t, "ja_JP.UTF-8", c.InputMethod.Locale)
		assert.False(t, c.InputMethod.SelectionWorkarounds)
		assert.Equal(t, uint32(1), c.Protocol.MaxVersion)
		assert.Equal(t, "debug", c.Logging.LogLevel)
	})

	t.Run("handles invalid TOML", func(t *testing.T) {
		useConfigFile(t, "[server\nseat = 1")
		assert.ErrorContains(t, Init(), "error reading config file")
	})

	t.Run("rejects unsupported protocol version", func(t *testing.T) {
		useConfigFile(t, "[protocol]\nmax_version = 7\n")
		assert.ErrorContains(t, Init(), "protocol.max_version")
	})
}

func TestGetWithoutInitReturnsDefaults(t *testing.T) {
	Set(nil)
	c := Get()
	c.Server.Seat = "changed"
	assert.Equal(t, "seat0", DefaultConfig.Server.Seat)
}

func TestFlushPolicy(t *testing.T) {
	tests := []struct {
		name       string
		module     string
		locale     string
		env        string
		wantLocale language.Tag
		wantCommit bool
	}{
		{"ibus japanese", "ibus", "ja_JP.UTF-8", "", language.MustParse("ja-JP"), false},
		{"ibus chinese", "ibus", "zh_CN.UTF-8", "", language.MustParse("zh-CN"), true},
		{"none always commits", "none", "ja_JP", "", language.MustParse("ja-JP"), true},
		{"locale from environment", "ibus", "", "zh_TW.UTF-8", language.MustParse("zh-TW"), true},
		{"C locale", "ibus", "C", "", language.Und, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LC_ALL", "")
			t.Setenv("LC_CTYPE", "")
			t.Setenv("LANG", tt.env)

			c := &Config{InputMethod: InputMethodConfig{Module: tt.module, Locale: tt.locale, SelectionWorkarounds: true}}
			p, err := c.FlushPolicy()
			require.NoError(t, err)
			assert.Equal(t, tt.wantLocale, p.Locale)
			assert.Equal(t, tt.wantCommit, p.CommitBeforeLeave())
			assert.True(t, p.SelectionWorkarounds)
		})
	}

	t.Run("invalid locale", func(t *testing.T) {
		c := &Config{InputMethod: InputMethodConfig{Module: "ibus", Locale: "not a locale!"}}
		p, err := c.FlushPolicy()
		assert.ErrorContains(t, err, "invalid locale")
		assert.Equal(t, language.Und, p.Locale)
	})
}

func TestConfigPathResolution(t *testing.T) {
	t.Run("xdg config home", func(t *testing.T) {
		viper.Reset()
		t.Setenv("XDG_CONFIG_HOME", "/home/testuser/.xdg")
		assert.Equal(t, "/home/testuser/.xdg/wayime/wayime.toml", GetConfigPath())
	})

	t.Run("home fallback", func(t *testing.T) {
		viper.Reset()
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("HOME", "/home/testuser")
		assert.Equal(t, "/home/testuser/.config/wayime/wayime.toml", GetConfigPath())
	})

	t.Run("override wins", func(t *testing.T) {
		SetConfigPath("/tmp/custom.toml")
		defer SetConfigPath("")
		assert.Equal(t, "/tmp/custom.toml", GetConfigPath())
	})
}

func TestConfigPrecedence(t *testing.T) {
	tmpDir := t.TempDir()
	xdgDir := filepath.Join(tmpDir, "xdg", "wayime")
	homeDir := filepath.Join(tmpDir, "home", ".config", "wayime")
	require.NoError(t, os.MkdirAll(xdgDir, 0755))
	require.NoError(t, os.MkdirAll(homeDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(xdgDir, "wayime.toml"), []byte("[server]\nseat = \"xdg\"\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(homeDir, "wayime.toml"), []byte("[server]\nseat = \"home\"\n"), 0644))

	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))
	t.Setenv("HOME", filepath.Join(tmpDir, "home"))
	t.Cleanup(func() { Set(nil); viper.Reset() })

	t.Run("xdg directory takes precedence", func(t *testing.T) {
		viper.Reset()
		require.NoError(t, Init())
		assert.Equal(t, "xdg", Get().Server.Seat)
	})

	t.Run("home config used when no xdg config", func(t *testing.T) {
		require.NoError(t, os.Remove(filepath.Join(xdgDir, "wayime.toml")))
		viper.Reset()
		require.NoError(t, Init())
		assert.Equal(t, "home", Get().Server.Seat)
	})
}

func TestSetValue(t *testing.T) {
	path := useConfigFile(t, "")
	require.NoError(t, Init())

	require.NoError(t, SetValue("input_method.locale", "zh_CN"))
	assert.Equal(t, "zh_CN", Get().InputMethod.Locale)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "zh_CN")

	assert.ErrorContains(t, SetValue("server.port", 1), "unknown config key")
}

func TestServerSeats(t *testing.T) {
	useConfigFile(t, "[server]\nseat = \"seat0\"\nseats = [\"seat1\", \"seat2\"]\n")
	require.NoError(t, Init())
	assert.Equal(t, []string{"seat1", "seat2"}, Get().Server.Seats)

	require.NoError(t, SetValue("server.seats", "seat3,seat4"))
	assert.Equal(t, []string{"seat3", "seat4"}, Get().Server.Seats)
}

func TestWatchReloads(t *testing.T) {
	path := useConfigFile(t, "[input_method]\nlocale = \"ja_JP\"\n")
	require.NoError(t, Init())

	reloaded := make(chan *Config, 4)
	Watch(func(c *Config, err error) {
		if err != nil {
			return
		}
		select {
		case reloaded <- c:
		default:
		}
	})

	require.NoError(t, os.WriteFile(path, []byte("[input_method]\nlocale = \"zh_CN\"\n"), 0644))

	// An editor may produce several events; wait for the final content.
	timeout := time.After(5 * time.Second)
	for {
		select {
		case c := <-reloaded:
			if c.InputMethod.Locale == "zh_CN" {
				return
			}
		case <-timeout:
			t.Fatal("config change not observed")
		}
	}
}
