package setup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bnema/wayime/internal/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initConfig(t *testing.T) string {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	path := filepath.Join(t.TempDir(), "wayime.toml")
	config.SetConfigPath(path)
	t.Cleanup(func() { config.SetConfigPath("") })
	require.NoError(t, config.Init())
	return path
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		answers Answers
		wantErr string
	}{
		{"ibus chinese", Answers{Module: "ibus", Locale: "zh_CN.UTF-8"}, ""},
		{"empty locale", Answers{Module: "none"}, ""},
		{"unknown module", Answers{Module: "fcitx"}, `unknown input method "fcitx"`},
		{"bad locale", Answers{Module: "ibus", Locale: "!!"}, `invalid locale "!!"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.answers.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestPolicy(t *testing.T) {
	p := Answers{Module: "ibus", Locale: "zh_TW", SelectionWorkarounds: true}.Policy()
	assert.True(t, p.CommitBeforeLeave())
	assert.True(t, p.SelectionWorkarounds)

	p = Answers{Module: "ibus", Locale: "ko_KR"}.Policy()
	assert.False(t, p.CommitBeforeLeave())
}

func TestFromConfig(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_CTYPE", "")
	t.Setenv("LANG", "ja_JP.UTF-8")

	a := FromConfig(&config.DefaultConfig)
	assert.Equal(t, "ibus", a.Module)
	assert.Equal(t, "ja_JP.UTF-8", a.Locale)
	assert.True(t, a.SelectionWorkarounds)
}

func TestApply(t *testing.T) {
	path := initConfig(t)

	err := Apply(Answers{Module: "none", Locale: "zh_HK", SelectionWorkarounds: false})
	require.NoError(t, err)

	cfg := config.Get()
	assert.Equal(t, "none", cfg.InputMethod.Module)
	assert.Equal(t, "zh_HK", cfg.InputMethod.Locale)
	assert.False(t, cfg.InputMethod.SelectionWorkarounds)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "zh_HK")
}

func TestApplyRejectsInvalid(t *testing.T) {
	path := initConfig(t)

	err := Apply(Answers{Module: "scim"})
	assert.ErrorContains(t, err, "unknown input method")
	assert.NoFileExists(t, path)
}

func TestForm(t *testing.T) {
	a := Answers{Module: "ibus"}
	assert.NotNil(t, Form(&a))
}
