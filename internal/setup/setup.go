// Package setup runs the interactive first-run configuration of the input
// method section.
package setup

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bnema/wayime/internal/config"
	"github.com/bnema/wayime/internal/ibus"
	"github.com/bnema/wayime/internal/logger"
	"github.com/bnema/wayime/internal/textinput"
	"github.com/bnema/wayime/internal/ui"
	"github.com/charmbracelet/huh"
)

// Modules lists the host input methods wayime can drive.
var Modules = []string{"ibus", "none"}

// Answers holds the values the setup form edits.
type Answers struct {
	Module               string
	Locale               string
	IBusAddress          string
	SelectionWorkarounds bool
}

// FromConfig seeds the form with the current configuration.
func FromConfig(cfg *config.Config) Answers {
	return Answers{
		Module:               cfg.InputMethod.Module,
		Locale:               cfg.Locale(),
		IBusAddress:          cfg.InputMethod.IBusAddress,
		SelectionWorkarounds: cfg.InputMethod.SelectionWorkarounds,
	}
}

// ValidateModule rejects modules other than those in Modules.
func ValidateModule(m string) error {
	for _, known := range Modules {
		if m == known {
			return nil
		}
	}
	return fmt.Errorf("unknown input method %q (want %s)", m, strings.Join(Modules, " or "))
}

// ValidateLocale accepts POSIX locales and BCP 47 tags. Empty means the
// environment decides.
func ValidateLocale(s string) error {
	if _, err := textinput.ParseFlushPolicy("", s, false); err != nil {
		return fmt.Errorf("invalid locale %q", s)
	}
	return nil
}

// Validate checks every answer.
func (a Answers) Validate() error {
	return errors.Join(ValidateModule(a.Module), ValidateLocale(a.Locale))
}

// Policy is the flush policy these answers would produce.
func (a Answers) Policy() textinput.FlushPolicy {
	p, _ := textinput.ParseFlushPolicy(a.Module, a.Locale, a.SelectionWorkarounds)
	return p
}

// Apply stores the answers and saves the config file.
func Apply(a Answers) error {
	if err := a.Validate(); err != nil {
		return err
	}
	values := []struct {
		key   string
		value interface{}
	}{
		{"input_method.module", a.Module},
		{"input_method.locale", a.Locale},
		{"input_method.ibus_address", a.IBusAddress},
		{"input_method.selection_workarounds", a.SelectionWorkarounds},
	}
	for _, v := range values {
		if err := config.SetValue(v.key, v.value); err != nil {
			return fmt.Errorf("failed to set %s: %w", v.key, err)
		}
	}
	return nil
}

// Form builds the interactive form bound to a.
func Form(a *Answers) *huh.Form {
	modules := make([]huh.Option[string], len(Modules))
	for i, m := range Modules {
		modules[i] = huh.NewOption(m, m)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Host input method").
				Description("Compositions come from this input method").
				Options(modules...).
				Validate(ValidateModule).
				Value(&a.Module),
			huh.NewInput().
				Title("Input locale").
				Description("e.g. zh_CN.UTF-8; leave empty to follow LANG").
				Validate(ValidateLocale).
				Value(&a.Locale),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("IBus address").
				Description(addressHint()).
				Value(&a.IBusAddress),
			huh.NewConfirm().
				Title("Selection workarounds").
				Description("Report cursor moves to the input method as clicks").
				Value(&a.SelectionWorkarounds),
		).WithHideFunc(func() bool { return a.Module != "ibus" }),
	)
}

func addressHint() string {
	if addr := ibus.Address(""); addr != "" {
		return "Leave empty to use " + addr
	}
	return "No running IBus daemon found; leave empty to use the portal"
}

// Run shows the form, saves the result and prints a summary to out.
func Run(out io.Writer) error {
	a := FromConfig(config.Get())
	if err := Form(&a).Run(); err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}
	if err := Apply(a); err != nil {
		return err
	}
	logger.Debug("setup saved", "module", a.Module, "locale", a.Locale)

	p := a.Policy()
	fmt.Fprintln(out, ui.SuccessStyle.Render(ui.IconSuccess+" Input method configuration saved"))
	fmt.Fprintln(out, ui.FormatField("Config file", config.GetConfigPath()))
	fmt.Fprintln(out, ui.FormatField("Locale", p.Locale.String()))
	fmt.Fprintln(out, ui.FormatField("Commit on leave", ui.FormatBool(p.CommitBeforeLeave())))
	return nil
}
