package textinput

import (
	"strings"

	"golang.org/x/text/language"
)

// Host is the host input-method subsystem the text input reconciles against.
// Calls are made synchronously from the event loop at fixed points: before
// leave, after disable, after commit.
type Host interface {
	// Show and Hide toggle the input panel.
	Show()
	Hide()
	// Commit asks the host to commit any in-progress composition. Hosts
	// deliver the result back through TextInput.SendInputMethodEvent before
	// returning.
	Commit()
	// Reset discards any in-progress composition.
	Reset()
	// Update tells the host which query categories changed.
	Update(Query)
	// InvokeClick simulates a click at the given native cursor offset.
	InvokeClick(cursor int)
}

// NopHost ignores every call.
type NopHost struct{}

func (NopHost) Show()           {}
func (NopHost) Hide()           {}
func (NopHost) Commit()         {}
func (NopHost) Reset()          {}
func (NopHost) Update(Query)    {}
func (NopHost) InvokeClick(int) {}

// FlushPolicy decides how in-flight compositions are handled across focus
// changes and selection edits.
type FlushPolicy struct {
	// Module is the configured host input-method driver, e.g. "ibus".
	Module string
	// Locale is the active input locale.
	Locale language.Tag
	// SelectionWorkarounds enables the reset-on-selection-start and
	// click-on-cursor-move host quirks on commit.
	SelectionWorkarounds bool
}

// DefaultFlushPolicy commits before leave and keeps the selection quirks on.
func DefaultFlushPolicy() FlushPolicy {
	return FlushPolicy{Locale: language.Und, SelectionWorkarounds: true}
}

// CommitBeforeLeave reports whether the host must be asked to commit its
// composition before focus moves away. IBus commits on its own, except for
// Chinese input where the composition would otherwise be lost.
func (p FlushPolicy) CommitBeforeLeave() bool {
	if !strings.EqualFold(p.Module, "ibus") {
		return true
	}
	base, _ := p.Locale.Base()
	chinese, _ := language.Chinese.Base()
	return base == chinese
}

// ParseFlushPolicy builds a policy from configuration strings. An invalid
// locale is reported but still yields a usable policy with an undetermined
// locale.
func ParseFlushPolicy(module, locale string, workarounds bool) (FlushPolicy, error) {
	p := FlushPolicy{Module: module, Locale: language.Und, SelectionWorkarounds: workarounds}
	// POSIX locales carry an encoding and modifier: zh_CN.UTF-8@pinyin
	if i := strings.IndexAny(locale, ".@"); i >= 0 {
		locale = locale[:i]
	}
	if locale == "" || locale == "C" || locale == "POSIX" {
		return p, nil
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return p, err
	}
	p.Locale = tag
	return p, nil
}
