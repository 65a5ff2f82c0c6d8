package ibus

import (
	"errors"
	"fmt"
	"testing"

	"github.com/bnema/wayime/internal/surface"
	"github.com/bnema/wayime/internal/textinput"
	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeContext struct {
	calls []string
	fail  error
}

func (c *fakeContext) record(format string, args ...interface{}) error {
	c.calls = append(c.calls, fmt.Sprintf(format, args...))
	return c.fail
}

func (c *fakeContext) FocusIn() error  { return c.record("FocusIn") }
func (c *fakeContext) FocusOut() error { return c.record("FocusOut") }
func (c *fakeContext) Reset() error    { return c.record("Reset") }

func (c *fakeContext) SetCapabilities(caps uint32) error {
	return c.record("SetCapabilities(%d)", caps)
}

func (c *fakeContext) SetSurroundingText(text dbus.Variant, cursor, anchor uint32) error {
	s, err := DecodeText(text)
	if err != nil {
		return err
	}
	return c.record("SetSurroundingText(%q, %d, %d)", s, cursor, anchor)
}

func (c *fakeContext) SetCursorLocationRelative(x, y, w, h int32) error {
	return c.record("SetCursorLocationRelative(%d, %d, %d, %d)", x, y, w, h)
}

func (c *fakeContext) SetContentType(purpose, hints uint32) error {
	return c.record("SetContentType(%d, %#x)", purpose, hints)
}

type harness struct {
	ti     *textinput.TextInput
	res    *textinput.Resource
	ic     *fakeContext
	host   *Host
	events []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{ic: &fakeContext{}}
	arena := surface.NewArena()
	h.ti = textinput.New("seat0", arena)
	h.host = NewHost(h.ti, h.ic, func(fn func()) { fn() })
	h.ti.SetHost(h.host)

	s := arena.Create(1)
	sink := textinput.EventSinkFunc(func(e textinput.Event) { h.events = append(h.events, e.String()) })
	res, err := h.ti.Bind(1, 1, textinput.MaxVersion, sink)
	require.NoError(t, err)
	h.res = res
	h.ti.SetFocus(s)
	h.ti.Enable(res, s)
	h.events = nil
	h.ic.calls = nil
	return h
}

func signal(name string, body ...interface{}) *dbus.Signal {
	return &dbus.Signal{Name: inputContextIface + "." + name, Body: body}
}

func TestHostUpdatePushesState(t *testing.T) {
	h := newHarness(t)

	h.ti.SetSurroundingText(h.res, "héllo", 3, 3)
	h.ti.SetCursorRectangle(h.res, textinput.Rect{X: 1, Y: 2, Width: 3, Height: 4})
	h.ti.SetContentType(h.res, textinput.ContentHintCompletion|textinput.ContentHintSpellcheck|textinput.ContentHintAutoCapitalization, textinput.ContentPurposeEmail)
	h.ti.Commit(h.res)

	assert.Equal(t, []string{
		`SetSurroundingText("héllo", 2, 2)`,
		"SetCursorLocationRelative(1, 2, 3, 4)",
		fmt.Sprintf("SetContentType(%d, %#x)", purposeEmail, hintSpellcheck|hintWordCompletion|hintUppercaseSentences),
	}, h.ic.calls)
}

func TestHostShowHide(t *testing.T) {
	h := newHarness(t)

	h.host.Show()
	h.host.Hide()

	assert.Equal(t, []string{"FocusIn", "FocusOut"}, h.ic.calls)
}

func TestHostSignals(t *testing.T) {
	h := newHarness(t)

	h.host.handleSignal(signal("UpdatePreeditText", NewText("ni"), uint32(2), true))
	h.host.handleSignal(signal("CommitText", NewText("你")))

	assert.Equal(t, []string{
		`preedit_string("ni", 2, 2)`, "done(0)",
		`preedit_string("", 0, 0)`, `commit_string("你")`, "done(0)",
	}, h.events)
}

func TestHostHiddenPreedit(t *testing.T) {
	h := newHarness(t)

	h.host.handleSignal(signal("UpdatePreeditText", NewText("ni"), uint32(2), false))

	assert.Empty(t, h.events)
	assert.Empty(t, h.host.preedit)
}

func TestHostDeleteSurroundingText(t *testing.T) {
	h := newHarness(t)
	h.ti.SetSurroundingText(h.res, "abcd", 2, 2)
	h.ti.Commit(h.res)

	h.host.handleSignal(signal("DeleteSurroundingText", int32(-1), uint32(2)))

	assert.Equal(t, []string{"delete_surrounding_text(1, 1)", "done(1)"}, h.events)
}

func TestHostForwardKeyEvent(t *testing.T) {
	h := newHarness(t)

	h.host.handleSignal(signal("ForwardKeyEvent", uint32('a'), uint32(38), uint32(0)))
	h.host.handleSignal(signal("ForwardKeyEvent", uint32('a'), uint32(38), releaseMask))
	h.host.handleSignal(signal("ForwardKeyEvent", uint32(0xffe1), uint32(50), uint32(0)))

	assert.Equal(t, []string{`commit_string("a")`, "done(0)"}, h.events)
}

func TestHostCommitFlushesPreedit(t *testing.T) {
	h := newHarness(t)
	h.host.handleSignal(signal("UpdatePreeditText", NewText("wo"), uint32(2), true))
	h.events = nil
	h.ic.calls = nil

	h.host.Commit()

	assert.Equal(t, []string{`preedit_string("", 0, 0)`, `commit_string("wo")`, "done(0)"}, h.events)
	assert.Equal(t, []string{"Reset"}, h.ic.calls)
}

func TestHostResetClearsPreedit(t *testing.T) {
	h := newHarness(t)
	h.host.handleSignal(signal("UpdatePreeditText", NewText("wo"), uint32(2), true))
	h.events = nil

	h.host.Reset()
	h.host.Reset()

	assert.Equal(t, []string{`preedit_string("", 0, 0)`, "done(0)"}, h.events)
}

func TestHostInvokeClick(t *testing.T) {
	h := newHarness(t)
	h.ti.SetSurroundingText(h.res, "hello", 1, 1)
	h.ti.Commit(h.res)
	h.ic.calls = nil

	h.ti.SetSurroundingText(h.res, "hello", 4, 4)
	h.ti.Commit(h.res)

	require.NotEmpty(t, h.ic.calls)
	assert.Equal(t, `SetSurroundingText("hello", 4, 4)`, h.ic.calls[0])
}

func TestHostLogsFailedCalls(t *testing.T) {
	h := newHarness(t)
	h.ic.fail = errors.New("no bus")

	assert.NotPanics(t, func() {
		h.host.Show()
		h.host.Reset()
	})
}

func TestKeysymRune(t *testing.T) {
	tests := []struct {
		keysym uint32
		want   rune
		ok     bool
	}{
		{'a', 'a', true},
		{0xe9, 'é', true},
		{0x010065e5, '日', true},
		{0xff0d, '\n', true},
		{0xff1b, 0, false},
		{0x7f, 0, false},
	}
	for _, tt := range tests {
		r, ok := keysymRune(tt.keysym)
		assert.Equal(t, tt.ok, ok, "keysym %#x", tt.keysym)
		assert.Equal(t, tt.want, r, "keysym %#x", tt.keysym)
	}
}

func TestContentTypeHiddenText(t *testing.T) {
	purpose, hints := contentType(textinput.HintsFromContentType(textinput.ContentHintHiddenText, textinput.ContentPurposeNormal))

	assert.Equal(t, purposePassword, purpose)
	assert.Equal(t, hintNoSpellcheck|hintPrivate, hints)
}
