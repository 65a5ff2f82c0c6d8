// Package ibus drives an IBus input context on behalf of a seat's text
// input. Host methods run on the event loop; D-Bus signals arrive on their
// own goroutine and are posted back to the loop before touching any state.
package ibus

import (
	"context"
	"unicode"

	"github.com/bnema/wayime/internal/logger"
	"github.com/bnema/wayime/internal/textinput"
	"github.com/charmbracelet/log"
	"github.com/godbus/dbus/v5"
)

// Poster runs fn on the event loop.
type Poster func(fn func())

// Host implements textinput.Host over an IBus input context.
type Host struct {
	ic      inputContext
	ti      *textinput.TextInput
	post    Poster
	session *Session
	log     *log.Logger

	// preedit is the composition IBus last reported. Loop-owned.
	preedit string
}

// NewHost wires an input context to ti. post must run functions on the
// event loop that owns ti.
func NewHost(ti *textinput.TextInput, ic inputContext, post Poster) *Host {
	return &Host{
		ic:   ic,
		ti:   ti,
		post: post,
		log:  logger.With("ibus", "seat", string(ti.Seat())),
	}
}

// Connect opens an IBus session for ti and forwards its signals until ctx
// is cancelled or the connection drops.
func Connect(ctx context.Context, address string, ti *textinput.TextInput, post Poster) (*Host, error) {
	session, err := Open(ctx, Address(address))
	if err != nil {
		return nil, err
	}
	signals, err := session.Signals()
	if err != nil {
		session.Close()
		return nil, err
	}

	h := NewHost(ti, session.ctx, post)
	h.session = session
	h.log.Info("input context created", "path", session.Path(), "service", session.service)

	go h.forward(ctx, signals)
	return h, nil
}

// Close releases the IBus session, if any.
func (h *Host) Close() error {
	if h.session == nil {
		return nil
	}
	return h.session.Close()
}

func (h *Host) forward(ctx context.Context, signals <-chan *dbus.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				h.log.Warn("ibus connection closed")
				return
			}
			if h.session != nil && sig.Path != h.session.Path() {
				continue
			}
			h.post(func() { h.handleSignal(sig) })
		}
	}
}

func (h *Host) Show() {
	h.check("FocusIn", h.ic.FocusIn())
}

func (h *Host) Hide() {
	h.check("FocusOut", h.ic.FocusOut())
}

// Commit flushes the composition. IBus has no commit call, so the cached
// preedit is delivered as commit text before the context is reset.
func (h *Host) Commit() {
	if h.preedit != "" {
		text := h.preedit
		h.preedit = ""
		h.ti.SendInputMethodEvent(textinput.InputMethodEvent{Commit: text})
	}
	h.check("Reset", h.ic.Reset())
}

func (h *Host) Reset() {
	if h.preedit != "" {
		h.preedit = ""
		h.ti.SendInputMethodEvent(textinput.InputMethodEvent{})
	}
	h.check("Reset", h.ic.Reset())
}

func (h *Host) Update(q textinput.Query) {
	if q&(textinput.QuerySurroundingText|textinput.QueryCursorPosition|textinput.QueryAnchorPosition) != 0 {
		text, _ := h.ti.Query(textinput.QuerySurroundingText, nil).(string)
		cursor, _ := h.ti.Query(textinput.QueryCursorPosition, nil).(int)
		anchor, _ := h.ti.Query(textinput.QueryAnchorPosition, nil).(int)
		h.check("SetSurroundingText", h.ic.SetSurroundingText(NewText(text), uint32(cursor), uint32(anchor)))
	}
	if q&textinput.QueryCursorRectangle != 0 {
		r, _ := h.ti.Query(textinput.QueryCursorRectangle, nil).(textinput.Rect)
		h.check("SetCursorLocationRelative", h.ic.SetCursorLocationRelative(r.X, r.Y, r.Width, r.Height))
	}
	if q&textinput.QueryHints != 0 {
		hints, _ := h.ti.Query(textinput.QueryHints, nil).(textinput.Hints)
		purpose, ibusHints := contentType(hints)
		h.check("SetContentType", h.ic.SetContentType(purpose, ibusHints))
	}
}

// InvokeClick moves the IBus cursor. A pending composition is committed
// first, as a click in the text would.
func (h *Host) InvokeClick(cursor int) {
	if h.preedit != "" {
		h.Commit()
	}
	text, _ := h.ti.Query(textinput.QuerySurroundingText, nil).(string)
	h.check("SetSurroundingText", h.ic.SetSurroundingText(NewText(text), uint32(cursor), uint32(cursor)))
}

func (h *Host) check(method string, err error) {
	if err != nil {
		h.log.Warn("ibus call failed", "method", method, "err", err)
	}
}

// handleSignal runs on the event loop.
func (h *Host) handleSignal(sig *dbus.Signal) {
	switch sig.Name {
	case inputContextIface + ".CommitText":
		var v dbus.Variant
		if err := dbus.Store(sig.Body, &v); err != nil {
			h.log.Warn("bad CommitText signal", "err", err)
			return
		}
		s, err := DecodeText(v)
		if err != nil {
			h.log.Warn("bad CommitText signal", "err", err)
			return
		}
		h.preedit = ""
		h.ti.SendInputMethodEvent(textinput.InputMethodEvent{Commit: s})

	case inputContextIface + ".UpdatePreeditText":
		var (
			v       dbus.Variant
			cursor  uint32
			visible bool
		)
		if err := dbus.Store(sig.Body, &v, &cursor, &visible); err != nil {
			h.log.Warn("bad UpdatePreeditText signal", "err", err)
			return
		}
		s, err := DecodeText(v)
		if err != nil {
			h.log.Warn("bad UpdatePreeditText signal", "err", err)
			return
		}
		if !visible {
			s = ""
		}
		h.preedit = s
		h.ti.SendInputMethodEvent(textinput.InputMethodEvent{Preedit: s})

	case inputContextIface + ".ShowPreeditText":
		h.ti.SendInputMethodEvent(textinput.InputMethodEvent{Preedit: h.preedit})

	case inputContextIface + ".HidePreeditText":
		h.ti.SendInputMethodEvent(textinput.InputMethodEvent{})

	case inputContextIface + ".DeleteSurroundingText":
		var (
			offset int32
			nchars uint32
		)
		if err := dbus.Store(sig.Body, &offset, &nchars); err != nil {
			h.log.Warn("bad DeleteSurroundingText signal", "err", err)
			return
		}
		h.ti.SendInputMethodEvent(textinput.InputMethodEvent{
			Preedit:           h.preedit,
			ReplacementStart:  int(offset),
			ReplacementLength: int(nchars),
		})

	case inputContextIface + ".ForwardKeyEvent":
		var keyval, keycode, state uint32
		if err := dbus.Store(sig.Body, &keyval, &keycode, &state); err != nil {
			h.log.Warn("bad ForwardKeyEvent signal", "err", err)
			return
		}
		if state&releaseMask != 0 {
			return
		}
		r, ok := keysymRune(keyval)
		if !ok {
			h.log.Debug("forwarded key has no text", "keyval", keyval, "keycode", keycode)
			return
		}
		h.ti.SendKeyEvent(string(r))

	default:
		h.log.Debug("ignored signal", "name", sig.Name)
	}
}

const releaseMask uint32 = 1 << 30

// keysymRune maps an X keysym to the character it types.
func keysymRune(keysym uint32) (rune, bool) {
	var r rune
	switch {
	case keysym >= 0x20 && keysym <= 0x7e, keysym >= 0xa0 && keysym <= 0xff:
		r = rune(keysym)
	case keysym&0xff000000 == 0x01000000:
		r = rune(keysym & 0x00ffffff)
	case keysym == 0xff0d, keysym == 0xff8d:
		r = '\n'
	case keysym == 0xff09:
		r = '\t'
	default:
		return 0, false
	}
	if r != '\n' && r != '\t' && !unicode.IsPrint(r) {
		return 0, false
	}
	return r, true
}

// IBus input purposes
const (
	purposeFreeForm uint32 = iota
	purposeAlpha
	purposeDigits
	purposeNumber
	purposePhone
	purposeURL
	purposeEmail
	purposeName
	purposePassword
	purposePin
	purposeTerminal
)

// IBus input hints
const (
	hintSpellcheck         uint32 = 1 << 0
	hintNoSpellcheck       uint32 = 1 << 1
	hintWordCompletion     uint32 = 1 << 2
	hintLowercase          uint32 = 1 << 3
	hintUppercaseChars     uint32 = 1 << 4
	hintUppercaseWords     uint32 = 1 << 5
	hintUppercaseSentences uint32 = 1 << 6
	hintPrivate            uint32 = 1 << 11
)

// contentType converts host hints into the IBus purpose and hints pair.
func contentType(h textinput.Hints) (purpose, hints uint32) {
	hint, p := textinput.ContentTypeFromHints(h)

	switch p {
	case textinput.ContentPurposeAlpha:
		purpose = purposeAlpha
	case textinput.ContentPurposeDigits:
		purpose = purposeDigits
	case textinput.ContentPurposeNumber:
		purpose = purposeNumber
	case textinput.ContentPurposePhone:
		purpose = purposePhone
	case textinput.ContentPurposeURL:
		purpose = purposeURL
	case textinput.ContentPurposeEmail:
		purpose = purposeEmail
	case textinput.ContentPurposeName:
		purpose = purposeName
	case textinput.ContentPurposePassword:
		purpose = purposePassword
	case textinput.ContentPurposePin:
		purpose = purposePin
	case textinput.ContentPurposeTerminal:
		purpose = purposeTerminal
	default:
		purpose = purposeFreeForm
	}
	if h.Has(textinput.HintHiddenText) && purpose == purposeFreeForm {
		purpose = purposePassword
	}

	if hint&textinput.ContentHintSpellcheck != 0 {
		hints |= hintSpellcheck
	} else {
		hints |= hintNoSpellcheck
	}
	if hint&textinput.ContentHintCompletion != 0 {
		hints |= hintWordCompletion
	}
	if hint&textinput.ContentHintLowercase != 0 {
		hints |= hintLowercase
	}
	if hint&textinput.ContentHintUppercase != 0 {
		hints |= hintUppercaseChars
	}
	if hint&textinput.ContentHintTitlecase != 0 {
		hints |= hintUppercaseWords
	}
	if hint&textinput.ContentHintAutoCapitalization != 0 {
		hints |= hintUppercaseSentences
	}
	if hint&(textinput.ContentHintSensitiveData|textinput.ContentHintHiddenText) != 0 {
		hints |= hintPrivate
	}
	return purpose, hints
}
