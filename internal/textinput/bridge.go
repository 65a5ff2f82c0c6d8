package textinput

// InputMethodEvent is what the host produces for one composition step.
// ReplacementStart and ReplacementLength are native offsets relative to the
// current selection.
type InputMethodEvent struct {
	Preedit           string
	Commit            string
	ReplacementStart  int
	ReplacementLength int
}

// Replaces reports whether the event asks for surrounding text removal.
func (ev InputMethodEvent) Replaces() bool {
	return ev.ReplacementLength > 0 || ev.ReplacementStart < 0
}

// SendInputMethodEvent forwards a host composition step to the focus
// resource as delete_surrounding_text, preedit_string and commit_string,
// terminated by done when at least one of them was sent.
func (ti *TextInput) SendInputMethodEvent(ev InputMethodEvent) {
	res := ti.focusResource
	if res == nil {
		ti.log.Debug("input method event without focus dropped")
		return
	}

	b := batch{res: res}
	preeditCursor := runeLen(ev.Preedit)

	if ev.Replaces() {
		start, length := ev.ReplacementStart, ev.ReplacementLength
		if start <= 0 && length >= -start {
			text := ti.current.SurroundingText
			selStart, selEnd := ti.current.selection()
			before := IndexToWire(text, -start, selStart+start)
			after := IndexToWire(text, length+start, selEnd)
			b.send(Event{Op: OpDeleteSurroundingText, BeforeLength: uint32(before), AfterLength: uint32(after)})
		} else {
			ti.log.Warn("unsupported surrounding text replacement", "start", start, "length", length)
		}
		preeditCursor = start + length
	}

	if ti.preedit != ev.Preedit {
		ti.preedit = ev.Preedit
		cursor := clamp(preeditCursor, 0, runeLen(ev.Preedit))
		wire := int32(IndexToWire(ev.Preedit, cursor, 0))
		b.send(Event{Op: OpPreeditString, Text: ev.Preedit, CursorBegin: wire, CursorEnd: wire})
	}

	if ev.Commit != "" {
		b.send(Event{Op: OpCommitString, Text: ev.Commit})
	}

	b.done(ti.serial)
}

// SendKeyEvent delivers text produced by a key press as a commit.
func (ti *TextInput) SendKeyEvent(text string) {
	res := ti.focusResource
	if res == nil {
		return
	}
	b := batch{res: res}
	b.send(Event{Op: OpCommitString, Text: text})
	b.done(ti.serial)
}

// Query answers a host question about the current state. arg optionally
// limits the text returned for QueryTextBeforeCursor and
// QueryTextAfterCursor; a negative arg means no limit. Unsupported or combined categories return nil.
func (ti *TextInput) Query(q Query, arg *int) any {
	s := ti.current
	switch q {
	case QueryHints:
		return s.Hints
	case QueryCursorRectangle:
		return s.CursorRectangle
	case QueryCursorPosition, QueryAbsolutePosition:
		return s.CursorPosition
	case QueryAnchorPosition:
		return s.AnchorPosition
	case QuerySurroundingText:
		return s.SurroundingText
	case QueryCurrentSelection:
		start, end := s.selection()
		return runeSlice(s.SurroundingText, start, end)
	case QueryTextBeforeCursor:
		before := runeSlice(s.SurroundingText, 0, s.CursorPosition)
		if arg != nil && *arg >= 0 {
			n := runeLen(before)
			return runeSlice(before, n-clamp(*arg, 0, n), n)
		}
		return before
	case QueryTextAfterCursor:
		n := runeLen(s.SurroundingText)
		end := n
		if arg != nil && *arg >= 0 {
			end = s.CursorPosition + clamp(*arg, 0, n)
		}
		return runeSlice(s.SurroundingText, s.CursorPosition, end)
	default:
		return nil
	}
}
