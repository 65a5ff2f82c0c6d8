package textinput

import "fmt"

// Rect is a rectangle in surface-local coordinates.
type Rect struct {
	X, Y          int32
	Width, Height int32
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// ChangeCause tells the host why the surrounding text changed.
type ChangeCause uint32

const (
	// ChangeCauseInputMethod means the change came from the input method
	// itself and is the default after every commit.
	ChangeCauseInputMethod ChangeCause = iota
	// ChangeCauseOther covers edits the input method did not produce.
	ChangeCauseOther
)

func (c ChangeCause) String() string {
	switch c {
	case ChangeCauseInputMethod:
		return "input-method"
	case ChangeCauseOther:
		return "other"
	default:
		return fmt.Sprintf("cause(%d)", uint32(c))
	}
}

// ClientState is one snapshot of a client's text-input attributes.
// Positions are native rune offsets into SurroundingText.
//
// It is a plain value: the pending and current states of a TextInput are
// two separate copies and never share memory.
type ClientState struct {
	Hints           Hints
	CursorRectangle Rect
	SurroundingText string
	CursorPosition  int
	AnchorPosition  int
	ChangeCause     ChangeCause

	// Changed records which categories were touched since the last commit.
	Changed Query
}

// UpdatedQueries compares two states field by field and returns the query
// categories that differ. A change to the text or either end of the
// selection always marks the selection dirty as well.
func UpdatedQueries(a, b ClientState) Query {
	var q Query

	if a.Hints != b.Hints {
		q |= QueryHints
	}
	if a.CursorRectangle != b.CursorRectangle {
		q |= QueryCursorRectangle
	}
	if a.SurroundingText != b.SurroundingText {
		q |= QuerySurroundingText | QueryCurrentSelection
	}
	if a.CursorPosition != b.CursorPosition {
		q |= QueryCursorPosition | QueryCurrentSelection
	}
	if a.AnchorPosition != b.AnchorPosition {
		q |= QueryAnchorPosition | QueryCurrentSelection
	}

	return q
}

// MergeChanged promotes the touched fields of pending into s. A field is
// copied only when it is marked in pending.Changed and its value actually
// differs, so a client resubmitting identical values produces no queries.
// The pending state is consumed; callers must start a fresh one.
func (s *ClientState) MergeChanged(pending ClientState) Query {
	var q Query

	if pending.Changed&QueryHints != 0 && s.Hints != pending.Hints {
		s.Hints = pending.Hints
		q |= QueryHints
	}
	if pending.Changed&QueryCursorRectangle != 0 && s.CursorRectangle != pending.CursorRectangle {
		s.CursorRectangle = pending.CursorRectangle
		q |= QueryCursorRectangle
	}
	if pending.Changed&QuerySurroundingText != 0 && s.SurroundingText != pending.SurroundingText {
		s.SurroundingText = pending.SurroundingText
		q |= QuerySurroundingText | QueryCurrentSelection
	}
	if pending.Changed&QueryCursorPosition != 0 && s.CursorPosition != pending.CursorPosition {
		s.CursorPosition = pending.CursorPosition
		q |= QueryCursorPosition | QueryCurrentSelection
	}
	if pending.Changed&QueryAnchorPosition != 0 && s.AnchorPosition != pending.AnchorPosition {
		s.AnchorPosition = pending.AnchorPosition
		q |= QueryAnchorPosition | QueryCurrentSelection
	}

	s.ChangeCause = pending.ChangeCause
	s.Changed = 0
	return q
}

func (s *ClientState) setSurroundingText(text string, cursor, anchor int) {
	s.SurroundingText = text
	s.CursorPosition = cursor
	s.AnchorPosition = anchor
	s.Changed |= QuerySurroundingText | QueryCursorPosition | QueryAnchorPosition
}

func (s *ClientState) setCursorRectangle(r Rect) {
	s.CursorRectangle = r
	s.Changed |= QueryCursorRectangle
}

func (s *ClientState) setHints(h Hints) {
	s.Hints = h
	s.Changed |= QueryHints
}

func (s *ClientState) setChangeCause(c ChangeCause) {
	s.ChangeCause = c
}

// selection returns the ordered selection bounds, clamped to the text.
func (s ClientState) selection() (start, end int) {
	start, end = s.CursorPosition, s.AnchorPosition
	if start > end {
		start, end = end, start
	}
	n := runeLen(s.SurroundingText)
	return clamp(start, 0, n), clamp(end, 0, n)
}
