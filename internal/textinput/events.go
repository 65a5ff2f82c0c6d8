package textinput

import (
	"fmt"

	"github.com/bnema/wayime/internal/surface"
)

// Opcode names an event sent from the compositor to a client.
type Opcode uint8

const (
	OpEnter Opcode = iota + 1
	OpLeave
	OpPreeditString
	OpCommitString
	OpDeleteSurroundingText
	OpDone
)

var opcodeNames = map[Opcode]string{
	OpEnter:                 "enter",
	OpLeave:                 "leave",
	OpPreeditString:         "preedit_string",
	OpCommitString:          "commit_string",
	OpDeleteSurroundingText: "delete_surrounding_text",
	OpDone:                  "done",
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("opcode(%d)", uint8(o))
}

// Event is one compositor-to-client message. Only the fields relevant to Op
// are set. Lengths and cursor offsets are in wire units (UTF-8 bytes).
type Event struct {
	Op           Opcode
	Resource     ResourceID
	Surface      surface.Handle
	Text         string
	CursorBegin  int32
	CursorEnd    int32
	BeforeLength uint32
	AfterLength  uint32
	Serial       uint32
}

func (e Event) String() string {
	switch e.Op {
	case OpEnter, OpLeave:
		return fmt.Sprintf("%s(%s)", e.Op, e.Surface)
	case OpPreeditString:
		return fmt.Sprintf("%s(%q, %d, %d)", e.Op, e.Text, e.CursorBegin, e.CursorEnd)
	case OpCommitString:
		return fmt.Sprintf("%s(%q)", e.Op, e.Text)
	case OpDeleteSurroundingText:
		return fmt.Sprintf("%s(%d, %d)", e.Op, e.BeforeLength, e.AfterLength)
	case OpDone:
		return fmt.Sprintf("%s(%d)", e.Op, e.Serial)
	default:
		return e.Op.String()
	}
}

// EventSink delivers events to the client owning a resource.
type EventSink interface {
	Send(Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event)

func (f EventSinkFunc) Send(e Event) { f(e) }

// ResourceID identifies a bound text-input resource.
type ResourceID uint32

// Resource is one client's binding to a seat's text input.
type Resource struct {
	ID      ResourceID
	Client  surface.ClientID
	Version uint32

	sink      EventSink
	destroyed bool
}

// Destroyed reports whether the resource has been destroyed.
func (r *Resource) Destroyed() bool {
	return r.destroyed
}

func (r *Resource) send(e Event) {
	if r == nil || r.destroyed || r.sink == nil {
		return
	}
	e.Resource = r.ID
	r.sink.Send(e)
}

// batch collects the edits produced by one host event so that done is sent
// exactly once, and only when something was sent.
type batch struct {
	res  *Resource
	sent bool
}

func (b *batch) send(e Event) {
	b.res.send(e)
	b.sent = true
}

func (b *batch) done(serial Serial) bool {
	if !b.sent {
		return false
	}
	b.res.send(Event{Op: OpDone, Serial: uint32(serial)})
	return true
}
