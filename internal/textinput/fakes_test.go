package textinput

import (
	"fmt"

	"github.com/bnema/wayime/internal/surface"
)

type recordingSink struct {
	events []Event
}

func (s *recordingSink) Send(e Event) {
	s.events = append(s.events, e)
}

func (s *recordingSink) strings() []string {
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.String()
	}
	return out
}

func (s *recordingSink) reset() {
	s.events = nil
}

type recordingHost struct {
	calls    []string
	onCommit func()
}

func (h *recordingHost) Show()  { h.calls = append(h.calls, "show") }
func (h *recordingHost) Hide()  { h.calls = append(h.calls, "hide") }
func (h *recordingHost) Reset() { h.calls = append(h.calls, "reset") }

func (h *recordingHost) Commit() {
	h.calls = append(h.calls, "commit")
	if h.onCommit != nil {
		h.onCommit()
	}
}

func (h *recordingHost) Update(q Query) {
	h.calls = append(h.calls, fmt.Sprintf("update(%s)", q))
}

func (h *recordingHost) InvokeClick(cursor int) {
	h.calls = append(h.calls, fmt.Sprintf("click(%d)", cursor))
}

func (h *recordingHost) reset() {
	h.calls = nil
}

type recordingObserver struct {
	enabled  []surface.Handle
	disabled []surface.Handle
}

func (o *recordingObserver) SurfaceEnabled(h surface.Handle)  { o.enabled = append(o.enabled, h) }
func (o *recordingObserver) SurfaceDisabled(h surface.Handle) { o.disabled = append(o.disabled, h) }

// fixture wires one seat with a host and observer over a fresh arena.
type fixture struct {
	arena    *surface.Arena
	host     *recordingHost
	observer *recordingObserver
	ti       *TextInput
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		arena:    surface.NewArena(),
		host:     &recordingHost{},
		observer: &recordingObserver{},
	}
	opts = append([]Option{WithHost(f.host), WithObserver(f.observer)}, opts...)
	f.ti = New("seat0", f.arena, opts...)
	return f
}

// client creates a surface and a bound resource for a new client.
func (f *fixture) client(client surface.ClientID, id ResourceID) (surface.Handle, *Resource, *recordingSink) {
	h := f.arena.Create(client)
	sink := &recordingSink{}
	res, err := f.ti.Bind(client, id, MaxVersion, sink)
	if err != nil {
		panic(err)
	}
	return h, res, sink
}

// focused focuses and enables a new client surface, then clears recordings.
func (f *fixture) focused(client surface.ClientID, id ResourceID) (surface.Handle, *Resource, *recordingSink) {
	h, res, sink := f.client(client, id)
	f.ti.SetFocus(h)
	f.ti.Enable(res, h)
	sink.reset()
	f.host.reset()
	return h, res, sink
}
