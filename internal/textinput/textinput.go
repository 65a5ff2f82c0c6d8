// Package textinput implements the compositor side of the text-input
// protocol: per-seat text-input objects that track focus, receive
// double-buffered state from clients and reconcile it with a host input
// method.
//
// Nothing in this package is safe for concurrent use. Every call is expected
// to come from the single event loop that owns the compositor state.
package textinput

import (
	"errors"

	"github.com/bnema/wayime/internal/logger"
	"github.com/bnema/wayime/internal/surface"
	"github.com/charmbracelet/log"
)

var (
	// ErrUnknownResource is returned for requests naming a resource that was
	// never bound or is already destroyed.
	ErrUnknownResource = errors.New("unknown text-input resource")
	// ErrResourceExists is returned when a resource ID is bound twice.
	ErrResourceExists = errors.New("text-input resource already bound")
)

// SeatID names a seat.
type SeatID string

// Observer is told when a surface becomes, or stops being, input-enabled.
type Observer interface {
	SurfaceEnabled(surface.Handle)
	SurfaceDisabled(surface.Handle)
}

type nopObserver struct{}

func (nopObserver) SurfaceEnabled(surface.Handle)  {}
func (nopObserver) SurfaceDisabled(surface.Handle) {}

// Option configures a TextInput.
type Option func(*TextInput)

// WithHost injects the host input method.
func WithHost(h Host) Option {
	return func(ti *TextInput) {
		if h != nil {
			ti.host = h
		}
	}
}

// WithPolicy sets the flush policy.
func WithPolicy(p FlushPolicy) Option {
	return func(ti *TextInput) { ti.policy = p }
}

// WithObserver registers the enabled/disabled observer.
func WithObserver(o Observer) Option {
	return func(ti *TextInput) {
		if o != nil {
			ti.observer = o
		}
	}
}

// WithHistory sets how many focus transitions are remembered.
func WithHistory(n int) Option {
	return func(ti *TextInput) { ti.history = newRing[Transition](n) }
}

// TextInput is the text-input object of one seat. Many client resources may
// be bound to it; at most one of them, the focus resource, is allowed to
// change its state.
type TextInput struct {
	seat     SeatID
	surfaces *surface.Arena
	host     Host
	policy   FlushPolicy
	observer Observer
	log      *log.Logger

	focus         surface.Handle
	focusResource *Resource
	focusListener *surface.Listener

	resources *registry

	serial       Serial
	current      ClientState
	pending      ClientState
	preedit      string
	panelVisible bool

	history *ring[Transition]
}

// New creates the text input of a seat. Surfaces are resolved through the
// given arena.
func New(seat SeatID, surfaces *surface.Arena, opts ...Option) *TextInput {
	ti := &TextInput{
		seat:      seat,
		surfaces:  surfaces,
		host:      NopHost{},
		policy:    DefaultFlushPolicy(),
		observer:  nopObserver{},
		log:       logger.With("textinput", "seat", string(seat)),
		resources: newRegistry(),
		history:   newRing[Transition](defaultHistory),
	}
	for _, opt := range opts {
		opt(ti)
	}
	return ti
}

// Seat returns the seat this text input belongs to.
func (ti *TextInput) Seat() SeatID {
	return ti.seat
}

// SetHost replaces the host input method.
func (ti *TextInput) SetHost(h Host) {
	if h == nil {
		h = NopHost{}
	}
	ti.host = h
}

// SetPolicy replaces the flush policy.
func (ti *TextInput) SetPolicy(p FlushPolicy) {
	ti.policy = p
}

// Policy returns the current flush policy.
func (ti *TextInput) Policy() FlushPolicy {
	return ti.policy
}

// Focus returns the focused surface, or the zero handle.
func (ti *TextInput) Focus() surface.Handle {
	return ti.focus
}

// FocusResource returns the resource receiving events, or nil.
func (ti *TextInput) FocusResource() *Resource {
	return ti.focusResource
}

// Serial returns the current commit serial.
func (ti *TextInput) Serial() Serial {
	return ti.serial
}

// Current returns a copy of the acknowledged client state.
func (ti *TextInput) Current() ClientState {
	return ti.current
}

// Pending returns a copy of the state being assembled.
func (ti *TextInput) Pending() ClientState {
	return ti.pending
}

// Preedit returns the last preedit string sent to the focus resource.
func (ti *TextInput) Preedit() string {
	return ti.preedit
}

// PanelVisible reports whether the host input panel was last shown.
func (ti *TextInput) PanelVisible() bool {
	return ti.panelVisible
}

// IsSurfaceEnabled reports whether any bound resource enabled h.
func (ti *TextInput) IsSurfaceEnabled(h surface.Handle) bool {
	return ti.resources.isEnabled(h)
}

// Resource looks up a bound resource.
func (ti *TextInput) Resource(id ResourceID) (*Resource, bool) {
	return ti.resources.get(id)
}

// Bind adds a client resource. If the client already owns the focused
// surface and no resource is focused yet, the new resource becomes the
// focus resource and receives enter.
func (ti *TextInput) Bind(client surface.ClientID, id ResourceID, version uint32, sink EventSink) (*Resource, error) {
	if _, exists := ti.resources.get(id); exists {
		return nil, ErrResourceExists
	}

	res := &Resource{ID: id, Client: client, Version: version, sink: sink}
	ti.resources.add(res)
	ti.log.Debug("bind", "resource", id, "client", client, "version", version)

	if ti.focusResource == nil && !ti.focus.IsZero() {
		if owner, ok := ti.surfaces.Client(ti.focus); ok && owner == client {
			ti.focusResource = res
			res.send(Event{Op: OpEnter, Surface: ti.focus})
			ti.record(ti.focus, ti.focus, res, "bind")
		}
	}
	return res, nil
}

// Enable handles the enable request. h may be the zero handle; otherwise it
// must name the focused surface.
func (ti *TextInput) Enable(res *Resource, h surface.Handle) {
	if !ti.accept(res, "enable") {
		return
	}
	if !h.IsZero() && h != ti.focus {
		ti.log.Debug("enable for a surface without focus ignored", "resource", res.ID, "surface", h, "focus", ti.focus)
		return
	}

	ti.pending = ClientState{}
	ti.current = ClientState{}

	ti.resources.enable(res, ti.focus)
	ti.observer.SurfaceEnabled(ti.focus)

	ti.serial = 0
	ti.panelVisible = true
	ti.host.Show()
	ti.log.Debug("enabled", "resource", res.ID, "surface", ti.focus)
}

// Disable handles the disable request.
func (ti *TextInput) Disable(res *Resource) {
	if res == nil || res.destroyed {
		return
	}

	if h, ok := ti.resources.disable(res); ok {
		ti.observer.SurfaceDisabled(h)
	}

	if res != ti.focusResource {
		return
	}

	if ti.policy.CommitBeforeLeave() {
		ti.host.Commit()
	}
	ti.host.Reset()
	ti.pending = ClientState{}
	ti.log.Debug("disabled", "resource", res.ID, "surface", ti.focus)
}

// SetSurroundingText handles set_surrounding_text. cursor and anchor are
// wire byte offsets into text.
func (ti *TextInput) SetSurroundingText(res *Resource, text string, cursor, anchor int32) {
	if !ti.accept(res, "set_surrounding_text") {
		return
	}
	ti.pending.setSurroundingText(text,
		IndexFromWire(text, int(cursor), 0),
		IndexFromWire(text, int(anchor), 0))
}

// SetContentType handles set_content_type.
func (ti *TextInput) SetContentType(res *Resource, hint ContentHint, purpose ContentPurpose) {
	if !ti.accept(res, "set_content_type") {
		return
	}
	ti.pending.setHints(HintsFromContentType(hint, purpose))
}

// SetCursorRectangle handles set_cursor_rectangle.
func (ti *TextInput) SetCursorRectangle(res *Resource, r Rect) {
	if !ti.accept(res, "set_cursor_rectangle") {
		return
	}
	ti.pending.setCursorRectangle(r)
}

// SetTextChangeCause handles set_text_change_cause. Resources bound below
// ChangeCauseSinceVersion have it ignored.
func (ti *TextInput) SetTextChangeCause(res *Resource, cause ChangeCause) {
	if !ti.accept(res, "set_text_change_cause") {
		return
	}
	if res.Version < ChangeCauseSinceVersion {
		ti.log.Debug("text change cause not supported by resource version", "resource", res.ID, "version", res.Version)
		return
	}
	ti.pending.setChangeCause(cause)
}

// Commit handles the commit request: the serial always advances, and a
// non-empty pending state is merged into the current one. The host is told
// about the categories that actually changed.
func (ti *TextInput) Commit(res *Resource) {
	if !ti.accept(res, "commit") {
		return
	}

	ti.serial = ti.serial.Next()

	if ti.pending.Changed == 0 {
		ti.log.Debug("empty commit", "serial", ti.serial)
		return
	}

	if ti.policy.SelectionWorkarounds && ti.pending.Changed&QueryCursorPosition != 0 {
		// Selection starts: some hosts keep a stale preedit unless reset.
		if ti.current.CursorPosition == ti.current.AnchorPosition &&
			ti.pending.CursorPosition != ti.pending.AnchorPosition {
			ti.host.Reset()
		}
		// Cursor moved inside unchanged text: let the host reselect.
		if ti.current.SurroundingText == ti.pending.SurroundingText &&
			ti.current.CursorPosition != ti.pending.CursorPosition {
			ti.host.InvokeClick(ti.pending.CursorPosition)
		}
	}

	queries := ti.current.MergeChanged(ti.pending)
	ti.pending = ClientState{}

	if queries != 0 {
		ti.log.Debug("host update after commit", "serial", ti.serial, "queries", queries)
		ti.host.Update(queries)
	}
}

// DestroyResource forgets a resource. If it was the focus resource only the
// resource reference is cleared; the surface keeps focus until told otherwise.
func (ti *TextInput) DestroyResource(res *Resource) {
	if res == nil || res.destroyed {
		return
	}
	res.destroyed = true

	if h, ok := ti.resources.remove(res); ok {
		ti.observer.SurfaceDisabled(h)
	}
	if ti.focusResource == res {
		ti.focusResource = nil
		ti.record(ti.focus, ti.focus, nil, "resource destroyed")
	}
	ti.log.Debug("resource destroyed", "resource", res.ID)
}

// accept reports whether res may change the pending state. Requests from
// any other resource are dropped without an error.
func (ti *TextInput) accept(res *Resource, request string) bool {
	if res == nil || res.destroyed {
		return false
	}
	if res != ti.focusResource {
		ti.log.Debug("request from unfocused resource ignored", "request", request, "resource", res.ID)
		return false
	}
	return true
}
