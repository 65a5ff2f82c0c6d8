package textinput

import (
	"time"

	"github.com/bnema/wayime/internal/surface"
)

const defaultHistory = 32

// Transition is one recorded focus change.
type Transition struct {
	From     surface.Handle
	To       surface.Handle
	Resource ResourceID
	Reason   string
	At       time.Time
}

// SetFocus moves keyboard focus of the seat to h. The zero handle removes
// focus. Handles that no longer resolve are treated as the zero handle.
func (ti *TextInput) SetFocus(h surface.Handle) {
	if !h.IsZero() && !ti.surfaces.Alive(h) {
		ti.log.Warn("focus on a dead surface treated as unfocus", "surface", h)
		h = surface.Handle{}
	}

	old := ti.focus

	if ti.focusResource != nil && !old.IsZero() {
		if ti.policy.CommitBeforeLeave() {
			ti.host.Commit()
		}
		ti.host.Hide()
		ti.panelVisible = false
		ti.focusResource.send(Event{Op: OpLeave, Surface: old})
		ti.preedit = ""
	}

	if old != h {
		ti.focusListener.Reset()
		ti.focusListener = nil
	}

	var res *Resource
	if !h.IsZero() {
		if client, ok := ti.surfaces.Client(h); ok {
			res = ti.resources.forClient(client)
		}
	}
	if res != nil {
		res.send(Event{Op: OpEnter, Surface: h})
	}
	if !h.IsZero() && old != h {
		ti.focusListener = ti.surfaces.OnDestroy(h, ti.focusDestroyed)
	}

	ti.focus = h
	ti.focusResource = res
	ti.record(old, h, res, "set_focus")
	ti.log.Debug("focus", "from", old, "to", h, "resource", resourceID(res))
}

// focusDestroyed runs while the destroyed surface still resolves, so leave
// can name it.
func (ti *TextInput) focusDestroyed(h surface.Handle) {
	if h != ti.focus {
		return
	}
	ti.focusListener = nil

	for range ti.resources.dropSurface(h) {
		ti.observer.SurfaceDisabled(h)
	}

	res := ti.focusResource
	if res != nil {
		ti.host.Reset()
		ti.host.Hide()
		ti.panelVisible = false
		res.send(Event{Op: OpLeave, Surface: h})
	}

	ti.preedit = ""
	ti.pending = ClientState{}
	ti.focus = surface.Handle{}
	ti.focusResource = nil
	ti.record(h, surface.Handle{}, res, "surface destroyed")
	ti.log.Debug("focused surface destroyed", "surface", h)
}

func (ti *TextInput) record(from, to surface.Handle, res *Resource, reason string) {
	ti.history.push(Transition{
		From:     from,
		To:       to,
		Resource: resourceID(res),
		Reason:   reason,
		At:       time.Now(),
	})
}

// History returns the remembered focus transitions, oldest first.
func (ti *TextInput) History() []Transition {
	return ti.history.items()
}

func resourceID(res *Resource) ResourceID {
	if res == nil {
		return 0
	}
	return res.ID
}

// ring is a fixed-capacity buffer that overwrites its oldest entry.
type ring[T any] struct {
	buf   []T
	start int
	n     int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &ring[T]{buf: make([]T, capacity)}
}

func (r *ring[T]) push(v T) {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = v
		r.n++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring[T]) items() []T {
	out := make([]T, r.n)
	for i := range out {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}
