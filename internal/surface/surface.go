// Package surface tracks client surfaces for the text-input bridge.
//
// Surfaces are owned by the compositor, not by text-input objects. Anything
// that needs to remember a surface holds a Handle, which is an arena index
// plus a generation counter: once the surface is destroyed the handle stops
// resolving, even if the slot is later reused for a new surface.
package surface

import (
	"errors"
	"fmt"
)

// ErrUnknownSurface is returned when a handle does not resolve to a live surface.
var ErrUnknownSurface = errors.New("unknown surface")

// ClientID identifies one client connection.
type ClientID uint32

// Handle is a weak, generation-checked reference to a surface.
// The zero Handle never refers to a surface.
type Handle struct {
	Index      uint32
	Generation uint32
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool {
	return h == Handle{}
}

// ID packs the handle into a single wire identifier.
func (h Handle) ID() uint64 {
	return uint64(h.Generation)<<32 | uint64(h.Index)
}

// FromID unpacks an identifier produced by Handle.ID.
func FromID(id uint64) Handle {
	return Handle{Index: uint32(id), Generation: uint32(id >> 32)}
}

func (h Handle) String() string {
	if h.IsZero() {
		return "surface#none"
	}
	return fmt.Sprintf("surface#%d.%d", h.Index, h.Generation)
}

type slot struct {
	generation uint32
	alive      bool
	client     ClientID
	listeners  []*Listener
}

// Arena owns every surface known to the bridge. It is not safe for
// concurrent use; callers serialize access through the event loop.
type Arena struct {
	slots []slot
	free  []uint32
	count int
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	// Slot 0 is reserved so that the zero Handle never resolves.
	return &Arena{slots: make([]slot, 1)}
}

// Create allocates a surface owned by client.
func (a *Arena) Create(client ClientID) Handle {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		a.slots = append(a.slots, slot{})
		idx = uint32(len(a.slots) - 1)
	}

	s := &a.slots[idx]
	s.generation++
	s.alive = true
	s.client = client
	s.listeners = nil
	a.count++

	return Handle{Index: idx, Generation: s.generation}
}

func (a *Arena) lookup(h Handle) *slot {
	if h.IsZero() || int(h.Index) >= len(a.slots) {
		return nil
	}
	s := &a.slots[h.Index]
	if !s.alive || s.generation != h.Generation {
		return nil
	}
	return s
}

// Alive reports whether h still refers to a live surface.
func (a *Arena) Alive(h Handle) bool {
	return a.lookup(h) != nil
}

// Client returns the client owning the surface.
func (a *Arena) Client(h Handle) (ClientID, bool) {
	s := a.lookup(h)
	if s == nil {
		return 0, false
	}
	return s.client, true
}

// Len returns the number of live surfaces.
func (a *Arena) Len() int {
	return a.count
}

// Destroy destroys the surface. Destruction listeners run in registration
// order while the handle still resolves, then the slot is released.
func (a *Arena) Destroy(h Handle) bool {
	s := a.lookup(h)
	if s == nil {
		return false
	}

	listeners := s.listeners
	s.listeners = nil
	for _, l := range listeners {
		l.fire(h)
	}

	// Listeners may have touched the arena; re-resolve the slot.
	s = &a.slots[h.Index]
	s.alive = false
	s.listeners = nil
	a.free = append(a.free, h.Index)
	a.count--
	return true
}

// DestroyClient destroys every surface owned by client and returns how many
// were destroyed.
func (a *Arena) DestroyClient(client ClientID) int {
	var handles []Handle
	for i := range a.slots {
		s := &a.slots[i]
		if s.alive && s.client == client {
			handles = append(handles, Handle{Index: uint32(i), Generation: s.generation})
		}
	}
	for _, h := range handles {
		a.Destroy(h)
	}
	return len(handles)
}

// OnDestroy registers fn to run when the surface is destroyed. It returns
// nil if h does not resolve.
func (a *Arena) OnDestroy(h Handle, fn func(Handle)) *Listener {
	s := a.lookup(h)
	if s == nil {
		return nil
	}
	live := s.listeners[:0]
	for _, old := range s.listeners {
		if old.armed {
			live = append(live, old)
		}
	}
	l := &Listener{fn: fn, armed: true}
	s.listeners = append(live, l)
	return l
}

// Listener is a destruction-notification registration.
type Listener struct {
	fn    func(Handle)
	armed bool
}

// Reset disarms the listener. It is safe to call on a nil Listener and more
// than once.
func (l *Listener) Reset() {
	if l == nil {
		return
	}
	l.armed = false
	l.fn = nil
}

// Armed reports whether the listener will still fire.
func (l *Listener) Armed() bool {
	return l != nil && l.armed
}

func (l *Listener) fire(h Handle) {
	if !l.armed {
		return
	}
	fn := l.fn
	l.Reset()
	fn(h)
}
