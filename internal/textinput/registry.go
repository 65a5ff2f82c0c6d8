package textinput

import (
	"sort"

	"github.com/bnema/wayime/internal/surface"
)

// registry tracks the resources bound to one text input and which surface
// each of them enabled. Only the text input that owns it mutates it.
type registry struct {
	byID     map[ResourceID]*Resource
	byClient map[surface.ClientID]*Resource
	enabled  map[ResourceID]surface.Handle
}

func newRegistry() *registry {
	return &registry{
		byID:     make(map[ResourceID]*Resource),
		byClient: make(map[surface.ClientID]*Resource),
		enabled:  make(map[ResourceID]surface.Handle),
	}
}

// add registers a binding. A client binding twice keeps only the newest
// resource reachable by client lookup.
func (r *registry) add(res *Resource) {
	r.byID[res.ID] = res
	r.byClient[res.Client] = res
}

// remove forgets res and its enabled entry. It returns the surface the
// resource had enabled, if any.
func (r *registry) remove(res *Resource) (surface.Handle, bool) {
	delete(r.byID, res.ID)
	if r.byClient[res.Client] == res {
		delete(r.byClient, res.Client)
		// Fall back to an older binding of the same client, if one is left.
		for _, other := range r.sorted() {
			if other.Client == res.Client {
				r.byClient[res.Client] = other
			}
		}
	}
	return r.disable(res)
}

func (r *registry) get(id ResourceID) (*Resource, bool) {
	res, ok := r.byID[id]
	return res, ok
}

func (r *registry) forClient(client surface.ClientID) *Resource {
	return r.byClient[client]
}

func (r *registry) enable(res *Resource, h surface.Handle) {
	r.enabled[res.ID] = h
}

func (r *registry) disable(res *Resource) (surface.Handle, bool) {
	h, ok := r.enabled[res.ID]
	delete(r.enabled, res.ID)
	return h, ok
}

func (r *registry) isEnabled(h surface.Handle) bool {
	if h.IsZero() {
		return false
	}
	for _, s := range r.enabled {
		if s == h {
			return true
		}
	}
	return false
}

func (r *registry) enabledFor(res *Resource) (surface.Handle, bool) {
	h, ok := r.enabled[res.ID]
	return h, ok
}

// dropSurface removes every enabled entry pointing at h and returns the
// affected resources in ID order.
func (r *registry) dropSurface(h surface.Handle) []*Resource {
	var dropped []*Resource
	for _, res := range r.sorted() {
		if s, ok := r.enabled[res.ID]; ok && s == h {
			delete(r.enabled, res.ID)
			dropped = append(dropped, res)
		}
	}
	return dropped
}

// sorted returns the bound resources ordered by ID.
func (r *registry) sorted() []*Resource {
	out := make([]*Resource, 0, len(r.byID))
	for _, res := range r.byID {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *registry) len() int {
	return len(r.byID)
}
