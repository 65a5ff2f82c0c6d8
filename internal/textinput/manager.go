package textinput

import (
	"sort"

	"github.com/bnema/wayime/internal/surface"
)

const (
	// MaxVersion is the highest text-input protocol version advertised.
	MaxVersion uint32 = 2
	// ChangeCauseSinceVersion is the first version with set_text_change_cause.
	ChangeCauseSinceVersion uint32 = 2
)

// Protocols is the set of text-input protocols a client has bound.
type Protocols uint8

const (
	ProtocolTextInputV4 Protocols = 1 << iota
)

func (p Protocols) Has(other Protocols) bool {
	return p&other == other
}

// HostFactory builds the host for a newly created seat text input.
type HostFactory func(ti *TextInput) Host

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithHostFactory sets how hosts are created for new seats.
func WithHostFactory(f HostFactory) ManagerOption {
	return func(m *Manager) { m.newHost = f }
}

// WithManagerPolicy sets the flush policy given to every seat.
func WithManagerPolicy(p FlushPolicy) ManagerOption {
	return func(m *Manager) { m.policy = p }
}

// WithManagerObserver sets the observer given to every seat.
func WithManagerObserver(o Observer) ManagerOption {
	return func(m *Manager) { m.observer = o }
}

// WithMaxVersion lowers the advertised protocol version.
func WithMaxVersion(v uint32) ManagerOption {
	return func(m *Manager) {
		if v >= 1 && v <= MaxVersion {
			m.maxVersion = v
		}
	}
}

// Manager owns the text inputs of all seats and routes resources to them.
type Manager struct {
	surfaces   *surface.Arena
	inputs     map[SeatID]*TextInput
	owners     map[ResourceID]*TextInput
	protocols  map[surface.ClientID]Protocols
	newHost    HostFactory
	policy     FlushPolicy
	observer   Observer
	maxVersion uint32
}

// NewManager creates a manager resolving surfaces through the arena.
func NewManager(surfaces *surface.Arena, opts ...ManagerOption) *Manager {
	m := &Manager{
		surfaces:   surfaces,
		inputs:     make(map[SeatID]*TextInput),
		owners:     make(map[ResourceID]*TextInput),
		protocols:  make(map[surface.ClientID]Protocols),
		policy:     DefaultFlushPolicy(),
		maxVersion: MaxVersion,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MaxVersion returns the advertised protocol version.
func (m *Manager) MaxVersion() uint32 {
	return m.maxVersion
}

// TextInput finds or creates the text input of a seat.
func (m *Manager) TextInput(seat SeatID) *TextInput {
	if ti, ok := m.inputs[seat]; ok {
		return ti
	}
	ti := New(seat, m.surfaces, WithPolicy(m.policy), WithObserver(m.observer))
	if m.newHost != nil {
		ti.SetHost(m.newHost(ti))
	}
	m.inputs[seat] = ti
	return ti
}

// Lookup returns the text input of a seat if it exists.
func (m *Manager) Lookup(seat SeatID) (*TextInput, bool) {
	ti, ok := m.inputs[seat]
	return ti, ok
}

// GetTextInput binds a client resource to the seat's text input. The
// requested version is clamped to what the manager advertises.
func (m *Manager) GetTextInput(client surface.ClientID, id ResourceID, seat SeatID, version uint32, sink EventSink) (*Resource, error) {
	if _, taken := m.owners[id]; taken {
		return nil, ErrResourceExists
	}
	if version == 0 {
		version = 1
	}
	if version > m.maxVersion {
		version = m.maxVersion
	}

	ti := m.TextInput(seat)
	res, err := ti.Bind(client, id, version, sink)
	if err != nil {
		return nil, err
	}
	m.owners[id] = ti
	m.protocols[client] |= ProtocolTextInputV4
	return res, nil
}

// Resource resolves a resource ID to its resource and owning text input.
func (m *Manager) Resource(id ResourceID) (*TextInput, *Resource, error) {
	ti, ok := m.owners[id]
	if !ok {
		return nil, nil, ErrUnknownResource
	}
	res, ok := ti.Resource(id)
	if !ok {
		return nil, nil, ErrUnknownResource
	}
	return ti, res, nil
}

// DestroyResource handles the destroy request.
func (m *Manager) DestroyResource(id ResourceID) error {
	ti, res, err := m.Resource(id)
	if err != nil {
		return err
	}
	ti.DestroyResource(res)
	delete(m.owners, id)
	return nil
}

// DestroyClient destroys every resource of a disconnected client and
// returns how many there were.
func (m *Manager) DestroyClient(client surface.ClientID) int {
	var ids []ResourceID
	for id, ti := range m.owners {
		if res, ok := ti.Resource(id); ok && res.Client == client {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		_ = m.DestroyResource(id)
	}
	delete(m.protocols, client)
	return len(ids)
}

// Protocols returns the protocols a client has bound.
func (m *Manager) Protocols(client surface.ClientID) Protocols {
	return m.protocols[client]
}

// Seats returns the known seats in sorted order.
func (m *Manager) Seats() []SeatID {
	seats := make([]SeatID, 0, len(m.inputs))
	for seat := range m.inputs {
		seats = append(seats, seat)
	}
	sort.Slice(seats, func(i, j int) bool { return seats[i] < seats[j] })
	return seats
}

// SetPolicy replaces the flush policy of every seat, present and future.
func (m *Manager) SetPolicy(p FlushPolicy) {
	m.policy = p
	for _, ti := range m.inputs {
		ti.SetPolicy(p)
	}
}

// IsSurfaceEnabled reports whether any seat has h input-enabled.
func (m *Manager) IsSurfaceEnabled(h surface.Handle) bool {
	for _, ti := range m.inputs {
		if ti.IsSurfaceEnabled(h) {
			return true
		}
	}
	return false
}
