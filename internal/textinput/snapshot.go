package textinput

import "github.com/bnema/wayime/internal/surface"

// Snapshot is a read-only copy of a seat's text-input state for status
// reporting.
type Snapshot struct {
	Seat          SeatID
	Focus         surface.Handle
	FocusResource ResourceID
	Serial        Serial
	Preedit       string
	PanelVisible  bool
	Resources     int
	Enabled       []ResourceID
	Current       ClientState
	History       []Transition
}

// Snapshot copies the observable state of the text input.
func (ti *TextInput) Snapshot() Snapshot {
	snap := Snapshot{
		Seat:          ti.seat,
		Focus:         ti.focus,
		FocusResource: resourceID(ti.focusResource),
		Serial:        ti.serial,
		Preedit:       ti.preedit,
		PanelVisible:  ti.panelVisible,
		Resources:     ti.resources.len(),
		Current:       ti.current,
		History:       ti.History(),
	}
	for _, res := range ti.resources.sorted() {
		if _, ok := ti.resources.enabledFor(res); ok {
			snap.Enabled = append(snap.Enabled, res.ID)
		}
	}
	return snap
}
