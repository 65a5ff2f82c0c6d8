package bridge

import (
	"time"

	"github.com/bnema/wayime/internal/textinput"
	"google.golang.org/protobuf/types/known/structpb"
)

// Status is the report returned for a status request.
type Status struct {
	Uptime          time.Duration
	Clients         int
	Surfaces        int
	EnabledSurfaces int
	MaxVersion      uint32
	Seats           []SeatStatus
}

// SeatStatus describes one seat's text input.
type SeatStatus struct {
	Seat            string
	Focus           string
	FocusResource   uint32
	Serial          uint32
	Preedit         string
	PanelVisible    bool
	Resources       int
	Enabled         []uint32
	SurroundingText string
	Cursor          int
	Anchor          int
	Hints           string
	CommitFlush     bool
	History         []TransitionStatus
}

// TransitionStatus is one focus change in a seat's history.
type TransitionStatus struct {
	From     string
	To       string
	Resource uint32
	Reason   string
	At       time.Time
}

// status runs on the loop.
func (s *Server) status() Status {
	st := Status{
		Clients:         len(s.sessions),
		Surfaces:        s.arena.Len(),
		EnabledSurfaces: len(s.enabled),
		MaxVersion:      s.manager.MaxVersion(),
	}
	if !s.started.IsZero() {
		st.Uptime = time.Since(s.started)
	}
	for _, seat := range s.manager.Seats() {
		ti, _ := s.manager.Lookup(seat)
		st.Seats = append(st.Seats, seatStatus(ti))
	}
	return st
}

func seatStatus(ti *textinput.TextInput) SeatStatus {
	snap := ti.Snapshot()
	ss := SeatStatus{
		Seat:            string(snap.Seat),
		Focus:           snap.Focus.String(),
		FocusResource:   uint32(snap.FocusResource),
		Serial:          uint32(snap.Serial),
		Preedit:         snap.Preedit,
		PanelVisible:    snap.PanelVisible,
		Resources:       snap.Resources,
		SurroundingText: snap.Current.SurroundingText,
		Cursor:          snap.Current.CursorPosition,
		Anchor:          snap.Current.AnchorPosition,
		Hints:           snap.Current.Hints.String(),
		CommitFlush:     ti.Policy().CommitBeforeLeave(),
	}
	for _, id := range snap.Enabled {
		ss.Enabled = append(ss.Enabled, uint32(id))
	}
	for _, tr := range snap.History {
		ss.History = append(ss.History, TransitionStatus{
			From:     tr.From.String(),
			To:       tr.To.String(),
			Resource: uint32(tr.Resource),
			Reason:   tr.Reason,
			At:       tr.At,
		})
	}
	return ss
}

// Fields encodes the status as message fields.
func (st Status) Fields() map[string]interface{} {
	seats := make([]interface{}, 0, len(st.Seats))
	for _, ss := range st.Seats {
		enabled := make([]interface{}, 0, len(ss.Enabled))
		for _, id := range ss.Enabled {
			enabled = append(enabled, id)
		}
		history := make([]interface{}, 0, len(ss.History))
		for _, tr := range ss.History {
			history = append(history, map[string]interface{}{
				"from":     tr.From,
				"to":       tr.To,
				"resource": tr.Resource,
				"reason":   tr.Reason,
				"at":       tr.At.Format(time.RFC3339Nano),
			})
		}
		seats = append(seats, map[string]interface{}{
			"seat":             ss.Seat,
			"focus":            ss.Focus,
			"focus_resource":   ss.FocusResource,
			"serial":           ss.Serial,
			"preedit":          ss.Preedit,
			"panel_visible":    ss.PanelVisible,
			"resources":        ss.Resources,
			"enabled":          enabled,
			"surrounding_text": ss.SurroundingText,
			"cursor":           ss.Cursor,
			"anchor":           ss.Anchor,
			"hints":            ss.Hints,
			"commit_flush":     ss.CommitFlush,
			"history":          history,
		})
	}
	return map[string]interface{}{
		"uptime_ms":        st.Uptime.Milliseconds(),
		"clients":          st.Clients,
		"surfaces":         st.Surfaces,
		"enabled_surfaces": st.EnabledSurfaces,
		"max_version":      st.MaxVersion,
		"seats":            seats,
	}
}

// ParseStatus decodes a status reply. Missing fields are left zero.
func ParseStatus(msg *structpb.Struct) Status {
	m := msg.AsMap()
	st := Status{
		Uptime:          time.Duration(num(m["uptime_ms"])) * time.Millisecond,
		Clients:         int(num(m["clients"])),
		Surfaces:        int(num(m["surfaces"])),
		EnabledSurfaces: int(num(m["enabled_surfaces"])),
		MaxVersion:      uint32(num(m["max_version"])),
	}
	seats, _ := m["seats"].([]interface{})
	for _, raw := range seats {
		sm, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		ss := SeatStatus{
			Seat:            str(sm["seat"]),
			Focus:           str(sm["focus"]),
			FocusResource:   uint32(num(sm["focus_resource"])),
			Serial:          uint32(num(sm["serial"])),
			Preedit:         str(sm["preedit"]),
			PanelVisible:    sm["panel_visible"] == true,
			Resources:       int(num(sm["resources"])),
			SurroundingText: str(sm["surrounding_text"]),
			Cursor:          int(num(sm["cursor"])),
			Anchor:          int(num(sm["anchor"])),
			Hints:           str(sm["hints"]),
			CommitFlush:     sm["commit_flush"] == true,
		}
		enabled, _ := sm["enabled"].([]interface{})
		for _, id := range enabled {
			ss.Enabled = append(ss.Enabled, uint32(num(id)))
		}
		history, _ := sm["history"].([]interface{})
		for _, rawTr := range history {
			tm, ok := rawTr.(map[string]interface{})
			if !ok {
				continue
			}
			at, _ := time.Parse(time.RFC3339Nano, str(tm["at"]))
			ss.History = append(ss.History, TransitionStatus{
				From:     str(tm["from"]),
				To:       str(tm["to"]),
				Resource: uint32(num(tm["resource"])),
				Reason:   str(tm["reason"]),
				At:       at,
			})
		}
		st.Seats = append(st.Seats, ss)
	}
	return st
}

func num(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}
