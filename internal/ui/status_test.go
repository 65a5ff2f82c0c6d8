package ui

import (
	"testing"
	"time"

	"github.com/bnema/wayime/internal/bridge"
	"github.com/stretchr/testify/assert"
)

func sampleStatus() bridge.Status {
	at := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	return bridge.Status{
		Uptime:          90 * time.Second,
		Clients:         2,
		Surfaces:        3,
		EnabledSurfaces: 1,
		MaxVersion:      2,
		Seats: []bridge.SeatStatus{{
			Seat:            "seat0",
			Focus:           "surface#1.0",
			FocusResource:   4,
			Serial:          7,
			Preedit:         "wor",
			PanelVisible:    true,
			Resources:       2,
			Enabled:         []uint32{4},
			SurroundingText: "hello",
			Cursor:          2,
			Anchor:          2,
			Hints:           "spellcheck",
			CommitFlush:     true,
			History: []bridge.TransitionStatus{
				{From: "surface#none", To: "surface#1.0", Resource: 4, Reason: "set_focus", At: at},
			},
		}},
	}
}

func TestRenderStatus(t *testing.T) {
	out := RenderStatus(sampleStatus(), "/tmp/wayime.sock")

	for _, want := range []string{"/tmp/wayime.sock", "1m30s", "3 (1 enabled)", "seat seat0", "surface#1.0", "#4", "he|wor", "spellcheck"} {
		assert.Contains(t, out, want)
	}
	// History is only shown by the monitor.
	assert.NotContains(t, out, "focus history")
}

func TestRenderSeatHistory(t *testing.T) {
	seat := sampleStatus().Seats[0]

	out := RenderSeat(seat, 5)
	assert.Contains(t, out, "focus history")
	assert.Contains(t, out, "15:04:05.000")
	assert.Contains(t, out, "set_focus")

	assert.NotContains(t, RenderSeat(seat, 0), "focus history")
}

func TestRenderComposition(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		cursor  int
		anchor  int
		preedit string
		want    string
	}{
		{"empty", "", 0, 0, "", "(empty)"},
		{"caret in text", "hello", 2, 2, "", "he|llo"},
		{"preedit at caret", "hello", 5, 5, "!", "hello|!"},
		{"multibyte runes", "日本語", 1, 1, "x", "日|x本語"},
		{"selection forward", "hello", 1, 3, "", "h|ello"},
		{"selection backward", "hello", 3, 1, "", "hel|lo"},
		{"cursor clamped", "ab", 9, -1, "", "ab|"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, RenderComposition(tt.text, tt.cursor, tt.anchor, tt.preedit), tt.want)
		})
	}
}
