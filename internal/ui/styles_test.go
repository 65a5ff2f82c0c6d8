package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatControl(t *testing.T) {
	tests := []struct {
		name string
		key  string
		desc string
	}{
		{"basic control", "q", "Quit"},
		{"longer key", "Space", "Pause polling"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatControl(tt.key, tt.desc)
			assert.Contains(t, got, tt.key)
			assert.Contains(t, got, tt.desc)
		})
	}
}

func TestFormatStatus(t *testing.T) {
	assert.Contains(t, FormatStatus(true, "listening"), "●")
	assert.Contains(t, FormatStatus(false, "unreachable"), "○")
	assert.Contains(t, FormatStatus(false, "unreachable"), "unreachable")
}

func TestFormatField(t *testing.T) {
	got := FormatField("serial", 42)
	assert.Contains(t, got, "serial")
	assert.Contains(t, got, "42")
}

func TestCreateSeparator(t *testing.T) {
	assert.Contains(t, CreateSeparator(3, "="), "===")
	assert.Contains(t, CreateSeparator(0, ""), "──────────")
}

func TestCenter(t *testing.T) {
	for _, width := range []int{20, 4, 2} {
		assert.Contains(t, Center(width, "Test"), "Test")
	}
}
