package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestStatusBar(t *testing.T) {
	t.Run("creates new status bar", func(t *testing.T) {
		sb := NewStatusBar("wayime")
		assert.Equal(t, "wayime", sb.Title)
		assert.True(t, sb.ShowSpinner)
		assert.NotNil(t, sb.Init())
	})

	t.Run("renders title and status", func(t *testing.T) {
		sb := NewStatusBar("wayime")
		sb.Status = "/run/user/1000/wayime.sock"
		sb.Connected = true
		sb, _ = sb.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

		view := sb.View()
		assert.Equal(t, 100, sb.Width)
		assert.Contains(t, view, "wayime")
		assert.Contains(t, view, "/run/user/1000/wayime.sock")
		assert.Contains(t, view, "●")
	})
}
