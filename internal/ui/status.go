package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/bnema/wayime/internal/bridge"
	"github.com/charmbracelet/lipgloss"
)

// RenderStatus renders a bridge status report for the status command.
func RenderStatus(st bridge.Status, socket string) string {
	var b strings.Builder
	b.WriteString(HeaderStyle.Render("wayime bridge"))
	b.WriteString("\n")
	b.WriteString(FormatStatus(true, socket))
	b.WriteString("\n\n")
	b.WriteString(FormatField("uptime", st.Uptime.Round(time.Second)))
	b.WriteString("\n")
	b.WriteString(FormatField("clients", st.Clients))
	b.WriteString("\n")
	b.WriteString(FormatField("surfaces", fmt.Sprintf("%d (%d enabled)", st.Surfaces, st.EnabledSurfaces)))
	b.WriteString("\n")
	b.WriteString(FormatField("protocol version", st.MaxVersion))
	b.WriteString("\n")

	for _, seat := range st.Seats {
		b.WriteString("\n")
		b.WriteString(RenderSeat(seat, 0))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderSeat renders one seat as a box. history limits the number of focus
// transitions shown; 0 hides them.
func RenderSeat(ss bridge.SeatStatus, history int) string {
	lines := []string{
		SubheaderStyle.Render("seat " + ss.Seat),
		FormatField("focus", ss.Focus),
		FormatField("resource", formatResource(ss.FocusResource)),
		FormatField("serial", ss.Serial),
		FormatField("panel", FormatBool(ss.PanelVisible)),
		FormatField("flush on leave", FormatBool(ss.CommitFlush)),
		FormatField("resources", fmt.Sprintf("%d bound, %d enabled", ss.Resources, len(ss.Enabled))),
		FormatField("hints", orNone(ss.Hints)),
		FormatField("text", RenderComposition(ss.SurroundingText, ss.Cursor, ss.Anchor, ss.Preedit)),
	}

	if history > 0 && len(ss.History) > 0 {
		lines = append(lines, "", SubheaderStyle.Render("focus history"))
		start := len(ss.History) - history
		if start < 0 {
			start = 0
		}
		for _, tr := range ss.History[start:] {
			lines = append(lines, FormatTransition(tr))
		}
	}

	return BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// RenderComposition shows the surrounding text with the preedit inserted at
// the cursor. Cursor and anchor are in characters.
func RenderComposition(text string, cursor, anchor int, preedit string) string {
	if text == "" && preedit == "" {
		return SubtleStyle.Render("(empty)")
	}
	runes := []rune(text)
	cursor = clamp(cursor, len(runes))
	anchor = clamp(anchor, len(runes))

	lo, hi := cursor, anchor
	if lo > hi {
		lo, hi = hi, lo
	}

	caret := CursorStyle.Render("|")
	if preedit != "" {
		caret += PreeditStyle.Render(preedit)
	}
	selection := ""
	if lo != hi {
		selection = CursorStyle.Render(string(runes[lo:hi]))
	}

	var b strings.Builder
	b.WriteString(TextStyle.Render(string(runes[:lo])))
	if cursor == lo {
		b.WriteString(caret + selection)
	} else {
		b.WriteString(selection + caret)
	}
	b.WriteString(TextStyle.Render(string(runes[hi:])))
	return b.String()
}

// FormatTransition renders one focus change.
func FormatTransition(tr bridge.TransitionStatus) string {
	return SubtleStyle.Render(tr.At.Format("15:04:05.000")) + " " +
		tr.From + " " + InfoStyle.Render(IconFocus) + " " + tr.To + " " +
		SubtleStyle.Render(fmt.Sprintf("(%s, resource %s)", tr.Reason, formatResource(tr.Resource)))
}

func formatResource(id uint32) string {
	if id == 0 {
		return "none"
	}
	return fmt.Sprintf("#%d", id)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func clamp(n, max int) int {
	if n < 0 {
		return 0
	}
	if n > max {
		return max
	}
	return n
}
