package textinput

import "strings"

// Query is a bitmask of logical input-method query categories. The host is
// told which categories changed after a commit and may ask for the value of
// any of them through TextInput.Query.
type Query uint32

const (
	QueryHints Query = 1 << iota
	QueryCursorRectangle
	QuerySurroundingText
	QueryCursorPosition
	QueryAnchorPosition
	QueryCurrentSelection
	QueryAbsolutePosition
	QueryTextBeforeCursor
	QueryTextAfterCursor
	QueryFont
	QueryMaximumTextLength
)

var queryNames = []struct {
	q    Query
	name string
}{
	{QueryHints, "hints"},
	{QueryCursorRectangle, "cursor-rectangle"},
	{QuerySurroundingText, "surrounding-text"},
	{QueryCursorPosition, "cursor-position"},
	{QueryAnchorPosition, "anchor-position"},
	{QueryCurrentSelection, "current-selection"},
	{QueryAbsolutePosition, "absolute-position"},
	{QueryTextBeforeCursor, "text-before-cursor"},
	{QueryTextAfterCursor, "text-after-cursor"},
	{QueryFont, "font"},
	{QueryMaximumTextLength, "maximum-text-length"},
}

func (q Query) String() string {
	if q == 0 {
		return "none"
	}
	var parts []string
	for _, n := range queryNames {
		if q&n.q != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseQuery resolves a single query name as printed by Query.String.
func ParseQuery(name string) (Query, bool) {
	for _, n := range queryNames {
		if n.name == name {
			return n.q, true
		}
	}
	return 0, false
}
