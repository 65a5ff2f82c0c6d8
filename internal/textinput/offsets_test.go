package textinput

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestIndexFromWire(t *testing.T) {
	const text = "aé日😀b" // 1 + 2 + 3 + 4 + 1 bytes

	tests := []struct {
		name   string
		length int
		base   int
		want   int
	}{
		{"zero length", 0, 3, 3},
		{"forward ascii", 1, 0, 1},
		{"forward multibyte", 3, 0, 2},
		{"forward partial rune", 4, 0, 2},
		{"forward from base", 7, 2, 4},
		{"forward past end", 100, 0, 5},
		{"backward", -4, 4, 3},
		{"backward partial", -5, 4, 2},
		{"backward past start", -100, 5, 0},
		{"base clamped", 0, 42, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IndexFromWire(text, tt.length, tt.base))
		})
	}
}

func TestIndexToWire(t *testing.T) {
	const text = "aé日😀b"

	assert.Equal(t, 0, IndexToWire(text, 0, 2))
	assert.Equal(t, 3, IndexToWire(text, 1, 2))
	assert.Equal(t, 9, IndexToWire(text, 3, 1))
	assert.Equal(t, 8, IndexToWire(text, -1, 2), "negative length runs to the end")
	assert.Equal(t, 1, IndexToWire(text, 10, 4), "clamped to the text")
	assert.Equal(t, 0, IndexToWire(text, 3, 9))
	assert.Equal(t, 1, IndexToWire(text, 2, -1), "range before the text is cut off")
}

func TestOffsetRoundTrip(t *testing.T) {
	texts := []string{"", "hello", "héllo wörld", "日本語のテキスト", "a😀b😀c", "́é"}

	for _, text := range texts {
		n := utf8.RuneCountInString(text)
		for native := 0; native <= n; native++ {
			wire := IndexToWire(text, native, 0)
			assert.Equal(t, native, IndexFromWire(text, wire, 0), "text %q offset %d", text, native)

			// Relative conversions from the end of the text walk backwards.
			back := IndexToWire(text, n-native, native)
			assert.Equal(t, native, IndexFromWire(text, -back, n), "text %q offset %d backwards", text, native)
		}
	}
}
