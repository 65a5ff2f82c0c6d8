package textinput

import "unicode/utf8"

// Offsets inside the core are rune (code point) indexes. Offsets on the wire
// are UTF-8 byte counts. Every value crossing the boundary goes through
// IndexFromWire or IndexToWire.

// IndexFromWire converts a wire byte length, measured from the native offset
// base, into a native offset. A negative length walks backwards from base.
// Bytes of a code point that is only partially covered are not counted.
func IndexFromWire(text string, length, base int) int {
	base = clamp(base, 0, runeLen(text))
	if length == 0 {
		return base
	}

	if length < 0 {
		prefix := text[:byteOffset(text, base)]
		keep := len(prefix) + length
		if keep < 0 {
			keep = 0
		}
		return completeRunes(prefix, keep)
	}

	rest := text[byteOffset(text, base):]
	return base + completeRunes(rest, length)
}

// IndexToWire returns the UTF-8 byte length of the native range
// [base, base+length). A negative length extends to the end of the text.
// The range is clamped to the text.
func IndexToWire(text string, length, base int) int {
	n := runeLen(text)
	start := clamp(base, 0, n)
	end := n
	if length >= 0 {
		end = clamp(base+length, start, n)
	}
	return byteOffset(text, end) - byteOffset(text, start)
}

// completeRunes counts the code points that fit entirely in s[:limit].
func completeRunes(s string, limit int) int {
	if limit > len(s) {
		limit = len(s)
	}
	count := 0
	for i := 0; i < limit; {
		_, size := utf8.DecodeRuneInString(s[i:])
		if i+size > limit {
			break
		}
		i += size
		count++
	}
	return count
}

// byteOffset returns the byte index of the rune at native offset idx.
func byteOffset(s string, idx int) int {
	if idx <= 0 {
		return 0
	}
	count := 0
	for i := range s {
		if count == idx {
			return i
		}
		count++
	}
	return len(s)
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// runeSlice returns the runes in [start, end) of s, clamped.
func runeSlice(s string, start, end int) string {
	n := runeLen(s)
	start = clamp(start, 0, n)
	end = clamp(end, start, n)
	return s[byteOffset(s, start):byteOffset(s, end)]
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
