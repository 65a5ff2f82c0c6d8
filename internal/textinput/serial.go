package textinput

import "math"

// Serial counts accepted commits so clients can match done events to the
// state they acknowledge. It wraps to zero instead of overflowing.
type Serial uint32

// Next returns the serial following s.
func (s Serial) Next() Serial {
	if s == math.MaxUint32 {
		return 0
	}
	return s + 1
}
