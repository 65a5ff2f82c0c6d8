package replay

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Format selects the transcript encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

// ParseFormat accepts "json" and "cbor".
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatCBOR:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown transcript format %q (want json or cbor)", s)
}

// Transcript is the record of one scenario run.
type Transcript struct {
	Scenario string       `json:"scenario" cbor:"scenario"`
	Policy   PolicyRecord `json:"policy" cbor:"policy"`
	Steps    []StepResult `json:"steps" cbor:"steps"`
	Failures []string     `json:"failures,omitempty" cbor:"failures,omitempty"`
}

// PolicyRecord is the flush policy the scenario ran with.
type PolicyRecord struct {
	Module            string `json:"module" cbor:"module"`
	Locale            string `json:"locale" cbor:"locale"`
	CommitBeforeLeave bool   `json:"commit_before_leave" cbor:"commit_before_leave"`
}

// StepResult holds what one step produced, keyed by client name.
type StepResult struct {
	Index  int                 `json:"index" cbor:"index"`
	Op     string              `json:"op" cbor:"op"`
	Client string              `json:"client,omitempty" cbor:"client,omitempty"`
	Events map[string][]string `json:"events,omitempty" cbor:"events,omitempty"`
	Host   []string            `json:"host,omitempty" cbor:"host,omitempty"`
}

// Failed reports whether any expectation did not hold.
func (t *Transcript) Failed() bool {
	return len(t.Failures) > 0
}

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	// Deterministic encoding so identical runs produce identical bytes.
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("replay: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("replay: CBOR decoder initialization failed: " + err.Error())
	}
}

// Encode writes the transcript in the given format.
func (t *Transcript) Encode(w io.Writer, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	case FormatCBOR:
		return cborEnc.NewEncoder(w).Encode(t)
	}
	return fmt.Errorf("unknown transcript format %q", f)
}

// DecodeTranscript reads a transcript written by Encode.
func DecodeTranscript(r io.Reader, f Format) (*Transcript, error) {
	var t Transcript
	var err error
	switch f {
	case FormatJSON:
		err = json.NewDecoder(r).Decode(&t)
	case FormatCBOR:
		err = cborDec.NewDecoder(r).Decode(&t)
	default:
		return nil, fmt.Errorf("unknown transcript format %q", f)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode transcript: %w", err)
	}
	return &t, nil
}
