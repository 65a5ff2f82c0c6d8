// Package replay runs scripted text-input sessions against the core and
// records what every client and host saw. Scenarios are YAML; transcripts
// are written as JSON or CBOR.
package replay

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidScenario wraps every scenario validation failure.
var ErrInvalidScenario = errors.New("invalid scenario")

// OpDisconnect drops a client with all its resources and surfaces.
const OpDisconnect = "disconnect"

// Scenario is a named list of steps run in order.
type Scenario struct {
	Name       string   `yaml:"name"`
	Policy     Policy   `yaml:"policy"`
	MaxVersion uint32   `yaml:"max_version"`
	Steps      []Step   `yaml:"steps"`
	Seats      []string `yaml:"seats"`
}

// Policy mirrors the [input_method] config section.
type Policy struct {
	Module               string `yaml:"module"`
	Locale               string `yaml:"locale"`
	SelectionWorkarounds *bool  `yaml:"selection_workarounds"`
}

// Rect is a cursor rectangle.
type Rect struct {
	X      int32 `yaml:"x"`
	Y      int32 `yaml:"y"`
	Width  int32 `yaml:"width"`
	Height int32 `yaml:"height"`
}

// Step is one request. Surfaces and resources are referred to by the alias
// given with "as" when they were created.
type Step struct {
	Op       string `yaml:"op"`
	Client   string `yaml:"client"`
	Seat     string `yaml:"seat"`
	As       string `yaml:"as"`
	Surface  string `yaml:"surface"`
	Resource string `yaml:"resource"`
	Version  uint32 `yaml:"version"`

	Text    string `yaml:"text"`
	Cursor  int32  `yaml:"cursor"`
	Anchor  *int32 `yaml:"anchor"`
	Hint    uint32 `yaml:"hint"`
	Purpose uint32 `yaml:"purpose"`
	Rect    Rect   `yaml:"rect"`
	Cause   uint32 `yaml:"cause"`

	Preedit           string `yaml:"preedit"`
	Commit            string `yaml:"commit"`
	ReplacementStart  int    `yaml:"replacement_start"`
	ReplacementLength int    `yaml:"replacement_length"`

	// Expect lists the events each client must receive during this step.
	// Clients left out must receive nothing. Nil skips the check.
	Expect map[string][]string `yaml:"expect"`
	// ExpectHost lists the host calls the seat must see. Nil skips the
	// check.
	ExpectHost []string `yaml:"expect_host"`
}

// Load decodes a scenario and validates it.
func Load(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to decode scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// LoadFile loads a scenario from path.
func LoadFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario: %w", err)
	}
	defer f.Close()

	sc, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if sc.Name == "" {
		sc.Name = path
	}
	return sc, nil
}

// clientOps need a client; the rest act on a seat.
var clientOps = map[string]bool{
	"bind": true, "enable": true, "disable": true, "commit": true,
	"set_surrounding_text": true, "set_content_type": true,
	"set_cursor_rectangle": true, "set_text_change_cause": true,
	"destroy": true, "surface_create": true, "surface_destroy": true,
	OpDisconnect: true,
}

var seatOps = map[string]bool{
	"set_focus": true, "im_event": true, "key_event": true,
}

// Validate checks ops and required fields. Alias resolution happens while
// running.
func (sc *Scenario) Validate() error {
	if len(sc.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidScenario)
	}
	for i, st := range sc.Steps {
		switch {
		case clientOps[st.Op]:
			if st.Client == "" {
				return fmt.Errorf("%w: step %d: %s needs a client", ErrInvalidScenario, i+1, st.Op)
			}
		case seatOps[st.Op]:
		default:
			return fmt.Errorf("%w: step %d: unknown op %q", ErrInvalidScenario, i+1, st.Op)
		}

		needsResource := st.Op != "bind" && st.Op != "surface_create" &&
			st.Op != "surface_destroy" && st.Op != OpDisconnect && clientOps[st.Op]
		if needsResource && st.Resource == "" {
			return fmt.Errorf("%w: step %d: %s needs a resource", ErrInvalidScenario, i+1, st.Op)
		}
		if st.Op == "surface_destroy" && st.Surface == "" {
			return fmt.Errorf("%w: step %d: surface_destroy needs a surface", ErrInvalidScenario, i+1)
		}
		if (st.Op == "bind" || st.Op == "surface_create") && st.As == "" {
			return fmt.Errorf("%w: step %d: %s needs an alias (as)", ErrInvalidScenario, i+1, st.Op)
		}
	}
	return nil
}
