package replay

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/bnema/wayime/internal/logger"
	"github.com/bnema/wayime/internal/surface"
	"github.com/bnema/wayime/internal/textinput"
	"github.com/charmbracelet/log"
)

const defaultSeat textinput.SeatID = "seat0"

// host records every call the core makes to a seat's input method.
type host struct {
	calls []string
}

func (h *host) Show()                    { h.calls = append(h.calls, "show") }
func (h *host) Hide()                    { h.calls = append(h.calls, "hide") }
func (h *host) Commit()                  { h.calls = append(h.calls, "commit") }
func (h *host) Reset()                   { h.calls = append(h.calls, "reset") }
func (h *host) Update(q textinput.Query) { h.calls = append(h.calls, fmt.Sprintf("update(%s)", q)) }
func (h *host) InvokeClick(cursor int)   { h.calls = append(h.calls, fmt.Sprintf("click(%d)", cursor)) }

func (h *host) take() []string {
	calls := h.calls
	h.calls = nil
	return calls
}

type client struct {
	name   string
	id     surface.ClientID
	events []textinput.Event
}

func (c *client) take() []textinput.Event {
	events := c.events
	c.events = nil
	return events
}

// runner holds the state of one scenario run.
type runner struct {
	arena     *surface.Arena
	manager   *textinput.Manager
	hosts     map[textinput.SeatID]*host
	clients   map[string]*client
	surfaces  map[string]surface.Handle
	names     map[surface.Handle]string
	resources map[string]textinput.ResourceID
	nextID    textinput.ResourceID
	log       *log.Logger
}

// Run executes the scenario against a fresh core. Expectation mismatches
// are reported in the transcript; an error is returned only when the
// scenario itself cannot run.
func Run(sc *Scenario) (*Transcript, error) {
	policy, err := sc.flushPolicy()
	if err != nil {
		return nil, err
	}

	r := &runner{
		arena:     surface.NewArena(),
		hosts:     make(map[textinput.SeatID]*host),
		clients:   make(map[string]*client),
		surfaces:  make(map[string]surface.Handle),
		names:     make(map[surface.Handle]string),
		resources: make(map[string]textinput.ResourceID),
		log:       logger.With("replay"),
	}
	opts := []textinput.ManagerOption{
		textinput.WithManagerPolicy(policy),
		textinput.WithHostFactory(func(ti *textinput.TextInput) textinput.Host {
			h := &host{}
			r.hosts[ti.Seat()] = h
			return h
		}),
	}
	if sc.MaxVersion != 0 {
		opts = append(opts, textinput.WithMaxVersion(sc.MaxVersion))
	}
	r.manager = textinput.NewManager(r.arena, opts...)
	for _, seat := range sc.Seats {
		r.manager.TextInput(textinput.SeatID(seat))
	}

	tr := &Transcript{
		Scenario: sc.Name,
		Policy: PolicyRecord{
			Module:            policy.Module,
			Locale:            policy.Locale.String(),
			CommitBeforeLeave: policy.CommitBeforeLeave(),
		},
	}
	for i, st := range sc.Steps {
		res, err := r.step(st)
		if err != nil {
			return tr, fmt.Errorf("step %d (%s): %w", i+1, st.Op, err)
		}
		res.Index = i + 1
		tr.Steps = append(tr.Steps, res)
		tr.Failures = append(tr.Failures, check(res, st)...)
	}
	r.log.Debug("scenario finished", "name", sc.Name, "steps", len(tr.Steps), "failures", len(tr.Failures))
	return tr, nil
}

func (sc *Scenario) flushPolicy() (textinput.FlushPolicy, error) {
	workarounds := true
	if sc.Policy.SelectionWorkarounds != nil {
		workarounds = *sc.Policy.SelectionWorkarounds
	}
	p, err := textinput.ParseFlushPolicy(sc.Policy.Module, sc.Policy.Locale, workarounds)
	if err != nil {
		return p, fmt.Errorf("%w: locale %q: %v", ErrInvalidScenario, sc.Policy.Locale, err)
	}
	return p, nil
}

func (r *runner) seat(st Step) *textinput.TextInput {
	seat := defaultSeat
	if st.Seat != "" {
		seat = textinput.SeatID(st.Seat)
	}
	return r.manager.TextInput(seat)
}

func (r *runner) client(name string) *client {
	c, ok := r.clients[name]
	if !ok {
		c = &client{name: name, id: surface.ClientID(len(r.clients) + 1)}
		r.clients[name] = c
	}
	return c
}

func (r *runner) surface(alias string) (surface.Handle, error) {
	h, ok := r.surfaces[alias]
	if !ok {
		return surface.Handle{}, fmt.Errorf("unknown surface alias %q", alias)
	}
	return h, nil
}

func (r *runner) resource(st Step) (*textinput.TextInput, *textinput.Resource, error) {
	id, ok := r.resources[st.Resource]
	if !ok {
		return nil, nil, fmt.Errorf("unknown resource alias %q", st.Resource)
	}
	ti, res, err := r.manager.Resource(id)
	if err != nil {
		return nil, nil, fmt.Errorf("resource %q: %w", st.Resource, err)
	}
	if res.Client != r.client(st.Client).id {
		return nil, nil, fmt.Errorf("resource %q is not owned by %q", st.Resource, st.Client)
	}
	return ti, res, nil
}

func (r *runner) step(st Step) (StepResult, error) {
	if err := r.apply(st); err != nil {
		return StepResult{}, err
	}

	res := StepResult{Op: st.Op, Client: st.Client}
	for name, c := range r.clients {
		for _, e := range c.take() {
			if res.Events == nil {
				res.Events = make(map[string][]string)
			}
			res.Events[name] = append(res.Events[name], r.format(e))
		}
	}
	seats := make([]string, 0, len(r.hosts))
	for seat := range r.hosts {
		seats = append(seats, string(seat))
	}
	sort.Strings(seats)
	for _, seat := range seats {
		res.Host = append(res.Host, r.hosts[textinput.SeatID(seat)].take()...)
	}
	return res, nil
}

func (r *runner) apply(st Step) error {
	switch st.Op {
	case "surface_create":
		if _, exists := r.surfaces[st.As]; exists {
			return fmt.Errorf("surface alias %q already used", st.As)
		}
		h := r.arena.Create(r.client(st.Client).id)
		r.surfaces[st.As] = h
		r.names[h] = st.As
	case "surface_destroy":
		h, err := r.surface(st.Surface)
		if err != nil {
			return err
		}
		r.arena.Destroy(h)
		delete(r.surfaces, st.Surface)
	case "bind":
		if _, exists := r.resources[st.As]; exists {
			return fmt.Errorf("resource alias %q already used", st.As)
		}
		c := r.client(st.Client)
		r.nextID++
		version := st.Version
		if version == 0 {
			version = r.manager.MaxVersion()
		}
		seat := r.seat(st).Seat()
		res, err := r.manager.GetTextInput(c.id, r.nextID, seat, version, textinput.EventSinkFunc(func(e textinput.Event) {
			c.events = append(c.events, e)
		}))
		if err != nil {
			return err
		}
		r.resources[st.As] = res.ID
	case "destroy":
		_, res, err := r.resource(st)
		if err != nil {
			return err
		}
		return r.manager.DestroyResource(res.ID)
	case OpDisconnect:
		c := r.client(st.Client)
		r.manager.DestroyClient(c.id)
		r.arena.DestroyClient(c.id)
		for alias, h := range r.surfaces {
			if !r.arena.Alive(h) {
				delete(r.surfaces, alias)
			}
		}
	case "set_focus":
		var h surface.Handle
		if st.Surface != "" {
			var err error
			if h, err = r.surface(st.Surface); err != nil {
				return err
			}
		}
		r.seat(st).SetFocus(h)
	case "im_event":
		r.seat(st).SendInputMethodEvent(textinput.InputMethodEvent{
			Preedit:           st.Preedit,
			Commit:            st.Commit,
			ReplacementStart:  st.ReplacementStart,
			ReplacementLength: st.ReplacementLength,
		})
	case "key_event":
		r.seat(st).SendKeyEvent(st.Text)
	default:
		return r.applyResource(st)
	}
	return nil
}

func (r *runner) applyResource(st Step) error {
	ti, res, err := r.resource(st)
	if err != nil {
		return err
	}
	switch st.Op {
	case "enable":
		var h surface.Handle
		if st.Surface != "" {
			if h, err = r.surface(st.Surface); err != nil {
				return err
			}
		}
		ti.Enable(res, h)
	case "disable":
		ti.Disable(res)
	case "commit":
		ti.Commit(res)
	case "set_surrounding_text":
		anchor := st.Cursor
		if st.Anchor != nil {
			anchor = *st.Anchor
		}
		ti.SetSurroundingText(res, st.Text, st.Cursor, anchor)
	case "set_content_type":
		ti.SetContentType(res, textinput.ContentHint(st.Hint), textinput.ContentPurpose(st.Purpose))
	case "set_cursor_rectangle":
		ti.SetCursorRectangle(res, textinput.Rect{X: st.Rect.X, Y: st.Rect.Y, Width: st.Rect.Width, Height: st.Rect.Height})
	case "set_text_change_cause":
		ti.SetTextChangeCause(res, textinput.ChangeCause(st.Cause))
	default:
		return fmt.Errorf("unsupported op %q", st.Op)
	}
	return nil
}

// format prints an event with surfaces shown by alias.
func (r *runner) format(e textinput.Event) string {
	if e.Op == textinput.OpEnter || e.Op == textinput.OpLeave {
		if name, ok := r.names[e.Surface]; ok {
			return fmt.Sprintf("%s(%s)", e.Op, name)
		}
	}
	return e.String()
}

func check(res StepResult, st Step) []string {
	var failures []string
	if st.Expect != nil {
		names := make(map[string]bool)
		for name := range st.Expect {
			names[name] = true
		}
		for name := range res.Events {
			names[name] = true
		}
		sorted := make([]string, 0, len(names))
		for name := range names {
			sorted = append(sorted, name)
		}
		sort.Strings(sorted)
		for _, name := range sorted {
			want, got := st.Expect[name], res.Events[name]
			if !equal(want, got) {
				failures = append(failures, fmt.Sprintf("step %d (%s): client %s: want [%s], got [%s]",
					res.Index, st.Op, name, strings.Join(want, ", "), strings.Join(got, ", ")))
			}
		}
	}
	if st.ExpectHost != nil && !equal(st.ExpectHost, res.Host) {
		failures = append(failures, fmt.Sprintf("step %d (%s): host: want [%s], got [%s]",
			res.Index, st.Op, strings.Join(st.ExpectHost, ", "), strings.Join(res.Host, ", ")))
	}
	return failures
}

func equal(a, b []string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}
