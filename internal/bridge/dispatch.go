package bridge

import (
	"errors"
	"fmt"

	"github.com/bnema/wayime/internal/ipc"
	"github.com/bnema/wayime/internal/surface"
	"github.com/bnema/wayime/internal/textinput"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	// ErrUnknownOp is returned for requests with an op the bridge does not
	// implement.
	ErrUnknownOp = errors.New("unknown op")
	// ErrUnknownSeat is returned for seats the bridge was not configured
	// to serve.
	ErrUnknownSeat = errors.New("unknown seat")
)

// Request ops
const (
	OpBind               = "bind"
	OpEnable             = "enable"
	OpDisable            = "disable"
	OpCommit             = "commit"
	OpSetSurroundingText = "set_surrounding_text"
	OpSetContentType     = "set_content_type"
	OpSetCursorRectangle = "set_cursor_rectangle"
	OpSetTextChangeCause = "set_text_change_cause"
	OpDestroy            = "destroy"
	OpSurfaceCreate      = "surface_create"
	OpSurfaceDestroy     = "surface_destroy"
	OpSetFocus           = "set_focus"
	OpIMEvent            = "im_event"
	OpKeyEvent           = "key_event"
	OpStatus             = ipc.OpStatus
)

// handler serves one request and returns the extra reply fields.
type handler func(s *Server, sess *session, msg *structpb.Struct) (map[string]interface{}, error)

var handlers = map[string]handler{
	OpBind:               (*Server).handleBind,
	OpEnable:             (*Server).handleEnable,
	OpDisable:            resourceRequest(func(ti *textinput.TextInput, res *textinput.Resource) { ti.Disable(res) }),
	OpCommit:             resourceRequest(func(ti *textinput.TextInput, res *textinput.Resource) { ti.Commit(res) }),
	OpSetSurroundingText: (*Server).handleSetSurroundingText,
	OpSetContentType:     (*Server).handleSetContentType,
	OpSetCursorRectangle: (*Server).handleSetCursorRectangle,
	OpSetTextChangeCause: (*Server).handleSetTextChangeCause,
	OpDestroy:            (*Server).handleDestroy,
	OpSurfaceCreate:      (*Server).handleSurfaceCreate,
	OpSurfaceDestroy:     (*Server).handleSurfaceDestroy,
	OpSetFocus:           (*Server).handleSetFocus,
	OpIMEvent:            (*Server).handleIMEvent,
	OpKeyEvent:           (*Server).handleKeyEvent,
	OpStatus:             (*Server).handleStatus,
}

// dispatch runs on the loop. Every request gets exactly one reply carrying
// its sequence number; events it triggers are queued before the reply.
func (s *Server) dispatch(sess *session, msg *structpb.Struct) {
	seq, _ := ipc.Int(msg, ipc.FieldSeq)
	op := ipc.Op(msg)

	h, ok := handlers[op]
	if !ok {
		s.log.Debug("unknown op", "client", sess.client, "op", op)
		s.reply(sess, ipc.NewErrorMessage(seq, fmt.Errorf("%w: %q", ErrUnknownOp, op)))
		return
	}

	fields, err := h(s, sess, msg)
	if err != nil {
		s.log.Debug("request failed", "client", sess.client, "op", op, "err", err)
		s.reply(sess, ipc.NewErrorMessage(seq, err))
		return
	}

	replyOp := ipc.OpOK
	if op == OpStatus {
		replyOp = ipc.OpStatus
	}
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields[ipc.FieldSeq] = seq
	reply, err := ipc.NewMessage(replyOp, fields)
	if err != nil {
		s.reply(sess, ipc.NewErrorMessage(seq, err))
		return
	}
	s.reply(sess, reply)
}

// resource resolves the "resource" field to a resource owned by the
// session's client.
func (s *Server) resource(sess *session, msg *structpb.Struct) (*textinput.TextInput, *textinput.Resource, error) {
	id, err := ipc.RequireInt(msg, "resource")
	if err != nil {
		return nil, nil, err
	}
	ti, res, err := s.manager.Resource(textinput.ResourceID(id))
	if err != nil {
		return nil, nil, err
	}
	if res.Client != sess.client {
		return nil, nil, textinput.ErrUnknownResource
	}
	return ti, res, nil
}

// ownSurface resolves a surface field that must belong to the session.
func (s *Server) ownSurface(sess *session, msg *structpb.Struct, key string) (surface.Handle, error) {
	id, err := ipc.RequireInt(msg, key)
	if err != nil {
		return surface.Handle{}, err
	}
	h := surface.FromID(uint64(id))
	if client, ok := s.arena.Client(h); !ok || client != sess.client {
		return surface.Handle{}, fmt.Errorf("%w: %s", surface.ErrUnknownSurface, h)
	}
	return h, nil
}

// seat returns the text input named by the optional "seat" field. Only
// seats created at startup are served.
func (s *Server) seat(msg *structpb.Struct) (*textinput.TextInput, error) {
	name, ok := ipc.String(msg, "seat")
	if !ok || name == "" {
		name = string(s.opts.Seat)
	}
	ti, ok := s.manager.Lookup(textinput.SeatID(name))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSeat, name)
	}
	return ti, nil
}

func resourceRequest(fn func(*textinput.TextInput, *textinput.Resource)) handler {
	return func(s *Server, sess *session, msg *structpb.Struct) (map[string]interface{}, error) {
		ti, res, err := s.resource(sess, msg)
		if err != nil {
			return nil, err
		}
		fn(ti, res)
		return nil, nil
	}
}

func (s *Server) handleBind(sess *session, msg *structpb.Struct) (map[string]interface{}, error) {
	ti, err := s.seat(msg)
	if err != nil {
		return nil, err
	}
	version, ok := ipc.Int(msg, "version")
	if !ok || version < 0 {
		version = int64(s.manager.MaxVersion())
	}

	s.nextResource++
	id := s.nextResource
	res, err := s.manager.GetTextInput(sess.client, id, ti.Seat(), uint32(version), s.sink(sess))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"resource": uint32(res.ID),
		"version":  res.Version,
		"seat":     string(ti.Seat()),
	}, nil
}

func (s *Server) handleEnable(sess *session, msg *structpb.Struct) (map[string]interface{}, error) {
	ti, res, err := s.resource(sess, msg)
	if err != nil {
		return nil, err
	}
	var h surface.Handle
	if id, ok := ipc.Int(msg, "surface"); ok && id != 0 {
		h = surface.FromID(uint64(id))
	}
	ti.Enable(res, h)
	return nil, nil
}

func (s *Server) handleSetSurroundingText(sess *session, msg *structpb.Struct) (map[string]interface{}, error) {
	ti, res, err := s.resource(sess, msg)
	if err != nil {
		return nil, err
	}
	text, err := ipc.RequireString(msg, "text")
	if err != nil {
		return nil, err
	}
	cursor, err := ipc.RequireInt(msg, "cursor")
	if err != nil {
		return nil, err
	}
	anchor, ok := ipc.Int(msg, "anchor")
	if !ok {
		anchor = cursor
	}
	ti.SetSurroundingText(res, text, int32(cursor), int32(anchor))
	return nil, nil
}

func (s *Server) handleSetContentType(sess *session, msg *structpb.Struct) (map[string]interface{}, error) {
	ti, res, err := s.resource(sess, msg)
	if err != nil {
		return nil, err
	}
	hint, _ := ipc.Int(msg, "hint")
	purpose, _ := ipc.Int(msg, "purpose")
	ti.SetContentType(res, textinput.ContentHint(hint), textinput.ContentPurpose(purpose))
	return nil, nil
}

func (s *Server) handleSetCursorRectangle(sess *session, msg *structpb.Struct) (map[string]interface{}, error) {
	ti, res, err := s.resource(sess, msg)
	if err != nil {
		return nil, err
	}
	var r textinput.Rect
	for key, dst := range map[string]*int32{"x": &r.X, "y": &r.Y, "width": &r.Width, "height": &r.Height} {
		n, err := ipc.RequireInt(msg, key)
		if err != nil {
			return nil, err
		}
		*dst = int32(n)
	}
	ti.SetCursorRectangle(res, r)
	return nil, nil
}

func (s *Server) handleSetTextChangeCause(sess *session, msg *structpb.Struct) (map[string]interface{}, error) {
	ti, res, err := s.resource(sess, msg)
	if err != nil {
		return nil, err
	}
	cause, err := ipc.RequireInt(msg, "cause")
	if err != nil {
		return nil, err
	}
	ti.SetTextChangeCause(res, textinput.ChangeCause(cause))
	return nil, nil
}

func (s *Server) handleDestroy(sess *session, msg *structpb.Struct) (map[string]interface{}, error) {
	_, res, err := s.resource(sess, msg)
	if err != nil {
		return nil, err
	}
	return nil, s.manager.DestroyResource(res.ID)
}

func (s *Server) handleSurfaceCreate(sess *session, _ *structpb.Struct) (map[string]interface{}, error) {
	h := s.arena.Create(sess.client)
	return map[string]interface{}{"surface": h.ID()}, nil
}

func (s *Server) handleSurfaceDestroy(sess *session, msg *structpb.Struct) (map[string]interface{}, error) {
	h, err := s.ownSurface(sess, msg, "surface")
	if err != nil {
		return nil, err
	}
	s.arena.Destroy(h)
	return nil, nil
}

// handleSetFocus plays the compositor's part: any client may move focus,
// which is what test drivers and the replay tool need.
func (s *Server) handleSetFocus(_ *session, msg *structpb.Struct) (map[string]interface{}, error) {
	ti, err := s.seat(msg)
	if err != nil {
		return nil, err
	}
	var h surface.Handle
	if id, ok := ipc.Int(msg, "surface"); ok && id != 0 {
		h = surface.FromID(uint64(id))
		if !s.arena.Alive(h) {
			return nil, fmt.Errorf("%w: %s", surface.ErrUnknownSurface, h)
		}
	}
	ti.SetFocus(h)
	return nil, nil
}

func (s *Server) handleIMEvent(_ *session, msg *structpb.Struct) (map[string]interface{}, error) {
	ev := textinput.InputMethodEvent{}
	ev.Preedit, _ = ipc.String(msg, "preedit")
	ev.Commit, _ = ipc.String(msg, "commit")
	start, _ := ipc.Int(msg, "replacement_start")
	length, _ := ipc.Int(msg, "replacement_length")
	ev.ReplacementStart, ev.ReplacementLength = int(start), int(length)
	ti, err := s.seat(msg)
	if err != nil {
		return nil, err
	}
	ti.SendInputMethodEvent(ev)
	return nil, nil
}

func (s *Server) handleKeyEvent(_ *session, msg *structpb.Struct) (map[string]interface{}, error) {
	text, err := ipc.RequireString(msg, "text")
	if err != nil {
		return nil, err
	}
	ti, err := s.seat(msg)
	if err != nil {
		return nil, err
	}
	ti.SendKeyEvent(text)
	return nil, nil
}

func (s *Server) handleStatus(_ *session, _ *structpb.Struct) (map[string]interface{}, error) {
	return s.status().Fields(), nil
}
