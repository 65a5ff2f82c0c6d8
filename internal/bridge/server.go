package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/bnema/wayime/internal/ipc"
	"github.com/bnema/wayime/internal/logger"
	"github.com/bnema/wayime/internal/surface"
	"github.com/bnema/wayime/internal/textinput"
	"github.com/charmbracelet/log"
	"google.golang.org/protobuf/types/known/structpb"
)

// DefaultSeat is used by requests that do not name a seat.
const DefaultSeat textinput.SeatID = "seat0"

// HostFactory creates the host input method for a seat. It runs once per
// seat while the server starts, before any client is accepted.
type HostFactory func(ctx context.Context, ti *textinput.TextInput, post func(func())) textinput.Host

// Options configures a Server.
type Options struct {
	SocketPath string
	// Seat is the default seat. Seats lists any further seats served;
	// requests naming other seats are rejected.
	Seat       textinput.SeatID
	Seats      []textinput.SeatID
	Policy     textinput.FlushPolicy
	MaxVersion uint32
	Hosts      HostFactory
	QueueSize  int
	Limits     ipc.Limits
}

// Server connects IPC clients to the text-input core.
type Server struct {
	opts    Options
	loop    *Loop
	socket  *ipc.SocketServer
	arena   *surface.Arena
	manager *textinput.Manager
	log     *log.Logger
	started time.Time

	// Loop-owned.
	ctx          context.Context
	sessions     map[uint32]*session
	dirty        map[*session]struct{}
	nextResource textinput.ResourceID
	enabled      map[surface.Handle]struct{}
}

type session struct {
	conn   *ipc.Conn
	client surface.ClientID
}

// NewServer creates a server. Nothing runs until Run.
func NewServer(opts Options) (*Server, error) {
	if opts.Seat == "" {
		opts.Seat = DefaultSeat
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}

	s := &Server{
		opts:     opts,
		loop:     NewLoop(opts.QueueSize),
		arena:    surface.NewArena(),
		log:      logger.With("bridge"),
		ctx:      context.Background(),
		sessions: make(map[uint32]*session),
		dirty:    make(map[*session]struct{}),
		enabled:  make(map[surface.Handle]struct{}),
	}

	mopts := []textinput.ManagerOption{
		textinput.WithManagerPolicy(opts.Policy),
		textinput.WithManagerObserver(s),
	}
	if opts.MaxVersion != 0 {
		mopts = append(mopts, textinput.WithMaxVersion(opts.MaxVersion))
	}
	if opts.Hosts != nil {
		mopts = append(mopts, textinput.WithHostFactory(func(ti *textinput.TextInput) textinput.Host {
			return opts.Hosts(s.ctx, ti, s.loop.Post)
		}))
	}
	s.manager = textinput.NewManager(s.arena, mopts...)

	socket, err := ipc.NewSocketServer(opts.SocketPath, s, ipc.WithLimits(opts.Limits))
	if err != nil {
		return nil, err
	}
	s.socket = socket
	return s, nil
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string {
	return s.socket.Path()
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.ctx = ctx
	s.started = time.Now()

	// Seats and their hosts exist before the socket accepts anyone, so no
	// request ever creates a seat or waits on a host connection.
	for _, seat := range s.seats() {
		s.manager.TextInput(seat)
	}

	if err := s.socket.Start(); err != nil {
		return fmt.Errorf("failed to start socket: %w", err)
	}
	defer s.socket.Stop()

	s.log.Info("bridge running", "socket", s.socket.Path(), "seats", len(s.seats()), "default_seat", s.opts.Seat, "max_version", s.manager.MaxVersion())
	err := s.loop.Run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}

// seats returns the default seat followed by the other configured seats,
// without duplicates.
func (s *Server) seats() []textinput.SeatID {
	seen := map[textinput.SeatID]bool{s.opts.Seat: true}
	seats := []textinput.SeatID{s.opts.Seat}
	for _, seat := range s.opts.Seats {
		if seat == "" || seen[seat] {
			continue
		}
		seen[seat] = true
		seats = append(seats, seat)
	}
	return seats
}

// SetPolicy replaces the flush policy of every seat.
func (s *Server) SetPolicy(p textinput.FlushPolicy) {
	s.loop.Post(func() {
		s.manager.SetPolicy(p)
		s.log.Info("flush policy updated", "module", p.Module, "locale", p.Locale, "commit_before_leave", p.CommitBeforeLeave())
	})
}

// Connected implements ipc.Handler.
func (s *Server) Connected(c *ipc.Conn) {
	s.loop.Post(func() {
		sess := &session{conn: c, client: surface.ClientID(c.ID())}
		s.sessions[c.ID()] = sess
		s.log.Debug("client connected", "client", sess.client)
	})
}

// Message implements ipc.Handler.
func (s *Server) Message(c *ipc.Conn, msg *structpb.Struct) {
	s.loop.Post(func() {
		sess, ok := s.sessions[c.ID()]
		if !ok {
			return
		}
		s.dispatch(sess, msg)
		s.flush()
	})
}

// Disconnected implements ipc.Handler.
func (s *Server) Disconnected(c *ipc.Conn) {
	s.loop.Post(func() {
		sess, ok := s.sessions[c.ID()]
		if !ok {
			return
		}
		delete(s.sessions, c.ID())
		delete(s.dirty, sess)

		resources := s.manager.DestroyClient(sess.client)
		surfaces := s.arena.DestroyClient(sess.client)
		s.flush()
		s.log.Debug("client disconnected", "client", sess.client, "resources", resources, "surfaces", surfaces)
	})
}

// SurfaceEnabled implements textinput.Observer.
func (s *Server) SurfaceEnabled(h surface.Handle) {
	s.enabled[h] = struct{}{}
	s.log.Debug("surface input enabled", "surface", h)
}

// SurfaceDisabled implements textinput.Observer.
func (s *Server) SurfaceDisabled(h surface.Handle) {
	// Another resource may still have it enabled.
	if !s.manager.IsSurfaceEnabled(h) {
		delete(s.enabled, h)
	}
	s.log.Debug("surface input disabled", "surface", h)
}

// sink returns the event sink of a session.
func (s *Server) sink(sess *session) textinput.EventSink {
	return textinput.EventSinkFunc(func(e textinput.Event) {
		if err := sess.conn.WriteMessage(eventMessage(e)); err != nil {
			s.log.Warn("failed to send event", "client", sess.client, "event", e, "err", err)
			return
		}
		s.dirty[sess] = struct{}{}
	})
}

func (s *Server) reply(sess *session, msg *structpb.Struct) {
	if err := sess.conn.WriteMessage(msg); err != nil {
		s.log.Warn("failed to send reply", "client", sess.client, "err", err)
		return
	}
	s.dirty[sess] = struct{}{}
}

func (s *Server) flush() {
	for sess := range s.dirty {
		if err := sess.conn.Flush(); err != nil {
			s.log.Debug("flush failed", "client", sess.client, "err", err)
		}
		delete(s.dirty, sess)
	}
}

func eventMessage(e textinput.Event) *structpb.Struct {
	fields := map[string]*structpb.Value{
		ipc.FieldOp:   structpb.NewStringValue(ipc.OpEvent),
		ipc.FieldName: structpb.NewStringValue(e.Op.String()),
		"resource":    structpb.NewNumberValue(float64(e.Resource)),
	}
	switch e.Op {
	case textinput.OpEnter, textinput.OpLeave:
		fields["surface"] = structpb.NewNumberValue(float64(e.Surface.ID()))
	case textinput.OpPreeditString:
		fields["text"] = structpb.NewStringValue(e.Text)
		fields["cursor_begin"] = structpb.NewNumberValue(float64(e.CursorBegin))
		fields["cursor_end"] = structpb.NewNumberValue(float64(e.CursorEnd))
	case textinput.OpCommitString:
		fields["text"] = structpb.NewStringValue(e.Text)
	case textinput.OpDeleteSurroundingText:
		fields["before_length"] = structpb.NewNumberValue(float64(e.BeforeLength))
		fields["after_length"] = structpb.NewNumberValue(float64(e.AfterLength))
	case textinput.OpDone:
		fields["serial"] = structpb.NewNumberValue(float64(e.Serial))
	}
	return &structpb.Struct{Fields: fields}
}
