package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bnema/wayime/internal/logger"
	"github.com/charmbracelet/log"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	flushDelay = 2 * time.Millisecond
	bufferSize = 64 * 1024
)

// ErrSlowPeer is recorded on a connection whose peer stopped reading.
var ErrSlowPeer = errors.New("ipc peer is not reading")

// Limits bounds what a peer that stops reading can cost the writer.
type Limits struct {
	// Outbox is the number of messages queued per connection before the
	// connection is dropped.
	Outbox int
	// WriteTimeout bounds a single socket write.
	WriteTimeout time.Duration
}

// DefaultLimits are used for zero fields.
var DefaultLimits = Limits{Outbox: 1024, WriteTimeout: time.Second}

func (l Limits) withDefaults() Limits {
	if l.Outbox <= 0 {
		l.Outbox = DefaultLimits.Outbox
	}
	if l.WriteTimeout <= 0 {
		l.WriteTimeout = DefaultLimits.WriteTimeout
	}
	return l
}

// Conn is one framed connection. WriteMessage never blocks: messages go
// to a bounded outbox drained by the connection's own writer goroutine.
// Reads belong to the goroutine that serves the connection.
type Conn struct {
	id    uint32
	conn  net.Conn
	bw    *BufferedWriter
	out   chan []byte
	flush chan struct{}
	quit  chan struct{}
	done  chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

var nextConnID atomic.Uint32

func newConn(c net.Conn, limits Limits) *Conn {
	limits = limits.withDefaults()
	conn := &Conn{
		id:    nextConnID.Add(1),
		conn:  c,
		bw:    NewBufferedWriter(deadlineWriter{conn: c, timeout: limits.WriteTimeout}, flushDelay, bufferSize),
		out:   make(chan []byte, limits.Outbox),
		flush: make(chan struct{}, 1),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go conn.writeLoop()
	return conn
}

// deadlineWriter arms a write deadline before every write.
type deadlineWriter struct {
	conn    net.Conn
	timeout time.Duration
}

func (w deadlineWriter) Write(p []byte) (int, error) {
	if err := w.conn.SetWriteDeadline(time.Now().Add(w.timeout)); err != nil {
		return 0, err
	}
	return w.conn.Write(p)
}

// ID identifies the connection for the lifetime of the process.
func (c *Conn) ID() uint32 {
	return c.id
}

// Err returns the error that broke the connection, if any.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// fail records err and closes the socket, which ends the read side too.
func (c *Conn) fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
	c.conn.Close()
}

// ReadMessage reads the next message.
func (c *Conn) ReadMessage() (*structpb.Struct, error) {
	return ReadMessage(c.conn)
}

// WriteMessage queues a message. A full outbox means the peer is not
// keeping up; the connection is dropped instead of waiting for it.
func (c *Conn) WriteMessage(msg *structpb.Struct) error {
	frame, err := encodeFrame(msg)
	if err != nil {
		return err
	}
	if err := c.Err(); err != nil {
		return err
	}
	select {
	case <-c.quit:
		return net.ErrClosed
	default:
	}
	select {
	case c.out <- frame:
		return nil
	default:
		c.fail(fmt.Errorf("%w: %d messages queued", ErrSlowPeer, cap(c.out)))
		return c.Err()
	}
}

// Flush asks the writer to send queued messages now. It does not wait.
func (c *Conn) Flush() error {
	select {
	case c.flush <- struct{}{}:
	default:
	}
	return c.Err()
}

// Close sends what is still queued, within the write timeout, and closes
// the connection.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.quit) })
	<-c.done
	ferr := c.bw.Close()
	cerr := c.conn.Close()
	if errors.Is(ferr, os.ErrDeadlineExceeded) || errors.Is(ferr, net.ErrClosed) {
		ferr = nil
	}
	return errors.Join(ferr, cerr)
}

func (c *Conn) writeLoop() {
	defer close(c.done)
	for {
		select {
		case frame := <-c.out:
			c.write(frame)
			if len(c.out) == 0 {
				c.flushNow()
			}
		case <-c.flush:
			c.flushNow()
		case <-c.quit:
			for {
				select {
				case frame := <-c.out:
					c.write(frame)
				default:
					c.flushNow()
					return
				}
			}
		}
	}
}

func (c *Conn) write(frame []byte) {
	if c.Err() != nil {
		return
	}
	if _, err := c.bw.Write(frame); err != nil {
		c.fail(fmt.Errorf("failed to write message: %w", err))
	}
}

func (c *Conn) flushNow() {
	if c.Err() != nil {
		return
	}
	if err := c.bw.Flush(); err != nil {
		c.fail(fmt.Errorf("failed to flush messages: %w", err))
	}
}

// Handler receives the traffic of every accepted connection. Message is
// called sequentially per connection, in arrival order.
type Handler interface {
	Connected(c *Conn)
	Message(c *Conn, msg *structpb.Struct)
	Disconnected(c *Conn)
}

// SocketServer accepts framed connections on a Unix socket.
type SocketServer struct {
	mu         sync.Mutex
	listener   net.Listener
	socketPath string
	handler    Handler
	wg         sync.WaitGroup
	cancel     context.CancelFunc
	running    bool
	conns      map[*Conn]struct{}
	limits     Limits
	log        *log.Logger
}

// ServerOption configures a SocketServer.
type ServerOption func(*SocketServer)

// WithLimits sets the per-connection write limits.
func WithLimits(l Limits) ServerOption {
	return func(s *SocketServer) {
		s.limits = l
	}
}

// NewSocketServer creates a server for socketPath. An empty path uses
// DefaultSocketPath.
func NewSocketServer(socketPath string, handler Handler, opts ...ServerOption) (*SocketServer, error) {
	if socketPath == "" {
		var err error
		if socketPath, err = DefaultSocketPath(); err != nil {
			return nil, fmt.Errorf("failed to get socket path: %w", err)
		}
	}
	s := &SocketServer{
		socketPath: socketPath,
		handler:    handler,
		conns:      make(map[*Conn]struct{}),
		limits:     DefaultLimits,
		log:        logger.With("ipc"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the socket path.
func (s *SocketServer) Path() string {
	return s.socketPath
}

// Start listens on the socket and accepts connections in the background.
func (s *SocketServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if err := os.RemoveAll(s.socketPath); err != nil {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create socket listener: %w", err)
	}

	// Set socket permissions (user only)
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.listener = listener
	s.running = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.acceptConnections(ctx)

	s.log.Info("listening", "socket", s.socketPath)
	return nil
}

// Stop closes the listener and every connection, then waits for the
// connection goroutines to finish.
func (s *SocketServer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.listener.Close()
	for c := range s.conns {
		c.conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	os.RemoveAll(s.socketPath)
	s.log.Info("stopped")
}

func (s *SocketServer) acceptConnections(ctx context.Context) {
	defer s.wg.Done()

	for {
		nc, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Error("failed to accept connection", "err", err)
			continue
		}

		c := newConn(nc, s.limits)
		s.mu.Lock()
		s.conns[c] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConnection(c)
	}
}

func (s *SocketServer) handleConnection(c *Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		s.handler.Disconnected(c)
		c.Close()
	}()

	s.log.Debug("connection established", "conn", c.id)
	s.handler.Connected(c)

	for {
		msg, err := c.ReadMessage()
		if err != nil {
			if errors.Is(err, ErrMessageTooLarge) {
				_ = c.WriteMessage(NewErrorMessage(0, err))
			}
			if werr := c.Err(); werr != nil {
				s.log.Warn("dropping connection", "conn", c.id, "err", werr)
			} else {
				s.log.Debug("connection closed", "conn", c.id, "err", err)
			}
			return
		}
		s.handler.Message(c, msg)
	}
}

// DefaultSocketPath returns $XDG_RUNTIME_DIR/wayime.sock, or a per-user
// path in /tmp when no runtime directory is set.
func DefaultSocketPath() (string, error) {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "wayime.sock"), nil
	}
	currentUser, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("failed to get current user: %w", err)
	}
	return filepath.Join("/tmp", fmt.Sprintf("wayime-%s.sock", currentUser.Username)), nil
}
