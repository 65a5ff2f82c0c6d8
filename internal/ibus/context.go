package ibus

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/wayime/internal/logger"
	"github.com/godbus/dbus/v5"
)

// IBus D-Bus names
const (
	busService          = "org.freedesktop.IBus"
	busPath             = "/org/freedesktop/IBus"
	busInterface        = "org.freedesktop.IBus"
	portalService       = "org.freedesktop.portal.IBus"
	portalInterface     = "org.freedesktop.IBus.Portal"
	inputContextIface   = "org.freedesktop.IBus.InputContext"
	clientName          = "wayime"
	envAddress          = "IBUS_ADDRESS"
	addressFilePrefix   = "IBUS_ADDRESS="
	defaultCapabilities = capPreeditText | capFocus | capSurroundingText
)

// IBus capability flags
const (
	capPreeditText     uint32 = 1 << 0
	capFocus           uint32 = 1 << 3
	capSurroundingText uint32 = 1 << 5
)

// inputContext is the part of org.freedesktop.IBus.InputContext the host
// drives.
type inputContext interface {
	FocusIn() error
	FocusOut() error
	Reset() error
	SetCapabilities(caps uint32) error
	SetSurroundingText(text dbus.Variant, cursor, anchor uint32) error
	SetCursorLocationRelative(x, y, w, h int32) error
	SetContentType(purpose, hints uint32) error
}

// callTimeout bounds how long a reply is awaited in the background.
const callTimeout = 2 * time.Second

// busContext sends input context calls without waiting for their replies,
// so a stuck daemon never holds up the event loop. Reply errors are
// logged when they arrive.
type busContext struct {
	obj     dbus.BusObject
	timeout time.Duration
}

func (c busContext) call(method string, args ...interface{}) error {
	timeout := c.timeout
	if timeout <= 0 {
		timeout = callTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	call := c.obj.GoWithContext(ctx, inputContextIface+"."+method, 0, nil, args...)
	go func() {
		defer cancel()
		<-call.Done
		if call.Err != nil {
			logger.Warnf("ibus %s failed: %v", method, call.Err)
		}
	}()
	return nil
}

// callSync waits for the reply. Only used while opening and closing a
// session, off the event loop's request path.
func (c busContext) callSync(ctx context.Context, method string, args ...interface{}) error {
	if err := c.obj.CallWithContext(ctx, inputContextIface+"."+method, 0, args...).Err; err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

func (c busContext) FocusIn() error  { return c.call("FocusIn") }
func (c busContext) FocusOut() error { return c.call("FocusOut") }
func (c busContext) Reset() error    { return c.call("Reset") }

func (c busContext) SetCapabilities(caps uint32) error {
	return c.call("SetCapabilities", caps)
}

func (c busContext) SetSurroundingText(text dbus.Variant, cursor, anchor uint32) error {
	return c.call("SetSurroundingText", text, cursor, anchor)
}

func (c busContext) SetCursorLocationRelative(x, y, w, h int32) error {
	return c.call("SetCursorLocationRelative", x, y, w, h)
}

func (c busContext) SetContentType(purpose, hints uint32) error {
	return c.call("SetContentType", purpose, hints)
}

// Session is a connection to IBus with one input context.
type Session struct {
	conn    *dbus.Conn
	service string
	path    dbus.ObjectPath
	ctx     busContext
}

// Open connects to IBus at address and creates an input context. An empty
// address goes through the IBus portal on the session bus.
func Open(ctx context.Context, address string) (*Session, error) {
	var (
		conn    *dbus.Conn
		err     error
		service = busService
		iface   = busInterface
	)
	if address != "" {
		conn, err = dbus.Connect(address, dbus.WithContext(ctx))
	} else {
		conn, err = dbus.ConnectSessionBus(dbus.WithContext(ctx))
		service, iface = portalService, portalInterface
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ibus: %w", err)
	}

	var path dbus.ObjectPath
	err = conn.Object(service, busPath).CallWithContext(ctx, iface+".CreateInputContext", 0, clientName).Store(&path)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create input context: %w", err)
	}

	s := &Session{
		conn:    conn,
		service: service,
		path:    path,
		ctx:     busContext{obj: conn.Object(service, path)},
	}
	if err := s.ctx.callSync(ctx, "SetCapabilities", defaultCapabilities); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the object path of the input context.
func (s *Session) Path() dbus.ObjectPath {
	return s.path
}

// Signals subscribes to the input context's signals. The channel is closed
// when the connection closes.
func (s *Session) Signals() (<-chan *dbus.Signal, error) {
	err := s.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(s.path),
		dbus.WithMatchInterface(inputContextIface),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to input context signals: %w", err)
	}
	ch := make(chan *dbus.Signal, 64)
	s.conn.Signal(ch)
	return ch, nil
}

// Close destroys the input context and closes the connection.
func (s *Session) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	if err := s.ctx.callSync(ctx, "Destroy"); err != nil {
		logger.Debugf("ibus destroy: %v", err)
	}
	return s.conn.Close()
}

// Address resolves the IBus bus address. An explicit address wins, then
// $IBUS_ADDRESS, then the address file the IBus daemon writes for the
// current display. An empty result means the portal should be used.
func Address(configured string) string {
	if configured != "" {
		return configured
	}
	if env := os.Getenv(envAddress); env != "" {
		return env
	}
	path, err := addressFile()
	if err != nil {
		return ""
	}
	return readAddressFile(path)
}

// addressFile returns ~/.config/ibus/bus/<machine-id>-unix-<display>.
func addressFile() (string, error) {
	id, err := os.ReadFile("/etc/machine-id")
	if err != nil {
		id, err = os.ReadFile("/var/lib/dbus/machine-id")
		if err != nil {
			return "", err
		}
	}

	display := os.Getenv("WAYLAND_DISPLAY")
	if display == "" {
		display = "wayland-0"
	}

	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".config")
	}
	name := fmt.Sprintf("%s-unix-%s", strings.TrimSpace(string(id)), display)
	return filepath.Join(dir, "ibus", "bus", name), nil
}

func readAddressFile(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, addressFilePrefix) {
			return strings.TrimPrefix(line, addressFilePrefix)
		}
	}
	return ""
}
