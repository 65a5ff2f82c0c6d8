package bridge

import (
	"context"
	"net"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/wayime/internal/ipc"
	"github.com/bnema/wayime/internal/textinput"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestLoopRunsTasksInOrder(t *testing.T) {
	loop := NewLoop(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		loop.Post(func() { got = append(got, i) })
	}
	require.NoError(t, loop.Do(ctx, func() {}))

	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestLoopStops(t *testing.T) {
	loop := NewLoop(1)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- loop.Run(ctx) }()

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
	<-loop.Done()

	assert.ErrorIs(t, loop.Do(context.Background(), func() {}), ErrLoopStopped)
	loop.Post(func() { t.Error("posted after stop") })
}

type countingHost struct {
	textinput.NopHost
	shows *atomic.Int32
}

func (h countingHost) Show() { h.shows.Add(1) }

func startServer(t *testing.T, opts Options) *Server {
	t.Helper()
	opts.SocketPath = filepath.Join(t.TempDir(), "wayime.sock")
	srv, err := NewServer(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- srv.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-errc)
	})

	require.Eventually(t, func() bool {
		c, err := ipc.Dial(context.Background(), srv.SocketPath())
		if err != nil {
			return false
		}
		c.Close()
		return true
	}, 2*time.Second, 5*time.Millisecond)
	return srv
}

func dial(t *testing.T, srv *Server) *ipc.Client {
	t.Helper()
	c, err := ipc.Dial(context.Background(), srv.SocketPath())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func call(t *testing.T, c *ipc.Client, op string, fields map[string]interface{}) *structpb.Struct {
	t.Helper()
	msg, err := ipc.NewMessage(op, fields)
	require.NoError(t, err)
	reply, err := c.Call(msg)
	require.NoError(t, err, op)
	return reply
}

func integer(t *testing.T, msg *structpb.Struct, key string) int64 {
	t.Helper()
	n, ok := ipc.Int(msg, key)
	require.True(t, ok, "field %s", key)
	return n
}

func nextEvent(t *testing.T, c *ipc.Client) (string, *structpb.Struct) {
	t.Helper()
	ev, err := c.Next(time.Second)
	require.NoError(t, err)
	name, _ := ipc.String(ev, ipc.FieldName)
	return name, ev
}

func TestServerTextInputSession(t *testing.T) {
	shows := &atomic.Int32{}
	srv := startServer(t, Options{
		Policy: textinput.DefaultFlushPolicy(),
		Hosts: func(_ context.Context, _ *textinput.TextInput, _ func(func())) textinput.Host {
			return countingHost{shows: shows}
		},
	})
	c := dial(t, srv)

	surf := integer(t, call(t, c, OpSurfaceCreate, nil), "surface")
	bound := call(t, c, OpBind, map[string]interface{}{"version": 5})
	res := integer(t, bound, "resource")
	assert.Equal(t, int64(textinput.MaxVersion), integer(t, bound, "version"))

	call(t, c, OpSetFocus, map[string]interface{}{"surface": surf})
	name, ev := nextEvent(t, c)
	assert.Equal(t, "enter", name)
	assert.Equal(t, surf, integer(t, ev, "surface"))

	call(t, c, OpEnable, map[string]interface{}{"resource": res, "surface": surf})
	call(t, c, OpSetSurroundingText, map[string]interface{}{"resource": res, "text": "hello", "cursor": 2, "anchor": 2})
	call(t, c, OpCommit, map[string]interface{}{"resource": res})
	assert.Equal(t, int32(1), shows.Load())

	call(t, c, OpIMEvent, map[string]interface{}{"preedit": "wor"})
	name, ev = nextEvent(t, c)
	assert.Equal(t, "preedit_string", name)
	assert.Equal(t, int64(3), integer(t, ev, "cursor_begin"))
	name, ev = nextEvent(t, c)
	assert.Equal(t, "done", name)
	assert.Equal(t, int64(1), integer(t, ev, "serial"))

	status := ParseStatus(call(t, c, OpStatus, nil))
	assert.Equal(t, 1, status.Clients)
	assert.Equal(t, 1, status.Surfaces)
	assert.Equal(t, 1, status.EnabledSurfaces)
	require.Len(t, status.Seats, 1)
	seat := status.Seats[0]
	assert.Equal(t, string(DefaultSeat), seat.Seat)
	assert.Equal(t, "hello", seat.SurroundingText)
	assert.Equal(t, 2, seat.Cursor)
	assert.Equal(t, "wor", seat.Preedit)
	assert.Equal(t, uint32(res), seat.FocusResource)
	assert.Equal(t, []uint32{uint32(res)}, seat.Enabled)
	assert.NotEmpty(t, seat.History)

	call(t, c, OpSurfaceDestroy, map[string]interface{}{"surface": surf})
	name, _ = nextEvent(t, c)
	assert.Equal(t, "leave", name)
}

func TestServerFocusMovesBetweenClients(t *testing.T) {
	srv := startServer(t, Options{})
	a := dial(t, srv)
	b := dial(t, srv)

	sa := integer(t, call(t, a, OpSurfaceCreate, nil), "surface")
	call(t, a, OpBind, nil)
	sb := integer(t, call(t, b, OpSurfaceCreate, nil), "surface")
	call(t, b, OpBind, nil)

	call(t, a, OpSetFocus, map[string]interface{}{"surface": sa})
	name, _ := nextEvent(t, a)
	require.Equal(t, "enter", name)

	call(t, a, OpSetFocus, map[string]interface{}{"surface": sb})
	name, ev := nextEvent(t, a)
	assert.Equal(t, "leave", name)
	assert.Equal(t, sa, integer(t, ev, "surface"))
	name, ev = nextEvent(t, b)
	assert.Equal(t, "enter", name)
	assert.Equal(t, sb, integer(t, ev, "surface"))
}

func TestServerRejectsBadRequests(t *testing.T) {
	srv := startServer(t, Options{})
	a := dial(t, srv)
	b := dial(t, srv)

	res := integer(t, call(t, a, OpBind, nil), "resource")
	surf := integer(t, call(t, a, OpSurfaceCreate, nil), "surface")

	tests := []struct {
		name   string
		op     string
		fields map[string]interface{}
		want   string
	}{
		{"unknown op", "frobnicate", nil, "unknown op"},
		{"missing resource", OpCommit, nil, "missing field: resource"},
		{"foreign resource", OpCommit, map[string]interface{}{"resource": res}, "unknown text-input resource"},
		{"foreign surface", OpSurfaceDestroy, map[string]interface{}{"surface": surf}, "unknown surface"},
		{"dead focus surface", OpSetFocus, map[string]interface{}{"surface": 99}, "unknown surface"},
		{"missing text", OpKeyEvent, nil, "missing field: text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ipc.NewMessage(tt.op, tt.fields)
			require.NoError(t, err)
			_, err = b.Call(msg)
			assert.ErrorContains(t, err, tt.want)
		})
	}

	// The connection survives errors.
	call(t, b, OpStatus, nil)
}

func TestServerDisconnectCleansUp(t *testing.T) {
	srv := startServer(t, Options{})
	a, err := ipc.Dial(context.Background(), srv.SocketPath())
	require.NoError(t, err)
	observer := dial(t, srv)

	surf := integer(t, call(t, a, OpSurfaceCreate, nil), "surface")
	res := integer(t, call(t, a, OpBind, nil), "resource")
	call(t, a, OpSetFocus, map[string]interface{}{"surface": surf})
	call(t, a, OpEnable, map[string]interface{}{"resource": res})
	require.NoError(t, a.Close())

	assert.Eventually(t, func() bool {
		st := ParseStatus(call(t, observer, OpStatus, nil))
		return st.Clients == 1 && st.Surfaces == 0 && st.EnabledSurfaces == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServerServesOnlyConfiguredSeats(t *testing.T) {
	srv := startServer(t, Options{Seats: []textinput.SeatID{"seat1", DefaultSeat, "seat1"}})
	c := dial(t, srv)

	st := ParseStatus(call(t, c, OpStatus, nil))
	require.Len(t, st.Seats, 2)
	assert.Equal(t, "seat0", st.Seats[0].Seat)
	assert.Equal(t, "seat1", st.Seats[1].Seat)

	bound := call(t, c, OpBind, map[string]interface{}{"seat": "seat1"})
	seat, _ := ipc.String(bound, "seat")
	assert.Equal(t, "seat1", seat)

	for _, op := range []string{OpBind, OpSetFocus, OpIMEvent, OpKeyEvent} {
		t.Run(op, func(t *testing.T) {
			msg, err := ipc.NewMessage(op, map[string]interface{}{"seat": "seat9", "text": "x"})
			require.NoError(t, err)
			_, err = c.Call(msg)
			assert.ErrorContains(t, err, "unknown seat")
		})
	}

	st = ParseStatus(call(t, c, OpStatus, nil))
	assert.Len(t, st.Seats, 2)
}

func TestServerDropsClientThatStopsReading(t *testing.T) {
	srv := startServer(t, Options{Limits: ipc.Limits{Outbox: 16, WriteTimeout: 100 * time.Millisecond}})
	good := dial(t, srv)
	good.SetTimeout(2 * time.Second)

	idle, err := net.Dial("unix", srv.SocketPath())
	require.NoError(t, err)
	defer idle.Close()
	go func() {
		for i := 0; ; i++ {
			req, _ := ipc.NewMessage(OpStatus, map[string]interface{}{ipc.FieldSeq: i})
			if err := ipc.WriteMessage(idle, req); err != nil {
				return
			}
		}
	}()

	assert.Eventually(t, func() bool {
		st := ParseStatus(call(t, good, OpStatus, nil))
		return st.Clients == 1
	}, 5*time.Second, 20*time.Millisecond)

	surf := integer(t, call(t, good, OpSurfaceCreate, nil), "surface")
	call(t, good, OpBind, nil)
	call(t, good, OpSetFocus, map[string]interface{}{"surface": surf})
	name, _ := nextEvent(t, good)
	assert.Equal(t, "enter", name)
}
