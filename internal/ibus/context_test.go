package ibus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bnema/wayime/internal/surface"
	"github.com/bnema/wayime/internal/textinput"
	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stalledObject is an input context whose daemon never answers. Replies
// only arrive when the call's context expires.
type stalledObject struct {
	dbus.BusObject

	mu      sync.Mutex
	methods []string
	expired int
}

func (o *stalledObject) GoWithContext(ctx context.Context, method string, _ dbus.Flags, ch chan *dbus.Call, args ...interface{}) *dbus.Call {
	o.mu.Lock()
	o.methods = append(o.methods, method)
	o.mu.Unlock()

	if ch == nil {
		ch = make(chan *dbus.Call, 1)
	}
	call := &dbus.Call{Method: method, Args: args, Done: ch}
	go func() {
		<-ctx.Done()
		o.mu.Lock()
		o.expired++
		o.mu.Unlock()
		call.Err = ctx.Err()
		ch <- call
	}()
	return call
}

func (o *stalledObject) CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call {
	call := o.GoWithContext(ctx, method, flags, nil, args...)
	return <-call.Done
}

func (o *stalledObject) snapshot() ([]string, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.methods...), o.expired
}

func TestBusContextDoesNotWaitForReplies(t *testing.T) {
	obj := &stalledObject{}
	ic := busContext{obj: obj, timeout: 50 * time.Millisecond}

	start := time.Now()
	require.NoError(t, ic.FocusIn())
	require.NoError(t, ic.SetSurroundingText(NewText("hi"), 1, 1))
	require.NoError(t, ic.Reset())
	assert.Less(t, time.Since(start), 40*time.Millisecond)

	methods, _ := obj.snapshot()
	assert.Equal(t, []string{
		inputContextIface + ".FocusIn",
		inputContextIface + ".SetSurroundingText",
		inputContextIface + ".Reset",
	}, methods)

	assert.Eventually(t, func() bool {
		_, expired := obj.snapshot()
		return expired == 3
	}, time.Second, 5*time.Millisecond)
}

func TestBusContextCallSyncReportsTimeout(t *testing.T) {
	ic := busContext{obj: &stalledObject{}}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := ic.callSync(ctx, "Destroy")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorContains(t, err, "Destroy")
}

func TestHostKeepsLoopRunningWhenDaemonHangs(t *testing.T) {
	obj := &stalledObject{}
	arena := surface.NewArena()
	ti := textinput.New("seat0", arena)
	host := NewHost(ti, busContext{obj: obj, timeout: 100 * time.Millisecond}, func(fn func()) { fn() })
	ti.SetHost(host)

	s := arena.Create(1)
	var events []string
	res, err := ti.Bind(1, 1, textinput.MaxVersion, textinput.EventSinkFunc(func(e textinput.Event) {
		events = append(events, e.String())
	}))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ti.SetFocus(s)
		ti.Enable(res, s)
		ti.SetSurroundingText(res, "hello", 2, 2)
		ti.Commit(res)
		ti.SetFocus(surface.Handle{})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("text input handlers blocked on the input method daemon")
	}
	assert.Contains(t, events, "leave("+s.String()+")")

	methods, _ := obj.snapshot()
	assert.Contains(t, methods, inputContextIface+".SetSurroundingText")
}
