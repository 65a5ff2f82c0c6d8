package surface

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaCreateAndDestroy(t *testing.T) {
	a := NewArena()

	h := a.Create(7)
	require.False(t, h.IsZero())
	assert.True(t, a.Alive(h))
	assert.Equal(t, 1, a.Len())

	client, ok := a.Client(h)
	require.True(t, ok)
	assert.Equal(t, ClientID(7), client)

	assert.True(t, a.Destroy(h))
	assert.False(t, a.Alive(h))
	assert.False(t, a.Destroy(h), "double destroy must be a no-op")
	assert.Equal(t, 0, a.Len())

	_, ok = a.Client(h)
	assert.False(t, ok)
}

func TestArenaStaleHandleAfterReuse(t *testing.T) {
	a := NewArena()

	old := a.Create(1)
	require.True(t, a.Destroy(old))

	reused := a.Create(2)
	assert.Equal(t, old.Index, reused.Index, "slot should be reused")
	assert.NotEqual(t, old.Generation, reused.Generation)

	assert.False(t, a.Alive(old), "stale handle must not resolve to the new surface")
	assert.True(t, a.Alive(reused))
}

func TestZeroHandleNeverResolves(t *testing.T) {
	a := NewArena()
	a.Create(1)

	assert.False(t, a.Alive(Handle{}))
	assert.Nil(t, a.OnDestroy(Handle{}, func(Handle) {}))
	assert.Equal(t, "surface#none", Handle{}.String())
}

func TestHandleIDRoundTrip(t *testing.T) {
	h := Handle{Index: 42, Generation: 3}
	assert.Equal(t, h, FromID(h.ID()))
	assert.Equal(t, "surface#42.3", h.String())
}

func TestDestroyListeners(t *testing.T) {
	t.Run("fires in order while handle still resolves", func(t *testing.T) {
		a := NewArena()
		h := a.Create(1)

		var order []string
		a.OnDestroy(h, func(got Handle) {
			assert.Equal(t, h, got)
			assert.True(t, a.Alive(got))
			order = append(order, "first")
		})
		a.OnDestroy(h, func(Handle) { order = append(order, "second") })

		a.Destroy(h)
		assert.Equal(t, []string{"first", "second"}, order)
	})

	t.Run("reset listener does not fire", func(t *testing.T) {
		a := NewArena()
		h := a.Create(1)

		fired := false
		l := a.OnDestroy(h, func(Handle) { fired = true })
		require.True(t, l.Armed())
		l.Reset()
		l.Reset()
		assert.False(t, l.Armed())

		a.Destroy(h)
		assert.False(t, fired)
	})

	t.Run("nil listener reset is safe", func(t *testing.T) {
		var l *Listener
		assert.NotPanics(t, l.Reset)
		assert.False(t, l.Armed())
	})

	t.Run("listener may create surfaces", func(t *testing.T) {
		a := NewArena()
		h := a.Create(1)

		var created Handle
		a.OnDestroy(h, func(Handle) { created = a.Create(2) })

		require.True(t, a.Destroy(h))
		assert.True(t, a.Alive(created))
		assert.False(t, a.Alive(h))
	})
}

func TestDestroyClient(t *testing.T) {
	a := NewArena()
	a.Create(1)
	a.Create(1)
	keep := a.Create(2)

	assert.Equal(t, 2, a.DestroyClient(1))
	assert.Equal(t, 1, a.Len())
	assert.True(t, a.Alive(keep))
	assert.Equal(t, 0, a.DestroyClient(1))
}
