package collab

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// publishRecorder, yayınlanan cursor hareketlerini toplar.
type publishRecorder struct {
	mu    sync.Mutex
	moves []CursorMove
}

func (r *publishRecorder) publish(m CursorMove) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.moves = append(r.moves, m)
}

func (r *publishRecorder) all() []CursorMove {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CursorMove, len(r.moves))
	copy(out, r.moves)
	return out
}

func TestCursorColor(t *testing.T) {
	t.Run("deterministic for same user", func(t *testing.T) {
		assert.Equal(t, CursorColor("user-1"), CursorColor("user-1"))
		assert.Equal(t, CursorColor("user-2"), CursorColor("user-2"))
	})

	t.Run("always from palette", func(t *testing.T) {
		for _, id := range []string{"", "a", "user-42", "f2a9c1d4e8b37650"} {
			assert.Contains(t, cursorPalette, CursorColor(id))
		}
	})
}

func TestCursorBroadcasterThrottle(t *testing.T) {
	t.Run("coalesces burst into last position", func(t *testing.T) {
		rec := &publishRecorder{}
		c := NewCursorBroadcaster("user-1", "Ada", nil, rec.publish, nil, nil,
			WithThrottle(30*time.Millisecond))
		defer c.Close()

		// Pencere içinde üç hareket — sadece SON konum yayınlanmalı
		c.Move(1, 1)
		c.Move(2, 2)
		c.Move(9, 9)

		require.Eventually(t, func() bool {
			return len(rec.all()) == 1
		}, time.Second, 5*time.Millisecond)

		moves := rec.all()
		assert.Equal(t, 9.0, moves[0].X)
		assert.Equal(t, 9.0, moves[0].Y)
		assert.Equal(t, "user-1", moves[0].UserID)
		assert.Equal(t, "Ada", moves[0].UserName)
		assert.Equal(t, CursorColor("user-1"), moves[0].Color)
	})

	t.Run("separate windows publish separately", func(t *testing.T) {
		rec := &publishRecorder{}
		c := NewCursorBroadcaster("user-1", "Ada", nil, rec.publish, nil, nil,
			WithThrottle(10*time.Millisecond))
		defer c.Close()

		c.Move(1, 1)
		require.Eventually(t, func() bool { return len(rec.all()) == 1 }, time.Second, 2*time.Millisecond)

		c.Move(2, 2)
		require.Eventually(t, func() bool { return len(rec.all()) == 2 }, time.Second, 2*time.Millisecond)

		moves := rec.all()
		assert.Equal(t, 1.0, moves[0].X)
		assert.Equal(t, 2.0, moves[1].X)
	})

	t.Run("no publish after close", func(t *testing.T) {
		rec := &publishRecorder{}
		c := NewCursorBroadcaster("user-1", "Ada", nil, rec.publish, nil, nil,
			WithThrottle(10*time.Millisecond))

		c.Move(5, 5)
		c.Close()

		time.Sleep(30 * time.Millisecond)
		assert.Empty(t, rec.all())
	})
}

func TestCursorBroadcasterApplyRemote(t *testing.T) {
	t.Run("ignores own echo", func(t *testing.T) {
		c := NewCursorBroadcaster("user-1", "Ada", nil, func(CursorMove) {}, nil, nil)
		defer c.Close()

		c.ApplyRemote(CursorMove{UserID: "user-1", X: 3, Y: 4})
		assert.Empty(t, c.Cursors())
	})

	t.Run("ignores empty user id", func(t *testing.T) {
		c := NewCursorBroadcaster("user-1", "Ada", nil, func(CursorMove) {}, nil, nil)
		defer c.Close()

		c.ApplyRemote(CursorMove{UserID: "", X: 3, Y: 4})
		assert.Empty(t, c.Cursors())
	})

	t.Run("tracks remote cursors and notifies", func(t *testing.T) {
		var mu sync.Mutex
		var updates []CursorMove
		c := NewCursorBroadcaster("user-1", "Ada", nil, func(CursorMove) {},
			func(m CursorMove) {
				mu.Lock()
				updates = append(updates, m)
				mu.Unlock()
			}, nil)
		defer c.Close()

		c.ApplyRemote(CursorMove{UserID: "user-2", UserName: "Banu", X: 10, Y: 20})
		c.ApplyRemote(CursorMove{UserID: "user-2", UserName: "Banu", X: 11, Y: 21})

		cursors := c.Cursors()
		require.Len(t, cursors, 1)
		assert.Equal(t, 11.0, cursors["user-2"].X)

		mu.Lock()
		assert.Len(t, updates, 2)
		mu.Unlock()
	})

	t.Run("stale cursor expires", func(t *testing.T) {
		expired := make(chan string, 1)
		c := NewCursorBroadcaster("user-1", "Ada", nil, func(CursorMove) {},
			nil, func(userID string) { expired <- userID },
			WithExpiry(20*time.Millisecond))
		defer c.Close()

		c.ApplyRemote(CursorMove{UserID: "user-2", X: 1, Y: 1})

		select {
		case id := <-expired:
			assert.Equal(t, "user-2", id)
		case <-time.After(time.Second):
			t.Fatal("cursor did not expire")
		}
		assert.Empty(t, c.Cursors())
	})

	t.Run("movement resets expiry", func(t *testing.T) {
		expired := make(chan string, 1)
		c := NewCursorBroadcaster("user-1", "Ada", nil, func(CursorMove) {},
			nil, func(userID string) { expired <- userID },
			WithExpiry(50*time.Millisecond))
		defer c.Close()

		c.ApplyRemote(CursorMove{UserID: "user-2", X: 1, Y: 1})
		time.Sleep(30 * time.Millisecond)
		c.ApplyRemote(CursorMove{UserID: "user-2", X: 2, Y: 2})
		time.Sleep(30 * time.Millisecond)

		// İkinci hareket süreyi tazeledi — henüz expire olmamalı
		select {
		case <-expired:
			t.Fatal("cursor expired despite fresh movement")
		default:
		}
		assert.Len(t, c.Cursors(), 1)
	})
}

func TestCursorBroadcasterRemove(t *testing.T) {
	t.Run("removes immediately without waiting expiry", func(t *testing.T) {
		expired := make(chan string, 1)
		c := NewCursorBroadcaster("user-1", "Ada", nil, func(CursorMove) {},
			nil, func(userID string) { expired <- userID },
			WithExpiry(time.Hour))
		defer c.Close()

		c.ApplyRemote(CursorMove{UserID: "user-2", X: 1, Y: 1})
		c.Remove("user-2")

		select {
		case id := <-expired:
			assert.Equal(t, "user-2", id)
		case <-time.After(time.Second):
			t.Fatal("remove did not notify")
		}
		assert.Empty(t, c.Cursors())
	})

	t.Run("removing unknown cursor is a no-op", func(t *testing.T) {
		notified := false
		c := NewCursorBroadcaster("user-1", "Ada", nil, func(CursorMove) {},
			nil, func(string) { notified = true })
		defer c.Close()

		c.Remove("nobody")
		assert.False(t, notified)
	})
}
