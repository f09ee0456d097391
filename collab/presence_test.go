package collab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akinalp/tahta/models"
)

func member(id, name string) models.PresenceMember {
	return models.PresenceMember{ID: id, Name: name}
}

func TestPresenceTrackerSnapshot(t *testing.T) {
	t.Run("replaces roster wholesale", func(t *testing.T) {
		p := NewPresenceTracker(nil)
		p.ApplyJoin(member("old", "Eski"))

		p.ApplySnapshot([]models.PresenceMember{member("a", "Ada"), member("b", "Banu")})

		require.Equal(t, 2, p.Count())
		assert.False(t, p.Contains("old"))
		assert.True(t, p.Contains("a"))
		assert.True(t, p.Contains("b"))
	})

	t.Run("empty snapshot clears roster", func(t *testing.T) {
		p := NewPresenceTracker(nil)
		p.ApplyJoin(member("a", "Ada"))

		p.ApplySnapshot(nil)
		assert.Equal(t, 0, p.Count())
	})
}

func TestPresenceTrackerSubscribed(t *testing.T) {
	t.Run("false until first snapshot", func(t *testing.T) {
		p := NewPresenceTracker(nil)
		assert.False(t, p.Subscribed())

		p.ApplyJoin(member("a", "Ada"))
		assert.False(t, p.Subscribed(), "a stray join does not mean subscribed")
	})

	t.Run("empty snapshot still counts as subscribed", func(t *testing.T) {
		p := NewPresenceTracker(nil)
		p.ApplySnapshot(nil)

		assert.True(t, p.Subscribed())
		assert.Equal(t, 0, p.Count())
	})

	t.Run("clear drops the flag", func(t *testing.T) {
		p := NewPresenceTracker(nil)
		p.ApplySnapshot([]models.PresenceMember{member("a", "Ada")})
		require.True(t, p.Subscribed())

		p.Clear()
		assert.False(t, p.Subscribed())
	})
}

func TestPresenceTrackerJoinLeave(t *testing.T) {
	t.Run("duplicate join keeps existing entry", func(t *testing.T) {
		var changes int
		p := NewPresenceTracker(func([]models.PresenceMember) { changes++ })

		p.ApplyJoin(member("a", "Ada"))
		p.ApplyJoin(member("a", "Ada (tab 2)"))

		require.Equal(t, 1, p.Count())
		assert.Equal(t, "Ada", p.Members()[0].Name)
		assert.Equal(t, 1, changes, "duplicate join should not notify")
	})

	t.Run("leave of unknown member is a no-op", func(t *testing.T) {
		var changes int
		p := NewPresenceTracker(func([]models.PresenceMember) { changes++ })

		p.ApplyLeave("ghost")
		assert.Equal(t, 0, changes)
	})

	t.Run("join then leave round trip", func(t *testing.T) {
		p := NewPresenceTracker(nil)
		p.ApplyJoin(member("a", "Ada"))
		p.ApplyLeave("a")

		assert.Equal(t, 0, p.Count())
		assert.False(t, p.Contains("a"))
	})
}

func TestPresenceTrackerMembers(t *testing.T) {
	t.Run("sorted by id", func(t *testing.T) {
		p := NewPresenceTracker(nil)
		p.ApplyJoin(member("c", "Cem"))
		p.ApplyJoin(member("a", "Ada"))
		p.ApplyJoin(member("b", "Banu"))

		list := p.Members()
		require.Len(t, list, 3)
		assert.Equal(t, "a", list[0].ID)
		assert.Equal(t, "b", list[1].ID)
		assert.Equal(t, "c", list[2].ID)
	})
}

func TestPresenceTrackerClear(t *testing.T) {
	t.Run("notifies only when roster had members", func(t *testing.T) {
		var changes int
		p := NewPresenceTracker(func([]models.PresenceMember) { changes++ })

		p.Clear()
		assert.Equal(t, 0, changes)

		p.ApplyJoin(member("a", "Ada"))
		p.Clear()
		assert.Equal(t, 2, changes)
		assert.Equal(t, 0, p.Count())
	})
}
