package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelNames(t *testing.T) {
	t.Run("builders", func(t *testing.T) {
		assert.Equal(t, "private-whiteboard-abc", DocumentChannel("abc"))
		assert.Equal(t, "presence-whiteboard-abc", PresenceChannel("abc"))
	})

	t.Run("parse document channel", func(t *testing.T) {
		kind, boardID, err := ParseChannelName("private-whiteboard-abc123")
		require.NoError(t, err)
		assert.Equal(t, ChannelPrivate, kind)
		assert.Equal(t, "abc123", boardID)
	})

	t.Run("parse presence channel", func(t *testing.T) {
		kind, boardID, err := ParseChannelName("presence-whiteboard-abc123")
		require.NoError(t, err)
		assert.Equal(t, ChannelPresence, kind)
		assert.Equal(t, "abc123", boardID)
	})

	t.Run("round trip", func(t *testing.T) {
		kind, boardID, err := ParseChannelName(DocumentChannel("b-42"))
		require.NoError(t, err)
		assert.Equal(t, ChannelPrivate, kind)
		assert.Equal(t, "b-42", boardID)
	})

	t.Run("rejects unknown prefixes and empty ids", func(t *testing.T) {
		for _, name := range []string{
			"",
			"whiteboard-abc",
			"public-whiteboard-abc",
			"private-whiteboard-",
			"presence-whiteboard-",
			"privatewhiteboard-abc",
		} {
			_, _, err := ParseChannelName(name)
			assert.Error(t, err, "channel %q", name)
		}
	})
}
