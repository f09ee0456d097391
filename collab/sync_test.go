package collab

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncFixture, birbirine bağlanmış store + synchronizer çifti ve
// yayınlanan event'lerin kaydı.
type syncFixture struct {
	store   *ShapeStore
	sync    *ShapeSynchronizer
	changes []ShapeChange
}

func newSyncFixture(t *testing.T, selfID string) *syncFixture {
	t.Helper()
	f := &syncFixture{}
	f.store = NewShapeStore(func(b MutationBatch) { f.sync.HandleMutation(b) })
	f.sync = NewShapeSynchronizer(f.store, selfID, func(event string, payload any) error {
		require.Equal(t, EventShapeChange, event)
		change, ok := payload.(ShapeChange)
		require.True(t, ok)
		f.changes = append(f.changes, change)
		return nil
	})
	return f
}

func TestShapeSynchronizerPublish(t *testing.T) {
	t.Run("local create publishes create action", func(t *testing.T) {
		f := newSyncFixture(t, "user-1")
		f.sync.CreateShapes([]Shape{shape("a", `,"x":1`)})

		require.Len(t, f.changes, 1)
		assert.Equal(t, ActionCreate, f.changes[0].Action)
		assert.Equal(t, "user-1", f.changes[0].UserID)
		require.Len(t, f.changes[0].Records, 1)
		assert.JSONEq(t, `{"id":"a","x":1}`, string(f.changes[0].Records[0]))
	})

	t.Run("local edit of existing shape publishes update action", func(t *testing.T) {
		f := newSyncFixture(t, "user-1")
		f.sync.CreateShapes([]Shape{shape("a", `,"x":1`)})
		f.sync.UpdateShapes([]Shape{shape("a", `,"x":2`)})

		require.Len(t, f.changes, 2)
		assert.Equal(t, ActionUpdate, f.changes[1].Action)
	})

	t.Run("local delete publishes id-only records", func(t *testing.T) {
		f := newSyncFixture(t, "user-1")
		f.sync.CreateShapes([]Shape{shape("a", ``), shape("b", ``)})
		f.sync.DeleteShapes([]string{"a", "b"})

		require.Len(t, f.changes, 2)
		del := f.changes[1]
		assert.Equal(t, ActionDelete, del.Action)
		require.Len(t, del.Records, 2)
		assert.JSONEq(t, `{"id":"a"}`, string(del.Records[0]))
		assert.JSONEq(t, `{"id":"b"}`, string(del.Records[1]))
	})

	t.Run("remote batches are never republished", func(t *testing.T) {
		f := newSyncFixture(t, "user-1")
		f.store.Upsert(OriginRemote, []Shape{shape("a", ``)})
		f.store.Remove(OriginRemote, []string{"a"})

		assert.Empty(t, f.changes, "remote origin must not echo back to the channel")
	})

	t.Run("mixed batch publishes create and update separately", func(t *testing.T) {
		f := newSyncFixture(t, "user-1")
		f.sync.CreateShapes([]Shape{shape("a", ``)})
		f.store.Upsert(OriginLocal, []Shape{shape("a", `,"x":2`), shape("b", ``)})

		require.Len(t, f.changes, 3)
		assert.Equal(t, ActionCreate, f.changes[1].Action)
		assert.Equal(t, "b", mustParse(t, f.changes[1].Records[0]).ID)
		assert.Equal(t, ActionUpdate, f.changes[2].Action)
		assert.Equal(t, "a", mustParse(t, f.changes[2].Records[0]).ID)
	})
}

func TestShapeSynchronizerHandleRemote(t *testing.T) {
	t.Run("applies remote create", func(t *testing.T) {
		f := newSyncFixture(t, "user-1")
		f.sync.HandleRemote(json.RawMessage(
			`{"action":"create","records":[{"id":"a","x":1}],"userId":"user-2"}`))

		assert.Equal(t, 1, f.store.Len())
		assert.Empty(t, f.changes, "applying a remote change must not publish")
	})

	t.Run("applies remote delete", func(t *testing.T) {
		f := newSyncFixture(t, "user-1")
		f.sync.CreateShapes([]Shape{shape("a", ``)})
		f.sync.HandleRemote(json.RawMessage(
			`{"action":"delete","records":[{"id":"a"}],"userId":"user-2"}`))

		assert.Equal(t, 0, f.store.Len())
	})

	t.Run("ignores own echo", func(t *testing.T) {
		f := newSyncFixture(t, "user-1")
		f.sync.HandleRemote(json.RawMessage(
			`{"action":"create","records":[{"id":"a"}],"userId":"user-1"}`))

		assert.Equal(t, 0, f.store.Len())
	})

	t.Run("malformed payload dropped, session keeps working", func(t *testing.T) {
		f := newSyncFixture(t, "user-1")
		f.sync.HandleRemote(json.RawMessage(`{broken`))
		f.sync.HandleRemote(json.RawMessage(
			`{"action":"create","records":[{"id":"a"}],"userId":"user-2"}`))

		assert.Equal(t, 1, f.store.Len())
	})

	t.Run("bad record in batch skipped, good ones applied", func(t *testing.T) {
		f := newSyncFixture(t, "user-1")
		f.sync.HandleRemote(json.RawMessage(
			`{"action":"update","records":[{"no":"id"},{"id":"good"}],"userId":"user-2"}`))

		assert.Equal(t, 1, f.store.Len())
		_, ok := f.store.Get("good")
		assert.True(t, ok)
	})

	t.Run("unknown action dropped", func(t *testing.T) {
		f := newSyncFixture(t, "user-1")
		f.sync.HandleRemote(json.RawMessage(
			`{"action":"explode","records":[{"id":"a"}],"userId":"user-2"}`))

		assert.Equal(t, 0, f.store.Len())
	})
}

func mustParse(t *testing.T, raw json.RawMessage) Shape {
	t.Helper()
	s, err := ParseShape(raw)
	require.NoError(t, err)
	return s
}
