package collab

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shape(id string, fields string) Shape {
	data := fmt.Sprintf(`{"id":%q%s}`, id, fields)
	return Shape{ID: id, Data: json.RawMessage(data)}
}

func TestParseShape(t *testing.T) {
	t.Run("extracts id", func(t *testing.T) {
		s, err := ParseShape(json.RawMessage(`{"id":"rect-1","type":"rect","x":10}`))
		require.NoError(t, err)
		assert.Equal(t, "rect-1", s.ID)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		_, err := ParseShape(json.RawMessage(`{not json`))
		assert.Error(t, err)
	})

	t.Run("rejects missing id", func(t *testing.T) {
		_, err := ParseShape(json.RawMessage(`{"type":"rect"}`))
		assert.ErrorContains(t, err, "missing id")
	})
}

func TestShapeStoreUpsert(t *testing.T) {
	t.Run("classifies added vs updated", func(t *testing.T) {
		var batches []MutationBatch
		s := NewShapeStore(func(b MutationBatch) { batches = append(batches, b) })

		s.Upsert(OriginLocal, []Shape{shape("a", `,"x":1`)})
		s.Upsert(OriginLocal, []Shape{shape("a", `,"x":2`), shape("b", `,"x":3`)})

		require.Len(t, batches, 2)
		assert.Len(t, batches[0].Added, 1)
		assert.Empty(t, batches[0].Updated)

		require.Len(t, batches[1].Added, 1)
		require.Len(t, batches[1].Updated, 1)
		assert.Equal(t, "b", batches[1].Added[0].ID)
		assert.Equal(t, "a", batches[1].Updated[0].ID)
	})

	t.Run("last write wins", func(t *testing.T) {
		s := NewShapeStore(nil)
		s.Upsert(OriginLocal, []Shape{shape("a", `,"x":1`)})
		s.Upsert(OriginRemote, []Shape{shape("a", `,"x":99`)})

		got, ok := s.Get("a")
		require.True(t, ok)
		assert.JSONEq(t, `{"id":"a","x":99}`, string(got.Data))
	})

	t.Run("upsert after delete recreates", func(t *testing.T) {
		s := NewShapeStore(nil)
		s.Upsert(OriginLocal, []Shape{shape("a", ``)})
		s.Remove(OriginRemote, []string{"a"})
		s.Upsert(OriginRemote, []Shape{shape("a", `,"x":5`)})

		_, ok := s.Get("a")
		assert.True(t, ok)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("empty batch does not notify", func(t *testing.T) {
		var batches int
		s := NewShapeStore(func(MutationBatch) { batches++ })
		s.Upsert(OriginLocal, nil)
		assert.Equal(t, 0, batches)
	})
}

func TestShapeStoreRemove(t *testing.T) {
	t.Run("missing ids skipped silently", func(t *testing.T) {
		var batches []MutationBatch
		s := NewShapeStore(func(b MutationBatch) { batches = append(batches, b) })

		s.Upsert(OriginLocal, []Shape{shape("a", ``)})
		s.Remove(OriginRemote, []string{"a", "ghost"})

		require.Len(t, batches, 2)
		assert.Equal(t, []string{"a"}, batches[1].RemovedIDs)
	})

	t.Run("removing only missing ids does not notify", func(t *testing.T) {
		var batches int
		s := NewShapeStore(func(MutationBatch) { batches++ })
		s.Remove(OriginLocal, []string{"ghost"})
		assert.Equal(t, 0, batches)
	})
}

func TestShapeStoreSnapshot(t *testing.T) {
	t.Run("load then snapshot round trip", func(t *testing.T) {
		s := NewShapeStore(nil)
		doc := `{"records":[{"id":"a","x":1},{"id":"b","x":2}]}`
		require.NoError(t, s.LoadSnapshot([]byte(doc)))
		assert.Equal(t, 2, s.Len())

		out, err := s.Snapshot()
		require.NoError(t, err)
		assert.JSONEq(t, doc, string(out))
	})

	t.Run("load replaces existing content without notifying", func(t *testing.T) {
		var batches int
		s := NewShapeStore(func(MutationBatch) { batches++ })
		s.Upsert(OriginLocal, []Shape{shape("old", ``)})

		require.NoError(t, s.LoadSnapshot([]byte(`{"records":[{"id":"new"}]}`)))
		_, ok := s.Get("old")
		assert.False(t, ok)
		assert.Equal(t, 1, batches, "snapshot load must not emit a mutation")
	})

	t.Run("malformed snapshot rejected", func(t *testing.T) {
		s := NewShapeStore(nil)
		assert.Error(t, s.LoadSnapshot([]byte(`{broken`)))
		assert.Error(t, s.LoadSnapshot([]byte(`{"records":[{"type":"no-id"}]}`)))
	})

	t.Run("snapshot records sorted by id", func(t *testing.T) {
		s := NewShapeStore(nil)
		s.Upsert(OriginLocal, []Shape{shape("b", ``), shape("a", ``)})

		out, err := s.Snapshot()
		require.NoError(t, err)

		var doc struct {
			Records []json.RawMessage `json:"records"`
		}
		require.NoError(t, json.Unmarshal(out, &doc))
		require.Len(t, doc.Records, 2)
		first, _ := ParseShape(doc.Records[0])
		assert.Equal(t, "a", first.ID)
	})
}
