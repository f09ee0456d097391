package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisBroker(t *testing.T) {
	newInstance := func(t *testing.T, mr *miniredis.Miniredis) (*hubFixture, *RedisBroker) {
		t.Helper()
		hf := newHubFixture(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		broker, err := NewRedisBroker(ctx, client, hf.hub)
		require.NoError(t, err)
		t.Cleanup(func() { _ = broker.Close() })

		hf.hub.SetRelay(broker)
		return hf, broker
	}

	subscribe := func(t *testing.T, f *hubFixture, c *Client, channel string) {
		t.Helper()
		g := f.grant(c.socketID, channel, c.userID, nil)
		f.hub.Subscribe(c, channel, g)
		env := recv(t, c)
		require.Equal(t, OpSubscriptionSucceeded, env.Op)
	}

	t.Run("publish on one instance reaches subscribers on the other", func(t *testing.T) {
		mr := miniredis.RunT(t)
		f1, _ := newInstance(t, mr)
		f2, _ := newInstance(t, mr)

		publisher := f1.newClient(t, "sock-a", "user-1")
		subscribe(t, f1, publisher, docChannel)
		listener := f2.newClient(t, "sock-b", "user-2")
		subscribe(t, f2, listener, docChannel)

		payload := json.RawMessage(`{"action":"create","records":[{"id":"a"}],"userId":"user-1"}`)
		f1.hub.Publish(publisher, docChannel, "client-shape-change", payload)

		// Yerel teslim anında
		env := recv(t, publisher)
		assert.Equal(t, OpEvent, env.Op)

		// Relay teslimi miniredis üzerinden asenkron gelir
		env = recv(t, listener)
		assert.Equal(t, OpEvent, env.Op)
		assert.Equal(t, "client-shape-change", env.Event)
		assert.JSONEq(t, string(payload), string(env.Data))
	})

	t.Run("own relay message skipped, no double delivery", func(t *testing.T) {
		mr := miniredis.RunT(t)
		f1, _ := newInstance(t, mr)

		c := f1.newClient(t, "sock-a", "user-1")
		subscribe(t, f1, c, docChannel)

		f1.hub.Publish(c, docChannel, "client-cursor-move", json.RawMessage(`{"x":1}`))

		// Yerel teslim bir kez gelir; Redis'ten dönen kendi mesajımız
		// loop guard ile atlanır — ikinci envelope GELMEMELİ
		env := recv(t, c)
		assert.Equal(t, OpEvent, env.Op)
		assertNoEnvelope(t, c)
	})

	t.Run("unrelated channels stay isolated", func(t *testing.T) {
		mr := miniredis.RunT(t)
		f1, _ := newInstance(t, mr)
		f2, _ := newInstance(t, mr)

		publisher := f1.newClient(t, "sock-a", "user-1")
		subscribe(t, f1, publisher, docChannel)
		listener := f2.newClient(t, "sock-b", "user-2")
		subscribe(t, f2, listener, "private-whiteboard-OTHER")

		f1.hub.Publish(publisher, docChannel, "client-shape-change", json.RawMessage(`{}`))
		recv(t, publisher)

		assertNoEnvelope(t, listener)
	})
}
