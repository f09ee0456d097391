package ws

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akinalp/tahta/models"
	"github.com/akinalp/tahta/pkg"
)

// fakeGrantValidator, grant string'ini önceden tanımlı claim'lere çözer.
type fakeGrantValidator struct {
	grants map[string]*models.GrantClaims
}

func (v *fakeGrantValidator) ValidateGrant(grant, socketID, channelName string) (*models.GrantClaims, error) {
	claims, ok := v.grants[grant]
	if !ok {
		return nil, fmt.Errorf("%w: invalid grant", pkg.ErrForbidden)
	}
	if claims.SocketID != socketID || claims.ChannelName != channelName {
		return nil, fmt.Errorf("%w: grant scope mismatch", pkg.ErrForbidden)
	}
	return claims, nil
}

type hubFixture struct {
	hub       *Hub
	validator *fakeGrantValidator
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	validator := &fakeGrantValidator{grants: make(map[string]*models.GrantClaims)}
	hub := NewHub(validator)
	go hub.Run()
	return &hubFixture{hub: hub, validator: validator}
}

// newClient, hub'a bağlı gibi davranan bir test client'ı üretir.
// conn nil kalır — Subscribe/Publish/Unsubscribe yolları conn'a dokunmaz.
func (f *hubFixture) newClient(t *testing.T, socketID, userID string) *Client {
	t.Helper()
	c := &Client{
		hub:      f.hub,
		socketID: socketID,
		userID:   userID,
		channels: make(map[string]bool),
		send:     make(chan []byte, sendBufferSize),
	}
	f.hub.register <- c
	return c
}

// grant, (socket, channel) çiftine scope'lu bir sahte grant tanımlar ve
// string'ini döner.
func (f *hubFixture) grant(socketID, channel, userID string, member *models.PresenceMember) string {
	key := fmt.Sprintf("grant:%s:%s", socketID, channel)
	f.validator.grants[key] = &models.GrantClaims{
		SocketID:    socketID,
		ChannelName: channel,
		UserID:      userID,
		Member:      member,
	}
	return key
}

// recv, client'ın send buffer'ından bir envelope okur.
func recv(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case data := <-c.send:
		var env Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	case <-time.After(time.Second):
		t.Fatal("no envelope received")
		return Envelope{}
	}
}

func assertNoEnvelope(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected envelope: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

const (
	docChannel      = "private-whiteboard-b1"
	presenceChannel = "presence-whiteboard-b1"
)

func TestHubSubscribe(t *testing.T) {
	t.Run("valid grant subscribes and returns roster with self", func(t *testing.T) {
		f := newHubFixture(t)
		c := f.newClient(t, "sock-1", "user-1")
		g := f.grant("sock-1", presenceChannel, "user-1", &models.PresenceMember{ID: "user-1", Name: "Ada"})

		f.hub.Subscribe(c, presenceChannel, g)

		env := recv(t, c)
		assert.Equal(t, OpSubscriptionSucceeded, env.Op)
		assert.Equal(t, presenceChannel, env.Channel)
		require.Len(t, env.Members, 1)
		assert.Equal(t, "user-1", env.Members[0].ID)
	})

	t.Run("invalid grant returns subscription error with status", func(t *testing.T) {
		f := newHubFixture(t)
		c := f.newClient(t, "sock-1", "user-1")

		f.hub.Subscribe(c, docChannel, "bogus")

		env := recv(t, c)
		assert.Equal(t, OpSubscriptionError, env.Op)
		assert.Equal(t, 403, env.Status)
	})

	t.Run("grant for another user rejected", func(t *testing.T) {
		f := newHubFixture(t)
		c := f.newClient(t, "sock-1", "user-1")
		g := f.grant("sock-1", docChannel, "someone-else", nil)

		f.hub.Subscribe(c, docChannel, g)

		env := recv(t, c)
		assert.Equal(t, OpSubscriptionError, env.Op)
		assert.Equal(t, 403, env.Status)
	})

	t.Run("repeat subscribe is idempotent", func(t *testing.T) {
		f := newHubFixture(t)
		c1 := f.newClient(t, "sock-1", "user-1")
		c2 := f.newClient(t, "sock-2", "user-2")
		g1 := f.grant("sock-1", presenceChannel, "user-1", &models.PresenceMember{ID: "user-1", Name: "Ada"})
		g2 := f.grant("sock-2", presenceChannel, "user-2", &models.PresenceMember{ID: "user-2", Name: "Banu"})

		f.hub.Subscribe(c1, presenceChannel, g1)
		recv(t, c1) // succeeded
		f.hub.Subscribe(c2, presenceChannel, g2)
		recv(t, c2) // succeeded
		recv(t, c1) // c2'nin member_added'ı

		// c2 tekrar subscribe olur — yeni succeeded gelir ama c1'e ikinci
		// member_added yayınlanmaz
		f.hub.Subscribe(c2, presenceChannel, g2)
		env := recv(t, c2)
		assert.Equal(t, OpSubscriptionSucceeded, env.Op)
		assert.Len(t, env.Members, 2)
		assertNoEnvelope(t, c1)
	})

	t.Run("member_added excludes the joiner", func(t *testing.T) {
		f := newHubFixture(t)
		c1 := f.newClient(t, "sock-1", "user-1")
		c2 := f.newClient(t, "sock-2", "user-2")
		g1 := f.grant("sock-1", presenceChannel, "user-1", &models.PresenceMember{ID: "user-1", Name: "Ada"})
		g2 := f.grant("sock-2", presenceChannel, "user-2", &models.PresenceMember{ID: "user-2", Name: "Banu"})

		f.hub.Subscribe(c1, presenceChannel, g1)
		recv(t, c1)
		f.hub.Subscribe(c2, presenceChannel, g2)

		// c1, c2'nin katılımını görür
		env := recv(t, c1)
		assert.Equal(t, OpMemberAdded, env.Op)
		assert.Equal(t, "user-2", env.Member.ID)

		// c2 sadece kendi succeeded'ını alır — kendi katılım event'ini almaz
		env = recv(t, c2)
		assert.Equal(t, OpSubscriptionSucceeded, env.Op)
		assertNoEnvelope(t, c2)
	})
}

func TestHubPresenceDedupe(t *testing.T) {
	t.Run("second tab of same user does not announce", func(t *testing.T) {
		f := newHubFixture(t)
		peer := f.newClient(t, "sock-0", "peer")
		tab1 := f.newClient(t, "sock-1", "user-1")
		tab2 := f.newClient(t, "sock-2", "user-1")

		gPeer := f.grant("sock-0", presenceChannel, "peer", &models.PresenceMember{ID: "peer", Name: "Peer"})
		g1 := f.grant("sock-1", presenceChannel, "user-1", &models.PresenceMember{ID: "user-1", Name: "Ada"})
		g2 := f.grant("sock-2", presenceChannel, "user-1", &models.PresenceMember{ID: "user-1", Name: "Ada"})

		f.hub.Subscribe(peer, presenceChannel, gPeer)
		recv(t, peer)

		f.hub.Subscribe(tab1, presenceChannel, g1)
		recv(t, tab1)
		env := recv(t, peer)
		assert.Equal(t, OpMemberAdded, env.Op)

		// İkinci tab: roster değişmez, peer'a yeni duyuru gitmez
		f.hub.Subscribe(tab2, presenceChannel, g2)
		env = recv(t, tab2)
		assert.Equal(t, OpSubscriptionSucceeded, env.Op)
		assert.Len(t, env.Members, 2, "roster still has two distinct users")
		assertNoEnvelope(t, peer)

		// İlk tab ayrılır — kullanıcının hâlâ bir bağlantısı var, duyuru yok
		f.hub.Unsubscribe(tab1, presenceChannel)
		assertNoEnvelope(t, peer)

		// Son tab ayrılınca member_removed yayınlanır
		f.hub.Unsubscribe(tab2, presenceChannel)
		env = recv(t, peer)
		assert.Equal(t, OpMemberRemoved, env.Op)
		assert.Equal(t, "user-1", env.Member.ID)
	})

	t.Run("unsubscribe when not subscribed is a no-op", func(t *testing.T) {
		f := newHubFixture(t)
		c := f.newClient(t, "sock-1", "user-1")
		f.hub.Unsubscribe(c, presenceChannel)
		assertNoEnvelope(t, c)
	})
}

func TestHubPublish(t *testing.T) {
	subscribe := func(t *testing.T, f *hubFixture, c *Client, channel string) {
		t.Helper()
		g := f.grant(c.socketID, channel, c.userID, nil)
		f.hub.Subscribe(c, channel, g)
		env := recv(t, c)
		require.Equal(t, OpSubscriptionSucceeded, env.Op)
	}

	t.Run("delivered to all subscribers including publisher", func(t *testing.T) {
		f := newHubFixture(t)
		c1 := f.newClient(t, "sock-1", "user-1")
		c2 := f.newClient(t, "sock-2", "user-2")
		subscribe(t, f, c1, docChannel)
		subscribe(t, f, c2, docChannel)

		payload := json.RawMessage(`{"action":"create","records":[{"id":"a"}],"userId":"user-1"}`)
		f.hub.Publish(c1, docChannel, "client-shape-change", payload)

		for _, c := range []*Client{c1, c2} {
			env := recv(t, c)
			assert.Equal(t, OpEvent, env.Op)
			assert.Equal(t, "client-shape-change", env.Event)
			assert.JSONEq(t, string(payload), string(env.Data))
			assert.Equal(t, int64(1), env.Seq)
		}
	})

	t.Run("sequence increases per channel", func(t *testing.T) {
		f := newHubFixture(t)
		c := f.newClient(t, "sock-1", "user-1")
		subscribe(t, f, c, docChannel)

		f.hub.Publish(c, docChannel, "client-shape-change", json.RawMessage(`{"n":1}`))
		f.hub.Publish(c, docChannel, "client-shape-change", json.RawMessage(`{"n":2}`))

		assert.Equal(t, int64(1), recv(t, c).Seq)
		assert.Equal(t, int64(2), recv(t, c).Seq)
	})

	t.Run("non-client event rejected", func(t *testing.T) {
		f := newHubFixture(t)
		c := f.newClient(t, "sock-1", "user-1")
		subscribe(t, f, c, docChannel)

		f.hub.Publish(c, docChannel, "member_added", json.RawMessage(`{}`))
		assertNoEnvelope(t, c)
	})

	t.Run("publish without subscription silently dropped", func(t *testing.T) {
		f := newHubFixture(t)
		c1 := f.newClient(t, "sock-1", "user-1")
		c2 := f.newClient(t, "sock-2", "user-2")
		subscribe(t, f, c2, docChannel)

		f.hub.Publish(c1, docChannel, "client-shape-change", json.RawMessage(`{}`))
		assertNoEnvelope(t, c2)
	})
}

// recordingRelay, Forward çağrılarını toplar.
type recordingRelay struct {
	forwarded []string
}

func (r *recordingRelay) Forward(channel, event string, data json.RawMessage) {
	r.forwarded = append(r.forwarded, channel+"/"+event)
}

func TestHubRelay(t *testing.T) {
	t.Run("local publish forwarded to relay", func(t *testing.T) {
		f := newHubFixture(t)
		relay := &recordingRelay{}
		f.hub.SetRelay(relay)

		c := f.newClient(t, "sock-1", "user-1")
		g := f.grant("sock-1", docChannel, "user-1", nil)
		f.hub.Subscribe(c, docChannel, g)
		recv(t, c)

		f.hub.Publish(c, docChannel, "client-cursor-move", json.RawMessage(`{}`))
		recv(t, c)

		assert.Equal(t, []string{docChannel + "/client-cursor-move"}, relay.forwarded)
	})

	t.Run("remote delivery reaches local subscribers", func(t *testing.T) {
		f := newHubFixture(t)
		c := f.newClient(t, "sock-1", "user-1")
		g := f.grant("sock-1", docChannel, "user-1", nil)
		f.hub.Subscribe(c, docChannel, g)
		recv(t, c)

		f.hub.DeliverRemote(docChannel, "client-shape-change", json.RawMessage(`{"from":"remote"}`))

		env := recv(t, c)
		assert.Equal(t, OpEvent, env.Op)
		assert.JSONEq(t, `{"from":"remote"}`, string(env.Data))
	})
}

func TestHubClientRemoval(t *testing.T) {
	// removed, client'ın hub'dan düşmesini bekler — unregister asenkrondur.
	removed := func(t *testing.T, f *hubFixture, c *Client) {
		t.Helper()
		require.Eventually(t, func() bool {
			f.hub.mu.RLock()
			defer f.hub.mu.RUnlock()
			return !f.hub.clients[c]
		}, time.Second, 2*time.Millisecond)
	}

	t.Run("send after removal does not panic", func(t *testing.T) {
		f := newHubFixture(t)
		c := f.newClient(t, "sock-1", "user-1")

		f.hub.unregister <- c
		removed(t, f, c)

		// ReadPump hâlâ bir heartbeat işliyor olabilir — kapalı channel'a
		// yazma denemesi sessizce düşmeli
		c.sendEnvelope(Envelope{Op: OpHeartbeatAck})
	})

	t.Run("double removal is a no-op", func(t *testing.T) {
		f := newHubFixture(t)
		c := f.newClient(t, "sock-1", "user-1")

		f.hub.unregister <- c
		removed(t, f, c)
		f.hub.unregister <- c

		c.closeSend()
		assert.False(t, c.trySend([]byte(`{}`)))
	})

	t.Run("shutdown then broadcast does not panic", func(t *testing.T) {
		f := newHubFixture(t)
		c := f.newClient(t, "sock-1", "user-1")
		g := f.grant("sock-1", presenceChannel, "user-1", &models.PresenceMember{ID: "user-1", Name: "Ada"})
		f.hub.Subscribe(c, presenceChannel, g)
		recv(t, c)

		f.hub.Shutdown()
		c.sendEnvelope(Envelope{Op: OpHeartbeatAck})
	})
}
