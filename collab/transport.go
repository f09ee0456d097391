// Package collab, gerçek zamanlı board oturumunun client tarafını sağlar.
//
// Katmanlar:
//   - Transport: kanal sunucusuna WebSocket bağlantısı (subscribe/publish)
//   - PresenceTracker: kanal roster'ının yerel projeksiyonu
//   - CursorBroadcaster: cursor yayın/alma (throttle + stale expiry)
//   - ShapeStore + Synchronizer: shape state'i ve origin etiketli senkronizasyon
//   - Session: hepsini tek board oturumunda birleştiren çatı
//
// Transport bir interface'tir — testlerde sahte transport, üretimde
// wsTransport kullanılır.
package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/akinalp/tahta/models"
	"github.com/akinalp/tahta/ws"
)

// ConnectionState, transport bağlantısının yaşam döngüsü durumu.
//
// Geçişler: connecting → connected → (kopma) → reconnecting → connected ...
// Close çağrısından sonra kalıcı olarak disconnected.
type ConnectionState string

const (
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
	StateDisconnected ConnectionState = "disconnected"
)

// EventType, transport'un yukarı katmana bildirdiği olay türü.
type EventType string

const (
	EventStateChange       EventType = "state_change"
	EventSubscribed        EventType = "subscribed"
	EventSubscriptionError EventType = "subscription_error"
	EventMemberAdded       EventType = "member_added"
	EventMemberRemoved     EventType = "member_removed"
	EventMessage           EventType = "message"
)

// Event, transport'tan Session'a akan tek bir olay.
// Type'a göre ilgili alanlar dolu gelir; gerisi zero value'dur.
type Event struct {
	Type    EventType
	Channel string

	// EventMessage için
	Name string
	Data json.RawMessage
	Seq  int64

	// EventSubscribed için (presence kanalında roster snapshot'ı)
	Members []models.PresenceMember

	// EventMemberAdded / EventMemberRemoved için
	Member *models.PresenceMember

	// EventStateChange için
	State ConnectionState

	// EventSubscriptionError için
	Error  string
	Status int
}

// Authorizer, subscribe öncesi (socket_id, channel_name) için grant alır.
// Üretimde HTTPAuthorizer auth endpoint'ini çağırır; testlerde sahte
// authorizer sabit grant döner.
type Authorizer interface {
	Authorize(ctx context.Context, socketID, channelName string) (*models.ChannelGrant, error)
}

// Transport, kanal sunucusuyla konuşan soyutlama.
//
// Subscribe ve Unsubscribe idempotenttir: zaten abone olunan kanala ikinci
// Subscribe no-op'tur, abone olunmayan kanaldan Unsubscribe sessizce döner.
// Close birden fazla kez çağrılabilir.
type Transport interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, channel string) error
	Unsubscribe(channel string) error
	Publish(channel, event string, payload any) error
	State() ConnectionState
	Events() <-chan Event
	Close() error
}

// Bağlantı sabitleri
const (
	heartbeatInterval = 30 * time.Second
	dialTimeout       = 10 * time.Second
	eventBufferSize   = 256

	// Reconnect backoff: 1s'den başlar, her denemede ikiye katlanır, 30s'de durur.
	backoffInitial = time.Second
	backoffMax     = 30 * time.Second
)

// wsTransport, Transport'un gorilla/websocket implementasyonu.
type wsTransport struct {
	url        string // ws://host/realtime?token=...
	authorizer Authorizer

	mu       sync.Mutex
	conn     *websocket.Conn
	socketID string
	state    ConnectionState
	closed   bool

	// subscribed: istenen abonelik seti. Reconnect sonrası bu set üzerinden
	// yeniden subscribe edilir — üst katman kopmayı fark etmek zorunda kalmaz.
	subscribed map[string]bool

	events chan Event
	done   chan struct{}

	// connected: her başarılı bağlantıda yenilenen sinyal kanalı.
	// Subscribe, socket_id gelmeden grant isteyemez — bunu bekler.
	ready chan struct{}
}

// NewTransport, kanal sunucusuna bağlanan bir Transport oluşturur.
// url, token query parametresi eklenmiş tam WebSocket adresidir.
func NewTransport(url string, authorizer Authorizer) Transport {
	return &wsTransport{
		url:        url,
		authorizer: authorizer,
		state:      StateDisconnected,
		subscribed: make(map[string]bool),
		events:     make(chan Event, eventBufferSize),
		done:       make(chan struct{}),
		ready:      make(chan struct{}),
	}
}

func (t *wsTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errors.New("transport is closed")
	}
	if t.conn != nil {
		t.mu.Unlock()
		return nil // idempotent — zaten bağlı
	}
	t.setStateLocked(StateConnecting)
	t.mu.Unlock()

	conn, err := t.dial(ctx)
	if err != nil {
		t.mu.Lock()
		t.setStateLocked(StateDisconnected)
		t.mu.Unlock()
		return err
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	go t.readLoop(conn)
	go t.heartbeatLoop(conn)

	return nil
}

func (t *wsTransport) Subscribe(ctx context.Context, channel string) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errors.New("transport is closed")
	}
	if t.subscribed[channel] {
		t.mu.Unlock()
		return nil // idempotent
	}
	t.subscribed[channel] = true
	ready := t.ready
	t.mu.Unlock()

	// socket_id henüz gelmediyse bekle — grant socket_id'ye scope'ludur
	select {
	case <-ready:
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return errors.New("transport is closed")
	}

	return t.sendSubscribe(ctx, channel)
}

func (t *wsTransport) Unsubscribe(channel string) error {
	t.mu.Lock()
	if !t.subscribed[channel] {
		t.mu.Unlock()
		return nil // idempotent
	}
	delete(t.subscribed, channel)
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return nil // bağlantı yokken sadece istek setinden düşer
	}

	return t.writeEnvelope(conn, ws.Envelope{Op: ws.OpUnsubscribe, Channel: channel})
}

func (t *wsTransport) Publish(channel, event string, payload any) error {
	t.mu.Lock()
	conn := t.conn
	subscribed := t.subscribed[channel]
	t.mu.Unlock()

	if conn == nil {
		return errors.New("not connected")
	}
	if !subscribed {
		return fmt.Errorf("not subscribed to channel %s", channel)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal publish payload: %w", err)
	}

	return t.writeEnvelope(conn, ws.Envelope{
		Op:      ws.OpPublish,
		Channel: channel,
		Event:   event,
		Data:    data,
	})
}

func (t *wsTransport) State() ConnectionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *wsTransport) Events() <-chan Event {
	return t.events
}

// Close, bağlantıyı ve event kanalını kapatır. İkinci çağrı no-op'tur.
func (t *wsTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	t.conn = nil
	t.setStateLocked(StateDisconnected)
	t.mu.Unlock()

	close(t.done)
	if conn != nil {
		conn.Close()
	}
	return nil
}

// ─── Private Helpers ───

func (t *wsTransport) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial channel server: %w", err)
	}
	return conn, nil
}

// setStateLocked, durumu değiştirir ve state_change event'i yayınlar.
// t.mu Lock'lu çağrılmalı.
func (t *wsTransport) setStateLocked(state ConnectionState) {
	if t.state == state {
		return
	}
	t.state = state
	t.emit(Event{Type: EventStateChange, State: state})
}

// emit, event'i bloklamadan kanala bırakır. Tüketici yavaşsa event düşer —
// transport hiçbir koşulda sunucu okuma döngüsünü bloklamaz.
func (t *wsTransport) emit(ev Event) {
	select {
	case t.events <- ev:
	default:
		log.Printf("[collab] event buffer full, dropping %s", ev.Type)
	}
}

func (t *wsTransport) sendSubscribe(ctx context.Context, channel string) error {
	t.mu.Lock()
	socketID := t.socketID
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return errors.New("not connected")
	}

	grant, err := t.authorizer.Authorize(ctx, socketID, channel)
	if err != nil {
		// Yetki reddi abonelik isteğini kalıcı olarak düşürür — reconnect'te
		// tekrar denenmez (403/404 kendiliğinden düzelmez)
		t.mu.Lock()
		delete(t.subscribed, channel)
		t.mu.Unlock()
		return err
	}

	return t.writeEnvelope(conn, ws.Envelope{
		Op:      ws.OpSubscribe,
		Channel: channel,
		Grant:   grant.Grant,
	})
}

func (t *wsTransport) writeEnvelope(conn *websocket.Conn, env ws.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	// gorilla/websocket tek eşzamanlı yazma destekler; t.mu yazmaları da
	// serialize eder
	t.mu.Lock()
	defer t.mu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop, sunucudan gelen frame'leri okuyup Event'e çevirir.
// Bağlantı koptuğunda reconnect döngüsünü başlatır.
func (t *wsTransport) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.handleDisconnect(conn)
			return
		}

		var env ws.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("[collab] invalid frame from server: %v", err)
			continue
		}

		t.handleEnvelope(env)
	}
}

func (t *wsTransport) handleEnvelope(env ws.Envelope) {
	switch env.Op {
	case ws.OpConnectionEstablished:
		var data ws.ConnectionData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			log.Printf("[collab] invalid connection_established payload: %v", err)
			return
		}
		t.mu.Lock()
		t.socketID = data.SocketID
		t.setStateLocked(StateConnected)
		select {
		case <-t.ready:
			// tekrarlanan connection_established — sinyal zaten verildi
		default:
			close(t.ready)
		}
		t.mu.Unlock()

	case ws.OpHeartbeatAck:
		// sunucu bizi duydu — yapılacak bir şey yok

	case ws.OpSubscriptionSucceeded:
		t.emit(Event{Type: EventSubscribed, Channel: env.Channel, Members: env.Members})

	case ws.OpSubscriptionError:
		t.mu.Lock()
		delete(t.subscribed, env.Channel)
		t.mu.Unlock()
		t.emit(Event{
			Type:    EventSubscriptionError,
			Channel: env.Channel,
			Error:   env.Error,
			Status:  env.Status,
		})

	case ws.OpMemberAdded:
		t.emit(Event{Type: EventMemberAdded, Channel: env.Channel, Member: env.Member})

	case ws.OpMemberRemoved:
		t.emit(Event{Type: EventMemberRemoved, Channel: env.Channel, Member: env.Member})

	case ws.OpEvent:
		t.emit(Event{
			Type:    EventMessage,
			Channel: env.Channel,
			Name:    env.Event,
			Data:    env.Data,
			Seq:     env.Seq,
		})

	default:
		log.Printf("[collab] unknown op from server: %s", env.Op)
	}
}

// heartbeatLoop, 30 saniyede bir heartbeat gönderir. Sunucu 90 saniye
// sessizlikten sonra bağlantıyı ölü sayar.
func (t *wsTransport) heartbeatLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.mu.Lock()
			current := t.conn
			t.mu.Unlock()
			if current != conn {
				return // bağlantı değişti, yeni bağlantının kendi loop'u var
			}
			if err := t.writeEnvelope(conn, ws.Envelope{Op: ws.OpHeartbeat}); err != nil {
				return
			}
		}
	}
}

// handleDisconnect, kopan bağlantıyı temizler ve reconnect döngüsünü başlatır.
func (t *wsTransport) handleDisconnect(conn *websocket.Conn) {
	conn.Close()

	t.mu.Lock()
	if t.closed || t.conn != conn {
		t.mu.Unlock()
		return
	}
	t.conn = nil
	t.socketID = ""
	t.ready = make(chan struct{}) // yeni bağlantı için yeni sinyal
	t.setStateLocked(StateReconnecting)
	t.mu.Unlock()

	go t.reconnectLoop()
}

// reconnectLoop, exponential backoff ile yeniden bağlanır ve istenen
// abonelik setini geri kurar.
func (t *wsTransport) reconnectLoop() {
	backoff := backoffInitial

	for {
		select {
		case <-t.done:
			return
		case <-time.After(backoff):
		}

		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		conn, err := t.dial(ctx)
		cancel()

		if err != nil {
			log.Printf("[collab] reconnect failed, retrying in %s: %v", backoff, err)
			backoff *= 2
			if backoff > backoffMax {
				backoff = backoffMax
			}
			continue
		}

		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			conn.Close()
			return
		}
		t.conn = conn
		ready := t.ready
		channels := make([]string, 0, len(t.subscribed))
		for channel := range t.subscribed {
			channels = append(channels, channel)
		}
		t.mu.Unlock()

		go t.readLoop(conn)
		go t.heartbeatLoop(conn)

		// connection_established gelince ready kapanır — sonra resubscribe
		go t.resubscribe(ready, channels)
		return
	}
}

func (t *wsTransport) resubscribe(ready <-chan struct{}, channels []string) {
	select {
	case <-ready:
	case <-t.done:
		return
	}

	for _, channel := range channels {
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		if err := t.sendSubscribe(ctx, channel); err != nil {
			log.Printf("[collab] resubscribe to %s failed: %v", channel, err)
		}
		cancel()
	}
}
