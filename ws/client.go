package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket bağlantı sabitleri
const (
	// writeWait: Bir mesajı yazmak için maksimum bekleme süresi.
	// Bu süre aşılırsa bağlantı kapatılır (ağ sorunu olabilir).
	writeWait = 10 * time.Second

	// pongWait: Client'ın heartbeat göndermesi için beklenen maksimum süre.
	// 3 heartbeat kaçırma = 30s × 3 = 90s.
	pongWait = 90 * time.Second

	// maxMessageSize: Client'ın gönderebileceği maksimum frame boyutu (byte).
	// Shape batch'leri cursor frame'lerinden büyüktür — 64KB sınırı bir
	// seferde yüzlerce shape taşımaya yeter, snapshot'lar HTTP'den gider.
	maxMessageSize = 65536

	// sendBufferSize: Her client'ın send channel'ının buffer boyutu.
	// Buffer doluysa (client yavaş) bağlantı kapatılır.
	sendBufferSize = 256
)

// Client, tek bir WebSocket bağlantısını temsil eder.
//
// Her bağlantı için iki goroutine çalışır:
// - ReadPump: Client'dan gelen frame'leri okur → Hub'a iletir
// - WritePump: Hub'dan gelen frame'leri client'a yazar
//
// gorilla/websocket aynı anda tek okuma ve tek yazma destekler; iki ayrı
// goroutine ile okuma ve yazma birbirini bloklamaz.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	socketID string
	userID   string

	// channels: bu bağlantının abone olduğu kanallar.
	// Sadece hub.mu altında okunur/yazılır — Client kendi lock'unu tutmaz.
	channels map[string]bool

	// send, client'a gönderilecek frame'lerin buffer'landığı channel.
	// Kapatma ve gönderme yarışabilir (yavaş client eviction'ı ReadPump
	// hâlâ frame işlerken tetiklenebilir) — sendMu + closed bu pencereyi
	// kapatır: send'e yazma ve close yalnızca sendMu altında yapılır.
	send   chan []byte
	sendMu sync.Mutex
	closed bool

	mu sync.Mutex // conn.WriteMessage çağrılarını korur
}

// trySend, frame'i send buffer'ına bloklamadan koyar. Channel kapatılmışsa
// veya buffer doluysa false döner — caller client'ı düşürmeye karar verir.
func (c *Client) trySend(payload []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// closeSend, send channel'ını kapatır. İkinci çağrı no-op'tur.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// ReadPump, WebSocket bağlantısından gelen frame'leri okur ve işler.
// Bağlantı kapanana kadar bloklar; kapanınca client hub'dan düşer.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	// SetReadDeadline: Bu süre içinde frame gelmezse Read hata verir.
	// Her heartbeat geldiğinde deadline yenilenir.
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("[ws] failed to set read deadline for socket %s: %v", c.socketID, err)
		return
	}

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] unexpected close for socket %s: %v", c.socketID, err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(rawMessage, &env); err != nil {
			// Bozuk frame bağlantıyı öldürmez — düşür ve devam et
			log.Printf("[ws] invalid frame from socket %s: %v", c.socketID, err)
			continue
		}

		c.handleEnvelope(env)
	}
}

// handleEnvelope, client'dan gelen frame'leri türüne göre işler.
func (c *Client) handleEnvelope(env Envelope) {
	switch env.Op {
	case OpHeartbeat:
		// Heartbeat geldi — deadline'ı yenile ve ack gönder.
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("[ws] failed to set read deadline for socket %s: %v", c.socketID, err)
			return
		}
		c.sendEnvelope(Envelope{Op: OpHeartbeatAck})

	case OpSubscribe:
		if env.Channel == "" {
			return
		}
		c.hub.Subscribe(c, env.Channel, env.Grant)

	case OpUnsubscribe:
		if env.Channel == "" {
			return
		}
		c.hub.Unsubscribe(c, env.Channel)

	case OpPublish:
		if env.Channel == "" || env.Event == "" {
			return
		}
		c.hub.Publish(c, env.Channel, env.Event, env.Data)

	default:
		log.Printf("[ws] unknown op from socket %s: %s", c.socketID, env.Op)
	}
}

// sendEnvelope, client'a tek bir frame gönderir.
func (c *Client) sendEnvelope(env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("[ws] failed to marshal envelope for socket %s: %v", c.socketID, err)
		return
	}

	if !c.trySend(data) {
		// Buffer dolu veya channel zaten kapalı — client muhtemelen donmuş,
		// bağlantıyı kapat (tekrarlanan unregister removeClient'ta no-op)
		log.Printf("[ws] send buffer full for socket %s, dropping connection", c.socketID)
		c.hub.unregister <- c
	}
}

// WritePump, Hub'dan gelen frame'leri WebSocket bağlantısına yazar.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for {
		message, ok := <-c.send
		if !ok {
			// Channel kapatıldı — Hub client'ı çıkardı
			c.writeMessage(websocket.CloseMessage, nil)
			return
		}

		if err := c.writeMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// writeMessage, WebSocket'e frame yazar. gorilla/websocket conn'a aynı anda
// birden fazla yazma yasak — mutex ile korunur.
func (c *Client) writeMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}
