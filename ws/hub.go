package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/akinalp/tahta/models"
	"github.com/akinalp/tahta/pkg"
)

// GrantValidator, hub'ın subscribe frame'indeki grant'i doğrulamak için
// kullandığı interface.
//
// Neden services.GateService yerine kendi interface'imizi tanımlıyoruz?
// Circular dependency'yi önlemek için: services → ws yönü zaten var,
// ws → services eklenirse döngü oluşur. main.go'da gateService bu
// interface'i implicit olarak karşılar.
type GrantValidator interface {
	ValidateGrant(grantString, socketID, channelName string) (*models.GrantClaims, error)
}

// Relay, hub instance'ları arası event köprüsü.
//
// Tek instance çalışırken nil bırakılır — hub yerel teslimle yetinir.
// Birden fazla instance'ta RedisBroker bu interface'i sağlar: yerel publish
// diğer instance'lara forward edilir, onların publish'leri buradan gelir.
type Relay interface {
	Forward(channel, event string, data json.RawMessage)
}

// Hub, kanal aboneliklerini ve presence roster'larını yöneten merkezi yapıdır.
//
// Üç harita tutar:
//   - clients: bağlı tüm socket'ler
//   - channels: kanal adı → abone socket seti
//   - presence: kanal adı → userID → roster girdisi
//
// Presence girdileri userID bazında dedupe edilir: aynı kullanıcının ikinci
// tab'ı roster'a yeni üye EKLEMEZ, sadece bağlantı sayacını artırır.
// member_added yalnızca ilk bağlantıda, member_removed yalnızca son bağlantı
// koptuğunda yayınlanır.
type Hub struct {
	// mu, clients/channels/presence/seq haritalarını korur.
	//
	// Publish yolu Lock (write) alır: kanal seq sayacının artışı ile
	// event'in abone buffer'larına sıralanması tek kritik bölgede olur —
	// aynı kanalın event'leri tüm abonelere aynı sırayla ulaşır.
	mu sync.RWMutex

	clients  map[*Client]bool
	channels map[string]map[*Client]bool
	presence map[string]map[string]*presenceEntry
	seq      map[string]int64 // kanal → son verilen sequence

	// register/unregister: Client giriş/çıkış sinyalleri.
	register   chan *Client
	unregister chan *Client

	validator GrantValidator

	relayMu sync.RWMutex
	relay   Relay
}

// presenceEntry, bir kullanıcının bir kanaldaki roster girdisi.
// conns: kullanıcının bu kanala abone bağlantı sayısı (multi-tab).
type presenceEntry struct {
	member models.PresenceMember
	conns  int
}

// NewHub, yeni bir Hub oluşturur.
func NewHub(validator GrantValidator) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		channels:   make(map[string]map[*Client]bool),
		presence:   make(map[string]map[string]*presenceEntry),
		seq:        make(map[string]int64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		validator:  validator,
	}
}

// SetRelay, multi-instance relay'i bağlar. Hub çalışmaya başlamadan çağrılmalı.
func (h *Hub) SetRelay(r Relay) {
	h.relayMu.Lock()
	defer h.relayMu.Unlock()
	h.relay = r
}

// Run, Hub'ın ana event loop'udur. main.go'da `go hub.Run()` ile başlatılır.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
	log.Printf("[ws] client connected: socket=%s user=%s", client.socketID, client.userID)
}

// removeClient, client'ı tüm kanallarından düşürür ve send channel'ını kapatır.
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	removed := make(map[string]*models.PresenceMember) // kanal → ayrılan üye

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.closeSend()

		for channel := range client.channels {
			if member := h.dropSubscription(client, channel); member != nil {
				removed[channel] = member
			}
		}
		log.Printf("[ws] client disconnected: socket=%s user=%s", client.socketID, client.userID)
	}
	h.mu.Unlock()

	// member_removed broadcast'leri lock dışında — broadcastToChannel kendi
	// RLock'unu alır
	for channel, member := range removed {
		h.broadcastMemberRemoved(channel, member)
	}
}

// Subscribe, client'ı grant doğrulamasından geçirip kanala abone eder.
//
// İdempotent: zaten abone olan client için abonelik durumu DEĞİŞMEZ,
// sadece subscription_succeeded yeniden gönderilir — reconnect sonrası
// çifte subscribe çağrısı roster'ı bozmaz.
func (h *Hub) Subscribe(client *Client, channel, grant string) {
	claims, err := h.validator.ValidateGrant(grant, client.socketID, channel)
	if err != nil {
		client.sendEnvelope(Envelope{
			Op:      OpSubscriptionError,
			Channel: channel,
			Error:   "subscription rejected",
			Status:  pkg.MapErrorToStatus(err),
		})
		return
	}

	if claims.UserID != client.userID {
		client.sendEnvelope(Envelope{
			Op:      OpSubscriptionError,
			Channel: channel,
			Error:   "subscription rejected",
			Status:  403,
		})
		return
	}

	h.mu.Lock()

	var roster []models.PresenceMember
	var added *models.PresenceMember

	alreadySubscribed := client.channels[channel]
	if !alreadySubscribed {
		if _, ok := h.channels[channel]; !ok {
			h.channels[channel] = make(map[*Client]bool)
		}
		h.channels[channel][client] = true
		client.channels[channel] = true

		if claims.Member != nil {
			entries, ok := h.presence[channel]
			if !ok {
				entries = make(map[string]*presenceEntry)
				h.presence[channel] = entries
			}
			entry, exists := entries[client.userID]
			if exists {
				entry.conns++
			} else {
				entries[client.userID] = &presenceEntry{member: *claims.Member, conns: 1}
				m := *claims.Member
				added = &m
			}
		}
	}

	// Roster, abonelik anındaki snapshot — yeni üyenin kendisi dahil
	if entries, ok := h.presence[channel]; ok {
		roster = make([]models.PresenceMember, 0, len(entries))
		for _, entry := range entries {
			roster = append(roster, entry.member)
		}
	}

	h.mu.Unlock()

	client.sendEnvelope(Envelope{
		Op:      OpSubscriptionSucceeded,
		Channel: channel,
		Members: roster,
	})

	if added != nil {
		h.broadcastPresence(channel, OpMemberAdded, added, client)
	}
}

// Unsubscribe, client'ı kanaldan çıkarır. Abone değilse no-op.
func (h *Hub) Unsubscribe(client *Client, channel string) {
	h.mu.Lock()
	var member *models.PresenceMember
	if client.channels[channel] {
		member = h.dropSubscription(client, channel)
	}
	h.mu.Unlock()

	if member != nil {
		h.broadcastMemberRemoved(channel, member)
	}
}

// Publish, client'ın event'ini kanal abonelerine dağıtır ve relay'e forward eder.
//
// Kurallar:
//   - Client kanala abone değilse frame sessizce düşürülür (hata dönmez —
//     unsubscribe ile yarışta normal bir durumdur)
//   - Sadece "client-" prefix'li event adları kabul edilir
//   - Teslim, publisher'ın KENDİSİ DAHİL tüm abonelere yapılır; kendi
//     event'ini yoksaymak client kütüphanesinin işidir
func (h *Hub) Publish(client *Client, channel, event string, data json.RawMessage) {
	if !isClientEvent(event) {
		log.Printf("[ws] rejected non-client event %q from socket %s", event, client.socketID)
		return
	}

	h.mu.Lock()
	if !client.channels[channel] {
		h.mu.Unlock()
		return
	}
	h.deliverLocked(channel, event, data)
	h.mu.Unlock()

	h.relayMu.RLock()
	relay := h.relay
	h.relayMu.RUnlock()
	if relay != nil {
		relay.Forward(channel, event, data)
	}
}

// DeliverRemote, relay'den gelen (başka instance'ın publish ettiği) event'i
// yerel abonelere teslim eder.
func (h *Hub) DeliverRemote(channel, event string, data json.RawMessage) {
	h.mu.Lock()
	h.deliverLocked(channel, event, data)
	h.mu.Unlock()
}

// Shutdown, tüm client bağlantılarını kapatır (graceful shutdown).
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.closeSend()
	}
	h.clients = make(map[*Client]bool)
	h.channels = make(map[string]map[*Client]bool)
	h.presence = make(map[string]map[string]*presenceEntry)
	log.Println("[ws] hub shut down, all connections closed")
}

// ─── Private Helpers ───

// deliverLocked, event'i kanalın tüm abonelerine sıralı teslim eder.
// h.mu Lock'lu çağrılmalı — seq artışı ve buffer'lama tek kritik bölgede.
func (h *Hub) deliverLocked(channel, event string, data json.RawMessage) {
	subscribers, ok := h.channels[channel]
	if !ok {
		return
	}

	h.seq[channel]++
	env := Envelope{
		Op:      OpEvent,
		Channel: channel,
		Event:   event,
		Data:    data,
		Seq:     h.seq[channel],
	}

	payload, err := json.Marshal(env)
	if err != nil {
		log.Printf("[ws] failed to marshal event envelope: %v", err)
		return
	}

	for subscriber := range subscribers {
		if !subscriber.trySend(payload) {
			// Buffer dolu — bu client yavaş, kapat
			go func(c *Client) { h.unregister <- c }(subscriber)
		}
	}
}

// dropSubscription, aboneliği söker; kullanıcının kanaldaki SON bağlantısı
// idiyse roster'dan düşen üyeyi döner. h.mu Lock'lu çağrılmalı.
func (h *Hub) dropSubscription(client *Client, channel string) *models.PresenceMember {
	delete(client.channels, channel)

	if subscribers, ok := h.channels[channel]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.channels, channel)
			delete(h.seq, channel)
		}
	}

	entries, ok := h.presence[channel]
	if !ok {
		return nil
	}
	entry, ok := entries[client.userID]
	if !ok {
		return nil
	}

	entry.conns--
	if entry.conns > 0 {
		return nil // başka tab hâlâ bağlı — roster değişmez
	}

	delete(entries, client.userID)
	if len(entries) == 0 {
		delete(h.presence, channel)
	}
	member := entry.member
	return &member
}

// broadcastPresence, member_added/member_removed envelope'unu kanal abonelerine
// gönderir. exclude, event'in tetiklendiği client'tır — kendi katılımını
// subscription_succeeded'daki roster'dan zaten bilir.
func (h *Hub) broadcastPresence(channel, op string, member *models.PresenceMember, exclude *Client) {
	env := Envelope{Op: op, Channel: channel, Member: member}
	payload, err := json.Marshal(env)
	if err != nil {
		log.Printf("[ws] failed to marshal presence envelope: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for subscriber := range h.channels[channel] {
		if subscriber == exclude {
			continue
		}
		if !subscriber.trySend(payload) {
			go func(c *Client) { h.unregister <- c }(subscriber)
		}
	}
}

func (h *Hub) broadcastMemberRemoved(channel string, member *models.PresenceMember) {
	h.broadcastPresence(channel, OpMemberRemoved, member, nil)
}

func isClientEvent(event string) bool {
	return len(event) > len(clientEventPrefix) && event[:len(clientEventPrefix)] == clientEventPrefix
}
