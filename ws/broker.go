package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// relayPrefix, her kanalın Redis topic'inin prefix'i.
// Kanal adı olduğu gibi eklenir: tahta:ch:presence-whiteboard-abc123
const relayPrefix = "tahta:ch:"

// relayMessage, instance'lar arası taşınan event.
//
// Instance alanı loop guard'dır: her broker kendi uuid'ini yazar ve kendi
// yayınladığı mesajı Redis'ten geri okuyunca yoksayar — aksi halde her
// event yerel abonelere iki kez teslim edilirdi.
type relayMessage struct {
	Instance string          `json:"instance"`
	Event    string          `json:"event"`
	Data     json.RawMessage `json:"d,omitempty"`
}

// RedisBroker, birden fazla hub instance'ını Redis pub/sub üzerinden birbirine
// bağlar. Tek instance deployment'ta hiç oluşturulmaz (Relay nil kalır).
//
// Redis pub/sub tek bir topic içinde yayın sırasını korur — kanal başına bir
// topic kullanıldığı için hub'ın kanal içi sıralama garantisi instance'lar
// arasında da geçerli kalır.
type RedisBroker struct {
	client     *redis.Client
	hub        *Hub
	instanceID string
	pubsub     *redis.PubSub
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewRedisBroker, broker'ı başlatır ve relay goroutine'ini çalıştırır.
// Dönen broker hub'a SetRelay ile bağlanmalıdır.
func NewRedisBroker(ctx context.Context, client *redis.Client, hub *Hub) (*RedisBroker, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())

	b := &RedisBroker{
		client:     client,
		hub:        hub,
		instanceID: uuid.NewString(),
		pubsub:     client.PSubscribe(runCtx, relayPrefix+"*"),
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	// İlk subscription onayını bekle — broker dönmeden relay aktif olmalı,
	// yoksa başlangıçtaki publish'ler diğer instance'lara ulaşmaz.
	if _, err := b.pubsub.Receive(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to subscribe to relay topics: %w", err)
	}

	go b.run(runCtx)

	log.Printf("[broker] redis relay active, instance=%s", b.instanceID)
	return b, nil
}

// Forward, yerel publish'i diğer instance'lara duyurur (Relay interface'i).
func (b *RedisBroker) Forward(channel, event string, data json.RawMessage) {
	payload, err := json.Marshal(relayMessage{
		Instance: b.instanceID,
		Event:    event,
		Data:     data,
	})
	if err != nil {
		log.Printf("[broker] failed to marshal relay message: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.client.Publish(ctx, relayPrefix+channel, payload).Err(); err != nil {
		log.Printf("[broker] failed to forward event on channel %s: %v", channel, err)
	}
}

// Close, relay goroutine'ini durdurur ve pubsub bağlantısını kapatır.
func (b *RedisBroker) Close() error {
	b.cancel()
	err := b.pubsub.Close()
	<-b.done
	return err
}

// run, Redis'ten gelen relay mesajlarını yerel abonelere teslim eder.
func (b *RedisBroker) run(ctx context.Context) {
	defer close(b.done)

	ch := b.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var relayed relayMessage
			if err := json.Unmarshal([]byte(msg.Payload), &relayed); err != nil {
				log.Printf("[broker] invalid relay payload on %s: %v", msg.Channel, err)
				continue
			}

			// Kendi yayınımız — yerel teslim Publish sırasında yapıldı
			if relayed.Instance == b.instanceID {
				continue
			}

			channel := strings.TrimPrefix(msg.Channel, relayPrefix)
			b.hub.DeliverRemote(channel, relayed.Event, relayed.Data)
		}
	}
}
