// Package ws, kanal tabanlı gerçek zamanlı event dağıtımını sağlar.
//
// Mimari:
// - Hub: Kanal aboneliklerini ve presence roster'larını yöneten merkezi yapı
// - Client: Her WebSocket bağlantısını temsil eder (socket_id ile)
// - Envelope: Client-server arası iletilen mesaj formatı
// - RedisBroker: Birden fazla hub instance'ı arasında event relay'i (opsiyonel)
//
// Akış:
//  1. Client bağlanır → connection_established ile socket_id alır
//  2. HTTP auth endpoint'inden (socket_id, channel_name) için grant alır
//  3. subscribe frame'i ile grant'i sunar → hub doğrular, kanala ekler
//  4. publish ile client-* event'leri yollar → hub kanal abonelerine dağıtır
package ws

import (
	"encoding/json"

	"github.com/akinalp/tahta/models"
)

// Envelope, WebSocket üzerinden iletilen bir mesajı temsil eder.
//
// Op: operasyon türü — "subscribe", "event", "heartbeat" vb.
// Channel: operasyonun hedef kanalı (kanal operasyonlarında dolu).
// Event: publish/event operasyonlarında uygulama event'inin adı
// ("client-shape-change", "client-cursor-move").
// Data: event payload'ı — hub içeriğini yorumlamaz, olduğu gibi taşır
// (json.RawMessage: relay sırasında re-marshal edilmez).
// Seq: kanal başına artan sayaç — aynı kanalın event'leri publish
// sırasıyla teslim edilir, client eksik event'i seq'ten tespit eder.
type Envelope struct {
	Op      string                  `json:"op"`
	Channel string                  `json:"channel,omitempty"`
	Event   string                  `json:"event,omitempty"`
	Grant   string                  `json:"grant,omitempty"`
	Data    json.RawMessage         `json:"d,omitempty"`
	Seq     int64                   `json:"seq,omitempty"`
	Error   string                  `json:"error,omitempty"`
	Status  int                     `json:"status,omitempty"`
	Members []models.PresenceMember `json:"members,omitempty"`
	Member  *models.PresenceMember  `json:"member,omitempty"`
}

// Client → Server operasyonları
const (
	OpSubscribe   = "subscribe"   // Grant ile kanal aboneliği
	OpUnsubscribe = "unsubscribe" // Kanaldan ayrılma
	OpPublish     = "publish"     // Kanala client event'i yayınlama
	OpHeartbeat   = "heartbeat"   // Client her 30sn'de gönderir — "hâlâ bağlıyım" sinyali
)

// Server → Client operasyonları
const (
	OpConnectionEstablished = "connection_established" // Bağlantı kuruldu — socket_id taşır
	OpHeartbeatAck          = "heartbeat_ack"          // Heartbeat'e yanıt — "seni duydum"
	OpSubscriptionSucceeded = "subscription_succeeded" // Abonelik tamam — presence'ta roster taşır
	OpSubscriptionError     = "subscription_error"     // Abonelik reddedildi — error + status taşır
	OpMemberAdded           = "member_added"           // Presence kanalına yeni üye katıldı
	OpMemberRemoved         = "member_removed"         // Üyenin son bağlantısı kanaldan ayrıldı
	OpEvent                 = "event"                  // Kanala yayınlanmış uygulama event'i
)

// ConnectionData, connection_established payload'ı.
type ConnectionData struct {
	SocketID string `json:"socket_id"`
}

// clientEventPrefix: hub sadece bu prefix'le başlayan event'leri relay eder.
// Sunucu kaynaklı operasyon adları (member_added vb.) client tarafından
// taklit edilemez.
const clientEventPrefix = "client-"
