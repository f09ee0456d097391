package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims, access token'ın içindeki veriler (payload).
//
// Server her request'te token imzasını doğrular — DB'ye gitmeden
// kullanıcının kim olduğunu bilir.
//
// models paketinde tanımlanır çünkü birden fazla katman (services, ws,
// middleware) kullanır — her katman models'e bağımlı olabilir, circular
// dependency oluşmaz.
type TokenClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// GrantClaims, Access Gate'in ürettiği kanal grant'inin payload'ı.
//
// Grant tek bir (socket_id, channel_name) çiftine scope'ludur: hub subscribe
// sırasında hem imzayı hem de claim'lerin o bağlantı ve o kanala ait olduğunu
// doğrular. Başka bir socket'in veya kanalın grant'i işe yaramaz.
//
// Presence kanalı grant'lerinde Member dolu gelir — hub bu profili roster'a
// koyar, diğer üyeler ikinci bir round trip yapmadan görür.
type GrantClaims struct {
	SocketID    string          `json:"socket_id"`
	ChannelName string          `json:"channel_name"`
	UserID      string          `json:"user_id"`
	Member      *PresenceMember `json:"member,omitempty"`
	jwt.RegisteredClaims
}
