package ws

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/akinalp/tahta/models"
)

// TokenValidator, WebSocket handler'ın JWT doğrulaması için kullandığı interface.
//
// services.AuthService yerine küçük, odaklı bir interface: handler'ın sadece
// ValidateAccessToken'a ihtiyacı var. main.go'da authService bu interface'i
// implicit olarak karşılar.
type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*models.TokenClaims, error)
}

// upgrader, HTTP bağlantısını WebSocket bağlantısına yükseltir.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CheckOrigin: Production'da domain kontrolü yapılmalı.
	// Şimdilik tüm origin'lere izin veriyoruz (development için).
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler, WebSocket bağlantı isteklerini işleyen HTTP handler'ı.
type Handler struct {
	hub            *Hub
	tokenValidator TokenValidator
}

// NewHandler, yeni bir WebSocket handler oluşturur.
func NewHandler(hub *Hub, tokenValidator TokenValidator) *Handler {
	return &Handler{
		hub:            hub,
		tokenValidator: tokenValidator,
	}
}

// HandleConnection, HTTP bağlantısını WebSocket'e yükseltir ve client'ı Hub'a kaydeder.
//
// WebSocket bağlantısında HTTP header göndermek zordur (tarayıcı sınırlaması),
// token URL query parameter'ı olarak gönderilir:
//
//	ws://server/realtime?token=JWT_TOKEN
//
// Flow:
//  1. Query'den token al, doğrula
//  2. HTTP → WebSocket upgrade
//  3. socket_id üret, client'ı Hub'a kaydet
//  4. connection_established ile socket_id'yi bildir — client auth
//     endpoint'inde bu id'yi kullanır
//  5. ReadPump/WritePump goroutine'lerini başlat
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.tokenValidator.ValidateAccessToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed for user %s: %v", claims.UserID, err)
		return
	}

	client := &Client{
		hub:      h.hub,
		conn:     conn,
		socketID: uuid.NewString(),
		userID:   claims.UserID,
		channels: make(map[string]bool),
		send:     make(chan []byte, sendBufferSize),
	}

	h.hub.register <- client

	// socket_id client'a hemen bildirilir — grant istemeden önce lazım
	data, _ := json.Marshal(ConnectionData{SocketID: client.socketID})
	client.sendEnvelope(Envelope{Op: OpConnectionEstablished, Data: data})

	// WritePump ayrı goroutine'de; ReadPump bu goroutine'de bloklar —
	// handler dönerse bağlantı kapanır.
	go client.WritePump()
	client.ReadPump()
}
