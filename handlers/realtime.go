package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/akinalp/tahta/models"
	"github.com/akinalp/tahta/pkg"
	"github.com/akinalp/tahta/services"
)

// RealtimeHandler, kanal yetkilendirme endpoint'i (Access Gate'in HTTP yüzü).
type RealtimeHandler struct {
	gateService services.GateService
}

// NewRealtimeHandler, constructor.
func NewRealtimeHandler(gateService services.GateService) *RealtimeHandler {
	return &RealtimeHandler{gateService: gateService}
}

// Authorize godoc
// POST /api/realtime/auth
// Body: { "socket_id": "...", "channel_name": "private-whiteboard-abc123" }
//
// Başarıda { grant, member? } döner; member sadece presence kanallarında dolu.
// Hatada status body'de de taşınır — client kütüphanesi 401/403/404 ayrımını
// HTTP status'a bakmadan yapabilir.
func (h *RealtimeHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	var req models.ChannelAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	grant, err := h.gateService.Authorize(r.Context(), req.SocketID, req.ChannelName, user.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, grant)
}
