package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/akinalp/tahta/models"
	"github.com/akinalp/tahta/pkg"
	"github.com/akinalp/tahta/services"
)

// ProfileHandler, collaborator profil endpoint'leri.
type ProfileHandler struct {
	profileService services.ProfileService
}

// NewProfileHandler, constructor.
func NewProfileHandler(profileService services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// Get godoc
// GET /api/profile — kullanıcının board'larda görünen kimliği
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	profile, err := h.profileService.Get(r.Context(), user.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, profile)
}

// Update godoc
// PATCH /api/profile
// Body: { "name": "...", "avatar_url": "..." } — alanlar opsiyonel
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	var req models.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, err := h.profileService.Update(r.Context(), user.ID, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, profile)
}
