package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/akinalp/tahta/models"
	"github.com/akinalp/tahta/pkg"
	"github.com/akinalp/tahta/services"
)

// WhiteboardHandler, board CRUD + paylaşım endpoint'leri.
type WhiteboardHandler struct {
	boardService services.WhiteboardService
}

// NewWhiteboardHandler, constructor.
func NewWhiteboardHandler(boardService services.WhiteboardService) *WhiteboardHandler {
	return &WhiteboardHandler{boardService: boardService}
}

// Create godoc
// POST /api/whiteboards
func (h *WhiteboardHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	var req models.CreateWhiteboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	board, err := h.boardService.Create(r.Context(), user.ID, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, board)
}

// List godoc
// GET /api/whiteboards — kullanıcının sahibi olduğu + kendisine paylaşılanlar
func (h *WhiteboardHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	boards, err := h.boardService.List(r.Context(), user.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, boards)
}

// Get godoc
// GET /api/whiteboards/{boardId} — document snapshot dahil
func (h *WhiteboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	board, err := h.boardService.Get(r.Context(), r.PathValue("boardId"), user.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, board)
}

// Update godoc
// PATCH /api/whiteboards/{boardId} — sadece owner
func (h *WhiteboardHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	var req models.UpdateWhiteboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.boardService.UpdateTitle(r.Context(), r.PathValue("boardId"), user.ID, &req); err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]string{"message": "whiteboard updated"})
}

// SaveDocument godoc
// PUT /api/whiteboards/{boardId}/document
// Body: { "document": { "records": [...] } }
//
// Realtime akışın kalıcılık noktası: client periyodik olarak (ve tab
// kapanırken) dokümanın tam snapshot'ını yollar.
func (h *WhiteboardHandler) SaveDocument(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	var req models.SaveDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.boardService.SaveDocument(r.Context(), r.PathValue("boardId"), user.ID, &req); err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]string{"message": "document saved"})
}

// Delete godoc
// DELETE /api/whiteboards/{boardId} — sadece owner
func (h *WhiteboardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	if err := h.boardService.Delete(r.Context(), r.PathValue("boardId"), user.ID); err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]string{"message": "whiteboard deleted"})
}

// Share godoc
// POST /api/whiteboards/{boardId}/shares
// Body: { "username": "...", "role": "editor" }
func (h *WhiteboardHandler) Share(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	var req models.CreateShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	share, err := h.boardService.ShareByUsername(r.Context(), r.PathValue("boardId"), user.ID, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, share)
}

// ListShares godoc
// GET /api/whiteboards/{boardId}/shares
func (h *WhiteboardHandler) ListShares(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	shares, err := h.boardService.ListShares(r.Context(), r.PathValue("boardId"), user.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, shares)
}

// RemoveShare godoc
// DELETE /api/whiteboards/{boardId}/shares/{userId}
func (h *WhiteboardHandler) RemoveShare(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	if err := h.boardService.RemoveShare(r.Context(), r.PathValue("boardId"), user.ID, r.PathValue("userId")); err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]string{"message": "share removed"})
}
