package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/akinalp/tahta/models"
	"github.com/akinalp/tahta/pkg"
	"github.com/akinalp/tahta/services"
)

// CommentHandler, board yorum endpoint'leri.
type CommentHandler struct {
	commentService services.CommentService
}

// NewCommentHandler, constructor.
func NewCommentHandler(commentService services.CommentService) *CommentHandler {
	return &CommentHandler{commentService: commentService}
}

// Create godoc
// POST /api/whiteboards/{boardId}/comments
// Body: { "body": "..." }
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	var req models.CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	comment, err := h.commentService.Create(r.Context(), r.PathValue("boardId"), user.ID, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, comment)
}

// List godoc
// GET /api/whiteboards/{boardId}/comments
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	comments, err := h.commentService.List(r.Context(), r.PathValue("boardId"), user.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, comments)
}

// Delete godoc
// DELETE /api/comments/{commentId} — yorum sahibi veya board owner'ı
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	if err := h.commentService.Delete(r.Context(), r.PathValue("commentId"), user.ID); err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]string{"message": "comment deleted"})
}
