package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/akinalp/tahta/models"
	"github.com/akinalp/tahta/pkg"
	"github.com/akinalp/tahta/repository"
)

// CommentService, board yorumları.
//
// Yorumlar realtime kanaldan DEĞİL, HTTP üzerinden akar — kalıcı içeriktir,
// cursor gibi kaybolabilir veri değildir.
type CommentService interface {
	Create(ctx context.Context, boardID, authorID string, req *models.CreateCommentRequest) (*models.Comment, error)
	List(ctx context.Context, boardID, userID string) ([]models.Comment, error)
	// Delete: yorum sahibi veya board owner'ı silebilir.
	Delete(ctx context.Context, commentID, userID string) error
}

type commentService struct {
	commentRepo repository.CommentRepository
	boardRepo   repository.WhiteboardRepository
}

// NewCommentService, constructor.
func NewCommentService(commentRepo repository.CommentRepository, boardRepo repository.WhiteboardRepository) CommentService {
	return &commentService{commentRepo: commentRepo, boardRepo: boardRepo}
}

func (s *commentService) Create(ctx context.Context, boardID, authorID string, req *models.CreateCommentRequest) (*models.Comment, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBadRequest, err)
	}

	if err := s.requireAccess(ctx, boardID, authorID); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		WhiteboardID: boardID,
		AuthorID:     authorID,
		Body:         req.Body,
	}

	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	return comment, nil
}

func (s *commentService) List(ctx context.Context, boardID, userID string) ([]models.Comment, error) {
	if err := s.requireAccess(ctx, boardID, userID); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByWhiteboard(ctx, boardID)
}

func (s *commentService) Delete(ctx context.Context, commentID, userID string) error {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return err
	}

	if comment.AuthorID != userID {
		board, err := s.boardRepo.GetByID(ctx, comment.WhiteboardID)
		if err != nil {
			return err
		}
		if board.OwnerID != userID {
			return fmt.Errorf("%w: only the author or board owner can delete a comment", pkg.ErrForbidden)
		}
	}

	return s.commentRepo.Delete(ctx, commentID)
}

// ─── Private Helpers ───

func (s *commentService) requireAccess(ctx context.Context, boardID, userID string) error {
	allowed, err := s.boardRepo.HasAccess(ctx, boardID, userID)
	if err != nil {
		return err
	}
	if !allowed {
		if _, getErr := s.boardRepo.GetByID(ctx, boardID); errors.Is(getErr, pkg.ErrNotFound) {
			return pkg.ErrNotFound
		}
		return fmt.Errorf("%w: no access to this whiteboard", pkg.ErrForbidden)
	}
	return nil
}
