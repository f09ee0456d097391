package repository

import (
	"context"

	"github.com/akinalp/tahta/models"
)

// CommentRepository, board yorumları için veri erişim sözleşmesi.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	ListByWhiteboard(ctx context.Context, boardID string) ([]models.Comment, error)
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	Delete(ctx context.Context, id string) error
}
