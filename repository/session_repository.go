package repository

import (
	"context"

	"github.com/akinalp/tahta/models"
)

// SessionRepository, JWT refresh token oturumları için interface.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	// GetByTokenHash, refresh token'ın SHA256 hash'i ile oturumu bulur.
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteByUserID(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context) error
}
