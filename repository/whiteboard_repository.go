package repository

import (
	"context"

	"github.com/akinalp/tahta/models"
)

// WhiteboardRepository, board ve paylaşım veritabanı işlemleri için interface.
//
// Share işlemleri board'dan ayrı bir repository'ye bölünmedi: share kayıtları
// board'suz bir anlam taşımaz ve Access Gate'in tek sorguda cevapladığı
// "erişebilir mi?" sorusu iki tabloyu birden ilgilendirir.
type WhiteboardRepository interface {
	Create(ctx context.Context, board *models.Whiteboard) error
	GetByID(ctx context.Context, id string) (*models.Whiteboard, error)
	// ListAccessible, kullanıcının sahibi olduğu + kendisiyle paylaşılan
	// board'ları döner. Document alanı doldurulmaz (liste hafif kalır).
	ListAccessible(ctx context.Context, userID string) ([]models.Whiteboard, error)
	UpdateTitle(ctx context.Context, id, title string) error
	// SaveDocument, client'ın debounce ile gönderdiği JSON snapshot'ı yazar.
	SaveDocument(ctx context.Context, id string, document []byte) error
	Delete(ctx context.Context, id string) error

	// HasAccess, kullanıcının board'a erişimi olup olmadığını tek sorguda döner:
	// owner VEYA share listesinde. Access Gate'in sıcak yoludur.
	HasAccess(ctx context.Context, boardID, userID string) (bool, error)

	CreateShare(ctx context.Context, share *models.WhiteboardShare) error
	ListShares(ctx context.Context, boardID string) ([]models.WhiteboardShare, error)
	DeleteShare(ctx context.Context, boardID, userID string) error
}
