// Package repository, veritabanı erişim katmanını tanımlar.
//
// Repository Pattern: CRUD işlemleri soyutlanır, service katmanı doğrudan
// SQL yazmaz — interface üzerinden çalışır.
//
// Neden interface?
// 1. Test: mock repository ile DB olmadan test edilebilir
// 2. Esneklik: SQLite → PostgreSQL geçişi sadece yeni implementasyon ister
// 3. Dependency Inversion: service concrete struct'a değil interface'e bağımlı
//
// Go'da interface "implicit"tır — struct, interface'deki tüm method'ları
// implement ediyorsa otomatik olarak o interface'i sağlar.
package repository

import (
	"context"

	"github.com/akinalp/tahta/models"
)

// UserRepository, kullanıcı veritabanı işlemleri için interface.
//
// Her method context.Context alır — HTTP isteği iptal edilirse devam eden
// sorgu da durur, resource waste önlenir.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	// UpdatePassword, kullanıcının bcrypt hash'ini günceller.
	UpdatePassword(ctx context.Context, userID string, newPasswordHash string) error
	Delete(ctx context.Context, id string) error
}
