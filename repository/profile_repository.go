package repository

import (
	"context"

	"github.com/akinalp/tahta/models"
)

// ProfileRepository, collaborator profilleri için interface.
//
// Upsert, Access Gate'in auto-provision adımı içindir: profil yoksa oluşturur,
// varsa DOKUNMAZ (kullanıcının kendi seçtiği isim/avatar ezilmez).
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.Profile, error)
	Upsert(ctx context.Context, profile *models.Profile) error
	Update(ctx context.Context, profile *models.Profile) error
}
