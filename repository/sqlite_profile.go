package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/akinalp/tahta/database"
	"github.com/akinalp/tahta/models"
	"github.com/akinalp/tahta/pkg"
)

// sqliteProfileRepo, ProfileRepository interface'inin SQLite implementasyonu.
type sqliteProfileRepo struct {
	db database.TxQuerier
}

// NewSQLiteProfileRepo, constructor.
func NewSQLiteProfileRepo(db database.TxQuerier) ProfileRepository {
	return &sqliteProfileRepo{db: db}
}

func (r *sqliteProfileRepo) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	query := `
		SELECT user_id, name, avatar_url, created_at
		FROM profiles WHERE user_id = ?`

	profile := &models.Profile{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&profile.UserID, &profile.Name, &profile.AvatarURL, &profile.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return profile, nil
}

func (r *sqliteProfileRepo) Upsert(ctx context.Context, profile *models.Profile) error {
	// ON CONFLICT DO NOTHING: profil zaten varsa auto-provision onu ezmez.
	// RETURNING kullanılamaz (conflict'te satır dönmez) — created_at için
	// ayrı SELECT yapmak yerine alan olduğu gibi bırakılır, gate'in ihtiyacı yok.
	query := `
		INSERT INTO profiles (user_id, name, avatar_url)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query,
		profile.UserID, profile.Name, profile.AvatarURL,
	); err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	return nil
}

func (r *sqliteProfileRepo) Update(ctx context.Context, profile *models.Profile) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET name = ?, avatar_url = ? WHERE user_id = ?`,
		profile.Name, profile.AvatarURL, profile.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return pkg.ErrNotFound
	}

	return nil
}
