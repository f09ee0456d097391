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

// sqliteWhiteboardRepo, WhiteboardRepository interface'inin SQLite implementasyonu.
type sqliteWhiteboardRepo struct {
	db database.TxQuerier
}

// NewSQLiteWhiteboardRepo, constructor.
func NewSQLiteWhiteboardRepo(db database.TxQuerier) WhiteboardRepository {
	return &sqliteWhiteboardRepo{db: db}
}

func (r *sqliteWhiteboardRepo) Create(ctx context.Context, board *models.Whiteboard) error {
	query := `
		INSERT INTO whiteboards (owner_id, title)
		VALUES (?, ?)
		RETURNING id, document, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		board.OwnerID,
		board.Title,
	).Scan(&board.ID, (*[]byte)(&board.Document), &board.CreatedAt, &board.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create whiteboard: %w", err)
	}

	return nil
}

func (r *sqliteWhiteboardRepo) GetByID(ctx context.Context, id string) (*models.Whiteboard, error) {
	query := `
		SELECT id, owner_id, title, document, created_at, updated_at
		FROM whiteboards WHERE id = ?`

	board := &models.Whiteboard{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&board.ID, &board.OwnerID, &board.Title, (*[]byte)(&board.Document),
		&board.CreatedAt, &board.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get whiteboard: %w", err)
	}

	return board, nil
}

func (r *sqliteWhiteboardRepo) ListAccessible(ctx context.Context, userID string) ([]models.Whiteboard, error) {
	// Owner olduğu + paylaşılan board'lar tek sorguda.
	// Document seçilmez — liste görünümü snapshot'ı taşımamalı.
	query := `
		SELECT DISTINCT w.id, w.owner_id, w.title, w.created_at, w.updated_at
		FROM whiteboards w
		LEFT JOIN whiteboard_shares s ON s.whiteboard_id = w.id
		WHERE w.owner_id = ? OR s.user_id = ?
		ORDER BY w.updated_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list whiteboards: %w", err)
	}
	defer rows.Close() // rows kapatmayı ASLA unutma — aksi halde bağlantı leak olur

	var boards []models.Whiteboard
	for rows.Next() {
		var b models.Whiteboard
		if err := rows.Scan(&b.ID, &b.OwnerID, &b.Title, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan whiteboard row: %w", err)
		}
		boards = append(boards, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating whiteboard rows: %w", err)
	}

	return boards, nil
}

func (r *sqliteWhiteboardRepo) UpdateTitle(ctx context.Context, id, title string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE whiteboards SET title = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		title, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update whiteboard title: %w", err)
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

func (r *sqliteWhiteboardRepo) SaveDocument(ctx context.Context, id string, document []byte) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE whiteboards SET document = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(document), id,
	)
	if err != nil {
		return fmt.Errorf("failed to save whiteboard document: %w", err)
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

func (r *sqliteWhiteboardRepo) Delete(ctx context.Context, id string) error {
	// Share ve comment kayıtları FK ON DELETE CASCADE ile silinir.
	result, err := r.db.ExecContext(ctx, `DELETE FROM whiteboards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete whiteboard: %w", err)
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

func (r *sqliteWhiteboardRepo) HasAccess(ctx context.Context, boardID, userID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM whiteboards w
			LEFT JOIN whiteboard_shares s ON s.whiteboard_id = w.id AND s.user_id = ?
			WHERE w.id = ? AND (w.owner_id = ? OR s.user_id IS NOT NULL)
		)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, userID, boardID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check whiteboard access: %w", err)
	}

	return ok, nil
}

func (r *sqliteWhiteboardRepo) CreateShare(ctx context.Context, share *models.WhiteboardShare) error {
	query := `
		INSERT INTO whiteboard_shares (whiteboard_id, user_id, role)
		VALUES (?, ?, ?)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		share.WhiteboardID,
		share.UserID,
		share.Role,
	).Scan(&share.ID, &share.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: board already shared with this user", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create share: %w", err)
	}

	return nil
}

func (r *sqliteWhiteboardRepo) ListShares(ctx context.Context, boardID string) ([]models.WhiteboardShare, error) {
	// Username users'tan, görünür isim profiles'tan JOIN'lenir.
	// Profili henüz auto-provision edilmemiş kullanıcı için COALESCE fallback.
	query := `
		SELECT s.id, s.whiteboard_id, s.user_id, s.role, s.created_at,
		       u.username, COALESCE(p.name, COALESCE(u.display_name, u.username))
		FROM whiteboard_shares s
		JOIN users u ON u.id = s.user_id
		LEFT JOIN profiles p ON p.user_id = s.user_id
		WHERE s.whiteboard_id = ?
		ORDER BY s.created_at`

	rows, err := r.db.QueryContext(ctx, query, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares: %w", err)
	}
	defer rows.Close()

	var shares []models.WhiteboardShare
	for rows.Next() {
		var s models.WhiteboardShare
		if err := rows.Scan(
			&s.ID, &s.WhiteboardID, &s.UserID, &s.Role, &s.CreatedAt,
			&s.Username, &s.Name,
		); err != nil {
			return nil, fmt.Errorf("failed to scan share row: %w", err)
		}
		shares = append(shares, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating share rows: %w", err)
	}

	return shares, nil
}

func (r *sqliteWhiteboardRepo) DeleteShare(ctx context.Context, boardID, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM whiteboard_shares WHERE whiteboard_id = ? AND user_id = ?`,
		boardID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete share: %w", err)
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
