package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/akinalp/tahta/database"
	"github.com/akinalp/tahta/models"
	"github.com/akinalp/tahta/pkg"
	"github.com/akinalp/tahta/pkg/email"
	"github.com/akinalp/tahta/repository"
)

// WhiteboardService, board CRUD + paylaşım iş kuralları.
//
// Yetki modeli:
//   - Owner: her şey (rename, delete, share yönetimi)
//   - Collaborator (share edilen): görüntüleme + document kaydetme
//   - Diğer herkes: 404 değil 403 da değil — board'ı hiç göremez (ErrNotFound
//     sadece board gerçekten yoksa döner, erişimi olmayana ErrForbidden)
type WhiteboardService interface {
	Create(ctx context.Context, ownerID string, req *models.CreateWhiteboardRequest) (*models.Whiteboard, error)
	Get(ctx context.Context, boardID, userID string) (*models.Whiteboard, error)
	List(ctx context.Context, userID string) ([]models.Whiteboard, error)
	UpdateTitle(ctx context.Context, boardID, userID string, req *models.UpdateWhiteboardRequest) error
	// SaveDocument, board'un shape snapshot'ını kaydeder. Realtime akışın
	// kalıcılık noktasıdır: client periyodik olarak tüm dokümanı yollar.
	SaveDocument(ctx context.Context, boardID, userID string, req *models.SaveDocumentRequest) error
	Delete(ctx context.Context, boardID, userID string) error

	ShareByUsername(ctx context.Context, boardID, ownerID string, req *models.CreateShareRequest) (*models.WhiteboardShare, error)
	ListShares(ctx context.Context, boardID, userID string) ([]models.WhiteboardShare, error)
	RemoveShare(ctx context.Context, boardID, ownerID, targetUserID string) error
}

type whiteboardService struct {
	db        *sql.DB // Delete'te WithTx için
	boardRepo repository.WhiteboardRepository
	userRepo  repository.UserRepository
	gate      GateService
	sender    email.EmailSender
}

// NewWhiteboardService, constructor.
//
// gate: share değişikliklerinde erişim cache'ini düşürmek için.
// sender: share davetinde bilgilendirme emaili — başarısızlığı işlemi bozmaz.
func NewWhiteboardService(
	db *sql.DB,
	boardRepo repository.WhiteboardRepository,
	userRepo repository.UserRepository,
	gate GateService,
	sender email.EmailSender,
) WhiteboardService {
	return &whiteboardService{
		db:        db,
		boardRepo: boardRepo,
		userRepo:  userRepo,
		gate:      gate,
		sender:    sender,
	}
}

func (s *whiteboardService) Create(ctx context.Context, ownerID string, req *models.CreateWhiteboardRequest) (*models.Whiteboard, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBadRequest, err)
	}

	board := &models.Whiteboard{
		OwnerID: ownerID,
		Title:   req.Title,
	}

	if err := s.boardRepo.Create(ctx, board); err != nil {
		return nil, err
	}

	return board, nil
}

func (s *whiteboardService) Get(ctx context.Context, boardID, userID string) (*models.Whiteboard, error) {
	board, err := s.boardRepo.GetByID(ctx, boardID)
	if err != nil {
		return nil, err
	}

	allowed, err := s.boardRepo.HasAccess(ctx, boardID, userID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("%w: no access to this whiteboard", pkg.ErrForbidden)
	}

	return board, nil
}

func (s *whiteboardService) List(ctx context.Context, userID string) ([]models.Whiteboard, error) {
	return s.boardRepo.ListAccessible(ctx, userID)
}

func (s *whiteboardService) UpdateTitle(ctx context.Context, boardID, userID string, req *models.UpdateWhiteboardRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", pkg.ErrBadRequest, err)
	}

	if err := s.requireOwner(ctx, boardID, userID); err != nil {
		return err
	}

	return s.boardRepo.UpdateTitle(ctx, boardID, req.Title)
}

func (s *whiteboardService) SaveDocument(ctx context.Context, boardID, userID string, req *models.SaveDocumentRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", pkg.ErrBadRequest, err)
	}

	allowed, err := s.boardRepo.HasAccess(ctx, boardID, userID)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: no access to this whiteboard", pkg.ErrForbidden)
	}

	return s.boardRepo.SaveDocument(ctx, boardID, req.Document)
}

// Delete, board'u tüm share ve comment'leriyle birlikte tek transaction'da siler.
func (s *whiteboardService) Delete(ctx context.Context, boardID, userID string) error {
	if err := s.requireOwner(ctx, boardID, userID); err != nil {
		return err
	}

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE whiteboard_id = ?`, boardID); err != nil {
			return fmt.Errorf("failed to delete comments: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM whiteboard_shares WHERE whiteboard_id = ?`, boardID); err != nil {
			return fmt.Errorf("failed to delete shares: %w", err)
		}
		txBoardRepo := repository.NewSQLiteWhiteboardRepo(tx)
		return txBoardRepo.Delete(ctx, boardID)
	})
	if err != nil {
		return err
	}

	s.gate.InvalidateAccess(boardID)
	return nil
}

// ShareByUsername, board'u kullanıcı adıyla paylaşır ve davet emaili yollar.
func (s *whiteboardService) ShareByUsername(ctx context.Context, boardID, ownerID string, req *models.CreateShareRequest) (*models.WhiteboardShare, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBadRequest, err)
	}

	board, err := s.boardRepo.GetByID(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if board.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: only the owner can share a whiteboard", pkg.ErrForbidden)
	}

	target, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %q not found", pkg.ErrNotFound, req.Username)
		}
		return nil, err
	}
	if target.ID == ownerID {
		return nil, fmt.Errorf("%w: cannot share a whiteboard with its owner", pkg.ErrBadRequest)
	}

	share := &models.WhiteboardShare{
		WhiteboardID: boardID,
		UserID:       target.ID,
		Role:         req.Role,
	}

	if err := s.boardRepo.CreateShare(ctx, share); err != nil {
		return nil, err
	}
	share.Username = target.Username
	if target.DisplayName != nil && *target.DisplayName != "" {
		share.Name = *target.DisplayName
	} else {
		share.Name = target.Username
	}

	// Erişim cache'inde bu kullanıcı için negatif karar kalmış olabilir
	s.gate.InvalidateAccess(boardID)

	// Email best-effort: gönderim hatası paylaşımı geri almaz
	owner, err := s.userRepo.GetByID(ctx, ownerID)
	if err == nil {
		inviterName := owner.Username
		if owner.DisplayName != nil && *owner.DisplayName != "" {
			inviterName = *owner.DisplayName
		}
		if err := s.sender.SendShareInvite(ctx, target.Email, inviterName, board.Title, boardID); err != nil {
			log.Printf("[whiteboard] share invite email failed for board %s: %v", boardID, err)
		}
	}

	return share, nil
}

func (s *whiteboardService) ListShares(ctx context.Context, boardID, userID string) ([]models.WhiteboardShare, error) {
	// Share listesini tüm collaborator'lar görebilir, yönetimi sadece owner yapar
	allowed, err := s.boardRepo.HasAccess(ctx, boardID, userID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		if _, getErr := s.boardRepo.GetByID(ctx, boardID); errors.Is(getErr, pkg.ErrNotFound) {
			return nil, pkg.ErrNotFound
		}
		return nil, fmt.Errorf("%w: no access to this whiteboard", pkg.ErrForbidden)
	}

	return s.boardRepo.ListShares(ctx, boardID)
}

func (s *whiteboardService) RemoveShare(ctx context.Context, boardID, ownerID, targetUserID string) error {
	if err := s.requireOwner(ctx, boardID, ownerID); err != nil {
		return err
	}

	if err := s.boardRepo.DeleteShare(ctx, boardID, targetUserID); err != nil {
		return err
	}

	s.gate.InvalidateAccess(boardID)
	return nil
}

// ─── Private Helpers ───

func (s *whiteboardService) requireOwner(ctx context.Context, boardID, userID string) error {
	board, err := s.boardRepo.GetByID(ctx, boardID)
	if err != nil {
		return err
	}
	if board.OwnerID != userID {
		return fmt.Errorf("%w: only the owner can perform this action", pkg.ErrForbidden)
	}
	return nil
}
