package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/akinalp/tahta/models"
	"github.com/akinalp/tahta/pkg"
	"github.com/akinalp/tahta/repository"
)

// ProfileService, kullanıcının board'larda görünen kimliğinin yönetimi.
//
// Profil normalde Access Gate tarafından ilk bağlantıda otomatik oluşturulur;
// buradaki Update kullanıcının ismini/avatarını SONRADAN değiştirmesi içindir.
type ProfileService interface {
	Get(ctx context.Context, userID string) (*models.Profile, error)
	Update(ctx context.Context, userID string, req *models.UpdateProfileRequest) (*models.Profile, error)
}

type profileService struct {
	profileRepo repository.ProfileRepository
	userRepo    repository.UserRepository
}

// NewProfileService, constructor.
func NewProfileService(profileRepo repository.ProfileRepository, userRepo repository.UserRepository) ProfileService {
	return &profileService{profileRepo: profileRepo, userRepo: userRepo}
}

func (s *profileService) Get(ctx context.Context, userID string) (*models.Profile, error) {
	profile, err := s.profileRepo.GetByUserID(ctx, userID)
	if errors.Is(err, pkg.ErrNotFound) {
		// Henüz hiçbir board'a bağlanmamış kullanıcı — session kimliğinden türet
		return s.provision(ctx, userID)
	}
	return profile, err
}

func (s *profileService) Update(ctx context.Context, userID string, req *models.UpdateProfileRequest) (*models.Profile, error) {
	profile, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", pkg.ErrBadRequest)
		}
		if utf8.RuneCountInString(name) > 32 {
			return nil, fmt.Errorf("%w: name must be at most 32 characters", pkg.ErrBadRequest)
		}
		profile.Name = name
	}
	if req.AvatarURL != nil {
		if *req.AvatarURL == "" {
			profile.AvatarURL = nil
		} else {
			profile.AvatarURL = req.AvatarURL
		}
	}

	if err := s.profileRepo.Update(ctx, profile); err != nil {
		return nil, err
	}

	return profile, nil
}

// ─── Private Helpers ───

func (s *profileService) provision(ctx context.Context, userID string) (*models.Profile, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	name := user.Username
	if user.DisplayName != nil && *user.DisplayName != "" {
		name = *user.DisplayName
	}

	profile := &models.Profile{
		UserID:    userID,
		Name:      name,
		AvatarURL: user.AvatarURL,
	}

	if err := s.profileRepo.Upsert(ctx, profile); err != nil {
		return nil, err
	}

	return s.profileRepo.GetByUserID(ctx, userID)
}
