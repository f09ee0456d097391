package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akinalp/tahta/models"
	"github.com/akinalp/tahta/pkg"
	"github.com/akinalp/tahta/pkg/cache"
	"github.com/akinalp/tahta/repository"
	"github.com/golang-jwt/jwt/v5"
)

// GateService, realtime kanal yetkilendirmesi (Access Gate).
//
// Bir client kanala subscribe olmadan önce HTTP auth endpoint'ine gelir;
// gate dört soruyu sırayla cevaplar:
//  1. Oturum geçerli mi?          → değilse 401
//  2. Kanal adı tanınıyor mu?     → değilse 403 (format detayı sızdırılmaz)
//  3. Board var mı?               → yoksa 404
//  4. Kullanıcı collaborator mı?  → değilse 403
//
// Hepsi geçerse (socket_id, channel_name) çiftine scope'lu, kısa ömürlü,
// imzalı bir grant üretilir. Grant başka socket'te veya kanalda işe yaramaz;
// replay penceresi expiry ile sınırlıdır.
type GateService interface {
	// Authorize, tek bir subscribe denemesini yetkilendirir.
	// userID middleware'den gelir — boşsa istek zaten 401 ile reddedilmiştir.
	Authorize(ctx context.Context, socketID, channelName, userID string) (*models.ChannelGrant, error)
	// ValidateGrant, hub'ın subscribe frame'indeki grant'i doğrulamasıdır.
	// İmza + expiry + (socket_id, channel_name) scope'u kontrol edilir.
	ValidateGrant(grantString, socketID, channelName string) (*models.GrantClaims, error)
	// InvalidateAccess, share değişikliklerinde cache'lenmiş erişim kararlarını düşürür.
	InvalidateAccess(boardID string)
}

type gateService struct {
	boardRepo   repository.WhiteboardRepository
	profileRepo repository.ProfileRepository
	userRepo    repository.UserRepository
	grantSecret []byte
	grantExp    time.Duration

	// accessCache, (userID, boardID) → erişim kararı.
	// Cursor hareketi sırasında reconnect fırtınası HasAccess sorgusunu
	// board başına saniyede onlarca kez tetikleyebilir; kısa TTL yeterli.
	accessCache *cache.TTLCache[accessKey, bool]
}

type accessKey struct {
	userID  string
	boardID string
}

// NewGateService, constructor.
func NewGateService(
	boardRepo repository.WhiteboardRepository,
	profileRepo repository.ProfileRepository,
	userRepo repository.UserRepository,
	grantSecret string,
	grantExpirySeconds int,
) GateService {
	return &gateService{
		boardRepo:   boardRepo,
		profileRepo: profileRepo,
		userRepo:    userRepo,
		grantSecret: []byte(grantSecret),
		grantExp:    time.Duration(grantExpirySeconds) * time.Second,
		accessCache: cache.New[accessKey, bool](30*time.Second, time.Minute),
	}
}

func (s *gateService) Authorize(ctx context.Context, socketID, channelName, userID string) (*models.ChannelGrant, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing session", pkg.ErrUnauthorized)
	}
	if socketID == "" || channelName == "" {
		return nil, fmt.Errorf("%w: socket_id and channel_name are required", pkg.ErrBadRequest)
	}

	kind, boardID, err := models.ParseChannelName(channelName)
	if err != nil {
		// Tanınmayan kanal = yetki yok. 400 değil 403: kanal şeması
		// probe'lanabilir bir yüzey olmamalı.
		return nil, fmt.Errorf("%w: channel access denied", pkg.ErrForbidden)
	}

	// Profil auto-provision: gate'ten geçen HERKES roster'da gösterilebilir
	// bir kimliğe sahip olmalı. Upsert var olan profile dokunmaz.
	profile, err := s.provisionProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	allowed, err := s.hasAccess(ctx, boardID, userID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		// Board var ama erişim yok ile board hiç yok ayrımı:
		// 404 sadece board gerçekten silinmişse döner — davet edilmemiş
		// kullanıcı board'un varlığını 403'ten öğrenir, içeriğini öğrenemez.
		if _, getErr := s.boardRepo.GetByID(ctx, boardID); errors.Is(getErr, pkg.ErrNotFound) {
			return nil, fmt.Errorf("%w: whiteboard not found", pkg.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: not a collaborator on this whiteboard", pkg.ErrForbidden)
	}

	var member *models.PresenceMember
	if kind == models.ChannelPresence {
		m := profile.Member()
		member = &m
	}

	grant, err := s.signGrant(socketID, channelName, userID, member)
	if err != nil {
		return nil, err
	}

	return &models.ChannelGrant{Grant: grant, Member: member}, nil
}

func (s *gateService) ValidateGrant(grantString, socketID, channelName string) (*models.GrantClaims, error) {
	token, err := jwt.ParseWithClaims(grantString, &models.GrantClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.grantSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: invalid grant", pkg.ErrForbidden)
	}

	claims, ok := token.Claims.(*models.GrantClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid grant claims", pkg.ErrForbidden)
	}

	// Scope kontrolü: imza geçerli olsa bile grant BAŞKA bir socket veya
	// kanal için üretilmişse reddedilir.
	if claims.SocketID != socketID || claims.ChannelName != channelName {
		return nil, fmt.Errorf("%w: grant scope mismatch", pkg.ErrForbidden)
	}

	return claims, nil
}

func (s *gateService) InvalidateAccess(boardID string) {
	s.accessCache.DeleteFunc(func(key accessKey) bool {
		return key.boardID == boardID
	})
}

// ─── Private Helpers ───

// provisionProfile, kullanıcının profilini döner; yoksa session kimliğinden
// üretir. Name önceliği: display_name > username.
func (s *gateService) provisionProfile(ctx context.Context, userID string) (*models.Profile, error) {
	profile, err := s.profileRepo.GetByUserID(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, pkg.ErrNotFound) {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			// Token geçerli ama kullanıcı silinmiş — oturum artık geçersiz.
			return nil, fmt.Errorf("%w: user no longer exists", pkg.ErrUnauthorized)
		}
		return nil, err
	}

	name := user.Username
	if user.DisplayName != nil && *user.DisplayName != "" {
		name = *user.DisplayName
	}

	profile = &models.Profile{
		UserID:    userID,
		Name:      name,
		AvatarURL: user.AvatarURL,
	}

	// Upsert ON CONFLICT DO NOTHING: iki eşzamanlı subscribe aynı anda
	// provision etse de tek satır yazılır, hiçbiri hata almaz.
	if err := s.profileRepo.Upsert(ctx, profile); err != nil {
		return nil, err
	}

	// Yarışı kaybeden taraf diğerinin yazdığı satırı okur.
	return s.profileRepo.GetByUserID(ctx, userID)
}

func (s *gateService) hasAccess(ctx context.Context, boardID, userID string) (bool, error) {
	key := accessKey{userID: userID, boardID: boardID}
	if allowed, ok := s.accessCache.Get(key); ok {
		return allowed, nil
	}

	allowed, err := s.boardRepo.HasAccess(ctx, boardID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check access: %w", err)
	}

	// Negatif karar da cache'lenir — erişimi olmayan client'ın retry loop'u
	// DB'yi dövmez. Share eklenince InvalidateAccess düşürür.
	s.accessCache.Set(key, allowed)
	return allowed, nil
}

func (s *gateService) signGrant(socketID, channelName, userID string, member *models.PresenceMember) (string, error) {
	now := time.Now()
	claims := &models.GrantClaims{
		SocketID:    socketID,
		ChannelName: channelName,
		UserID:      userID,
		Member:      member,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.grantExp)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "tahta",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.grantSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign channel grant: %w", err)
	}

	return signed, nil
}
