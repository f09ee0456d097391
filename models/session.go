package models

import "time"

// Session, JWT refresh token oturumunu temsil eder.
//
// Access token kısa ömürlü (15dk), refresh token uzun ömürlü (7 gün).
// Refresh token'ları DB'de tutarak:
//   - Çalınan token'ı iptal edebiliriz (revoke)
//   - Logout'ta sadece ilgili oturumu silebiliriz
//
// RefreshToken alanı plaintext token'ı değil SHA256 hash'ini taşır —
// DB sızarsa token'lar kullanılamaz.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	RefreshToken string    `json:"-"` // API'ye gönderilmez
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}
