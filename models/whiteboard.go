package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// ShareRole, paylaşılan kullanıcının board üzerindeki yetkisi.
// Go'da enum yoktur — typed constant kullanılır.
type ShareRole string

const (
	ShareRoleViewer ShareRole = "viewer"
	ShareRoleEditor ShareRole = "editor"
)

// Valid, rolün bilinen bir değer olup olmadığını kontrol eder.
func (r ShareRole) Valid() bool {
	return r == ShareRoleViewer || r == ShareRoleEditor
}

// Whiteboard, tek bir çalışma alanını temsil eder.
//
// Document alanı board içeriğinin JSON snapshot'ıdır ve realtime katmanın
// DIŞINDA yaşar: canlı düzenleme sırasında her replica kendi in-memory
// store'unu broadcast ile günceller, client debounce ile arada bir snapshot
// PUT eder. Yani Document "en son kaydedilen hal"dir, "canlı hal" değil.
type Whiteboard struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id"`
	Title     string          `json:"title"`
	Document  json.RawMessage `json:"document,omitempty"` // Liste görünümlerinde boş bırakılır
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// WhiteboardShare, bir board'un bir kullanıcıyla paylaşımını temsil eder.
type WhiteboardShare struct {
	ID           string    `json:"id"`
	WhiteboardID string    `json:"whiteboard_id"`
	UserID       string    `json:"user_id"`
	Role         ShareRole `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	// Username ve Name listeleme için JOIN ile doldurulur — share tablosunda yoktur.
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
}

// CreateWhiteboardRequest, yeni board oluştururken gelen veri.
type CreateWhiteboardRequest struct {
	Title string `json:"title"`
}

// Validate, CreateWhiteboardRequest'i kontrol eder.
func (r *CreateWhiteboardRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	titleLen := utf8.RuneCountInString(r.Title)
	if titleLen < 1 || titleLen > 120 {
		return fmt.Errorf("title must be between 1 and 120 characters")
	}
	return nil
}

// UpdateWhiteboardRequest, board başlığı güncellemesi.
type UpdateWhiteboardRequest struct {
	Title string `json:"title"`
}

// Validate, UpdateWhiteboardRequest'i kontrol eder.
func (r *UpdateWhiteboardRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	titleLen := utf8.RuneCountInString(r.Title)
	if titleLen < 1 || titleLen > 120 {
		return fmt.Errorf("title must be between 1 and 120 characters")
	}
	return nil
}

// SaveDocumentRequest, client'ın debounce ile gönderdiği document snapshot'ı.
type SaveDocumentRequest struct {
	Document json.RawMessage `json:"document"`
}

// Validate, snapshot'ın geçerli JSON olduğunu kontrol eder.
// İçeriğin şeması client'a aittir — server opak saklar, sadece JSON doğrular.
func (r *SaveDocumentRequest) Validate() error {
	if len(r.Document) == 0 {
		return fmt.Errorf("document is required")
	}
	if !json.Valid(r.Document) {
		return fmt.Errorf("document must be valid JSON")
	}
	return nil
}

// CreateShareRequest, board paylaşırken gelen veri.
// Paylaşım username ile yapılır — davet edilen kişi kayıtlı olmalıdır.
type CreateShareRequest struct {
	Username string    `json:"username"`
	Role     ShareRole `json:"role"`
}

// Validate, CreateShareRequest'i kontrol eder. Role boşsa editor varsayılır.
func (r *CreateShareRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	if r.Username == "" {
		return fmt.Errorf("username is required")
	}
	if r.Role == "" {
		r.Role = ShareRoleEditor
	}
	if !r.Role.Valid() {
		return fmt.Errorf("role must be viewer or editor")
	}
	return nil
}
