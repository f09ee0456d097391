package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Comment, bir whiteboard üzerindeki yorumu temsil eder.
// Yorumlar realtime katmandan bağımsızdır — normal HTTP CRUD ile yaşar.
type Comment struct {
	ID           string    `json:"id"`
	WhiteboardID string    `json:"whiteboard_id"`
	AuthorID     string    `json:"author_id"`
	Body         string    `json:"body"`
	CreatedAt    time.Time `json:"created_at"`
	// AuthorName listelemede JOIN ile doldurulur.
	AuthorName string `json:"author_name,omitempty"`
}

// CreateCommentRequest, yorum oluştururken gelen veri.
type CreateCommentRequest struct {
	Body string `json:"body"`
}

// Validate, CreateCommentRequest'i kontrol eder.
func (r *CreateCommentRequest) Validate() error {
	r.Body = strings.TrimSpace(r.Body)
	bodyLen := utf8.RuneCountInString(r.Body)
	if bodyLen < 1 || bodyLen > 2000 {
		return fmt.Errorf("comment body must be between 1 and 2000 characters")
	}
	return nil
}
