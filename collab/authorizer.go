package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/akinalp/tahta/models"
)

// AuthError, auth endpoint'inin reddettiği abonelik denemesi.
// Status ayrımı önemli: 401 oturum sorunudur (token yenile), 403 yetki
// yoktur, 404 board silinmiştir — hiçbiri retry ile düzelmez.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("channel auth failed (%d): %s", e.Status, e.Message)
}

// HTTPAuthorizer, grant'i API sunucusunun auth endpoint'inden alır.
type HTTPAuthorizer struct {
	client  *http.Client
	authURL string // ör: https://api.tahta.app/api/realtime/auth
	token   string // Bearer access token
}

// NewHTTPAuthorizer, constructor. client nil ise http.DefaultClient kullanılır.
func NewHTTPAuthorizer(client *http.Client, authURL, token string) *HTTPAuthorizer {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPAuthorizer{client: client, authURL: authURL, token: token}
}

// Authorize, (socket_id, channel_name) çifti için grant ister.
func (a *HTTPAuthorizer) Authorize(ctx context.Context, socketID, channelName string) (*models.ChannelGrant, error) {
	body, err := json.Marshal(models.ChannelAuthRequest{
		SocketID:    socketID,
		ChannelName: channelName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.authURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.token)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	// API zarfı: { success, data, error, status }
	var envelope struct {
		Success bool                `json:"success"`
		Data    models.ChannelGrant `json:"data"`
		Error   string              `json:"error"`
		Status  int                 `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("invalid auth response: %w", err)
	}

	if !envelope.Success {
		status := envelope.Status
		if status == 0 {
			status = resp.StatusCode
		}
		return nil, &AuthError{Status: status, Message: envelope.Error}
	}

	return &envelope.Data, nil
}
