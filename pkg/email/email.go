// Package email, uygulama genelinde email gönderimi için soyutlama katmanı sağlar.
//
// EmailSender interface'i ile gönderim detayları soyutlanır (Dependency
// Inversion). Şu anki implementasyon Resend API kullanır; sağlayıcı değişirse
// sadece yeni bir implementasyon yazıp constructor'da değiştirmek yeterli.
//
// Bu paket dışarıya iki şey sunar:
// 1. EmailSender interface — service'ler buna bağımlı olur
// 2. NewResendSender constructor — main.go'da wire-up için
package email

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v3"
)

// EmailSender, email gönderimi için interface.
type EmailSender interface {
	// SendShareInvite, bir whiteboard paylaşıldığında davet edilen
	// kullanıcıya bilgilendirme email'i gönderir.
	// boardTitle: paylaşılan board'un adı, inviterName: paylaşan kişi,
	// boardID: board linkine gömülür.
	SendShareInvite(ctx context.Context, toEmail, inviterName, boardTitle, boardID string) error
}

// resendSender, Resend API ile email gönderen EmailSender implementasyonu.
type resendSender struct {
	client    *resend.Client
	fromEmail string // Gönderici adresi (ör: noreply@tahta.app)
	appURL    string // Uygulamanın public URL'i — board linkinde kullanılır
}

// NewResendSender, Resend API client'ı ile yeni bir EmailSender oluşturur.
//
// apiKey: Resend dashboard'dan alınan API key (re_xxxxxxxx formatında).
// fromEmail: Resend'de doğrulanmış domain altında bir gönderici adresi.
func NewResendSender(apiKey, fromEmail, appURL string) EmailSender {
	return &resendSender{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		appURL:    appURL,
	}
}

// SendShareInvite, whiteboard davet email'i gönderir.
//
// Link format: {appURL}/board/{boardID}
// Davet edilen kullanıcı zaten kayıtlıdır (share username ile yapılır) —
// email sadece bilgilendirme, onay adımı yoktur.
func (s *resendSender) SendShareInvite(ctx context.Context, toEmail, inviterName, boardTitle, boardID string) error {
	boardLink := fmt.Sprintf("%s/board/%s", s.appURL, boardID)

	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin:0;padding:0;background-color:#1a1a2e;font-family:Arial,Helvetica,sans-serif;">
  <table width="100%%" cellpadding="0" cellspacing="0" style="background-color:#1a1a2e;padding:40px 0;">
    <tr>
      <td align="center">
        <table width="480" cellpadding="0" cellspacing="0" style="background-color:#16213e;border-radius:8px;padding:40px;">
          <tr>
            <td>
              <h1 style="color:#e2e8f0;font-size:24px;margin:0 0 8px 0;">tahta</h1>
              <h2 style="color:#e2e8f0;font-size:18px;margin:0 0 24px 0;">You've been invited to a board</h2>
              <p style="color:#94a3b8;font-size:15px;line-height:1.6;margin:0 0 24px 0;">
                %s shared the board <strong style="color:#e2e8f0;">%s</strong> with you.
                Open it to start collaborating in real time.
              </p>
              <table cellpadding="0" cellspacing="0" style="margin:0 0 24px 0;">
                <tr>
                  <td style="background-color:#6366f1;border-radius:6px;padding:12px 32px;">
                    <a href="%s" style="color:#ffffff;font-size:15px;text-decoration:none;font-weight:bold;">Open Board</a>
                  </td>
                </tr>
              </table>
              <p style="color:#64748b;font-size:13px;line-height:1.5;margin:0;">
                If the button doesn't work, copy this link into your browser:<br>
                <a href="%s" style="color:#6366f1;">%s</a>
              </p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`, inviterName, boardTitle, boardLink, boardLink, boardLink)

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("tahta <%s>", s.fromEmail),
		To:      []string{toEmail},
		Subject: fmt.Sprintf("%s shared a board with you — tahta", inviterName),
		Html:    html,
	}

	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("failed to send share invite email: %w", err)
	}

	return nil
}

// NoopSender, email gönderimini devre dışı bırakan implementasyon.
// RESEND_API_KEY yoksa main.go bunu wire'lar — share akışı email'siz çalışır.
type NoopSender struct{}

// SendShareInvite, hiçbir şey yapmaz.
func (NoopSender) SendShareInvite(ctx context.Context, toEmail, inviterName, boardTitle, boardID string) error {
	return nil
}
