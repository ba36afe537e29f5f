package notifications

import (
	"context"
	"fmt"
	"html"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/mamadbah2/pantry/internal/config"
	"github.com/mamadbah2/pantry/internal/domain/models"
	whatsappclient "github.com/mamadbah2/pantry/pkg/clients/whatsapp"
)

// WhatsAppSender delivers notifications as WhatsApp text messages.
type WhatsAppSender struct {
	client whatsappclient.Client
}

// NewWhatsAppSender wraps the WhatsApp Cloud API client.
func NewWhatsAppSender(client whatsappclient.Client) *WhatsAppSender {
	return &WhatsAppSender{client: client}
}

func (s *WhatsAppSender) Channel() string { return "whatsapp" }

func (s *WhatsAppSender) Send(ctx context.Context, user models.User, n models.Notification) error {
	if user.Phone == "" {
		return ErrNoRecipient
	}
	_, err := s.client.SendTextMessage(ctx, whatsappclient.SendTextMessageRequest{
		To:   strings.TrimPrefix(user.Phone, "+"),
		Body: n.Text(),
	})
	return err
}

// Dialer is the subset of gomail.Dialer used for delivery.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailSender delivers notifications over SMTP.
type EmailSender struct {
	dialer Dialer
	from   string
}

// NewEmailSender builds an SMTP sender from configuration.
func NewEmailSender(cfg config.EmailConfig) *EmailSender {
	return &EmailSender{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		from:   cfg.From,
	}
}

func (s *EmailSender) Channel() string { return "email" }

func (s *EmailSender) Send(_ context.Context, user models.User, n models.Notification) error {
	if user.Email == "" {
		return ErrNoRecipient
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", user.Email)
	m.SetHeader("Subject", n.Title)
	m.SetBody("text/plain", n.Body)
	m.AddAlternative("text/html", fmt.Sprintf("<h3>%s</h3><p>%s</p>", html.EscapeString(n.Title), html.EscapeString(n.Body)))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send email to %s: %w", user.Email, err)
	}
	return nil
}
