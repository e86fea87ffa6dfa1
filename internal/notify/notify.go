// Package notify sends transactional email about subscription changes.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"teamnet-backend/internal/logger"
)

// Recipient is the addressee of a notification.
type Recipient struct {
	Email string
	Name  string
}

type Mailer interface {
	SendSubscriptionActivated(ctx context.Context, to Recipient, tier string, expiresAt time.Time) error
	SendSubscriptionRevoked(ctx context.Context, to Recipient, orderID string) error
	SendSubscriptionExpired(ctx context.Context, to Recipient, tier string) error
	SendExpiryReminder(ctx context.Context, to Recipient, tier string, expiresAt time.Time) error
}

type SendGridMailer struct {
	fromEmail string
	fromName  string
	send      func(ctx context.Context, m *mail.SGMailV3) (int, string, error)
	log       logger.Logger
}

func NewSendGridMailer(apiKey, fromEmail, fromName string, log logger.Logger) *SendGridMailer {
	client := sendgrid.NewSendClient(apiKey)
	return &SendGridMailer{
		fromEmail: fromEmail,
		fromName:  fromName,
		send: func(ctx context.Context, m *mail.SGMailV3) (int, string, error) {
			resp, err := client.SendWithContext(ctx, m)
			if err != nil {
				return 0, "", err
			}
			return resp.StatusCode, resp.Body, nil
		},
		log: logger.Module(log, "notify"),
	}
}

func (s *SendGridMailer) deliver(ctx context.Context, operation string, to Recipient, subject, plain, html string) error {
	if to.Email == "" {
		return fmt.Errorf("recipient has no email address")
	}
	from := mail.NewEmail(s.fromName, s.fromEmail)
	recipient := mail.NewEmail(to.Name, to.Email)
	message := mail.NewSingleEmail(from, subject, recipient, plain, html)

	logger.ExternalServiceCall(s.log, "sendgrid", operation)
	status, body, err := s.send(ctx, message)
	if err == nil && status >= 400 {
		err = fmt.Errorf("sendgrid returned status %d: %s", status, body)
	}
	logger.ExternalServiceResult(s.log, "sendgrid", operation, err, "status", status)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (s *SendGridMailer) SendSubscriptionActivated(ctx context.Context, to Recipient, tier string, expiresAt time.Time) error {
	subject := fmt.Sprintf("Your %s subscription is active", tier)
	plain := fmt.Sprintf("Hi %s,\n\nYour payment was received. Your %s subscription is active until %s.\n",
		to.Name, tier, expiresAt.Format("January 2, 2006"))
	html := fmt.Sprintf("<p>Hi %s,</p><p>Your payment was received. Your <strong>%s</strong> subscription is active until %s.</p>",
		to.Name, tier, expiresAt.Format("January 2, 2006"))
	return s.deliver(ctx, "SendSubscriptionActivated", to, subject, plain, html)
}

func (s *SendGridMailer) SendSubscriptionRevoked(ctx context.Context, to Recipient, orderID string) error {
	subject := "Your subscription was cancelled"
	plain := fmt.Sprintf("Hi %s,\n\nPayment %s was refunded, so your subscription is no longer active.\n", to.Name, orderID)
	html := fmt.Sprintf("<p>Hi %s,</p><p>Payment %s was refunded, so your subscription is no longer active.</p>", to.Name, orderID)
	return s.deliver(ctx, "SendSubscriptionRevoked", to, subject, plain, html)
}

func (s *SendGridMailer) SendSubscriptionExpired(ctx context.Context, to Recipient, tier string) error {
	subject := "Your subscription has expired"
	plain := fmt.Sprintf("Hi %s,\n\nYour %s subscription has expired. Renew it any time to restore access.\n", to.Name, tier)
	html := fmt.Sprintf("<p>Hi %s,</p><p>Your %s subscription has expired. Renew it any time to restore access.</p>", to.Name, tier)
	return s.deliver(ctx, "SendSubscriptionExpired", to, subject, plain, html)
}

func (s *SendGridMailer) SendExpiryReminder(ctx context.Context, to Recipient, tier string, expiresAt time.Time) error {
	subject := "Your subscription expires soon"
	plain := fmt.Sprintf("Hi %s,\n\nYour %s subscription expires on %s. Renew now to keep your access.\n",
		to.Name, tier, expiresAt.Format(time.RFC1123))
	html := fmt.Sprintf("<p>Hi %s,</p><p>Your %s subscription expires on %s. Renew now to keep your access.</p>",
		to.Name, tier, expiresAt.Format(time.RFC1123))
	return s.deliver(ctx, "SendExpiryReminder", to, subject, plain, html)
}

// NopMailer discards every message. Used when SendGrid is not configured.
type NopMailer struct{}

func (NopMailer) SendSubscriptionActivated(ctx context.Context, to Recipient, tier string, expiresAt time.Time) error {
	return nil
}

func (NopMailer) SendSubscriptionRevoked(ctx context.Context, to Recipient, orderID string) error {
	return nil
}

func (NopMailer) SendSubscriptionExpired(ctx context.Context, to Recipient, tier string) error {
	return nil
}

func (NopMailer) SendExpiryReminder(ctx context.Context, to Recipient, tier string, expiresAt time.Time) error {
	return nil
}
