package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamnet-backend/internal/logger"
)

func newTestMailer(send func(ctx context.Context, m *mail.SGMailV3) (int, string, error)) *SendGridMailer {
	m := NewSendGridMailer("key", "billing@teamnet.test", "TeamNet", logger.Nop())
	m.send = send
	return m
}

func TestSendGridMailer_SendSubscriptionActivated(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		var sent *mail.SGMailV3
		m := newTestMailer(func(ctx context.Context, msg *mail.SGMailV3) (int, string, error) {
			sent = msg
			return 202, "", nil
		})

		expires := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
		err := m.SendSubscriptionActivated(context.Background(), Recipient{Email: "a@test.com", Name: "Ann"}, "Premium", expires)
		require.NoError(t, err)
		require.NotNil(t, sent)
		assert.Equal(t, "Your Premium subscription is active", sent.Subject)
		assert.Equal(t, "billing@teamnet.test", sent.From.Address)
		assert.Equal(t, "a@test.com", sent.Personalizations[0].To[0].Address)
	})

	t.Run("RejectedStatus", func(t *testing.T) {
		m := newTestMailer(func(ctx context.Context, msg *mail.SGMailV3) (int, string, error) {
			return 401, `{"errors":[{"message":"unauthorized"}]}`, nil
		})
		err := m.SendSubscriptionActivated(context.Background(), Recipient{Email: "a@test.com"}, "Basic", time.Now())
		assert.Error(t, err)
	})

	t.Run("TransportError", func(t *testing.T) {
		m := newTestMailer(func(ctx context.Context, msg *mail.SGMailV3) (int, string, error) {
			return 0, "", errors.New("dial tcp: timeout")
		})
		err := m.SendSubscriptionRevoked(context.Background(), Recipient{Email: "a@test.com"}, "order-1")
		assert.Error(t, err)
	})

	t.Run("NoAddress", func(t *testing.T) {
		m := newTestMailer(func(ctx context.Context, msg *mail.SGMailV3) (int, string, error) {
			t.Fatal("must not send")
			return 0, "", nil
		})
		assert.Error(t, m.SendExpiryReminder(context.Background(), Recipient{}, "Pro", time.Now()))
	})
}
