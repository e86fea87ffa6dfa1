package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextStatus(t *testing.T) {
	t.Run("PendingToFinishedGrants", func(t *testing.T) {
		tr, err := NextStatus(PaymentPending, PaymentFinished)
		require.NoError(t, err)
		assert.True(t, tr.Changed)
		assert.True(t, tr.Grant)
		assert.False(t, tr.Revoke)
	})

	t.Run("PendingToFailed", func(t *testing.T) {
		tr, err := NextStatus(PaymentPending, PaymentFailed)
		require.NoError(t, err)
		assert.True(t, tr.Changed)
		assert.False(t, tr.Grant)
	})

	t.Run("SameStatusIsNoop", func(t *testing.T) {
		for _, s := range []PaymentStatus{PaymentPending, PaymentFinished, PaymentExpired} {
			tr, err := NextStatus(s, s)
			require.NoError(t, err)
			assert.Equal(t, Transition{}, tr)
		}
	})

	t.Run("FinishedToRefundedRevokes", func(t *testing.T) {
		tr, err := NextStatus(PaymentFinished, PaymentRefunded)
		require.NoError(t, err)
		assert.True(t, tr.Revoke)
	})

	t.Run("TerminalRegressionIsIllegal", func(t *testing.T) {
		cases := [][2]PaymentStatus{
			{PaymentFinished, PaymentPending},
			{PaymentFinished, PaymentFailed},
			{PaymentFailed, PaymentFinished},
			{PaymentExpired, PaymentPending},
			{PaymentRefunded, PaymentFinished},
		}
		for _, c := range cases {
			_, err := NextStatus(c[0], c[1])
			assert.True(t, errors.Is(err, ErrIllegalTransition), "%s -> %s", c[0], c[1])
		}
	})
}

func TestNormalizeGatewayStatus(t *testing.T) {
	for _, raw := range []string{"waiting", "confirming", "confirmed", "sending", "partially_paid", "new"} {
		s, ok := NormalizeGatewayStatus(raw)
		assert.True(t, ok)
		assert.Equal(t, PaymentPending, s, raw)
	}

	s, ok := NormalizeGatewayStatus(" Finished ")
	assert.True(t, ok)
	assert.Equal(t, PaymentFinished, s)

	_, ok = NormalizeGatewayStatus("bogus")
	assert.False(t, ok)
}

func TestTierForAmount(t *testing.T) {
	assert.Equal(t, TierBasic, TierForAmount(5))
	assert.Equal(t, TierBasic, TierForAmount(14.99))
	assert.Equal(t, TierPremium, TierForAmount(15))
	assert.Equal(t, TierPremium, TierForAmount(29.5))
	assert.Equal(t, TierPro, TierForAmount(30))
	assert.Equal(t, TierPro, TierForAmount(100))
}

func TestLookupKey_Validate(t *testing.T) {
	assert.NoError(t, LookupKey{OrderID: "o1"}.Validate())
	assert.NoError(t, LookupKey{PaymentID: "123"}.Validate())

	err := LookupKey{}.Validate()
	assert.True(t, errors.Is(err, ErrValidation))

	err = LookupKey{OrderID: "o1", InvoiceID: "i1"}.Validate()
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestErrorKinds(t *testing.T) {
	err := Errorf(KindNotFound, "member %s not found", "m1")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "member m1 not found", MessageOf(err))

	wrapped := Wrap(KindGatewayUnavailable, errors.New("timeout"), "gateway call failed")
	assert.True(t, errors.Is(wrapped, ErrGatewayUnavailable))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}
