package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamnet-backend/internal/domain"
)

func TestCanonicalJSON(t *testing.T) {
	out, err := CanonicalJSON([]byte(`{"b":1,"a":{"z":true,"c":[{"y":1.50,"x":"<&>"}]},"payment_id":5077125051}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"c":[{"x":"<&>","y":1.5}],"z":true},"b":1,"payment_id":5077125051}`, string(out))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"payment_status":"finished","order_id":"order-1","payment_id":42}`)
	reordered := []byte(`{"payment_id":42,"order_id":"order-1","payment_status":"finished"}`)

	sig, err := Sign(body, "secret")
	require.NoError(t, err)

	t.Run("Valid", func(t *testing.T) {
		assert.NoError(t, VerifySignature(body, sig, "secret"))
	})

	t.Run("KeyOrderIndependent", func(t *testing.T) {
		assert.NoError(t, VerifySignature(reordered, sig, "secret"))
	})

	t.Run("WrongSecret", func(t *testing.T) {
		assert.ErrorIs(t, VerifySignature(body, sig, "other"), domain.ErrSignatureInvalid)
	})

	t.Run("TamperedBody", func(t *testing.T) {
		tampered := []byte(`{"payment_status":"finished","order_id":"order-2","payment_id":42}`)
		assert.ErrorIs(t, VerifySignature(tampered, sig, "secret"), domain.ErrSignatureInvalid)
	})

	t.Run("Missing", func(t *testing.T) {
		assert.ErrorIs(t, VerifySignature(body, "", "secret"), domain.ErrSignatureInvalid)
	})

	t.Run("NotJSON", func(t *testing.T) {
		assert.ErrorIs(t, VerifySignature([]byte("nope"), sig, "secret"), domain.ErrSignatureInvalid)
	})
}
