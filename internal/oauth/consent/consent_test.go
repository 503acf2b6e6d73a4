package consent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bengobox/oauth-provider/internal/clock"
)

func TestSigner(t *testing.T) {
	clk := clock.NewMock(time.Now())
	signer, err := NewSigner("consent-secret", 10*time.Minute, clk)
	require.NoError(t, err)

	payload := Payload{
		UserID:      "7",
		ClientID:    "abc",
		RedirectURI: "https://ci.example/cb",
		State:       "xyz",
	}

	t.Run("round trip", func(t *testing.T) {
		ticket, err := signer.Encode(payload)
		require.NoError(t, err)

		got, err := signer.Decode(ticket)
		require.NoError(t, err)
		assert.Equal(t, payload.UserID, got.UserID)
		assert.Equal(t, payload.ClientID, got.ClientID)
		assert.Equal(t, payload.RedirectURI, got.RedirectURI)
		assert.Equal(t, payload.State, got.State)
		assert.NotEmpty(t, got.Nonce)
	})

	t.Run("tickets differ by nonce", func(t *testing.T) {
		a, err := signer.Encode(payload)
		require.NoError(t, err)
		b, err := signer.Encode(payload)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("expired ticket", func(t *testing.T) {
		ticket, err := signer.Encode(payload)
		require.NoError(t, err)
		clk.Advance(11 * time.Minute)
		defer clk.Advance(-11 * time.Minute)

		_, err = signer.Decode(ticket)
		assert.ErrorIs(t, err, ErrInvalidTicket)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewSigner("another-secret", 10*time.Minute, clk)
		require.NoError(t, err)
		ticket, err := other.Encode(payload)
		require.NoError(t, err)

		_, err = signer.Decode(ticket)
		assert.ErrorIs(t, err, ErrInvalidTicket)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := signer.Decode("not-a-ticket")
		assert.ErrorIs(t, err, ErrInvalidTicket)
	})
}

func TestNewSignerRequiresSecret(t *testing.T) {
	_, err := NewSigner("", time.Minute, nil)
	assert.Error(t, err)
}
