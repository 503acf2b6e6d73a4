package oauth

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hex64 = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestGenerateSecret(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		s, err := GenerateSecret()
		require.NoError(t, err)
		assert.Regexp(t, hex64, s)
		assert.False(t, seen[s], "duplicate secret")
		seen[s] = true
	}
}

func TestExpiryBoundary(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("expires_at equal to now is expired", func(t *testing.T) {
		a := &Authorization{ExpiresAt: now.Unix()}
		assert.Equal(t, int64(0), a.ExpiresIn(now))
		assert.True(t, a.Expired(now))
	})

	t.Run("one second before is live", func(t *testing.T) {
		a := &Authorization{ExpiresAt: now.Unix()}
		earlier := now.Add(-time.Second)
		assert.Equal(t, int64(1), a.ExpiresIn(earlier))
		assert.False(t, a.Expired(earlier))
	})

	t.Run("sub-second remainder truncates", func(t *testing.T) {
		tok := &Token{ExpiresAt: now.Unix()}
		justBefore := now.Add(-500 * time.Millisecond)
		assert.Equal(t, int64(1), tok.ExpiresIn(justBefore))
		assert.False(t, tok.Expired(justBefore))
	})

	t.Run("past expiry is negative", func(t *testing.T) {
		tok := &Token{ExpiresAt: now.Unix()}
		assert.Equal(t, int64(-60), tok.ExpiresIn(now.Add(time.Minute)))
		assert.True(t, tok.Expired(now.Add(time.Minute)))
	})
}

func TestExpiryFrom(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	assert.Equal(t, int64(1_700_003_600), ExpiryFrom(now, DefaultAuthorizationTTL))
	assert.Equal(t, int64(1_700_000_000+7_776_000), ExpiryFrom(now, DefaultTokenTTL))
}

func TestValidationError(t *testing.T) {
	verr := &ValidationError{}
	assert.True(t, verr.Empty())

	verr.Add("redirect_uri", "is invalid")
	verr.Add("name", "can't be blank")
	verr.Add("name", "has already been taken")

	assert.False(t, verr.Empty())
	assert.Equal(t, []string{"can't be blank", "has already been taken"}, verr.Fields["name"])
	assert.Equal(t,
		"validation failed: name can't be blank, has already been taken; redirect_uri is invalid",
		verr.Error(),
	)
}

func TestExchangeErrorCodes(t *testing.T) {
	assert.Equal(t, CodeInvalidGrant, ErrRedirectURIMismatch.Code)
	assert.Equal(t, CodeInvalidGrant, ErrAuthorizationInvalid.Code)
	assert.Equal(t, CodeInvalidGrant, ErrRefreshTokenInvalid.Code)
	assert.Equal(t, "invalid-client-credentials: Invalid client credentials!", ErrInvalidClientCredentials.Error())
}
