package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bengobox/oauth-provider/internal/oauth"
)

func TestListUserTokens(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alpha := f.registerClient(t, "alpha")
	beta := f.registerClient(t, "beta")

	_, err := f.svc.CreateTokenForUser(ctx, alpha, "7")
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	_, err = f.svc.CreateTokenForUser(ctx, beta, "7")
	require.NoError(t, err)
	_, err = f.svc.CreateTokenForUser(ctx, beta, "8")
	require.NoError(t, err)

	tokens, err := f.svc.ListUserTokens(ctx, "7")
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "alpha", tokens[0].ClientName)
	assert.Equal(t, int64(7776000-3600), tokens[0].ExpiresIn)
	assert.False(t, tokens[0].Expired)
	assert.Equal(t, "beta", tokens[1].ClientName)

	none, err := f.svc.ListUserTokens(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRevokeForUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.registerClient(t, "ci")
	mine, err := f.svc.CreateTokenForUser(ctx, c, "7")
	require.NoError(t, err)
	theirs, err := f.svc.CreateTokenForUser(ctx, c, "8")
	require.NoError(t, err)

	t.Run("another user's token", func(t *testing.T) {
		assert.ErrorIs(t, f.svc.RevokeForUser(ctx, "7", theirs.ID), oauth.ErrNotAuthorized)
		_, err := f.store.Tokens().FindByID(ctx, theirs.ID)
		assert.NoError(t, err)
	})

	t.Run("missing token", func(t *testing.T) {
		assert.ErrorIs(t, f.svc.RevokeForUser(ctx, "7", "missing"), oauth.ErrNotAuthorized)
	})

	t.Run("own token", func(t *testing.T) {
		require.NoError(t, f.svc.RevokeForUser(ctx, "7", mine.ID))
		_, err := f.store.Tokens().FindByID(ctx, mine.ID)
		assert.ErrorIs(t, err, oauth.ErrNotFound)
	})

	t.Run("twice", func(t *testing.T) {
		assert.ErrorIs(t, f.svc.RevokeForUser(ctx, "7", mine.ID), oauth.ErrNotAuthorized)
	})
}

func TestRevokeByAdmin(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*fixture, []*oauth.Token) {
		f := newFixture(t)
		alpha := f.registerClient(t, "alpha")
		beta := f.registerClient(t, "beta")
		var out []*oauth.Token
		for _, pair := range []struct {
			c    *oauth.Client
			user string
		}{{alpha, "7"}, {beta, "7"}, {alpha, "8"}} {
			tok, err := f.svc.CreateTokenForUser(ctx, pair.c, pair.user)
			require.NoError(t, err)
			out = append(out, tok)
		}
		return f, out
	}

	t.Run("by token id", func(t *testing.T) {
		f, tokens := setup(t)
		n, err := f.svc.RevokeByAdmin(ctx, AdminRevokeRequest{TokenID: tokens[2].ID})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		_, err = f.store.Tokens().FindByID(ctx, tokens[2].ID)
		assert.ErrorIs(t, err, oauth.ErrNotFound)
	})

	t.Run("token id wins over user id", func(t *testing.T) {
		f, tokens := setup(t)
		n, err := f.svc.RevokeByAdmin(ctx, AdminRevokeRequest{TokenID: tokens[2].ID, UserID: "7"})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		remaining, err := f.store.Tokens().ListByUser(ctx, "7")
		require.NoError(t, err)
		assert.Len(t, remaining, 2)
	})

	t.Run("by user id across clients", func(t *testing.T) {
		f, _ := setup(t)
		n, err := f.svc.RevokeByAdmin(ctx, AdminRevokeRequest{UserID: "7"})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		remaining, err := f.store.Tokens().ListByUser(ctx, "8")
		require.NoError(t, err)
		assert.Len(t, remaining, 1)
	})

	t.Run("unknown token id", func(t *testing.T) {
		f, _ := setup(t)
		_, err := f.svc.RevokeByAdmin(ctx, AdminRevokeRequest{TokenID: "missing", UserID: "7"})
		assert.ErrorIs(t, err, oauth.ErrNotAuthorized)
	})

	t.Run("neither", func(t *testing.T) {
		f, _ := setup(t)
		_, err := f.svc.RevokeByAdmin(ctx, AdminRevokeRequest{})
		assert.ErrorIs(t, err, oauth.ErrNotAuthorized)
	})
}
