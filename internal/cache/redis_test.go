package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bengobox/oauth-provider/internal/config"
)

func TestNewDisabled(t *testing.T) {
	client, err := New(context.Background(), config.RedisConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "oauth:ratelimit:token:10.0.0.1", Key("oauth", "ratelimit", "token", "10.0.0.1"))
	assert.Equal(t, "oauth", Key("oauth"))
}
