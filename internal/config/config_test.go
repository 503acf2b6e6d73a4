package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("OAUTH_DB_URL", "postgres://localhost/oauth")
	t.Setenv("OAUTH_SECURITY_SESSION_SECRET", "session")
	t.Setenv("OAUTH_SECURITY_CONSENT_SECRET", "consent")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "oauth-provider", cfg.App.ServiceName)
	assert.Equal(t, 4102, cfg.HTTP.Port)
	assert.Equal(t, time.Hour, cfg.Provider.AuthorizationTTL)
	assert.Equal(t, 90*24*time.Hour, cfg.Provider.TokenTTL)
	assert.Equal(t, 10*time.Minute, cfg.Security.ConsentTTL)
	assert.Equal(t, []string{"*"}, cfg.HTTP.AllowedOrigins)
	assert.Empty(t, cfg.Provider.PathPrefix)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("OAUTH_PROVIDER_PATH_PREFIX", "/api")
	t.Setenv("OAUTH_PROVIDER_TOKEN_TTL", "24h")
	t.Setenv("OAUTH_PROVIDER_ADMIN_USER_IDS", "1,42")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/api", cfg.Provider.PathPrefix)
	assert.Equal(t, 24*time.Hour, cfg.Provider.TokenTTL)
	assert.True(t, cfg.Provider.IsAdmin("42"))
	assert.False(t, cfg.Provider.IsAdmin("4"))
	assert.False(t, cfg.Provider.IsAdmin(""))
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]struct {
		env map[string]string
		msg string
	}{
		"missing database url": {
			env: map[string]string{"OAUTH_DB_URL": ""},
			msg: "OAUTH_DB_URL is required",
		},
		"missing consent secret": {
			env: map[string]string{"OAUTH_SECURITY_CONSENT_SECRET": ""},
			msg: "OAUTH_SECURITY_CONSENT_SECRET",
		},
		"non-positive lifetime": {
			env: map[string]string{"OAUTH_PROVIDER_AUTHORIZATION_TTL": "0s"},
			msg: "lifetimes must be positive",
		},
		"unparsable duration": {
			env: map[string]string{"OAUTH_PROVIDER_TOKEN_TTL": "forever"},
			msg: "parse env",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestLoadDatabaseOnlyNeedsURL(t *testing.T) {
	t.Setenv("OAUTH_DB_URL", "postgres://localhost/oauth")
	t.Setenv("OAUTH_SECURITY_SESSION_SECRET", "")

	cfg, err := LoadDatabase()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/oauth", cfg.Database.URL)

	t.Setenv("OAUTH_DB_URL", "")
	_, err = LoadDatabase()
	assert.EqualError(t, err, "OAUTH_DB_URL is required")
}
