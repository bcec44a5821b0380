package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SECRET_KEY", "test-secret")
	t.Setenv("DB_URL", "postgres://user:pw@localhost:5432/chat")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.ServerPort)
	assert.Equal(t, "HS256", cfg.JWTAlgorithm)
	assert.Equal(t, 30*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 168*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, "googleai/gemini-2.5-flash", cfg.AgentModel)
	assert.NotEmpty(t, cfg.AgentSystemPrompt)
	assert.Equal(t, 5*time.Minute, cfg.StreamMaxDuration)
	assert.Equal(t, 60*time.Second, cfg.StreamIdleTimeout)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, 120, cfg.RateLimitRPM)
	assert.Equal(t, 20, cfg.AuthRateLimitRPM)
	assert.Equal(t, time.Duration(0), cfg.ServerWriteTimeout)
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("ACCESS_TOKEN_TTL", "15m")
	t.Setenv("REFRESH_TOKEN_TTL", "24h")
	t.Setenv("AGENT_MODEL", "googleai/gemini-2.5-pro")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("RATE_LIMIT_RPM", "60")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.ServerPort)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, "googleai/gemini-2.5-pro", cfg.AgentModel)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 60, cfg.RateLimitRPM)
}

func TestLoad_SecretKeyRequired(t *testing.T) {
	t.Setenv("SECRET_KEY", "")
	t.Setenv("DB_URL", "postgres://user:pw@localhost:5432/chat")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SECRET_KEY")
}

func TestLoad_DatabaseURLRequired(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")
	t.Setenv("DB_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_URL")
}

func TestLoad_RejectsOtherAlgorithms(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JWT_ALGORITHM", "RS256")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_ALGORITHM")
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ACCESS_TOKEN_TTL", "not-a-duration")
	t.Setenv("RATE_LIMIT_RPM", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 120, cfg.RateLimitRPM)
}

func TestValidate_PositiveTimeouts(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STREAM_MAX_DURATION", "-1s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream timeouts")

	cfg := &Config{
		ServerPort:        "8000",
		DatabaseURL:       "postgres://x",
		JWTSecret:         "s",
		JWTAlgorithm:      "HS256",
		AccessTTL:         time.Minute,
		RefreshTTL:        time.Hour,
		StreamMaxDuration: 0,
		StreamIdleTimeout: time.Minute,
	}
	assert.Error(t, cfg.Validate())
}

func TestSplitCSV(t *testing.T) {
	assert.Nil(t, splitCSV(""))
	assert.Nil(t, splitCSV("  "))
	assert.Equal(t, []string{"a"}, splitCSV("a"))
	assert.Equal(t, []string{"a", "b"}, splitCSV(" a , , b "))
}
