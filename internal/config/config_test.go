package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvKeys = []string{
	"PORT", "AI_PROVIDER", "ARK_API_KEY", "ARK_ACCESS_KEY", "ARK_SECRET_KEY", "Model",
	"ARK_TEMPERATURE", "ARK_TOP_P", "ARK_MAX_TOKENS", "GEMINI_API_KEY", "GEMINI_MODEL", "GEMINI_BASE_URL",
	"SESSION_DURATION_SECONDS", "CRISIS_EXTRA_PATTERNS", "STORAGE_BACKEND", "SQLITE_PATH",
	"REDIS_URL", "REDIS_KEY_TTL_HOURS", "REFERRAL_BASE_URL", "LOG_LEVEL", "LOG_PRETTY",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, ProviderMock, cfg.AI.Provider)
	assert.Equal(t, 300*time.Second, cfg.Session.Duration)
	assert.Empty(t, cfg.Crisis.ExtraPatterns)
	assert.Equal(t, StorageMemory, cfg.Storage.Backend)
	assert.Zero(t, cfg.Storage.RedisTTL)
	assert.Equal(t, DefaultReferralBaseURL, cfg.Referral.BaseURL)
	assert.Equal(t, zerolog.InfoLevel, cfg.Log.Level)
	assert.False(t, cfg.Log.Pretty)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("SESSION_DURATION_SECONDS", "60")
	t.Setenv("CRISIS_EXTRA_PATTERNS", " hopeless , ,can't go on ")
	t.Setenv("STORAGE_BACKEND", "Redis")
	t.Setenv("REDIS_KEY_TTL_HOURS", "48")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_PRETTY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, time.Minute, cfg.Session.Duration)
	assert.Equal(t, []string{"hopeless", "can't go on"}, cfg.Crisis.ExtraPatterns)
	assert.Equal(t, StorageRedis, cfg.Storage.Backend)
	assert.Equal(t, 48*time.Hour, cfg.Storage.RedisTTL)
	assert.Equal(t, zerolog.DebugLevel, cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
}

func TestProviderInference(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "g-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, cfg.AI.Provider)

	t.Setenv("ARK_API_KEY", "a-key")
	t.Setenv("Model", "doubao")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, ProviderArk, cfg.AI.Provider)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"bad port":         {"PORT", "80 80"},
		"zero duration":    {"SESSION_DURATION_SECONDS", "0"},
		"text duration":    {"SESSION_DURATION_SECONDS", "five"},
		"unknown storage":  {"STORAGE_BACKEND", "etcd"},
		"unknown provider": {"AI_PROVIDER", "openai"},
		"ark without keys": {"AI_PROVIDER", "ark"},
		"gemini no key":    {"AI_PROVIDER", "gemini"},
		"bad log level":    {"LOG_LEVEL", "loud"},
		"bad pretty flag":  {"LOG_PRETTY", "maybe"},
	}

	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
