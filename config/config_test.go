package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/voicerelay/internal/utils"
)

var configKeys = []string{
	"PORT", "AGENT_BACKEND", "DEEPGRAM_API_KEY", "DEEPGRAM_AGENT_URL",
	"KEEPALIVE_INTERVAL", "WS_WRITE_TIMEOUT", "UPLOAD_WORKERS", "CASCADE_UTTERANCE_MS",
	"REDIS_ADDR", "REDIS_URI", "REDIS_URL", "GCP_PROJECT", "ARTIFACT_DIR", "CHATLOG_PATH", "CHATLOG_MIRROR_TIMEOUT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEEPGRAM_API_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendDeepgram, cfg.Backend)
	assert.Equal(t, DefaultDeepgramAgentURL, cfg.DeepgramAgentURL)
	assert.Equal(t, 4*time.Second, cfg.KeepAliveInterval)
	assert.Equal(t, 10*time.Second, cfg.WSWriteTimeout)
	assert.Equal(t, ".", cfg.ArtifactDir)
	assert.Equal(t, "chatlog.txt", cfg.ChatLogPath)
	assert.Equal(t, 2, cfg.UploadWorkers)
	assert.Equal(t, 2*time.Second, cfg.MirrorTimeout)
	assert.Equal(t, 96000, cfg.CascadeUtteranceBytes())
}

func TestLoadRedisFallbacks(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEEPGRAM_API_KEY", "secret")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisAddr)
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing api key", env: map[string]string{}},
		{name: "bad keepalive", env: map[string]string{"DEEPGRAM_API_KEY": "k", "KEEPALIVE_INTERVAL": "soon"}},
		{name: "zero keepalive", env: map[string]string{"DEEPGRAM_API_KEY": "k", "KEEPALIVE_INTERVAL": "0s"}},
		{name: "bad mirror timeout", env: map[string]string{"DEEPGRAM_API_KEY": "k", "CHATLOG_MIRROR_TIMEOUT": "later"}},
		{name: "bad workers", env: map[string]string{"DEEPGRAM_API_KEY": "k", "UPLOAD_WORKERS": "two"}},
		{name: "unknown backend", env: map[string]string{"AGENT_BACKEND": "openai"}},
		{name: "google without project", env: map[string]string{"AGENT_BACKEND": "google"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
		})
	}
}

func TestLoadGoogleBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("AGENT_BACKEND", "Google")
	t.Setenv("GCP_PROJECT", "demo")
	t.Setenv("CASCADE_UTTERANCE_MS", "1000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendGoogle, cfg.Backend)
	assert.Equal(t, 32000, cfg.CascadeUtteranceBytes())
}

func TestInitStoresRequireAddress(t *testing.T) {
	_, err := InitRedis(context.Background(), "")
	assert.Error(t, err)
	_, err = InitMongo(context.Background(), "")
	assert.Error(t, err)
	_, err = InitPostgres("")
	assert.Error(t, err)
}
