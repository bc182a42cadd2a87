package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yoockh/voicerelay/internal/providers/voiceagent"
	"github.com/yoockh/voicerelay/internal/utils"
)

const (
	BackendDeepgram = "deepgram"
	BackendGoogle   = "google"

	DefaultDeepgramAgentURL = voiceagent.DefaultDeepgramAgentURL
)

type Config struct {
	Port string

	Backend          string
	DeepgramAPIKey   string
	DeepgramAgentURL string
	Agent            voiceagent.Options

	KeepAliveInterval time.Duration
	WSWriteTimeout    time.Duration
	ArtifactDir       string
	ChatLogPath       string
	MirrorTimeout     time.Duration

	RedisAddr     string
	MongoURI      string
	MongoDB       string
	PostgresURI   string
	GCSBucket     string
	UploadWorkers int

	GCPProject       string
	GCPLocation      string
	GeminiModel      string
	CascadeUtterance time.Duration
}

// Load reads the process environment. Call godotenv.Load first to pick up a
// .env file.
func Load() (*Config, error) {
	const op = "config.Load"

	cfg := &Config{
		Port:             env("PORT", "8080"),
		Backend:          strings.ToLower(env("AGENT_BACKEND", BackendDeepgram)),
		DeepgramAPIKey:   os.Getenv("DEEPGRAM_API_KEY"),
		DeepgramAgentURL: env("DEEPGRAM_AGENT_URL", DefaultDeepgramAgentURL),
		Agent: voiceagent.Options{
			Language:      os.Getenv("AGENT_LANGUAGE"),
			ListenModel:   os.Getenv("AGENT_LISTEN_MODEL"),
			ThinkProvider: os.Getenv("AGENT_THINK_PROVIDER"),
			ThinkModel:    os.Getenv("AGENT_THINK_MODEL"),
			Prompt:        os.Getenv("AGENT_PROMPT"),
			SpeakModel:    os.Getenv("AGENT_SPEAK_MODEL"),
			Greeting:      os.Getenv("AGENT_GREETING"),
		},
		ArtifactDir: env("ARTIFACT_DIR", "."),
		ChatLogPath: env("CHATLOG_PATH", "chatlog.txt"),
		RedisAddr:   firstEnv("REDIS_ADDR", "REDIS_URI", "REDIS_URL"),
		MongoURI:    os.Getenv("MONGO_URI"),
		MongoDB:     env("MONGO_DB", "voicerelay"),
		PostgresURI: os.Getenv("POSTGRES_URI"),
		GCSBucket:   os.Getenv("GCS_BUCKET"),
		GCPProject:  os.Getenv("GCP_PROJECT"),
		GCPLocation: env("GCP_LOCATION", "us-central1"),
		GeminiModel: env("GEMINI_MODEL", "gemini-1.5-flash"),
	}

	var err error
	if cfg.KeepAliveInterval, err = durationEnv("KEEPALIVE_INTERVAL", 4*time.Second); err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid KEEPALIVE_INTERVAL", err)
	}
	if cfg.WSWriteTimeout, err = durationEnv("WS_WRITE_TIMEOUT", 10*time.Second); err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid WS_WRITE_TIMEOUT", err)
	}
	if cfg.MirrorTimeout, err = durationEnv("CHATLOG_MIRROR_TIMEOUT", 2*time.Second); err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid CHATLOG_MIRROR_TIMEOUT", err)
	}
	if cfg.UploadWorkers, err = intEnv("UPLOAD_WORKERS", 2); err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid UPLOAD_WORKERS", err)
	}
	ms, err := intEnv("CASCADE_UTTERANCE_MS", 3000)
	if err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid CASCADE_UTTERANCE_MS", err)
	}
	cfg.CascadeUtterance = time.Duration(ms) * time.Millisecond

	if cfg.KeepAliveInterval <= 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "KEEPALIVE_INTERVAL must be positive", nil)
	}

	switch cfg.Backend {
	case BackendDeepgram:
		if cfg.DeepgramAPIKey == "" {
			return nil, utils.E(utils.CodeInvalidArgument, op, "DEEPGRAM_API_KEY is required for the deepgram backend", nil)
		}
	case BackendGoogle:
		if cfg.GCPProject == "" {
			return nil, utils.E(utils.CodeInvalidArgument, op, "GCP_PROJECT is required for the google backend", nil)
		}
	default:
		return nil, utils.E(utils.CodeInvalidArgument, op, "AGENT_BACKEND must be deepgram or google", nil)
	}

	return cfg, nil
}

// CascadeUtteranceBytes converts the cascade window to 16-bit mono PCM bytes.
func (c *Config) CascadeUtteranceBytes() int {
	return int(c.CascadeUtterance.Seconds() * float64(voiceagent.SampleRate) * 2)
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	return time.ParseDuration(v)
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
