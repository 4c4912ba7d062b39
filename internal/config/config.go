package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName  string `env:"APP_NAME" envDefault:"chat backend"`
	Env      string `env:"APP_ENV" envDefault:"development"`
	Host     string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port     int    `env:"HTTP_PORT" envDefault:"5001"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// LogFormat is either "json" or "console".
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	StoreDriver      string `env:"STORE_DRIVER" envDefault:"sqlite"`
	SQLitePath       string `env:"SQLITE_PATH" envDefault:"chat.db"`
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"postgres"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"chat"`

	JWTSecret          string   `env:"JWT_SECRET"`
	AccessTokenMinutes int      `env:"ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"10080"`
	EncryptKey         string   `env:"ENCRYPTION_KEY"`
	LegacyEncryptKeys  []string `env:"LEGACY_ENCRYPTION_KEYS" envSeparator:","`

	UploadDir      string   `env:"UPLOAD_DIR" envDefault:"uploads"`
	MaxUploadBytes int64    `env:"MAX_UPLOAD_BYTES" envDefault:"5242880"`
	CORSOrigins    []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173"`

	PresencePolicy      string        `env:"PRESENCE_POLICY" envDefault:"replace"`
	TypingTTL           time.Duration `env:"TYPING_TTL" envDefault:"8s"`
	TypingSweepInterval time.Duration `env:"TYPING_SWEEP_INTERVAL" envDefault:"2s"`
	CallRingTimeout     time.Duration `env:"CALL_RING_TIMEOUT" envDefault:"30s"`
	WSSendBuffer        int           `env:"WS_SEND_BUFFER" envDefault:"64"`
	WSPingInterval      time.Duration `env:"WS_PING_INTERVAL" envDefault:"25s"`
	WSPongWait          time.Duration `env:"WS_PONG_WAIT" envDefault:"60s"`

	BotUsername     string        `env:"BOT_USERNAME" envDefault:"mizo"`
	BotReplyDelay   time.Duration `env:"BOT_REPLY_DELAY" envDefault:"1s"`
	BotReplyTimeout time.Duration `env:"BOT_REPLY_TIMEOUT" envDefault:"20s"`
	AIAPIKey        string        `env:"OPENROUTER_API_KEY"`
	AIBaseURL       string        `env:"AI_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	AIModels        []string      `env:"AI_MODELS" envSeparator:"," envDefault:"meta-llama/llama-3.2-3b-instruct:free,google/gemma-2-9b-it:free,mistralai/mistral-7b-instruct:free"`

	UserCacheSize    int `env:"USER_CACHE_SIZE" envDefault:"1024"`
	HistoryPageLimit int `env:"HISTORY_PAGE_LIMIT" envDefault:"50"`
}

// Load reads an optional .env file and parses the environment into Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	for i := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.EncryptKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	switch c.StoreDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("STORE_DRIVER must be sqlite or postgres, got %q", c.StoreDriver)
	}
	switch c.PresencePolicy {
	case "replace", "reject", "evict":
	default:
		return fmt.Errorf("PRESENCE_POLICY must be replace, reject or evict, got %q", c.PresencePolicy)
	}
	for name, d := range map[string]time.Duration{
		"TYPING_TTL":            c.TypingTTL,
		"TYPING_SWEEP_INTERVAL": c.TypingSweepInterval,
		"CALL_RING_TIMEOUT":     c.CallRingTimeout,
		"WS_PING_INTERVAL":      c.WSPingInterval,
		"WS_PONG_WAIT":          c.WSPongWait,
		"BOT_REPLY_TIMEOUT":     c.BotReplyTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.WSPingInterval >= c.WSPongWait {
		return fmt.Errorf("WS_PING_INTERVAL must be shorter than WS_PONG_WAIT")
	}
	if c.WSSendBuffer <= 0 {
		return fmt.Errorf("WS_SEND_BUFFER must be positive")
	}
	if c.BotUsername == "" {
		return fmt.Errorf("BOT_USERNAME is required")
	}
	return nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// PostgresURL builds the pgx connection string from the POSTGRES_* settings.
func (c *Config) PostgresURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:     fmt.Sprintf("%s:%s", c.PostgresHost, c.PostgresPort),
		Path:     c.PostgresDB,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenMinutes) * time.Minute
}
