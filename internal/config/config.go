package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config is shared by the same-origin server and the terminal client. Each
// binary only reads the parts it needs.
type Config struct {
	Port     string `env:"PORT,     default=3001"`
	Env      string `env:"ENV,      default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	// BackendURL is the REST backend every view talks to.
	BackendURL string `env:"BACKEND_URL, default=http://localhost:3000"`
	// PublicURL is where the same-origin server is reachable from clients.
	PublicURL string `env:"PUBLIC_URL, default=http://localhost:3001"`

	Session SessionConfig
	Upload  UploadConfig
	Redis   RedisConfig
	Mail    MailConfig
}

type SessionConfig struct {
	Secret  string `env:"SESSION_SECRET, default=photostockage-dev-secret"`
	Profile string `env:"PROFILE,        default=default"`
	// StateFile is the terminal client's local storage.
	StateFile  string        `env:"STATE_FILE,     default=.photostockage.json"`
	Store      string        `env:"SESSION_STORE,  default=file"`
	ExpiryTick time.Duration `env:"SESSION_EXPIRY_TICK, default=1m"`
}

type UploadConfig struct {
	// Backend is "disk" or "r2".
	Backend string `env:"UPLOAD_BACKEND, default=disk"`
	Dir     string `env:"UPLOAD_DIR,     default=public/images/users"`
	DSN     string `env:"DSN"`

	AccountID       string `env:"ACCOUNT_ID"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	AccessKeySecret string `env:"ACCESS_KEY_SECRET"`
	Bucket          string `env:"BUCKET_NAME"`
	// R2PublicURL is the bucket's public base. Empty serves the bare path.
	R2PublicURL string `env:"R2_PUBLIC_URL"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR"`
	DB   int    `env:"REDIS_DB, default=0"`
}

type MailConfig struct {
	ResendAPIKey string `env:"RESEND_API_KEY"`
	From         string `env:"CONTACT_FROM, default=PhotoStockage <photostockage@sigmafi-tech.website>"`
	To           string `env:"CONTACT_TO,   default=photostockage@sigmafi-tech.website"`
}

// devSecret signs cookies outside production only.
const devSecret = "photostockage-dev-secret"

// IsProd reports whether cookies should be marked secure.
func (c *Config) IsProd() bool { return c.Env == "production" }

// Load reads an optional .env file and then the process environment.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	return FromLookuper(ctx, envconfig.OsLookuper())
}

// FromLookuper decodes configuration from an arbitrary source.
func FromLookuper(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.Upload.Backend != "disk" && cfg.Upload.Backend != "r2" {
		return nil, fmt.Errorf("config: UPLOAD_BACKEND must be disk or r2, got %q", cfg.Upload.Backend)
	}
	if cfg.IsProd() && (cfg.Session.Secret == devSecret || len(cfg.Session.Secret) < 32) {
		return nil, errors.New("config: SESSION_SECRET must be set to at least 32 bytes in production")
	}
	return &cfg, nil
}
