package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/Ixotic27/certifyhub/domains/roster/be/dedup"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFile         string        `env:"LOG_FILE"`
	DatabaseURL     string        `env:"DATABASE_URL,required"`
	AppEnv          string        `env:"APP_ENV" envDefault:"production"` // production | development

	DBMaxConns         int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	DBStatementTimeout time.Duration `env:"DB_STATEMENT_TIMEOUT" envDefault:"15s"` // 0 disables

	AuthProvider       string        `env:"AUTH_PROVIDER" envDefault:"firebase"` // firebase | dev
	FirebaseProjectID  string        `env:"FIREBASE_PROJECT_ID"`
	GCPCredentialsFile string        `env:"GCP_CREDENTIALS_FILE"`
	ClubSpaceCacheTTL  time.Duration `env:"CLUB_SPACE_CACHE_TTL" envDefault:"1m"`

	StorageBackend   string `env:"STORAGE_BACKEND" envDefault:"local"`             // local | gcs
	StorageBucket    string `env:"STORAGE_BUCKET"`                                 // required when STORAGE_BACKEND=gcs
	StorageLocalDir  string `env:"STORAGE_LOCAL_DIR" envDefault:"./.data/storage"` // used when STORAGE_BACKEND=local
	StoragePublicURL string `env:"STORAGE_PUBLIC_URL"`

	MaxUploadSize     int64    `env:"MAX_UPLOAD_SIZE" envDefault:"5242880"`
	AllowedImageTypes []string `env:"ALLOWED_IMAGE_TYPES" envDefault:"image/png,image/jpeg,image/jpg" envSeparator:","`

	ClubQuotaBytes     int64 `env:"CLUB_QUOTA_BYTES" envDefault:"104857600"`
	PlatformQuotaBytes int64 `env:"PLATFORM_QUOTA_BYTES" envDefault:"524288000"`

	FontDirs            []string `env:"FONT_DIRS" envSeparator:":"`
	BlankCanvasFallback *bool    `env:"BLANK_CANVAS_FALLBACK"`
	RequireEventDate    bool     `env:"REQUIRE_EVENT_DATE" envDefault:"false"`
	GlobalLookup        bool     `env:"GLOBAL_LOOKUP" envDefault:"true"`

	DedupScope string `env:"DEDUP_SCOPE" envDefault:"club"`

	MetricsNamespace string `env:"METRICS_NAMESPACE" envDefault:"certifyhub"`
}

// loadConfig reads an optional .env file and then the process environment.
func loadConfig() (config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, err
	}
	if cfg.AppEnv != "production" && cfg.AppEnv != "development" {
		return config{}, fmt.Errorf("invalid APP_ENV %q (use production or development)", cfg.AppEnv)
	}
	if _, err := cfg.dedupScope(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func (c config) development() bool {
	return c.AppEnv == "development"
}

// blankCanvasFallback defaults to on only in development.
func (c config) blankCanvasFallback() bool {
	if c.BlankCanvasFallback != nil {
		return *c.BlankCanvasFallback
	}
	return c.development()
}

// statementTimeout maps an explicit 0 to the pool's "disabled" value.
func (c config) statementTimeout() time.Duration {
	if c.DBStatementTimeout == 0 {
		return -1
	}
	return c.DBStatementTimeout
}

func (c config) dedupScope() (dedup.ScopeMode, error) {
	return dedup.ParseScopeMode(c.DedupScope)
}

func (c config) imageTypes() []string {
	out := make([]string, 0, len(c.AllowedImageTypes))
	for _, t := range c.AllowedImageTypes {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}
