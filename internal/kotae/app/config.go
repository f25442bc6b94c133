package app

import (
	"fmt"
	"time"

	"github.com/bdobrica/kotae/common/environment"
	"github.com/bdobrica/kotae/internal/kotae/matrix"
	"github.com/bdobrica/kotae/internal/kotae/memory"
	"github.com/bdobrica/kotae/internal/kotae/webhook"
)

// Defaults applied by LoadConfig.
const (
	DefaultDatabasePath     = "./kotae.db"
	DefaultHTTPAddr         = ":8080"
	DefaultSweepInterval    = time.Minute
	DefaultJournalRetention = 30 * 24 * time.Hour
)

// Config holds application configuration
type Config struct {
	// DatabasePath is the SQLite file for the exchange journal and the Matrix
	// sync token. Empty disables both; the responder keeps working.
	DatabasePath string
	// HTTPAddr is the listen address for /health, /status, /metrics and the
	// webhook gateway. Empty disables the HTTP server.
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	Memory        memory.Config
	SweepInterval time.Duration
	// JournalRetention is how long exchanges are kept. Zero keeps them forever.
	JournalRetention time.Duration

	// RepliesDir, when set, is a directory containing a replies.yaml that
	// replaces the embedded reply pack.
	RepliesDir string

	Webhook webhook.Config

	// Workers is the number of dispatcher shards for the Matrix adapter.
	// Zero uses one per CPU.
	Workers int

	// Matrix is nil when the adapter is not configured.
	Matrix *matrix.Config
}

// LoadConfig reads configuration from KOTAE_* and MATRIX_* environment
// variables. All malformed values are reported together.
func LoadConfig() (Config, error) {
	env := environment.New("KOTAE_")
	mem := memory.DefaultConfig()

	cfg := Config{
		DatabasePath: DefaultDatabasePath,
		HTTPAddr:     env.String("HTTP_ADDR", DefaultHTTPAddr),
		LogLevel:     env.String("LOG_LEVEL", "info"),
		LogFormat:    env.String("LOG_FORMAT", "text"),
		Memory: memory.Config{
			MaxSenders: env.Int("MEMORY_MAX_SENDERS", mem.MaxSenders),
			TTL:        env.Duration("MEMORY_TTL", mem.TTL),
		},
		SweepInterval:    env.Duration("MEMORY_SWEEP_INTERVAL", DefaultSweepInterval),
		JournalRetention: env.Duration("JOURNAL_RETENTION", DefaultJournalRetention),
		RepliesDir:       env.String("REPLIES_DIR", ""),
		Webhook: webhook.Config{
			Secret:    env.String("WEBHOOK_SECRET", ""),
			Token:     env.String("WEBHOOK_TOKEN", ""),
			RateLimit: env.Int("WEBHOOK_RATE_LIMIT", webhook.DefaultRateLimit),
		},
		Workers: env.Int("WORKERS", 0),
	}
	// Set-but-empty is meaningful here: it turns the journal off.
	if v, ok := env.Lookup("DATABASE_PATH"); ok {
		cfg.DatabasePath = v
	}

	// Setting any of the three connection variables turns Matrix on; the
	// others are then required.
	mx := environment.New("MATRIX_")
	if anySet(mx, "HOMESERVER", "USER_ID", "ACCESS_TOKEN") {
		cfg.Matrix = &matrix.Config{
			Homeserver:  mx.Required("HOMESERVER"),
			UserID:      mx.Required("USER_ID"),
			AccessToken: mx.Required("ACCESS_TOKEN"),
			Rooms:       mx.StringSlice("ROOMS", nil),
			AutoJoin:    mx.Bool("AUTO_JOIN", true),
		}
	}

	if err := env.Err(); err != nil {
		return cfg, err
	}
	if err := mx.Err(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects values that parse but make no sense.
func (c Config) Validate() error {
	if c.Memory.MaxSenders < 0 {
		return fmt.Errorf("memory max senders must not be negative, got %d", c.Memory.MaxSenders)
	}
	if c.Memory.TTL < 0 {
		return fmt.Errorf("memory TTL must not be negative, got %s", c.Memory.TTL)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("memory sweep interval must be positive, got %s", c.SweepInterval)
	}
	if c.JournalRetention < 0 {
		return fmt.Errorf("journal retention must not be negative, got %s", c.JournalRetention)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	return nil
}

func anySet(l *environment.Loader, names ...string) bool {
	for _, name := range names {
		if v, _ := l.Lookup(name); v != "" {
			return true
		}
	}
	return false
}
