package app

import (
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DatabasePath != DefaultDatabasePath {
		t.Errorf("DatabasePath: got %q, want %q", cfg.DatabasePath, DefaultDatabasePath)
	}
	if cfg.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("HTTPAddr: got %q, want %q", cfg.HTTPAddr, DefaultHTTPAddr)
	}
	if cfg.Memory.MaxSenders != 10000 || cfg.Memory.TTL != 24*time.Hour {
		t.Errorf("Memory: got %+v", cfg.Memory)
	}
	if cfg.Matrix != nil {
		t.Error("Matrix should be disabled without credentials")
	}
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("KOTAE_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("KOTAE_MEMORY_MAX_SENDERS", "50")
	t.Setenv("KOTAE_MEMORY_TTL", "2h")
	t.Setenv("KOTAE_MEMORY_SWEEP_INTERVAL", "30s")
	t.Setenv("KOTAE_WEBHOOK_SECRET", "s")
	t.Setenv("KOTAE_WEBHOOK_RATE_LIMIT", "5")
	t.Setenv("KOTAE_WORKERS", "4")
	t.Setenv("MATRIX_HOMESERVER", "https://matrix.example.org")
	t.Setenv("MATRIX_USER_ID", "@kotae:example.org")
	t.Setenv("MATRIX_ACCESS_TOKEN", "tok")
	t.Setenv("MATRIX_ROOMS", "!a:example.org, !b:example.org")
	t.Setenv("MATRIX_AUTO_JOIN", "false")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTPAddr != "127.0.0.1:9000" {
		t.Errorf("HTTPAddr: got %q", cfg.HTTPAddr)
	}
	if cfg.Memory.MaxSenders != 50 || cfg.Memory.TTL != 2*time.Hour {
		t.Errorf("Memory: got %+v", cfg.Memory)
	}
	if cfg.SweepInterval != 30*time.Second {
		t.Errorf("SweepInterval: got %s", cfg.SweepInterval)
	}
	if cfg.Webhook.Secret != "s" || cfg.Webhook.RateLimit != 5 {
		t.Errorf("Webhook: got %+v", cfg.Webhook)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers: got %d", cfg.Workers)
	}
	if cfg.Matrix == nil {
		t.Fatal("expected Matrix config")
	}
	if len(cfg.Matrix.Rooms) != 2 || cfg.Matrix.Rooms[1] != "!b:example.org" {
		t.Errorf("Rooms: got %v", cfg.Matrix.Rooms)
	}
	if cfg.Matrix.AutoJoin {
		t.Error("AutoJoin: expected false")
	}
}

func TestLoadConfig_EmptyDatabasePathDisablesJournal(t *testing.T) {
	t.Setenv("KOTAE_DATABASE_PATH", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DatabasePath != "" {
		t.Errorf("DatabasePath: got %q, want empty", cfg.DatabasePath)
	}
}

func TestLoadConfig_IncompleteMatrix(t *testing.T) {
	t.Setenv("MATRIX_HOMESERVER", "https://matrix.example.org")

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("expected incomplete Matrix error")
	}
	for _, name := range []string{"MATRIX_USER_ID", "MATRIX_ACCESS_TOKEN"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not mention %s", err, name)
		}
	}
	if strings.Contains(err.Error(), "MATRIX_HOMESERVER") {
		t.Errorf("error %q blames a variable that is set", err)
	}
}

func TestLoadConfig_ReportsAllMalformedValues(t *testing.T) {
	t.Setenv("KOTAE_MEMORY_MAX_SENDERS", "many")
	t.Setenv("KOTAE_MEMORY_TTL", "forever")

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, name := range []string{"KOTAE_MEMORY_MAX_SENDERS", "KOTAE_MEMORY_TTL"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not mention %s", err, name)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	base := Config{SweepInterval: time.Minute}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"negative max senders", func(c *Config) { c.Memory.MaxSenders = -1 }, true},
		{"negative ttl", func(c *Config) { c.Memory.TTL = -time.Second }, true},
		{"zero sweep", func(c *Config) { c.SweepInterval = 0 }, true},
		{"negative retention", func(c *Config) { c.JournalRetention = -time.Hour }, true},
		{"negative workers", func(c *Config) { c.Workers = -2 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate: got %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
