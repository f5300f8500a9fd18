package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Fetch.Mode != "iterate" {
		t.Errorf("Fetch.Mode = %q, want iterate", cfg.Fetch.Mode)
	}
	if cfg.Fetch.Limit != 100 {
		t.Errorf("Fetch.Limit = %d, want 100", cfg.Fetch.Limit)
	}
	if cfg.Fetch.SimilarityThreshold != 80 {
		t.Errorf("Fetch.SimilarityThreshold = %d, want 80", cfg.Fetch.SimilarityThreshold)
	}
	if cfg.Hub.MaxReauth != 2 {
		t.Errorf("Hub.MaxReauth = %d, want 2", cfg.Hub.MaxReauth)
	}
	if cfg.Hub.Timeout() != 30*time.Second {
		t.Errorf("Hub.Timeout() = %v, want 30s", cfg.Hub.Timeout())
	}
	if cfg.Batch.URLLength != 2000 {
		t.Errorf("Batch.URLLength = %d, want 2000", cfg.Batch.URLLength)
	}
	if cfg.Redis.Enabled() {
		t.Error("Redis.Enabled() = true without an address")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SPACESYNC_HUB_TOKEN", "secret")
	t.Setenv("SPACESYNC_FETCH_SPACE", "abc123")
	t.Setenv("SPACESYNC_FETCH_PARALLEL", "4")
	t.Setenv("SPACESYNC_REDIS_ADDR", "localhost:6379")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Hub.Token != "secret" {
		t.Errorf("Hub.Token = %q, want secret", cfg.Hub.Token)
	}
	if cfg.Fetch.Space != "abc123" {
		t.Errorf("Fetch.Space = %q, want abc123", cfg.Fetch.Space)
	}
	if cfg.Fetch.Parallel != 4 {
		t.Errorf("Fetch.Parallel = %d, want 4", cfg.Fetch.Parallel)
	}
	if !cfg.Redis.Enabled() {
		t.Error("Redis.Enabled() = false with SPACESYNC_REDIS_ADDR set")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sync.yaml")
	yaml := `
hub:
  base_url: https://hub.example.com
fetch:
  space: roads
  mode: bbox
  bbox: [13.0, 52.0, 14.0, 53.0]
  grid_x: 3
  grid_y: 2
  tags: [highway, bridge]
logging:
  level: debug
  pretty: true
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Hub.BaseURL != "https://hub.example.com" {
		t.Errorf("Hub.BaseURL = %q", cfg.Hub.BaseURL)
	}
	ext, err := cfg.Fetch.Extent()
	if err != nil {
		t.Fatalf("Extent() error = %v", err)
	}
	if ext.MinX() != 13 || ext.MaxY() != 53 {
		t.Errorf("Extent() = %v, want [13 52 14 53]", ext)
	}
	if len(cfg.Fetch.Tags) != 2 || cfg.Fetch.Tags[1] != "bridge" {
		t.Errorf("Fetch.Tags = %v, want [highway bridge]", cfg.Fetch.Tags)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Pretty {
		t.Errorf("Logging = %+v, want debug pretty", cfg.Logging)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load() with a missing explicit file should fail")
	}
}

func validConfig() Config {
	return Config{
		Hub:     HubConfig{BaseURL: "http://localhost:8080", TimeoutSec: 30, MaxReauth: 2},
		Fetch:   FetchConfig{Mode: "iterate", Limit: 100, Parallel: 1, SimilarityThreshold: 80, TileSchema: "here"},
		Batch:   BatchConfig{PayloadBytes: 1024, URLLength: 2000},
		Logging: LoggingConfig{Level: "info"},
		Server:  ServerConfig{Port: 9090},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		problem string
	}{
		{"valid", func(*Config) {}, ""},
		{"relative base url", func(c *Config) { c.Hub.BaseURL = "hub" }, "hub.base_url"},
		{"unknown mode", func(c *Config) { c.Fetch.Mode = "grid" }, "fetch.mode"},
		{"tile without bbox", func(c *Config) { c.Fetch.Mode = "tile" }, "bbox needs 4 values"},
		{"empty bbox", func(c *Config) {
			c.Fetch.Mode = "bbox"
			c.Fetch.BBox = []float64{1, 1, 1, 2}
		}, "is empty"},
		{"zero limit", func(c *Config) { c.Fetch.Limit = 0 }, "fetch.limit"},
		{"threshold too high", func(c *Config) { c.Fetch.SimilarityThreshold = 101 }, "similarity_threshold"},
		{"bad tile schema", func(c *Config) { c.Fetch.TileSchema = "utm" }, "tile_schema"},
		{"zero payload budget", func(c *Config) { c.Batch.PayloadBytes = 0 }, "payload_bytes"},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()

			if tt.problem == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			var verr *ValidationErrors
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want *ValidationErrors", err)
			}
			if !strings.Contains(err.Error(), tt.problem) {
				t.Errorf("Validate() error = %q, want it to mention %q", err, tt.problem)
			}
		})
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Fetch.Limit = 0
	cfg.Fetch.Parallel = 0
	cfg.Server.Port = 0

	var verr *ValidationErrors
	if !errors.As(cfg.Validate(), &verr) {
		t.Fatal("Validate() should return *ValidationErrors")
	}
	if len(verr.Problems) != 3 {
		t.Errorf("Problems = %v, want 3 entries", verr.Problems)
	}
}
