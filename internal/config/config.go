// Package config loads space-sync settings from defaults, an optional YAML
// file and SPACESYNC_* environment variables.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-spatial/geom"
	"github.com/spf13/viper"
)

type Config struct {
	Hub     HubConfig     `mapstructure:"hub"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Batch   BatchConfig   `mapstructure:"batch"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Logging LoggingConfig `mapstructure:"logging"`
	Server  ServerConfig  `mapstructure:"server"`
}

type HubConfig struct {
	BaseURL       string  `mapstructure:"base_url"`
	Token         string  `mapstructure:"token"`
	UserAgent     string  `mapstructure:"user_agent"`
	TimeoutSec    int     `mapstructure:"timeout_sec"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	Burst         int     `mapstructure:"burst"`
	MaxReauth     int     `mapstructure:"max_reauth"`
}

// Timeout returns the per-request timeout.
func (h HubConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutSec) * time.Second
}

type FetchConfig struct {
	Space               string    `mapstructure:"space"`
	Layer               string    `mapstructure:"layer"`
	Mode                string    `mapstructure:"mode"`
	Limit               int       `mapstructure:"limit"`
	MaxFeatures         int       `mapstructure:"max_features"`
	Parallel            int       `mapstructure:"parallel"`
	SimilarityThreshold int       `mapstructure:"similarity_threshold"`
	TileLevel           int       `mapstructure:"tile_level"`
	TileSchema          string    `mapstructure:"tile_schema"`
	BBox                []float64 `mapstructure:"bbox"`
	GridX               int       `mapstructure:"grid_x"`
	GridY               int       `mapstructure:"grid_y"`
	MaxDepth            int       `mapstructure:"max_depth"`
	Tags                []string  `mapstructure:"tags"`
}

// Extent returns the configured bbox as west, south, east, north.
func (f FetchConfig) Extent() (geom.Extent, error) {
	if len(f.BBox) != 4 {
		return geom.Extent{}, fmt.Errorf("bbox needs 4 values (west,south,east,north), got %d", len(f.BBox))
	}
	ext := geom.Extent{f.BBox[0], f.BBox[1], f.BBox[2], f.BBox[3]}
	if ext.MinX() >= ext.MaxX() || ext.MinY() >= ext.MaxY() {
		return geom.Extent{}, fmt.Errorf("bbox %v is empty", f.BBox)
	}
	return ext, nil
}

type BatchConfig struct {
	PayloadBytes int `mapstructure:"payload_bytes"`
	URLLength    int `mapstructure:"url_length"`
}

type RedisConfig struct {
	Addr        string `mapstructure:"addr"`
	Password    string `mapstructure:"password"`
	DB          int    `mapstructure:"db"`
	CacheTTLSec int    `mapstructure:"cache_ttl_sec"`
}

// Enabled reports whether a redis address is configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

// CacheTTL returns the default cache entry lifetime.
func (r RedisConfig) CacheTTL() time.Duration {
	return time.Duration(r.CacheTTLSec) * time.Second
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("hub.base_url", "http://localhost:8080")
	v.SetDefault("hub.token", "")
	v.SetDefault("hub.user_agent", "space-sync/1.0")
	v.SetDefault("hub.timeout_sec", 30)
	v.SetDefault("hub.rate_per_second", 10)
	v.SetDefault("hub.burst", 1)
	v.SetDefault("hub.max_reauth", 2)

	v.SetDefault("fetch.space", "")
	v.SetDefault("fetch.layer", "")
	v.SetDefault("fetch.mode", "iterate")
	v.SetDefault("fetch.limit", 100)
	v.SetDefault("fetch.max_features", 0)
	v.SetDefault("fetch.parallel", 1)
	v.SetDefault("fetch.similarity_threshold", 80)
	v.SetDefault("fetch.tile_level", 12)
	v.SetDefault("fetch.tile_schema", "here")
	v.SetDefault("fetch.bbox", []float64{})
	v.SetDefault("fetch.grid_x", 1)
	v.SetDefault("fetch.grid_y", 1)
	v.SetDefault("fetch.max_depth", 4)
	v.SetDefault("fetch.tags", []string{})

	v.SetDefault("batch.payload_bytes", 5*1024*1024)
	v.SetDefault("batch.url_length", 2000)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl_sec", 300)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", false)

	v.SetDefault("server.port", 9090)
}

// Load reads the configuration. An empty path looks for space-sync.yaml in
// ./configs and the working directory; a missing file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SPACESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("space-sync")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// ValidationErrors collects every invalid setting.
type ValidationErrors struct {
	Problems []string
}

func (e *ValidationErrors) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// Error formats all problems, one per line.
func (e *ValidationErrors) Error() string {
	var sb strings.Builder
	sb.WriteString("configuration validation failed:")
	for _, p := range e.Problems {
		sb.WriteString("\n  - ")
		sb.WriteString(p)
	}
	return sb.String()
}

// Validate checks ranges and combinations. The space is not required here
// since commands may take it as an argument.
func (c *Config) Validate() error {
	errs := &ValidationErrors{}

	if u, err := url.Parse(c.Hub.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs.add("hub.base_url %q is not an absolute url", c.Hub.BaseURL)
	}
	if c.Hub.TimeoutSec < 1 {
		errs.add("hub.timeout_sec must be >= 1")
	}
	if c.Hub.MaxReauth < 0 {
		errs.add("hub.max_reauth must be >= 0")
	}

	switch c.Fetch.Mode {
	case "iterate":
	case "tile", "bbox":
		if _, err := c.Fetch.Extent(); err != nil {
			errs.add("fetch.mode %s: %v", c.Fetch.Mode, err)
		}
	default:
		errs.add("fetch.mode %q must be iterate, tile or bbox", c.Fetch.Mode)
	}
	if c.Fetch.Limit < 1 {
		errs.add("fetch.limit must be >= 1")
	}
	if c.Fetch.MaxFeatures < 0 {
		errs.add("fetch.max_features must be >= 0")
	}
	if c.Fetch.Parallel < 1 {
		errs.add("fetch.parallel must be >= 1")
	}
	if c.Fetch.SimilarityThreshold < 0 || c.Fetch.SimilarityThreshold > 100 {
		errs.add("fetch.similarity_threshold must be within [0, 100]")
	}
	if c.Fetch.TileSchema != "here" && c.Fetch.TileSchema != "web" {
		errs.add("fetch.tile_schema %q must be here or web", c.Fetch.TileSchema)
	}

	if c.Batch.PayloadBytes < 1 {
		errs.add("batch.payload_bytes must be >= 1")
	}
	if c.Batch.URLLength < 1 {
		errs.add("batch.url_length must be >= 1")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs.add("server.port %d out of range", c.Server.Port)
	}

	if len(errs.Problems) > 0 {
		return errs
	}
	return nil
}
