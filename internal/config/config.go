// Package config loads PanelCut settings from built-in defaults, an optional
// config file, PANELCUT_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/piwi3910/PanelCut/internal/model"
)

// EnvPrefix prefixes every environment variable, e.g. PANELCUT_CACHE_SIZE.
const EnvPrefix = "PANELCUT"

// Keys as used in config files. Nested keys map to flags with '-' instead of '.'.
const (
	KeyStrategy      = "strategy"
	KeyKerf          = "kerf"
	KeyEdgeTrim      = "edge-trim"
	KeyTimeout       = "timeout"
	KeyWorkers       = "workers"
	KeyCacheEnabled  = "cache.enabled"
	KeyCacheSize     = "cache.size"
	KeyCacheTTL      = "cache.ttl"
	KeyServerAddr    = "server.addr"
	KeyServerMetrics = "server.metrics"
)

// Config is the resolved configuration.
type Config struct {
	Strategy  string        `mapstructure:"strategy"`
	KerfWidth float64       `mapstructure:"kerf"`      // mm
	EdgeTrim  float64       `mapstructure:"edge-trim"` // mm
	Timeout   time.Duration `mapstructure:"timeout"`   // 0 disables the deadline
	Workers   int           `mapstructure:"workers"`   // 0 = GOMAXPROCS
	Cache     CacheConfig   `mapstructure:"cache"`
	Server    ServerConfig  `mapstructure:"server"`
}

// CacheConfig controls the in-memory result cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Size    int           `mapstructure:"size"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr    string `mapstructure:"addr"`
	Metrics bool   `mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyStrategy, string(model.StrategyWasteMinimize))
	v.SetDefault(KeyKerf, 3.0)
	v.SetDefault(KeyEdgeTrim, 0.0)
	v.SetDefault(KeyTimeout, 30*time.Second)
	v.SetDefault(KeyWorkers, 0)
	v.SetDefault(KeyCacheEnabled, true)
	v.SetDefault(KeyCacheSize, 128)
	v.SetDefault(KeyCacheTTL, 10*time.Minute)
	v.SetDefault(KeyServerAddr, ":8080")
	v.SetDefault(KeyServerMetrics, true)
}

// AddFlags registers the configuration flags on fs. Flag defaults are shown
// in help output only: a flag overrides file and environment values only when set.
func AddFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to a config file (YAML, TOML or JSON)")
	fs.String(KeyStrategy, string(model.StrategyWasteMinimize), "Packing strategy: LENGTH_FIRST, WIDTH_FIRST, GRAIN_RESPECT or WASTE_MINIMIZE")
	fs.Float64(KeyKerf, 3.0, "Saw kerf width in mm")
	fs.Float64(KeyEdgeTrim, 0, "Trim removed from every panel edge in mm")
	fs.Duration(KeyTimeout, 30*time.Second, "Deadline for one optimization run, 0 for none")
	fs.Int(KeyWorkers, 0, "Parallel panel-type evaluations, 0 for GOMAXPROCS")
	fs.Bool(flagName(KeyCacheEnabled), true, "Cache results of identical requests")
	fs.Int(flagName(KeyCacheSize), 128, "Maximum number of cached results")
	fs.Duration(flagName(KeyCacheTTL), 10*time.Minute, "Lifetime of a cached result, 0 for no expiry")
	fs.String(flagName(KeyServerAddr), ":8080", "HTTP listen address")
	fs.Bool(flagName(KeyServerMetrics), true, "Serve Prometheus metrics on /metrics")
}

func flagName(key string) string {
	return strings.ReplaceAll(key, ".", "-")
}

// Load resolves the configuration. fs may be nil; flags that were not
// registered with AddFlags are ignored.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("reading config: %w", err)
			}
		}
		for _, key := range v.AllKeys() {
			if f := fs.Lookup(flagName(key)); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("binding flag %s: %w", f.Name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and names that the engine would otherwise reject per request.
func (c Config) Validate() error {
	var errs []error
	if _, err := model.ParseStrategy(c.Strategy); err != nil {
		errs = append(errs, err)
	}
	if c.KerfWidth < 0 {
		errs = append(errs, fmt.Errorf("kerf must be >= 0, got %g", c.KerfWidth))
	}
	if c.EdgeTrim < 0 {
		errs = append(errs, fmt.Errorf("edge-trim must be >= 0, got %g", c.EdgeTrim))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must be >= 0, got %s", c.Timeout))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be >= 0, got %d", c.Workers))
	}
	if c.Cache.Enabled && c.Cache.Size <= 0 {
		errs = append(errs, fmt.Errorf("cache.size must be > 0 when the cache is enabled, got %d", c.Cache.Size))
	}
	return multierr.Combine(errs...)
}

// DefaultStrategy returns the configured strategy. Call Validate first.
func (c Config) DefaultStrategy() model.Strategy {
	s, _ := model.ParseStrategy(c.Strategy)
	return s
}

// Settings returns the engine settings carried by the configuration.
func (c Config) Settings() model.Settings {
	return model.Settings{
		EdgeTrim: c.EdgeTrim,
		Workers:  c.Workers,
	}
}
