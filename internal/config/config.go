// Package config loads the bench configuration from an optional YAML/JSON
// file and LRUBENCH_* environment variables.
package config

import (
	"math"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/IvanBrykalov/lrucache/internal/logger"
)

// EnvPrefix is prepended to every environment variable: log.level is read
// from LRUBENCH_LOG_LEVEL.
const EnvPrefix = "LRUBENCH"

// Cache implementations the bench can drive.
const (
	ImplLRU       = "lru"
	ImplSharded   = "sharded"
	ImplGolangLRU = "golang-lru"
)

// Config is the full bench configuration.
type Config struct {
	Impl     string        `mapstructure:"impl"`
	Capacity int           `mapstructure:"capacity"`
	Shards   int           `mapstructure:"shards"`
	Workers  int           `mapstructure:"workers"`
	Duration time.Duration `mapstructure:"duration"`
	// Reads is the share of Get operations in percent; the rest are Sets.
	Reads   int     `mapstructure:"reads"`
	Keys    int     `mapstructure:"keys"`
	ZipfS   float64 `mapstructure:"zipf_s"`
	ZipfV   float64 `mapstructure:"zipf_v"`
	Seed    int64   `mapstructure:"seed"`
	Preload bool    `mapstructure:"preload"`

	PprofAddr   string `mapstructure:"pprof"`
	MetricsAddr string `mapstructure:"metrics"`

	Log logger.Config `mapstructure:"log"`
}

var defaults = map[string]interface{}{
	"impl":     ImplSharded,
	"capacity": 100_000,
	"shards":   0,
	"workers":  8,
	"duration": "10s",
	"reads":    90,
	"keys":     1_000_000,
	"zipf_s":   1.2,
	"zipf_v":   1.0,
	"seed":     1,
	"preload":  true,
	"pprof":    "",
	"metrics":  "",

	"log.level":           logger.LevelInfo,
	"log.format":          logger.FormatText,
	"log.output":          logger.OutputStderr,
	"log.nocolor":         false,
	"log.file.path":       "",
	"log.file.maxSize":    logger.DefaultMaxSize,
	"log.file.maxBackups": logger.DefaultMaxBackups,
	"log.file.maxAgeDays": 0,
	"log.file.compress":   false,
}

// Default returns the built-in defaults overlaid with the environment.
func Default() Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(err) // defaults are static
	}
	return cfg
}

// Load reads path (if non-empty) and the environment, then validates the
// result. The file format follows the extension (.yaml, .yml, .json).
func Load(path string) (Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "read config file %s", path)
		}
	}
	cfg, err := decode(v)
	if err != nil {
		return Config{}, err
	}
	if err = cfg.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(EnvPrefix)
	return v
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.StringToTimeDurationHookFunc()))
	if err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	return cfg, nil
}

// Validate reports the first invalid parameter.
func (c Config) Validate() error {
	switch c.Impl {
	case ImplLRU, ImplSharded:
		if c.Capacity < 0 || c.Capacity > math.MaxInt32 {
			return errors.Errorf("capacity: must be in [0, %d], got %d", math.MaxInt32, c.Capacity)
		}
	case ImplGolangLRU:
		if c.Capacity <= 0 {
			return errors.Errorf("capacity: %s requires a positive capacity, got %d", ImplGolangLRU, c.Capacity)
		}
	default:
		return errors.Errorf("impl: unknown implementation %q, want %s, %s or %s",
			c.Impl, ImplLRU, ImplSharded, ImplGolangLRU)
	}
	if c.Shards < 0 {
		return errors.Errorf("shards: must be >= 0, got %d", c.Shards)
	}
	if c.Workers < 1 {
		return errors.Errorf("workers: must be >= 1, got %d", c.Workers)
	}
	if c.Duration <= 0 {
		return errors.Errorf("duration: must be positive, got %s", c.Duration)
	}
	if c.Reads < 0 || c.Reads > 100 {
		return errors.Errorf("reads: must be a percentage, got %d", c.Reads)
	}
	if c.Keys < 1 {
		return errors.Errorf("keys: must be >= 1, got %d", c.Keys)
	}
	// rand.NewZipf requires s > 1 and v >= 1.
	if c.ZipfS <= 1 {
		return errors.Errorf("zipf_s: must be > 1, got %g", c.ZipfS)
	}
	if c.ZipfV < 1 {
		return errors.Errorf("zipf_v: must be >= 1, got %g", c.ZipfV)
	}
	return c.Log.Validate()
}
