package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend selects the codec engine.
type Backend string

const (
	BackendNative Backend = "native" // pure Go decode/resample, libwebp encode
	BackendVips   Backend = "vips"   // libvips for every stage
)

// Config is the top-level configuration struct.  All fields have safe defaults
// so callers can start with Default() and override only what they need.
type Config struct {
	// Worker pool controls.
	WorkerCount int           `yaml:"worker_count"` // default: runtime.NumCPU()
	QueueSize   int           `yaml:"queue_size"`   // max queued jobs before backpressure; default: 256
	JobTimeout  time.Duration `yaml:"job_timeout"`

	// Defaults applied when a request leaves quality at 0.
	DefaultQuality    int `yaml:"default_quality"`     // 10-100; default 75
	DefaultMinQuality int `yaml:"default_min_quality"` // 10-100; default 40

	// Streaming / memory limits.
	MaxImageBytes int64 `yaml:"max_image_bytes"` // 0 = no limit
	ChunkSize     int   `yaml:"chunk_size"`      // streaming chunk size in bytes; default 32 KiB
	MaxPixels     int   `yaml:"max_pixels"`      // decode guard on width*height; 0 = no limit

	Engine  EngineConfig  `yaml:"engine"`
	Metrics MetricsConfig `yaml:"metrics"`

	// Named request presets used by the application layer.
	Presets map[string]Preset `yaml:"presets"`

	// Logging.
	LogLevel string `yaml:"log_level"` // "debug", "info", "warn", "error"
}

// EngineConfig controls codec bring-up.
type EngineConfig struct {
	Backend Backend `yaml:"backend"`

	// RetryFailedInit re-attempts bring-up on the next call after a failure.
	// When false a failed bring-up is cached for the process lifetime.
	RetryFailedInit bool `yaml:"retry_failed_init"`

	// libvips tuning; ignored by the native backend.
	Concurrency  int `yaml:"concurrency"`
	MaxCacheMem  int `yaml:"max_cache_mem"`
	MaxCacheSize int `yaml:"max_cache_size"`
}

// MetricsConfig controls the Prometheus collector.
type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
}

// Default returns a Config populated with sensible production defaults.
func Default() Config {
	return Config{
		WorkerCount:       0, // resolved at runtime to NumCPU
		QueueSize:         256,
		JobTimeout:        30 * time.Second,
		DefaultQuality:    75,
		DefaultMinQuality: 40,
		ChunkSize:         32 * 1024,
		MaxPixels:         100_000_000,
		Engine: EngineConfig{
			Backend:         BackendNative,
			RetryFailedInit: true,
			Concurrency:     1,
			MaxCacheMem:     50 * 1024 * 1024,
			MaxCacheSize:    100,
		},
		Metrics:  MetricsConfig{Namespace: "image_compressor"},
		Presets:  DefaultPresets(),
		LogLevel: "info",
	}
}

// Load reads a YAML file over Default().  Keys absent from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	if c.DefaultQuality < 10 || c.DefaultQuality > 100 {
		return errors.New("config: DefaultQuality must be between 10 and 100")
	}
	if c.DefaultMinQuality < 10 || c.DefaultMinQuality > 100 {
		return errors.New("config: DefaultMinQuality must be between 10 and 100")
	}
	if c.DefaultMinQuality > c.DefaultQuality {
		return errors.New("config: DefaultMinQuality must not exceed DefaultQuality")
	}
	if c.ChunkSize <= 0 {
		return errors.New("config: ChunkSize must be positive")
	}
	if c.MaxPixels < 0 {
		return errors.New("config: MaxPixels must not be negative")
	}
	if c.MaxImageBytes < 0 {
		return errors.New("config: MaxImageBytes must not be negative")
	}
	switch c.Engine.Backend {
	case BackendNative, BackendVips:
	default:
		return fmt.Errorf("config: unknown engine backend %q", c.Engine.Backend)
	}
	for name, p := range c.Presets {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("config: preset %q: %w", name, err)
		}
	}
	return nil
}
