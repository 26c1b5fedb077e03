package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all substrate configuration.
type Config struct {
	Logging LogConfig
	Shm     ShmConfig
	Channel ChannelConfig
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// ShmConfig holds shared-memory provider configuration.
type ShmConfig struct {
	// SegmentSize is the default size of a newly created segment in bytes.
	SegmentSize uint64 `envconfig:"SHM_SEGMENT_SIZE" default:"4194304"`
	// Dir overrides the directory backing named segments. Empty selects the
	// platform default (/dev/shm on Linux, the OS temp dir elsewhere).
	Dir string `envconfig:"SHM_DIR" default:""`
	// GCInterval is the cadence of the orphan-reclaim pass run by shmctl in
	// watch mode; zero disables watching.
	GCInterval time.Duration `envconfig:"SHM_GC_INTERVAL" default:"30s"`
}

// ChannelConfig holds bounded-channel defaults.
type ChannelConfig struct {
	Capacity int `envconfig:"CHANNEL_CAPACITY" default:"256"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("LOOM", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return &Config{
			Logging: LogConfig{Level: "info"},
			Shm:     ShmConfig{SegmentSize: 4 << 20, GCInterval: 30 * time.Second},
			Channel: ChannelConfig{Capacity: 256},
		}
	}
	return cfg
}
