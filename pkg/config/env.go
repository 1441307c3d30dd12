// Package config holds process-wide tunables read once at startup.
//
// The CLI surface is deliberately small, so operational knobs that should
// rarely change live here as environment variables with documented
// defaults.
package config

import (
	"os"
	"strconv"
	"time"
)

// Environment variable prefix for all portsweep settings
const envPrefix = "PORTSWEEP_"

// SweepConfig contains configurable sweep settings
type SweepConfig struct {
	// Workers is the size of the probe worker pool shared by all phases.
	Workers int

	// ConnectTimeout bounds each TCP connect attempt.
	ConnectTimeout time.Duration

	// ProbeTimeout bounds each ICMP echo and reverse-DNS lookup. It
	// defaults to the same 2s as the connect timeout.
	ProbeTimeout time.Duration
}

// DefaultSweepConfig returns the sweep configuration, honoring
// PORTSWEEP_WORKERS, PORTSWEEP_CONNECT_TIMEOUT and PORTSWEEP_PROBE_TIMEOUT
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		Workers:        getEnvInt("WORKERS", 32),
		ConnectTimeout: getEnvDuration("CONNECT_TIMEOUT", 2*time.Second),
		ProbeTimeout:   getEnvDuration("PROBE_TIMEOUT", 2*time.Second),
	}
}

// getEnvInt retrieves an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(envPrefix + key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable with a default value
// Accepts values like "500ms", "2s", "1m"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if val := os.Getenv(envPrefix + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultValue
}

// Sweep is the global sweep configuration (initialized once at startup)
var Sweep = DefaultSweepConfig()

// Init initializes all configuration from environment variables
// Call this at application startup
func Init() {
	Sweep = DefaultSweepConfig()
}
