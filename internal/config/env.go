package config

import (
	"os"
	"strconv"
	"time"
)

// FromEnv overlays STELE_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("STELE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("STELE_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv("STELE_FSYNC"); v != "" {
		cfg.Fsync = v
	}
	if v := os.Getenv("STELE_FSYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.FsyncInterval = Duration(d)
		}
	}
	if v := os.Getenv("STELE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("STELE_INLINE_LIMIT_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.InlineLimitBytes = n
		}
	}
	if v := os.Getenv("STELE_REDUCTION_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ReductionInterval = Duration(d)
		}
	}
	if v := os.Getenv("STELE_TRUNCATE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TruncateWorkers = n
		}
	}
	if v := os.Getenv("STELE_TRUNCATE_BUDGET"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.TruncateBudget = Duration(d)
		}
	}
}
