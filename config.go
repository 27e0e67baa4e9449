package deerflow

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the deer-flow server components.
type Config struct {
	// CheckpointSaver enables durable persistence of stream events and
	// conversation metadata. When false, both subsystems run in a no-op
	// mode and only in-memory run state is available.
	CheckpointSaver bool

	// DatabaseURL is the backend connection URI. The scheme selects the
	// backend: mongodb:// for the document store, postgresql:// or
	// postgres:// for the relational store. Ignored when CheckpointSaver
	// is false.
	DatabaseURL string

	// Addr is the HTTP listen address.
	Addr string

	// RunRetention is how long terminal runs stay in the manager before
	// the cleanup sweep removes them.
	RunRetention time.Duration

	// CleanupSpec is the cron expression for the cleanup sweep.
	CleanupSpec string

	// ShutdownTimeout is the maximum time to wait for running workflows
	// to cancel and flush during shutdown.
	ShutdownTimeout time.Duration

	// FlushTimeout bounds the forced persistence attempt that runs when
	// a workflow reaches a terminal state.
	FlushTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CheckpointSaver: false,
		Addr:            ":8000",
		RunRetention:    time.Hour,
		CleanupSpec:     "*/5 * * * *",
		ShutdownTimeout: 30 * time.Second,
		FlushTimeout:    10 * time.Second,
	}
}

// ConfigFromEnv returns DefaultConfig overridden by DEERFLOW_* environment
// variables:
//
//	DEERFLOW_CHECKPOINT_SAVER   "true"/"1" enables durability
//	DEERFLOW_CHECKPOINT_DB_URL  backend connection URI
//	DEERFLOW_ADDR               HTTP listen address
//	DEERFLOW_RUN_RETENTION      Go duration, e.g. "1h"
//	DEERFLOW_CLEANUP_SPEC       cron expression for the cleanup sweep
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("DEERFLOW_CHECKPOINT_SAVER"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.CheckpointSaver = b
		}
	}
	if v := os.Getenv("DEERFLOW_CHECKPOINT_DB_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("DEERFLOW_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("DEERFLOW_RUN_RETENTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RunRetention = d
		}
	}
	if v := os.Getenv("DEERFLOW_CLEANUP_SPEC"); v != "" {
		cfg.CleanupSpec = v
	}

	return cfg
}

// Validate checks the configuration for values that cannot be defaulted
// away. A missing DatabaseURL while CheckpointSaver is enabled is NOT an
// error here: that case degrades to disabled persistence with a warning at
// store construction time.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("deerflow: config: empty listen address")
	}
	if c.RunRetention < 0 {
		return fmt.Errorf("deerflow: config: negative run retention")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("deerflow: config: shutdown timeout must be positive")
	}
	if c.FlushTimeout <= 0 {
		return fmt.Errorf("deerflow: config: flush timeout must be positive")
	}
	return nil
}
