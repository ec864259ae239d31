package config

import (
	"fmt"
	"time"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

// ShortIdle returns the nudge delay used after repeated invalid answers.
func (c IdleConfig) ShortIdle() time.Duration {
	return time.Duration(c.ShortMinutes) * time.Minute
}

// LongIdle returns the regular nudge delay.
func (c IdleConfig) LongIdle() time.Duration {
	return time.Duration(c.LongMinutes) * time.Minute
}
