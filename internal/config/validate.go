package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}
	oneOf := func(path, value string, valid []string) {
		if value != "" && !slices.Contains(valid, value) {
			add(path, "must be one of %v, got %q", valid, value)
		}
	}

	// Gateway
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		add("gateway.port", "port must be 0-65535, got %d", cfg.Gateway.Port)
	}
	oneOf("gateway.bind", cfg.Gateway.Bind, []string{"auto", "lan", "loopback", "custom"})
	oneOf("gateway.auth.mode", cfg.Gateway.Auth.Mode, []string{"token", "password"})
	if cfg.Gateway.TLS.Enabled && (cfg.Gateway.TLS.CertPath == "" || cfg.Gateway.TLS.KeyPath == "") {
		add("gateway.tls", "certPath and keyPath are required when TLS is enabled")
	}

	// Logging
	oneOf("logging.level", cfg.Logging.Level, []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"})
	oneOf("logging.consoleStyle", cfg.Logging.ConsoleStyle, []string{"pretty", "json"})

	// Session store and dialogue
	oneOf("session.store", cfg.Session.Store, []string{"file", "sqlite", "memory"})
	oneOf("dialogue.locale", cfg.Dialogue.Locale, []string{"pt", "en"})
	if cfg.Dialogue.InvalidThreshold < 1 {
		add("dialogue.invalidThreshold", "must be at least 1, got %d", cfg.Dialogue.InvalidThreshold)
	}
	if cfg.Idle.ShortMinutes < 1 || cfg.Idle.LongMinutes < 1 {
		add("idle", "shortMinutes and longMinutes must be positive")
	}
	if cfg.Idle.ShortMinutes > cfg.Idle.LongMinutes {
		add("idle.shortMinutes", "must not exceed longMinutes (%d > %d)", cfg.Idle.ShortMinutes, cfg.Idle.LongMinutes)
	}

	// Registry
	oneOf("registry.source", cfg.Registry.Source, []string{"csv", "xlsx", "none"})
	if (cfg.Registry.Source == "csv" || cfg.Registry.Source == "xlsx") && cfg.Registry.Path == "" {
		add("registry.path", "required when registry.source is %s", cfg.Registry.Source)
	}

	// Report delivery
	oneOf("report.notifier", cfg.Report.Notifier, []string{"none", "smtp", "gmail", "s3"})
	switch cfg.Report.Notifier {
	case "smtp":
		if cfg.Report.SMTP.Host == "" {
			add("report.smtp.host", "host is required")
		}
		if len(cfg.Report.To) == 0 {
			add("report.to", "at least one recipient is required")
		}
	case "gmail":
		if len(cfg.Report.To) == 0 {
			add("report.to", "at least one recipient is required")
		}
	case "s3":
		if cfg.Report.S3.Bucket == "" {
			add("report.s3.bucket", "bucket is required")
		}
	}

	// IRC (only if configured)
	if irc := cfg.Channels.IRC; irc != nil {
		if irc.Server == "" {
			add("channels.irc.server", "server is required")
		}
		if irc.Nick == "" {
			add("channels.irc.nick", "nick is required")
		}
		if irc.Port < 0 || irc.Port > 65535 {
			add("channels.irc.port", "port must be 0-65535, got %d", irc.Port)
		}
		if irc.SASL && irc.Password == "" {
			add("channels.irc.sasl", "SASL requires a password to be set")
		}
	}

	if wc := cfg.Channels.Webchat; wc != nil && wc.ResumeHours < 0 {
		add("channels.webchat.resumeHours", "must not be negative, got %d", wc.ResumeHours)
	}

	return issues
}
