package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so passwords and tokens can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Gateway.Auth.Token = expandEnvVars(cfg.Gateway.Auth.Token)
	cfg.Gateway.Auth.Password = expandEnvVars(cfg.Gateway.Auth.Password)
	if cfg.Channels.IRC != nil {
		cfg.Channels.IRC.Password = expandEnvVars(cfg.Channels.IRC.Password)
	}
	cfg.Report.SMTP.Username = expandEnvVars(cfg.Report.SMTP.Username)
	cfg.Report.SMTP.Password = expandEnvVars(cfg.Report.SMTP.Password)
	for i, to := range cfg.Report.To {
		cfg.Report.To[i] = expandEnvVars(to)
	}
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	return parse(data)
}

// FromRaw builds a Config from a map read by LoadRaw, with the same
// defaults and overrides Load applies.
func FromRaw(raw map[string]any) (Config, error) {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return Defaults(), err
	}
	return parse(data)
}

func parse(data []byte) (Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 18790
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = "loopback"
	}
	if cfg.Gateway.Auth.Mode == "" {
		cfg.Gateway.Auth.Mode = "token"
	}
	if wc := cfg.Channels.Webchat; wc != nil {
		if wc.Path == "" {
			wc.Path = "/chat"
		}
		if wc.ResumeHours == 0 {
			wc.ResumeHours = 24
		}
	}
	if cfg.Session.Store == "" {
		cfg.Session.Store = "file"
	}
	if cfg.Idle.ShortMinutes == 0 {
		cfg.Idle.ShortMinutes = 5
	}
	if cfg.Idle.LongMinutes == 0 {
		cfg.Idle.LongMinutes = 10
	}
	if cfg.Idle.ShortAfterInvalid == 0 {
		cfg.Idle.ShortAfterInvalid = 2
	}
	if cfg.Dialogue.Locale == "" {
		cfg.Dialogue.Locale = "pt"
	}
	if cfg.Dialogue.InvalidThreshold == 0 {
		cfg.Dialogue.InvalidThreshold = 3
	}
	if cfg.Dialogue.TicketPrefix == "" {
		cfg.Dialogue.TicketPrefix = "DP"
	}
	if cfg.Dialogue.AssistantName == "" {
		cfg.Dialogue.AssistantName = "IADP"
	}
	if cfg.Registry.Source == "" {
		cfg.Registry.Source = "none"
	}
	if cfg.Registry.IDColumn == "" {
		cfg.Registry.IDColumn = "MATRÍCULA"
	}
	if cfg.Report.Notifier == "" {
		cfg.Report.Notifier = "none"
	}
	if cfg.Report.Subject == "" {
		cfg.Report.Subject = "Relatório de Atendimento"
	}
	if cfg.Report.SMTP.Port == 0 {
		cfg.Report.SMTP.Port = 587
	}
	if cfg.Report.SMTP.IMAP.Host != "" && cfg.Report.SMTP.IMAP.Port == 0 {
		cfg.Report.SMTP.IMAP.Port = 993
	}
	if cfg.Report.SMTP.IMAP.Mailbox == "" {
		cfg.Report.SMTP.IMAP.Mailbox = "Sent"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = "pretty"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// applyEnvOverrides reads ATTENDANT_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ATTENDANT_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("ATTENDANT_GATEWAY_BIND"); v != "" {
		cfg.Gateway.Bind = v
	}
	if v := os.Getenv("ATTENDANT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("ATTENDANT_SESSION_STORE"); v != "" {
		cfg.Session.Store = v
	}
	if v := os.Getenv("ATTENDANT_LOCALE"); v != "" {
		cfg.Dialogue.Locale = strings.ToLower(v)
	}
}
