package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".attendant"

// Paths holds resolved filesystem paths for attendant data.
type Paths struct {
	Base        string // ~/.attendant
	Config      string // ~/.attendant/config.yaml
	Credentials string // ~/.attendant/credentials
	Sessions    string // ~/.attendant/sessions
	Reports     string // ~/.attendant/reports
	Logs        string // ~/.attendant/logs
	Data        string // ~/.attendant/data
}

// ResolvePaths computes all standard paths from the home directory.
// If ATTENDANT_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("ATTENDANT_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:        base,
		Config:      filepath.Join(base, "config.yaml"),
		Credentials: filepath.Join(base, "credentials"),
		Sessions:    filepath.Join(base, "sessions"),
		Reports:     filepath.Join(base, "reports"),
		Logs:        filepath.Join(base, "logs"),
		Data:        filepath.Join(base, "data"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	dirs := []string{p.Base, p.Credentials, p.Sessions, p.Reports, p.Logs, p.Data}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// ApplyTo fills file locations the config left empty with paths under the
// attendant home.
func (p Paths) ApplyTo(cfg *Config) {
	if cfg.Session.Path == "" {
		switch cfg.Session.Store {
		case "sqlite":
			cfg.Session.Path = filepath.Join(p.Data, "attendant.db")
		default:
			cfg.Session.Path = filepath.Join(p.Sessions, "sessions.json")
		}
	}
	if cfg.Report.Path == "" {
		cfg.Report.Path = filepath.Join(p.Reports, "atendimentos.csv")
	}
	if cfg.Report.Gmail.CredentialsFile == "" {
		cfg.Report.Gmail.CredentialsFile = filepath.Join(p.Credentials, "gmail-credentials.json")
	}
	if cfg.Report.Gmail.TokenFile == "" {
		cfg.Report.Gmail.TokenFile = filepath.Join(p.Credentials, "gmail-token.json")
	}
}
