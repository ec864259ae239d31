package config

// Config is the root configuration for attendant.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway,omitempty"`
	Channels ChannelsConfig `yaml:"channels,omitempty"`
	Session  SessionConfig  `yaml:"session,omitempty"`
	Idle     IdleConfig     `yaml:"idle,omitempty"`
	Dialogue DialogueConfig `yaml:"dialogue,omitempty"`
	Registry RegistryConfig `yaml:"registry,omitempty"`
	Report   ReportConfig   `yaml:"report,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
	Metrics  MetricsConfig  `yaml:"metrics,omitempty"`
}

// GatewayConfig controls the administrative HTTP/WebSocket server.
type GatewayConfig struct {
	Port           int         `yaml:"port,omitempty"`
	Bind           string      `yaml:"bind,omitempty"` // "auto" | "lan" | "loopback" | "custom"
	CustomBindHost string      `yaml:"customBindHost,omitempty"`
	Auth           GatewayAuth `yaml:"auth,omitempty"`
	TLS            GatewayTLS  `yaml:"tls,omitempty"`
	AllowedOrigins []string    `yaml:"allowedOrigins,omitempty"`
}

// GatewayAuth configures operator authentication.
type GatewayAuth struct {
	Mode     string `yaml:"mode,omitempty"` // "token" | "password"
	Token    string `yaml:"token,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// GatewayTLS configures TLS for the gateway.
type GatewayTLS struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// ChannelsConfig defines transport-specific configurations.
type ChannelsConfig struct {
	GroupNotice bool           `yaml:"groupNotice,omitempty"` // answer group messages with a "private only" notice
	IRC         *IRCConfig     `yaml:"irc,omitempty"`
	Webchat     *WebchatConfig `yaml:"webchat,omitempty"`
}

// IRCConfig defines IRC channel settings.
type IRCConfig struct {
	Server   string   `yaml:"server"`
	Port     int      `yaml:"port,omitempty"`
	Nick     string   `yaml:"nick"`
	Password string   `yaml:"password,omitempty"`
	Channels []string `yaml:"channels,omitempty"`
	UseTLS   bool     `yaml:"useTLS,omitempty"`
	SASL     bool     `yaml:"sasl,omitempty"`
}

// WebchatConfig enables the browser chat endpoint on the gateway.
type WebchatConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
	// ResumeHours is how long an issued resume token stays valid after the
	// browser last connected with it.
	ResumeHours int `yaml:"resumeHours,omitempty"`
}

// SessionConfig selects the session store backend.
type SessionConfig struct {
	Store string `yaml:"store,omitempty"` // "file" | "sqlite" | "memory"
	Path  string `yaml:"path,omitempty"`
}

// IdleConfig controls inactivity nudges.
type IdleConfig struct {
	ShortMinutes      int `yaml:"shortMinutes,omitempty"`
	LongMinutes       int `yaml:"longMinutes,omitempty"`
	ShortAfterInvalid int `yaml:"shortAfterInvalid,omitempty"`
}

// DialogueConfig tunes the intake dialogue.
type DialogueConfig struct {
	Locale           string `yaml:"locale,omitempty"` // "pt" | "en"
	InvalidThreshold int    `yaml:"invalidThreshold,omitempty"`
	TicketPrefix     string `yaml:"ticketPrefix,omitempty"`
	AssistantName    string `yaml:"assistantName,omitempty"`
}

// RegistryConfig points at the employee registry used to validate ids.
type RegistryConfig struct {
	Source   string `yaml:"source,omitempty"` // "csv" | "xlsx" | "none"
	Path     string `yaml:"path,omitempty"`
	Sheet    string `yaml:"sheet,omitempty"`
	IDColumn string `yaml:"idColumn,omitempty"`
	Watch    bool   `yaml:"watch,omitempty"`
}

// ReportConfig controls the completion log and its delivery.
type ReportConfig struct {
	Path     string      `yaml:"path,omitempty"`
	Notifier string      `yaml:"notifier,omitempty"` // "none" | "smtp" | "gmail" | "s3"
	Schedule string      `yaml:"schedule,omitempty"` // cron spec; empty delivers on every completion
	To       []string    `yaml:"to,omitempty"`
	Subject  string      `yaml:"subject,omitempty"`
	SMTP     SMTPConfig  `yaml:"smtp,omitempty"`
	Gmail    GmailConfig `yaml:"gmail,omitempty"`
	S3       S3Config    `yaml:"s3,omitempty"`
}

// SMTPConfig configures mail delivery of the report.
type SMTPConfig struct {
	Host     string     `yaml:"host,omitempty"`
	Port     int        `yaml:"port,omitempty"`
	Username string     `yaml:"username,omitempty"`
	Password string     `yaml:"password,omitempty"`
	From     string     `yaml:"from,omitempty"`
	IMAP     IMAPConfig `yaml:"imap,omitempty"`
}

// IMAPConfig optionally archives each sent report into a mailbox.
type IMAPConfig struct {
	Host    string `yaml:"host,omitempty"`
	Port    int    `yaml:"port,omitempty"`
	Mailbox string `yaml:"mailbox,omitempty"`
}

// GmailConfig configures delivery through the Gmail API.
type GmailConfig struct {
	CredentialsFile string `yaml:"credentialsFile,omitempty"`
	TokenFile       string `yaml:"tokenFile,omitempty"`
}

// S3Config configures archiving the report to a bucket.
type S3Config struct {
	Bucket string `yaml:"bucket,omitempty"`
	Prefix string `yaml:"prefix,omitempty"`
	Region string `yaml:"region,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}

// MetricsConfig exposes Prometheus metrics on the gateway.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
}
