// Package config loads service configuration from environment variables
// with defaults, and validates every setting on startup so a bad deployment
// fails before the first publication.
package config

import (
	"net"
	"path"
	"strconv"
	"time"

	// Zone database for MASTERFILE_TIMEZONE on images without one.
	_ "time/tzdata"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Masterfile MasterfileConfig
	Counter    CounterConfig
	Notify     NotifyConfig
	Publish    PublishConfig
	Security   SecurityConfig
	Logging    LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing a response (default: 2m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including a running publication (default: 60s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"60s"`

	// RequestTimeout is the middleware timeout for requests (default: 90s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"90s"`

	// MaxBodySize caps snapshot uploads in bytes (default: 64MB)
	MaxBodySize int64 `env:"SERVER_MAX_BODY_SIZE" default:"67108864"`
}

// StorageConfig selects where masterfiles and backups live.
type StorageConfig struct {
	// Driver is fs, memory or s3 (default: fs)
	Driver string `env:"STORAGE_DRIVER" default:"fs"`

	// Root is the filesystem root for the fs driver (default: ./data)
	Root string `env:"STORAGE_ROOT" default:"./data"`

	S3 S3Config
}

// S3Config holds S3 (or S3-compatible) settings.
type S3Config struct {
	Region          string `env:"S3_REGION" envAlt:"AWS_REGION"`
	Bucket          string `env:"S3_BUCKET"`
	Prefix          string `env:"S3_PREFIX"`
	Endpoint        string `env:"S3_ENDPOINT"`
	AccessKeyID     string `env:"S3_ACCESS_KEY_ID" envAlt:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY" envAlt:"AWS_SECRET_ACCESS_KEY"`
	SessionToken    string `env:"S3_SESSION_TOKEN" envAlt:"AWS_SESSION_TOKEN"`
	PathStyle       bool   `env:"S3_PATH_STYLE" default:"false"`
}

// MasterfileConfig holds the artifact layout and report settings.
type MasterfileConfig struct {
	// Folder holds the primary artifacts (default: Masterfile)
	Folder string `env:"MASTERFILE_FOLDER" default:"Masterfile"`

	// BackupFolder is created under Folder, one subfolder per dataset (default: Backups)
	BackupFolder string `env:"MASTERFILE_BACKUP_FOLDER" default:"Backups"`

	// TimeZone drives the day counter, backup names and report timestamps
	TimeZone string `env:"MASTERFILE_TIMEZONE" default:"America/Costa_Rica"`

	// Title prefixes the notification subject
	Title string `env:"MASTERFILE_TITLE" default:"Masterfile Sutel Fijo y Movilidad"`

	// DatasetsFile is an optional YAML catalog replacing the built-in datasets
	DatasetsFile string `env:"MASTERFILE_DATASETS_FILE"`
}

// CounterConfig selects the day counter store.
type CounterConfig struct {
	// Driver is file, postgres, sqlite or memory (default: file)
	Driver string `env:"COUNTER_DRIVER" default:"file"`

	// Path is the record artifact for the file driver (default: {Folder}/contador_envios.txt)
	Path string `env:"COUNTER_PATH"`

	// Name is the row name for database drivers (default: contador_envios.txt)
	Name string `env:"COUNTER_NAME"`

	// DSN is the PostgreSQL URL or SQLite file
	DSN string `env:"COUNTER_DSN" envAlt:"DATABASE_URL"`

	// MaxConns is the PostgreSQL pool size (default: 4)
	MaxConns int `env:"COUNTER_MAX_CONNS" default:"4"`
}

// NotifyConfig holds report delivery settings.
type NotifyConfig struct {
	// Driver is smtp or log (default: smtp)
	Driver string `env:"NOTIFY_DRIVER" default:"smtp"`

	Host     string        `env:"SMTP_HOST"`
	Port     int           `env:"SMTP_PORT" default:"587"`
	Username string        `env:"SMTP_USERNAME" envAlt:"SMTP_USER"`
	Password string        `env:"SMTP_PASSWORD" envAlt:"SMTP_PASS"`
	TLS      string        `env:"SMTP_TLS" default:"mandatory"`
	SSL      bool          `env:"SMTP_SSL" default:"false"`
	Timeout  time.Duration `env:"SMTP_TIMEOUT" default:"30s"`

	From string   `env:"MAIL_FROM"`
	To   []string `env:"MAIL_TO"`
	Cc   []string `env:"MAIL_CC"`
}

// PublishConfig bounds concurrent publications.
type PublishConfig struct {
	// MaxConcurrent is the number of parallel publications (default: 1)
	MaxConcurrent int `env:"PUBLISH_MAX_CONCURRENT" default:"1"`

	// MaxWaitTime is how long a publication waits for a slot (default: 5s)
	MaxWaitTime time.Duration `env:"PUBLISH_MAX_WAIT_TIME" default:"5s"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey enables X-API-Key authentication on /api routes
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// CounterPath returns the record artifact path for the file counter.
func (c *Config) CounterPath() string {
	if c.Counter.Path != "" {
		return c.Counter.Path
	}
	return path.Join(c.Masterfile.Folder, "contador_envios.txt")
}
