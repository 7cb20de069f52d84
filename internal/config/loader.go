package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		// Primary env var, then alternate
		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}

		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				result = append(result, p)
			}
		}
		field.Set(reflect.ValueOf(result))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is usable.
// Returns one error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, "SERVER_MAX_BODY_SIZE must be positive")
	}

	// Storage
	switch strings.ToLower(c.Storage.Driver) {
	case "fs":
		if c.Storage.Root == "" {
			errs = append(errs, "STORAGE_ROOT is required for the fs driver")
		}
	case "memory":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			errs = append(errs, "S3_BUCKET is required for the s3 driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("STORAGE_DRIVER (%q) must be one of: fs, memory, s3", c.Storage.Driver))
	}

	// Masterfile
	if c.Masterfile.BackupFolder == "" {
		errs = append(errs, "MASTERFILE_BACKUP_FOLDER is required")
	}
	if _, err := time.LoadLocation(c.Masterfile.TimeZone); err != nil {
		errs = append(errs, fmt.Sprintf("MASTERFILE_TIMEZONE (%q) is not a known zone", c.Masterfile.TimeZone))
	}
	if strings.TrimSpace(c.Masterfile.Title) == "" {
		errs = append(errs, "MASTERFILE_TITLE is required")
	}

	// Counter
	switch strings.ToLower(c.Counter.Driver) {
	case "file", "memory":
	case "postgres", "sqlite":
		if c.Counter.DSN == "" {
			errs = append(errs, fmt.Sprintf("COUNTER_DSN is required for the %s counter", c.Counter.Driver))
		}
	default:
		errs = append(errs, fmt.Sprintf("COUNTER_DRIVER (%q) must be one of: file, postgres, sqlite, memory", c.Counter.Driver))
	}
	if c.Counter.MaxConns <= 0 {
		errs = append(errs, "COUNTER_MAX_CONNS must be positive")
	}

	// Notify
	switch strings.ToLower(c.Notify.Driver) {
	case "smtp":
		if c.Notify.Host == "" {
			errs = append(errs, "SMTP_HOST is required for the smtp notifier")
		}
		if c.Notify.From == "" {
			errs = append(errs, "MAIL_FROM is required for the smtp notifier")
		}
		if len(c.Notify.To) == 0 {
			errs = append(errs, "MAIL_TO is required for the smtp notifier")
		}
	case "log":
	default:
		errs = append(errs, fmt.Sprintf("NOTIFY_DRIVER (%q) must be one of: smtp, log", c.Notify.Driver))
	}

	// Publish
	if c.Publish.MaxConcurrent <= 0 {
		errs = append(errs, "PUBLISH_MAX_CONCURRENT must be positive")
	}
	if c.Publish.MaxWaitTime <= 0 {
		errs = append(errs, "PUBLISH_MAX_WAIT_TIME must be positive")
	}

	// Security
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	// Logging
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a representation of the config safe for logging.
// Credentials and database URLs are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Storage: {Driver: %q, Root: %q, Bucket: %q, Credentials: %s}, ",
		c.Storage.Driver, c.Storage.Root, c.Storage.S3.Bucket, mask(c.Storage.S3.SecretAccessKey))
	fmt.Fprintf(&b, "Masterfile: {Folder: %q, BackupFolder: %q, TimeZone: %q}, ",
		c.Masterfile.Folder, c.Masterfile.BackupFolder, c.Masterfile.TimeZone)
	fmt.Fprintf(&b, "Counter: {Driver: %q, DSN: %s}, ", c.Counter.Driver, mask(c.Counter.DSN))
	fmt.Fprintf(&b, "Notify: {Driver: %q, Host: %q, Password: %s, To: %v}, ",
		c.Notify.Driver, c.Notify.Host, mask(c.Notify.Password), c.Notify.To)
	fmt.Fprintf(&b, "Publish: {MaxConcurrent: %d}, ", c.Publish.MaxConcurrent)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}

func mask(secret string) string {
	if secret == "" {
		return "[UNSET]"
	}
	return "[MASKED]"
}
