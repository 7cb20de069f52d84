// Package notify delivers the publication change report.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/masterfile/internal/core"
)

// Log writes the report to the structured log instead of sending it.
// Useful for local runs and dry runs; delivery always succeeds.
type Log struct {
	Logger *slog.Logger // Default: slog.Default()
}

func (l Log) Send(ctx context.Context, n core.Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	names := make([]string, len(n.Attachments))
	for i, a := range n.Attachments {
		names[i] = a.Name
	}
	logger.InfoContext(ctx, "change report",
		"subject", n.Subject,
		"attachments", names,
		"body", n.Body)
	return nil
}

// Config selects the notifier.
type Config struct {
	Driver string // smtp (default) or log
	SMTP   SMTPConfig
}

// New returns the notifier for cfg.Driver.
func New(cfg Config) (core.Notifier, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "smtp":
		return NewSMTP(cfg.SMTP)
	case "log":
		return Log{}, nil
	default:
		return nil, fmt.Errorf("unsupported notify driver %q", cfg.Driver)
	}
}
