package storage

import (
	"context"
	"fmt"
	"strings"
)

// Config selects and configures a storage backend.
type Config struct {
	Driver string // fs (default), memory, s3
	Root   string // Filesystem root
	S3     S3Config
}

// Open constructs a Store for cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch Driver(strings.ToLower(strings.TrimSpace(cfg.Driver))) {
	case "", DriverFilesystem:
		return NewFilesystem(cfg.Root)
	case DriverMemory:
		return NewMemory(), nil
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
