// Package storage holds the artifact stores the masterfiles and their
// backups live in: a local folder, process memory, or an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// Driver identifies a storage backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverMemory     Driver = "memory"
	DriverS3         Driver = "s3"
)

var (
	// ErrNotFound is returned when no artifact exists at a path.
	ErrNotFound = errors.New("artifact not found")

	// ErrExists is returned by CreateArtifact when the path is taken.
	ErrExists = errors.New("artifact already exists")
)

// Info describes one stored artifact.
type Info struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// Store reads and writes artifacts addressed by slash-separated paths.
type Store interface {
	Driver() Driver

	// ReadArtifact returns the content at p or an error wrapping ErrNotFound.
	ReadArtifact(ctx context.Context, p string) ([]byte, error)

	// WriteArtifact creates or replaces the artifact at p.
	WriteArtifact(ctx context.Context, p string, data []byte) error

	// CreateArtifact writes p only if it does not exist yet (ErrExists otherwise).
	CreateArtifact(ctx context.Context, p string, data []byte) error

	// EnsureContainer makes sure the folder or prefix p exists.
	EnsureContainer(ctx context.Context, p string) error

	// List returns the artifacts directly or indirectly under prefix, sorted by path.
	List(ctx context.Context, prefix string) ([]Info, error)
}

// cleanPath validates a store path and returns it in canonical form.
// Paths are relative and must not escape the store root.
func cleanPath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("empty path")
	}
	p = strings.ReplaceAll(p, `\`, "/")
	if strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("invalid absolute path %q", p)
	}
	clean := path.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid path %q escapes store root", p)
	}
	return clean, nil
}

func notFound(p string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, p)
}

func exists(p string) error {
	return fmt.Errorf("%w: %s", ErrExists, p)
}
