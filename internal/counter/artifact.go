package counter

import (
	"context"
	"errors"

	"github.com/JonMunkholm/masterfile/internal/storage"
)

// ArtifactStore keeps the record as a small text file in an artifact store.
// Writes overwrite the file, so it offers no compare-and-swap.
type ArtifactStore struct {
	artifacts storage.Store
	path      string
}

// NewArtifactStore keeps the record at path inside artifacts.
func NewArtifactStore(artifacts storage.Store, path string) *ArtifactStore {
	return &ArtifactStore{artifacts: artifacts, path: path}
}

func (s *ArtifactStore) ReadRecord(ctx context.Context) (string, bool, error) {
	data, err := s.artifacts.ReadArtifact(ctx, s.path)
	if errors.Is(err, storage.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

func (s *ArtifactStore) WriteRecord(ctx context.Context, record string) error {
	return s.artifacts.WriteArtifact(ctx, s.path, []byte(record))
}

func (s *ArtifactStore) Close() error { return nil }
