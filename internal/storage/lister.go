package storage

import (
	"context"
	"path"
	"strings"

	"github.com/JonMunkholm/masterfile/internal/core"
)

// listArtifacts lists the artifacts inside folder dir, so a listing of
// "Backups/Fijo" does not pick up "Backups/Fijo2".
func listArtifacts(ctx context.Context, s Store, dir string) ([]core.ArtifactInfo, error) {
	prefix := strings.TrimSuffix(dir, "/")
	if prefix != "" {
		prefix += "/"
	}
	infos, err := s.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]core.ArtifactInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, core.ArtifactInfo{
			Path:         info.Path,
			Name:         path.Base(info.Path),
			Size:         info.Size,
			LastModified: info.LastModified,
		})
	}
	return out, nil
}

// ListArtifacts implements core.ArtifactLister.
func (m *Memory) ListArtifacts(ctx context.Context, dir string) ([]core.ArtifactInfo, error) {
	return listArtifacts(ctx, m, dir)
}

// ListArtifacts implements core.ArtifactLister.
func (s *Filesystem) ListArtifacts(ctx context.Context, dir string) ([]core.ArtifactInfo, error) {
	return listArtifacts(ctx, s, dir)
}

// ListArtifacts implements core.ArtifactLister.
func (s *S3) ListArtifacts(ctx context.Context, dir string) ([]core.ArtifactInfo, error) {
	return listArtifacts(ctx, s, dir)
}

var (
	_ core.ArtifactLister  = (*Memory)(nil)
	_ core.ArtifactLister  = (*Filesystem)(nil)
	_ core.ArtifactLister  = (*S3)(nil)
	_ core.ArtifactCreator = Store(nil)
)
