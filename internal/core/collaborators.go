package core

import (
	"context"
	"time"
)

// ArtifactStore reads and writes remote artifacts by path.
type ArtifactStore interface {
	// ReadArtifact returns the full content of the artifact at path.
	ReadArtifact(ctx context.Context, path string) ([]byte, error)

	// WriteArtifact creates or overwrites the artifact at path.
	WriteArtifact(ctx context.Context, path string, data []byte) error

	// EnsureContainer creates the container (folder, prefix) at path if it
	// does not exist yet. Existing containers are left untouched.
	EnsureContainer(ctx context.Context, path string) error
}

// ArtifactCreator is implemented by stores that can write an artifact only
// if it does not already exist. Backups use it to stay write-once.
type ArtifactCreator interface {
	CreateArtifact(ctx context.Context, path string, data []byte) error
}

// ArtifactInfo describes a stored artifact.
type ArtifactInfo struct {
	Path         string    `json:"path"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// ArtifactLister is implemented by stores that can enumerate a container.
type ArtifactLister interface {
	ListArtifacts(ctx context.Context, prefix string) ([]ArtifactInfo, error)
}

// TabularCodec converts between artifact bytes and snapshots.
// Text and number cells must survive a round trip.
type TabularCodec interface {
	Decode(data []byte) (*Snapshot, error)
	Encode(s *Snapshot) ([]byte, error)
	ContentType() string
}

// Attachment is one file attached to a notification.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Notification is the outgoing change report.
type Notification struct {
	Subject     string
	Body        string
	Attachments []Attachment
}

// Notifier delivers a notification. A nil error means delivery was confirmed.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}
