package core

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"
)

// ErrInvalidBackupName is returned for backup names that are not a plain file name.
var ErrInvalidBackupName = errors.New("invalid backup name")

// ErrListingUnsupported is returned when the artifact store cannot enumerate backups.
var ErrListingUnsupported = errors.New("artifact store cannot list backups")

// Options configures a Service.
type Options struct {
	Store    ArtifactStore   // Required
	Counter  *VersionCounter // Required
	Notifier Notifier        // Required

	Layout     Layout
	Report     ReportConfig
	Location   *time.Location   // Zone for backup names and report timestamps (default UTC)
	Now        func() time.Time // Clock (default time.Now)
	Normalizer *Normalizer      // Phantom column patterns (default DefaultPhantomPatterns)
	Limiter    *PublishLimiter  // Default: one publication at a time
	Metrics    *Metrics         // Optional
}

// Service provides the masterfile load, preview and publication operations.
type Service struct {
	store    ArtifactStore
	counter  *VersionCounter
	notifier Notifier

	layout     Layout
	report     ReportConfig
	loc        *time.Location
	now        func() time.Time
	normalizer *Normalizer
	limiter    *PublishLimiter
	metrics    *Metrics
}

// NewService creates a new Service instance.
func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("artifact store is required")
	}
	if opts.Counter == nil {
		return nil, errors.New("version counter is required")
	}
	if opts.Notifier == nil {
		return nil, errors.New("notifier is required")
	}

	s := &Service{
		store:      opts.Store,
		counter:    opts.Counter,
		notifier:   opts.Notifier,
		layout:     opts.Layout,
		report:     opts.Report.withDefaults(),
		loc:        opts.Location,
		now:        opts.Now,
		normalizer: opts.Normalizer,
		limiter:    opts.Limiter,
		metrics:    opts.Metrics,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.normalizer == nil {
		s.normalizer = defaultNormalizer
	}
	if s.limiter == nil {
		s.limiter = NewPublishLimiter(DefaultMaxConcurrentPublications, DefaultMaxWaitTime)
	}
	return s, nil
}

// ListDatasets returns information about all registered datasets.
func (s *Service) ListDatasets() []DatasetInfo {
	defs := All()
	infos := make([]DatasetInfo, len(defs))
	for i, def := range defs {
		infos[i] = def.Info
	}
	return infos
}

// LoadSnapshot returns the current primary snapshot of a dataset, with
// synthetic row keys attached when the dataset uses them. This is the
// snapshot handed to the editing surface.
func (s *Service) LoadSnapshot(ctx context.Context, key string) (*Snapshot, error) {
	def, err := lookup(key)
	if err != nil {
		return nil, err
	}
	return s.loadCurrent(ctx, def)
}

func (s *Service) loadCurrent(ctx context.Context, def DatasetDefinition) (*Snapshot, error) {
	path := s.layout.PrimaryPath(def.Info)
	data, err := s.store.ReadArtifact(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	snap, err := def.Codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if def.SyntheticKeys {
		return AttachRowKeys(snap)
	}
	return snap, nil
}

// Preview is the result of comparing an edited snapshot with the current primary.
type Preview struct {
	Dataset string         `json:"dataset"`
	Policy  IdentityPolicy `json:"policy"`
	Changes []ChangeRecord `json:"changes"`
}

// Preview diffs edited against the current primary artifact without publishing.
func (s *Service) Preview(ctx context.Context, key string, edited *Snapshot) (*Preview, error) {
	def, err := lookup(key)
	if err != nil {
		return nil, err
	}
	original, err := s.loadCurrent(ctx, def)
	if err != nil {
		return nil, err
	}
	opts := s.diffOptions(def)
	return &Preview{
		Dataset: key,
		Policy:  opts.Policy(s.normalizer.Normalize(original), s.normalizer.Normalize(edited)),
		Changes: Diff(original, edited, opts),
	}, nil
}

func (s *Service) diffOptions(def DatasetDefinition) DiffOptions {
	return DiffOptions{
		KeyColumn:  def.KeyColumn,
		Identifier: def.Identifier(),
		Normalizer: s.normalizer,
	}
}

// CounterStatus describes today's counter and the label of the next publication.
type CounterStatus struct {
	Date        string `json:"date"`
	Count       int    `json:"count"`
	NextVersion int    `json:"nextVersion"`
	NextSubject string `json:"nextSubject"`
}

// CounterStatus reads today's counter.
func (s *Service) CounterStatus(ctx context.Context) (CounterStatus, error) {
	dc, err := s.counter.ReadToday(ctx)
	if err != nil {
		return CounterStatus{}, err
	}
	return CounterStatus{
		Date:        dc.Date,
		Count:       dc.Count,
		NextVersion: dc.Version(),
		NextSubject: Subject(s.report.Title, dc),
	}, nil
}

// ListBackups returns the backups of a dataset, newest first.
func (s *Service) ListBackups(ctx context.Context, key string) ([]ArtifactInfo, error) {
	def, err := lookup(key)
	if err != nil {
		return nil, err
	}
	lister, ok := s.store.(ArtifactLister)
	if !ok {
		return nil, ErrListingUnsupported
	}
	dir := s.layout.BackupDir(def.Info)
	items, err := lister.ListArtifacts(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	// Timestamped names sort chronologically.
	sort.Slice(items, func(i, j int) bool { return items[i].Name > items[j].Name })
	return items, nil
}

// ReadBackup returns one backup of a dataset and its content type.
func (s *Service) ReadBackup(ctx context.Context, key, name string) ([]byte, string, error) {
	def, err := lookup(key)
	if err != nil {
		return nil, "", err
	}
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return nil, "", fmt.Errorf("%w: %q", ErrInvalidBackupName, name)
	}
	p := path.Join(s.layout.BackupDir(def.Info), name)
	data, err := s.store.ReadArtifact(ctx, p)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", p, err)
	}
	return data, def.Codec.ContentType(), nil
}

// WaitForPublications blocks until the running publication completes or ctx is done.
func (s *Service) WaitForPublications(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// PublicationsActive returns the number of running publications.
func (s *Service) PublicationsActive() int {
	return s.limiter.ActiveCount()
}
