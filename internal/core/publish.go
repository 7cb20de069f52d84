package core

// publish.go runs the publication state machine.
//
// Per dataset: LOADED -> EDITED -> DIFFED -> BACKED_UP -> PUBLISHED.
// A dataset that fails stops where it is; the others continue.
//
// Per batch, once at least one dataset is published:
// COUNTED -> NOTIFIED -> COMMITTED.
// The counter is read before the report is built and only advanced after the
// notifier confirmed delivery. Artifacts written before a failure are never
// rolled back.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/masterfile/internal/logging"
)

// Publish compares each edited snapshot with the current primary artifact,
// writes a dated backup and the new primary, and sends one combined report.
//
// The returned result is non-nil whenever the attempt got past the limiter,
// including when an error is returned, so callers can show what happened to
// each dataset.
func (s *Service) Publish(ctx context.Context, req PublishRequest) (*PublicationResult, error) {
	if len(req.Edits) == 0 {
		return nil, fmt.Errorf("%w: no datasets in request", ErrNothingPublished)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	operator := req.Operator
	if operator == "" {
		operator = OperatorFromContext(ctx)
	}

	start := time.Now()
	result := &PublicationResult{
		ID:        uuid.New().String(),
		Timestamp: s.now(),
		Phase:     PhasePending,
	}
	logger := logging.WithFields(ctx, "publication_id", result.ID, "operator", operator)
	defer func() { s.metrics.observe(result, time.Since(start)) }()

	logger.Info("publication started", "datasets", len(req.Edits))

	seen := make(map[string]bool, len(req.Edits))
	for _, edit := range req.Edits {
		outcome := DatasetOutcome{Dataset: edit.Dataset, Label: edit.Dataset, Phase: PhasePending}
		if seen[edit.Dataset] {
			outcome.Err = &StepError{Dataset: edit.Dataset, Step: PhaseLoaded, Err: errors.New("dataset submitted twice")}
		} else {
			seen[edit.Dataset] = true
			s.publishDataset(ctx, logger.With("dataset", edit.Dataset), edit, result.Timestamp, &outcome)
		}

		if outcome.Err != nil {
			outcome.Error = outcome.Err.Error()
			logger.Warn("dataset not published",
				"dataset", outcome.Dataset,
				"phase", outcome.Phase,
				"error", outcome.Err)
		} else {
			logger.Info("dataset published",
				"dataset", outcome.Dataset,
				"changes", len(outcome.Changes),
				"backup", outcome.BackupPath)
		}
		result.Datasets = append(result.Datasets, outcome)
	}

	published := result.Published()
	if len(published) == 0 {
		logger.Warn("publication aborted, no dataset published")
		return result, fmt.Errorf("%w: %d of %d datasets failed", ErrNothingPublished, len(result.Datasets), len(result.Datasets))
	}
	result.Phase = PhasePublished
	logger.Debug("phase reached", "phase", result.Phase)

	read, err := s.counter.ReadToday(ctx)
	if err != nil {
		logger.Error("day counter read failed", "error", err)
		return result, &StepError{Step: PhaseCounted, Err: err}
	}
	result.Phase = PhaseCounted
	logger.Debug("phase reached", "phase", result.Phase, "version", read.Version())
	result.Subject = Subject(s.report.Title, read)
	result.Version = read.Version()

	notification := Notification{
		Subject: result.Subject,
		Body:    BuildReport(s.report, result.Timestamp, s.loc, result.Datasets),
	}
	for _, o := range published {
		notification.Attachments = append(notification.Attachments, o.attachment)
	}

	if err := s.notifier.Send(ctx, notification); err != nil {
		logger.Error("notification failed, day counter not advanced",
			"subject", result.Subject,
			"error", err)
		return result, &StepError{Step: PhaseNotified, Err: fmt.Errorf("%w: %v", ErrNotificationFailed, err)}
	}
	result.Phase = PhaseNotified
	result.Notified = true
	logger.Debug("phase reached", "phase", result.Phase)

	if _, err := s.counter.Advance(ctx, read); err != nil {
		logger.Error("day counter commit failed", "subject", result.Subject, "error", err)
		return result, &StepError{Step: PhaseCommitted, Err: err}
	}
	result.Phase = PhaseCommitted
	result.CounterAdvanced = true

	logger.Info("publication completed",
		"subject", result.Subject,
		"published", len(published),
		"failed", len(result.Datasets)-len(published),
		"duration_ms", time.Since(start).Milliseconds())

	return result, nil
}

// publishDataset advances one dataset as far as it can go, recording the
// last phase reached and the first error in outcome.
func (s *Service) publishDataset(ctx context.Context, logger *slog.Logger, edit DatasetEdit, ts time.Time, outcome *DatasetOutcome) {
	fail := func(step Phase, err error) {
		outcome.Err = &StepError{Dataset: edit.Dataset, Step: step, Err: err}
	}
	reach := func(p Phase) {
		outcome.Phase = p
		logger.Debug("phase reached", "phase", p)
	}

	def, err := lookup(edit.Dataset)
	if err != nil {
		fail(PhaseLoaded, err)
		return
	}
	outcome.Label = def.Info.Label

	original, err := s.loadCurrent(ctx, def)
	if err != nil {
		fail(PhaseLoaded, err)
		return
	}
	reach(PhaseLoaded)

	if edit.Edited.IsEmpty() {
		fail(PhaseEdited, errors.New("edited snapshot has no columns"))
		return
	}
	reach(PhaseEdited)

	outcome.Changes = Diff(original, edit.Edited, s.diffOptions(def))
	reach(PhaseDiffed)

	persisted := dropColumns(StripRowKeys(edit.Edited), s.normalizer.IsPhantom)
	data, err := def.Codec.Encode(persisted)
	if err != nil {
		fail(PhaseBackedUp, fmt.Errorf("encode: %w", err))
		return
	}

	name := BackupName(def.Info, ts, s.loc)
	backupPath := s.layout.BackupPath(def.Info, name)
	if err := s.writeBackup(ctx, def.Info, backupPath, data); err != nil {
		fail(PhaseBackedUp, err)
		return
	}
	reach(PhaseBackedUp)
	outcome.BackupPath = backupPath
	outcome.Attachment = name
	outcome.attachment = Attachment{Name: name, ContentType: def.Codec.ContentType(), Data: data}

	primaryPath := s.layout.PrimaryPath(def.Info)
	if err := s.store.WriteArtifact(ctx, primaryPath, data); err != nil {
		fail(PhasePublished, fmt.Errorf("write %s: %w", primaryPath, err))
		return
	}
	reach(PhasePublished)
	outcome.PrimaryPath = primaryPath
}

// writeBackup creates the dataset's backup container and writes the backup,
// refusing to overwrite an existing one when the store can enforce it.
func (s *Service) writeBackup(ctx context.Context, info DatasetInfo, backupPath string, data []byte) error {
	dir := s.layout.BackupDir(info)
	if err := s.store.EnsureContainer(ctx, dir); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	if creator, ok := s.store.(ArtifactCreator); ok {
		if err := creator.CreateArtifact(ctx, backupPath, data); err != nil {
			return fmt.Errorf("create %s: %w", backupPath, err)
		}
		return nil
	}
	if err := s.store.WriteArtifact(ctx, backupPath, data); err != nil {
		return fmt.Errorf("write %s: %w", backupPath, err)
	}
	return nil
}
