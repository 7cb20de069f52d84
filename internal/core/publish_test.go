package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var errTest = errors.New("test failure")

// jsonCodec stores snapshots as JSON so tests can inspect written artifacts.
type jsonCodec struct{}

func (jsonCodec) Decode(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &s, nil
}

func (jsonCodec) Encode(s *Snapshot) ([]byte, error) { return json.Marshal(s) }

func (jsonCodec) ContentType() string { return "application/json" }

// memArtifacts is an in-memory ArtifactStore and ArtifactCreator.
type memArtifacts struct {
	mu         sync.Mutex
	files      map[string][]byte
	containers map[string]bool
	failWrite  map[string]error
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{
		files:      make(map[string][]byte),
		containers: make(map[string]bool),
		failWrite:  make(map[string]error),
	}
}

func (m *memArtifacts) ReadArtifact(ctx context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	if !ok {
		return nil, errors.New("artifact not found")
	}
	return data, nil
}

func (m *memArtifacts) WriteArtifact(ctx context.Context, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failWrite[path]; err != nil {
		return err
	}
	m.files[path] = append([]byte(nil), data...)
	return nil
}

func (m *memArtifacts) CreateArtifact(ctx context.Context, path string, data []byte) error {
	m.mu.Lock()
	if _, ok := m.files[path]; ok {
		m.mu.Unlock()
		return errors.New("artifact already exists")
	}
	m.mu.Unlock()
	return m.WriteArtifact(ctx, path, data)
}

func (m *memArtifacts) EnsureContainer(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.containers[path] = true
	return nil
}

func (m *memArtifacts) put(t *testing.T, path string, s *Snapshot) {
	t.Helper()
	data, err := jsonCodec{}.Encode(s)
	if err != nil {
		t.Fatal(err)
	}
	m.files[path] = data
}

func (m *memArtifacts) get(t *testing.T, path string) *Snapshot {
	t.Helper()
	data, ok := m.files[path]
	if !ok {
		t.Fatalf("artifact %s not written", path)
	}
	s, err := jsonCodec{}.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// recordingNotifier captures notifications and can be told to fail.
type recordingNotifier struct {
	sent []Notification
	err  error
}

func (n *recordingNotifier) Send(ctx context.Context, msg Notification) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }

type publishFixture struct {
	svc      *Service
	store    *memArtifacts
	counter  *memCounterStore
	notifier *recordingNotifier
	clock    *testClock
	metrics  *Metrics
}

func movilidadSnapshot() *Snapshot {
	return NewSnapshot(
		[]string{"ID", "Nombre", "Zona"},
		[][]Value{
			{Text("M-1"), Text("Ana"), Text("Norte")},
			{Text("M-2"), Text("Luis"), Text("Sur")},
		},
	)
}

func newPublishFixture(t *testing.T) *publishFixture {
	t.Helper()
	Clear()
	t.Cleanup(Clear)

	Register(DatasetDefinition{
		Info:           DatasetInfo{Key: "Fijo", FileName: "MasterfileSutel.xlsx", Order: 1},
		SyntheticKeys:  true,
		KeyColumn:      "ID SONDA",
		DisplayColumns: []string{"STM"},
		Codec:          jsonCodec{},
	})
	Register(DatasetDefinition{
		Info:           DatasetInfo{Key: "Movilidad", FileName: "MasterfileSutel_Movilidad.xlsx", Order: 2},
		KeyColumn:      "ID",
		DisplayColumns: []string{"Nombre"},
		Codec:          jsonCodec{},
	})

	f := &publishFixture{
		store:    newMemArtifacts(),
		counter:  &memCounterStore{},
		notifier: &recordingNotifier{},
		clock:    &testClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)},
		metrics:  NewMetrics(prometheus.NewRegistry()),
	}
	f.store.put(t, "Masterfile/MasterfileSutel.xlsx", fijoSnapshot())
	f.store.put(t, "Masterfile/MasterfileSutel_Movilidad.xlsx", movilidadSnapshot())

	svc, err := NewService(Options{
		Store:    f.store,
		Counter:  NewVersionCounter(f.counter, costaRica, f.clock.now),
		Notifier: f.notifier,
		Layout:   Layout{Folder: "Masterfile", BackupFolder: "Backups"},
		Now:      f.clock.now,
		Metrics:  f.metrics,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	f.svc = svc
	return f
}

// editFijo loads Fijo through the service and changes one cell, as the
// editing surface would.
func (f *publishFixture) editFijo(t *testing.T, row int, column string, v Value) *Snapshot {
	t.Helper()
	loaded, err := f.svc.LoadSnapshot(context.Background(), "Fijo")
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	return setCell(loaded, row, column, v)
}

func TestNewService_RequiresCollaborators(t *testing.T) {
	store := newMemArtifacts()
	counter := NewVersionCounter(&memCounterStore{}, nil, nil)
	notifier := &recordingNotifier{}

	tests := []struct {
		name string
		opts Options
	}{
		{"store", Options{Counter: counter, Notifier: notifier}},
		{"counter", Options{Store: store, Notifier: notifier}},
		{"notifier", Options{Store: store, Counter: counter}},
	}
	for _, tt := range tests {
		if _, err := NewService(tt.opts); err == nil {
			t.Errorf("NewService without %s: expected error", tt.name)
		}
	}
}

func TestService_LoadSnapshot(t *testing.T) {
	f := newPublishFixture(t)
	ctx := context.Background()

	fijo, err := f.svc.LoadSnapshot(ctx, "Fijo")
	if err != nil {
		t.Fatal(err)
	}
	if !HasRowKeys(fijo) {
		t.Error("Fijo snapshot has no row keys")
	}

	mov, err := f.svc.LoadSnapshot(ctx, "Movilidad")
	if err != nil {
		t.Fatal(err)
	}
	if HasRowKeys(mov) {
		t.Error("Movilidad snapshot has row keys")
	}

	if _, err := f.svc.LoadSnapshot(ctx, "Otro"); !errors.Is(err, ErrUnknownDataset) {
		t.Errorf("LoadSnapshot(Otro) error = %v, want ErrUnknownDataset", err)
	}
}

func TestService_Preview(t *testing.T) {
	f := newPublishFixture(t)
	edited := f.editFijo(t, 1, "Estado", Text("Baja"))

	p, err := f.svc.Preview(context.Background(), "Fijo", edited)
	if err != nil {
		t.Fatal(err)
	}
	if p.Policy != PolicySynthetic {
		t.Errorf("Policy = %v, want synthetic", p.Policy)
	}
	if len(p.Changes) != 1 || p.Changes[0].Label != "S2" || p.Changes[0].New != "Baja" {
		t.Errorf("Changes = %v", p.Changes)
	}
	if len(f.store.containers) != 0 || len(f.notifier.sent) != 0 {
		t.Error("Preview had side effects")
	}
}

func TestPublish_SingleDataset(t *testing.T) {
	f := newPublishFixture(t)
	edited := f.editFijo(t, 0, "Estado", Text("Baja"))

	result, err := f.svc.Publish(context.Background(), PublishRequest{
		Edits:    []DatasetEdit{{Dataset: "Fijo", Edited: edited}},
		Operator: "ana",
	})
	if err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	if result.Phase != PhaseCommitted || !result.Notified || !result.CounterAdvanced {
		t.Errorf("result = phase %s notified %v advanced %v", result.Phase, result.Notified, result.CounterAdvanced)
	}
	if want := "Masterfile Sutel Fijo y Movilidad 01012025"; result.Subject != want {
		t.Errorf("Subject = %q, want %q", result.Subject, want)
	}
	if result.Version != 1 {
		t.Errorf("Version = %d, want 1", result.Version)
	}
	if result.ID == "" {
		t.Error("result has no ID")
	}

	o := result.Datasets[0]
	wantBackup := "Masterfile/Backups/Fijo/MasterfileSutel_20250101_120000.xlsx"
	if o.BackupPath != wantBackup {
		t.Errorf("BackupPath = %q, want %q", o.BackupPath, wantBackup)
	}
	if !f.store.containers["Masterfile/Backups/Fijo"] {
		t.Error("backup container not ensured")
	}
	want := []ChangeRecord{{Key: "0", Label: "S1", Column: "Estado", Old: "Activo", New: "Baja"}}
	if len(o.Changes) != 1 || o.Changes[0] != want[0] {
		t.Errorf("Changes = %v, want %v", o.Changes, want)
	}

	primary := f.store.get(t, "Masterfile/MasterfileSutel.xlsx")
	if primary.HasColumn(RowKeyColumn) {
		t.Error("row keys persisted to the primary artifact")
	}
	if got := primary.Cell(0, primary.ColumnIndex("Estado")); got != Text("Baja") {
		t.Errorf("primary Estado = %v, want Baja", got)
	}
	backup := f.store.get(t, wantBackup)
	if !jsonEqual(t, backup, primary) {
		t.Error("backup and primary differ")
	}

	if len(f.notifier.sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(f.notifier.sent))
	}
	msg := f.notifier.sent[0]
	if msg.Subject != result.Subject {
		t.Errorf("notification subject = %q", msg.Subject)
	}
	if !strings.Contains(msg.Body, "• S1: Estado \"Activo\" → \"Baja\"") {
		t.Errorf("body missing change:\n%s", msg.Body)
	}
	if len(msg.Attachments) != 1 || msg.Attachments[0].Name != "MasterfileSutel_20250101_120000.xlsx" {
		t.Errorf("attachments = %+v", msg.Attachments)
	}

	if f.counter.record != "01012025,1" {
		t.Errorf("counter record = %q, want %q", f.counter.record, "01012025,1")
	}
	if got := testutil.ToFloat64(f.metrics.publications.WithLabelValues(string(PhaseCommitted))); got != 1 {
		t.Errorf("committed publications metric = %v, want 1", got)
	}
}

func jsonEqual(t *testing.T, a, b *Snapshot) bool {
	t.Helper()
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	return string(ja) == string(jb)
}

func TestPublish_SameDayVersions(t *testing.T) {
	f := newPublishFixture(t)
	ctx := context.Background()

	subjects := []string{
		"Masterfile Sutel Fijo y Movilidad 01012025",
		"Masterfile Sutel Fijo y Movilidad 01012025 V2",
		"Masterfile Sutel Fijo y Movilidad 01012025 V3",
	}
	for i, want := range subjects {
		edited := f.editFijo(t, 0, "Velocidad", Number(float64(100+i)))
		result, err := f.svc.Publish(ctx, PublishRequest{Edits: []DatasetEdit{{Dataset: "Fijo", Edited: edited}}})
		if err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
		if result.Subject != want {
			t.Errorf("publish %d subject = %q, want %q", i, result.Subject, want)
		}
		f.clock.t = f.clock.t.Add(time.Minute)
	}

	// next day starts unversioned again
	f.clock.t = time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC)
	edited := f.editFijo(t, 0, "Velocidad", Number(1))
	result, err := f.svc.Publish(ctx, PublishRequest{Edits: []DatasetEdit{{Dataset: "Fijo", Edited: edited}}})
	if err != nil {
		t.Fatal(err)
	}
	if want := "Masterfile Sutel Fijo y Movilidad 02012025"; result.Subject != want {
		t.Errorf("next day subject = %q, want %q", result.Subject, want)
	}
}

func TestPublish_NotificationFailureKeepsVersion(t *testing.T) {
	f := newPublishFixture(t)
	ctx := context.Background()
	f.notifier.err = errors.New("smtp: 421 service not available")

	edited := f.editFijo(t, 0, "Estado", Text("Baja"))
	result, err := f.svc.Publish(ctx, PublishRequest{Edits: []DatasetEdit{{Dataset: "Fijo", Edited: edited}}})

	if !errors.Is(err, ErrNotificationFailed) {
		t.Fatalf("Publish error = %v, want ErrNotificationFailed", err)
	}
	if MapError(err).Code != "NTF001" {
		t.Errorf("MapError code = %q, want NTF001", MapError(err).Code)
	}
	if result == nil || result.Phase != PhaseCounted || result.Notified || result.CounterAdvanced {
		t.Fatalf("result = %+v, want counted and not notified", result)
	}
	if f.counter.writes != 0 {
		t.Errorf("counter written %d times, want 0", f.counter.writes)
	}
	// artifacts are not rolled back
	if got := f.store.get(t, "Masterfile/MasterfileSutel.xlsx"); got.Cell(0, 2) != Text("Baja") {
		t.Errorf("primary not overwritten: %v", got.Rows())
	}

	// the retry reuses the unversioned label
	f.notifier.err = nil
	f.clock.t = f.clock.t.Add(time.Minute)
	edited = f.editFijo(t, 0, "Estado", Text("Baja"))
	result, err = f.svc.Publish(ctx, PublishRequest{Edits: []DatasetEdit{{Dataset: "Fijo", Edited: edited}}})
	if err != nil {
		t.Fatalf("retry error: %v", err)
	}
	if want := "Masterfile Sutel Fijo y Movilidad 01012025"; result.Subject != want {
		t.Errorf("retry subject = %q, want %q", result.Subject, want)
	}
	if len(result.Datasets[0].Changes) != 0 {
		t.Errorf("retry changes = %v, want none", result.Datasets[0].Changes)
	}
}

func TestPublish_DatasetIsolation(t *testing.T) {
	f := newPublishFixture(t)
	f.store.failWrite["Masterfile/MasterfileSutel_Movilidad.xlsx"] = errors.New("permission denied")

	edited := f.editFijo(t, 2, "STM", Text("S3b"))
	mov := setCell(movilidadSnapshot(), 1, "Zona", Text("Oeste"))

	result, err := f.svc.Publish(context.Background(), PublishRequest{Edits: []DatasetEdit{
		{Dataset: "Fijo", Edited: edited},
		{Dataset: "Movilidad", Edited: mov},
	}})
	if err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	fijo, movOut := result.Datasets[0], result.Datasets[1]
	if !fijo.Published() {
		t.Errorf("Fijo not published: %v", fijo.Err)
	}
	if movOut.Published() || movOut.Phase != PhaseBackedUp {
		t.Errorf("Movilidad phase = %s, want backed_up", movOut.Phase)
	}
	var stepErr *StepError
	if !errors.As(movOut.Err, &stepErr) || stepErr.Step != PhasePublished {
		t.Errorf("Movilidad error = %v, want overwrite step error", movOut.Err)
	}
	if movOut.Error == "" {
		t.Error("Movilidad error text not set")
	}
	// the backup of the failed dataset stays
	if movOut.BackupPath == "" {
		t.Error("Movilidad backup path missing")
	}

	msg := f.notifier.sent[0]
	if len(msg.Attachments) != 1 {
		t.Errorf("attachments = %d, want only the published dataset", len(msg.Attachments))
	}
	if !strings.Contains(msg.Body, "Entorno Movilidad no publicado") {
		t.Errorf("body does not list the failed dataset:\n%s", msg.Body)
	}
	if !strings.Contains(msg.Body, "• S3b: STM \"S3\" → \"S3b\"") {
		t.Errorf("body missing Fijo change:\n%s", msg.Body)
	}
	if got := testutil.ToFloat64(f.metrics.datasets.WithLabelValues("Movilidad", "failed")); got != 1 {
		t.Errorf("failed dataset metric = %v, want 1", got)
	}
}

func TestPublish_NothingPublished(t *testing.T) {
	f := newPublishFixture(t)

	result, err := f.svc.Publish(context.Background(), PublishRequest{Edits: []DatasetEdit{
		{Dataset: "Otro", Edited: movilidadSnapshot()},
		{Dataset: "Movilidad", Edited: NewSnapshot(nil, nil)},
	}})

	if !errors.Is(err, ErrNothingPublished) {
		t.Fatalf("Publish error = %v, want ErrNothingPublished", err)
	}
	if f.counter.reads != 0 {
		t.Errorf("counter read %d times, want 0", f.counter.reads)
	}
	if len(f.notifier.sent) != 0 {
		t.Error("notification sent although nothing was published")
	}
	if result.Datasets[0].Phase != PhasePending || !errors.Is(result.Datasets[0].Err, ErrUnknownDataset) {
		t.Errorf("Otro outcome = %+v", result.Datasets[0])
	}
	if result.Datasets[1].Phase != PhaseLoaded {
		t.Errorf("Movilidad phase = %s, want loaded", result.Datasets[1].Phase)
	}
}

func TestPublish_EmptyRequest(t *testing.T) {
	f := newPublishFixture(t)
	if _, err := f.svc.Publish(context.Background(), PublishRequest{}); !errors.Is(err, ErrNothingPublished) {
		t.Errorf("Publish error = %v, want ErrNothingPublished", err)
	}
}

func TestPublish_DuplicateDataset(t *testing.T) {
	f := newPublishFixture(t)
	edited := f.editFijo(t, 0, "Estado", Text("Baja"))

	result, err := f.svc.Publish(context.Background(), PublishRequest{Edits: []DatasetEdit{
		{Dataset: "Fijo", Edited: edited},
		{Dataset: "Fijo", Edited: edited},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Datasets[0].Published() || result.Datasets[1].Err == nil {
		t.Errorf("outcomes = %+v", result.Datasets)
	}
}

func TestPublish_BackupIsWriteOnce(t *testing.T) {
	f := newPublishFixture(t)
	ctx := context.Background()

	edited := f.editFijo(t, 0, "Estado", Text("Baja"))
	if _, err := f.svc.Publish(ctx, PublishRequest{Edits: []DatasetEdit{{Dataset: "Fijo", Edited: edited}}}); err != nil {
		t.Fatal(err)
	}

	// same second: the backup name collides and the primary is left alone
	edited = f.editFijo(t, 0, "Estado", Text("Otra"))
	result, err := f.svc.Publish(ctx, PublishRequest{Edits: []DatasetEdit{{Dataset: "Fijo", Edited: edited}}})
	if !errors.Is(err, ErrNothingPublished) {
		t.Fatalf("Publish error = %v, want ErrNothingPublished", err)
	}
	if o := result.Datasets[0]; o.Phase != PhaseDiffed || MapError(o.Err).Code != "BAK001" {
		t.Errorf("outcome phase %s code %s, want diffed BAK001", o.Phase, MapError(o.Err).Code)
	}
	if got := f.store.get(t, "Masterfile/MasterfileSutel.xlsx"); got.Cell(0, 2) != Text("Baja") {
		t.Errorf("primary overwritten after failed backup: %v", got.Rows())
	}
}

func TestPublish_RetryWithinSameSecondCollides(t *testing.T) {
	f := newPublishFixture(t)
	ctx := context.Background()
	f.notifier.err = errors.New("smtp: 421 service not available")

	edited := f.editFijo(t, 0, "Estado", Text("Baja"))
	if _, err := f.svc.Publish(ctx, PublishRequest{Edits: []DatasetEdit{{Dataset: "Fijo", Edited: edited}}}); !errors.Is(err, ErrNotificationFailed) {
		t.Fatalf("Publish error = %v, want ErrNotificationFailed", err)
	}

	// backup names carry seconds, so an immediate retry cannot reuse the name
	f.notifier.err = nil
	edited = f.editFijo(t, 0, "Estado", Text("Baja"))
	result, err := f.svc.Publish(ctx, PublishRequest{Edits: []DatasetEdit{{Dataset: "Fijo", Edited: edited}}})
	if !errors.Is(err, ErrNothingPublished) {
		t.Fatalf("retry error = %v, want ErrNothingPublished", err)
	}
	if o := result.Datasets[0]; MapError(o.Err).Code != "BAK001" {
		t.Errorf("retry code = %s, want BAK001", MapError(o.Err).Code)
	}
	if f.counter.writes != 0 {
		t.Errorf("counter written %d times, want 0", f.counter.writes)
	}
	if len(f.notifier.sent) != 0 {
		t.Errorf("notifications sent = %d, want 0", len(f.notifier.sent))
	}
}

func TestPublish_CounterReadFailure(t *testing.T) {
	f := newPublishFixture(t)
	f.counter.readErr = errors.New("connection reset")

	edited := f.editFijo(t, 0, "Estado", Text("Baja"))
	result, err := f.svc.Publish(context.Background(), PublishRequest{Edits: []DatasetEdit{{Dataset: "Fijo", Edited: edited}}})

	if MapError(err).Code != "CNT001" {
		t.Errorf("error %v code = %q, want CNT001", err, MapError(err).Code)
	}
	if result.Phase != PhasePublished || len(f.notifier.sent) != 0 {
		t.Errorf("phase = %s, sent = %d", result.Phase, len(f.notifier.sent))
	}
}

func TestPublish_DropsPhantomColumns(t *testing.T) {
	f := newPublishFixture(t)
	loaded, err := f.svc.LoadSnapshot(context.Background(), "Fijo")
	if err != nil {
		t.Fatal(err)
	}
	rows := loaded.Rows()
	for i := range rows {
		rows[i] = append(rows[i], Number(float64(i)))
	}
	edited := NewSnapshot(append(loaded.Columns(), "Unnamed: 0"), rows)

	result, err := f.svc.Publish(context.Background(), PublishRequest{Edits: []DatasetEdit{{Dataset: "Fijo", Edited: edited}}})
	if err != nil {
		t.Fatal(err)
	}
	if n := len(result.Datasets[0].Changes); n != 0 {
		t.Errorf("changes = %d, want 0", n)
	}
	primary := f.store.get(t, "Masterfile/MasterfileSutel.xlsx")
	if primary.HasColumn("Unnamed: 0") || primary.HasColumn(RowKeyColumn) {
		t.Errorf("bookkeeping columns persisted: %v", primary.Columns())
	}
}

func TestPublish_Busy(t *testing.T) {
	f := newPublishFixture(t)
	f.svc.limiter = NewPublishLimiter(1, 20*time.Millisecond)
	if err := f.svc.limiter.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer f.svc.limiter.Release()

	edited := f.editFijo(t, 0, "Estado", Text("Baja"))
	_, err := f.svc.Publish(context.Background(), PublishRequest{Edits: []DatasetEdit{{Dataset: "Fijo", Edited: edited}}})
	if !errors.Is(err, ErrPublicationBusy) {
		t.Errorf("Publish error = %v, want ErrPublicationBusy", err)
	}
	if got := f.svc.PublicationsActive(); got != 1 {
		t.Errorf("PublicationsActive = %d, want 1", got)
	}
}

func TestService_CounterStatus(t *testing.T) {
	f := newPublishFixture(t)
	f.counter.record, f.counter.found = "01012025,2", true

	st, err := f.svc.CounterStatus(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Count != 2 || st.NextVersion != 3 || st.NextSubject != "Masterfile Sutel Fijo y Movilidad 01012025 V3" {
		t.Errorf("CounterStatus = %+v", st)
	}
}

func TestService_ListDatasets(t *testing.T) {
	f := newPublishFixture(t)
	infos := f.svc.ListDatasets()
	if len(infos) != 2 || infos[0].Key != "Fijo" || infos[1].Key != "Movilidad" {
		t.Errorf("ListDatasets = %+v", infos)
	}
}
