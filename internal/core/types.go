// Package core provides the change-detection and publication engine.
// This package has no transport dependencies and can be used by any frontend.
package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Kind identifies which variant of a Value is set.
type Kind int

const (
	KindEmpty Kind = iota
	KindText
	KindNumber
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	default:
		return "unknown"
	}
}

// Value is a loosely-typed cell scalar: text, number, or empty.
type Value struct {
	Kind Kind
	Text string
	Num  float64
}

// Empty returns the empty value.
func Empty() Value { return Value{} }

// Text returns a text value. The empty string is still text; use Empty for null cells.
func Text(s string) Value { return Value{Kind: KindText, Text: s} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{Kind: KindNumber, Num: f} }

// IsEmpty reports whether the value is null or blank text.
func (v Value) IsEmpty() bool {
	return v.Kind == KindEmpty || (v.Kind == KindText && v.Text == "")
}

// String renders the value as raw text without canonicalization.
func (v Value) String() string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	default:
		return ""
	}
}

// MarshalJSON encodes the value as null, a JSON string, or a JSON number.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindText:
		return json.Marshal(v.Text)
	case KindNumber:
		return json.Marshal(v.Num)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes null, strings, numbers and booleans.
// Booleans become text because the tabular model has no boolean variant.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Empty()
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Text(strconv.FormatBool(b))
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("invalid cell value %s: %w", data, err)
		}
		*v = Number(f)
	}
	return nil
}

// Snapshot is one immutable captured state of a tabular dataset.
// Construct with NewSnapshot; accessors return copies so callers cannot
// mutate a captured snapshot in place.
type Snapshot struct {
	columns []string
	rows    [][]Value
}

// NewSnapshot copies columns and rows into a new snapshot.
// Short rows are padded with empty values; long rows are truncated.
func NewSnapshot(columns []string, rows [][]Value) *Snapshot {
	s := &Snapshot{
		columns: append([]string(nil), columns...),
		rows:    make([][]Value, len(rows)),
	}
	for i, row := range rows {
		r := make([]Value, len(columns))
		copy(r, row)
		s.rows[i] = r
	}
	return s
}

// Columns returns a copy of the column names in order.
func (s *Snapshot) Columns() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.columns...)
}

// Len returns the number of rows.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rows)
}

// Width returns the number of columns.
func (s *Snapshot) Width() int {
	if s == nil {
		return 0
	}
	return len(s.columns)
}

// Row returns a copy of row i.
func (s *Snapshot) Row(i int) []Value {
	return append([]Value(nil), s.rows[i]...)
}

// Rows returns a deep copy of all rows.
func (s *Snapshot) Rows() [][]Value {
	if s == nil {
		return nil
	}
	out := make([][]Value, len(s.rows))
	for i := range s.rows {
		out[i] = s.Row(i)
	}
	return out
}

// Cell returns the value at row i, column j.
func (s *Snapshot) Cell(i, j int) Value {
	return s.rows[i][j]
}

// ColumnIndex returns the position of the named column, or -1.
// The match is exact; callers normalize names first when needed.
func (s *Snapshot) ColumnIndex(name string) int {
	if s == nil {
		return -1
	}
	for i, c := range s.columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the snapshot has a column with this exact name.
func (s *Snapshot) HasColumn(name string) bool {
	return s.ColumnIndex(name) >= 0
}

// IsEmpty reports whether the snapshot is absent or has no columns.
func (s *Snapshot) IsEmpty() bool {
	return s == nil || len(s.columns) == 0
}

type snapshotJSON struct {
	Columns []string  `json:"columns"`
	Rows    [][]Value `json:"rows"`
}

// MarshalJSON encodes the snapshot as {"columns": [...], "rows": [[...]]}.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	return json.Marshal(snapshotJSON{Columns: s.columns, Rows: s.rows})
}

// UnmarshalJSON decodes the {"columns", "rows"} form.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw snapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = *NewSnapshot(raw.Columns, raw.Rows)
	return nil
}

// ChangeRecord is one detected cell-level difference between two snapshots.
type ChangeRecord struct {
	Key    string `json:"key"`    // Row key under the identity policy in force
	Label  string `json:"label"`  // Human-facing row identifier
	Column string `json:"column"` // Column name as in the original snapshot
	Old    string `json:"old"`    // Normalized original value
	New    string `json:"new"`    // Normalized edited value
}

// DayCounter is the persisted count of publications for one calendar day.
type DayCounter struct {
	Date  string `json:"date"`  // ddmmyyyy in the configured zone
	Count int    `json:"count"` // Publications already committed today

	record string // Raw record as read, for compare-and-swap
	found  bool
}

// Version returns the ordinal the next publication of the day will carry.
func (c DayCounter) Version() int {
	return c.Count + 1
}

// Phase is a step in the publication state machine.
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseLoaded    Phase = "loaded"
	PhaseEdited    Phase = "edited"
	PhaseDiffed    Phase = "diffed"
	PhaseBackedUp  Phase = "backed_up"
	PhasePublished Phase = "published"
	PhaseCounted   Phase = "counted"
	PhaseNotified  Phase = "notified"
	PhaseCommitted Phase = "committed"
)

// DatasetEdit is the edited snapshot of one dataset submitted for publication.
type DatasetEdit struct {
	Dataset string
	Edited  *Snapshot
}

// PublishRequest asks the orchestrator to publish one or more datasets.
type PublishRequest struct {
	Edits    []DatasetEdit
	Operator string // Who triggered the publication, for logs only
}

// DatasetOutcome is the per-dataset result of a publication attempt.
type DatasetOutcome struct {
	Dataset     string         `json:"dataset"`
	Label       string         `json:"label"`
	Phase       Phase          `json:"phase"` // Last phase reached
	Changes     []ChangeRecord `json:"changes"`
	BackupPath  string         `json:"backupPath,omitempty"`
	PrimaryPath string         `json:"primaryPath,omitempty"`
	Attachment  string         `json:"attachment,omitempty"`
	Err         error          `json:"-"`
	Error       string         `json:"error,omitempty"`

	attachment Attachment
}

// Published reports whether the dataset's primary artifact was overwritten.
func (o DatasetOutcome) Published() bool {
	return o.Err == nil && o.Phase == PhasePublished
}

// PublicationResult is the batch-level result of Service.Publish.
type PublicationResult struct {
	ID              string           `json:"id"`
	Timestamp       time.Time        `json:"timestamp"`
	Phase           Phase            `json:"phase"`
	Subject         string           `json:"subject,omitempty"`
	Version         int              `json:"version,omitempty"`
	Datasets        []DatasetOutcome `json:"datasets"`
	Notified        bool             `json:"notified"`
	CounterAdvanced bool             `json:"counterAdvanced"`
}

// Published returns the outcomes whose primary artifact was overwritten.
func (r *PublicationResult) Published() []DatasetOutcome {
	var out []DatasetOutcome
	for _, o := range r.Datasets {
		if o.Published() {
			out = append(out, o)
		}
	}
	return out
}

// Failed returns the outcomes that stopped before publication.
func (r *PublicationResult) Failed() []DatasetOutcome {
	var out []DatasetOutcome
	for _, o := range r.Datasets {
		if !o.Published() {
			out = append(out, o)
		}
	}
	return out
}
