package core

// normalize.go canonicalizes snapshots so that two captures of the same data
// compare equal regardless of how the storage round-trip rendered them:
//   - Index and editor bookkeeping columns are dropped
//   - Header whitespace is trimmed
//   - "1", "1.0", 1 and "1,000" style numbers collapse to one text form
//
// Normalization is pure: it never mutates its input and returns a new snapshot.

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// numericRegex validates that a string is a plain decimal number after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// groupedRegex matches numbers written with comma thousands separators.
// Commas that do not form 3-digit groups are left alone so "1,5" stays text.
var groupedRegex = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d*)?$`)

// DefaultPhantomPatterns match columns introduced by the load/edit/save
// round-trip: blank headers, spreadsheet index columns written without a
// name, flattened multi-index levels, and grid row-tracking markers.
var DefaultPhantomPatterns = []string{
	`^$`,
	`^Unnamed: ?\d*`,
	`^level_\d+$`,
	`::auto_unique_id::`,
	`^_selectedRowNodeInfo$`,
}

// Normalizer canonicalizes snapshots for comparison.
type Normalizer struct {
	phantoms []*regexp.Regexp
}

var defaultNormalizer = MustNormalizer(DefaultPhantomPatterns)

// NewNormalizer compiles the phantom column patterns.
// Patterns are case-sensitive and matched against the trimmed column name.
func NewNormalizer(patterns []string) (*Normalizer, error) {
	n := &Normalizer{phantoms: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("phantom pattern %q: %w", p, err)
		}
		n.phantoms = append(n.phantoms, re)
	}
	return n, nil
}

// MustNormalizer is NewNormalizer that panics on an invalid pattern.
func MustNormalizer(patterns []string) *Normalizer {
	n, err := NewNormalizer(patterns)
	if err != nil {
		panic(err)
	}
	return n
}

// DefaultNormalizer returns the normalizer built from DefaultPhantomPatterns.
func DefaultNormalizer() *Normalizer { return defaultNormalizer }

// IsPhantom reports whether a column name denotes a non-data column.
// The reserved row key column is never phantom; identity needs it.
func (n *Normalizer) IsPhantom(name string) bool {
	name = strings.TrimSpace(name)
	if name == RowKeyColumn {
		return false
	}
	for _, re := range n.phantoms {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// Normalize is Normalizer.Normalize with the default phantom patterns.
func Normalize(s *Snapshot) *Snapshot {
	return defaultNormalizer.Normalize(s)
}

// Normalize returns the canonical comparable form of s.
//
// Steps, in order:
//  1. Drop phantom columns
//  2. Trim column names; on a post-trim collision the first column wins
//  3. Canonicalize every cell with NormalizeCell
//
// An absent or column-less snapshot is returned as is.
func (n *Normalizer) Normalize(s *Snapshot) *Snapshot {
	if s.IsEmpty() {
		return s
	}

	type kept struct {
		src  int
		name string
	}
	cols := make([]kept, 0, s.Width())
	seen := make(map[string]bool, s.Width())
	for j, raw := range s.columns {
		name := strings.TrimSpace(raw)
		if n.IsPhantom(name) || seen[name] {
			continue
		}
		seen[name] = true
		cols = append(cols, kept{src: j, name: name})
	}

	columns := make([]string, len(cols))
	for k, c := range cols {
		columns[k] = c.name
	}

	rows := make([][]Value, s.Len())
	for i, row := range s.rows {
		r := make([]Value, len(cols))
		for k, c := range cols {
			if text := NormalizeCell(row[c.src]); text != "" {
				r[k] = Text(text)
			}
		}
		rows[i] = r
	}

	return NewSnapshot(columns, rows)
}

// NormalizeCell returns the canonical text form of a cell value.
//
//   - Empty and null cells become ""
//   - Whole numbers render as integers without a trailing ".0"
//   - Other numbers render in plain decimal form
//   - Text that parses as a number (thousands separators allowed) is
//     rendered as that number; any other text is trimmed
func NormalizeCell(v Value) string {
	switch v.Kind {
	case KindNumber:
		return formatNumber(v.Num)
	case KindText:
		s := strings.TrimSpace(v.Text)
		if f, ok := parseNumber(s); ok {
			return formatNumber(f)
		}
		return s
	default:
		return ""
	}
}

// parseNumber parses plain or comma-grouped decimal text.
func parseNumber(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	if groupedRegex.MatchString(s) {
		s = strings.ReplaceAll(s, ",", "")
	}
	if !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// formatNumber renders whole values as integer text and everything else in
// the shortest plain decimal form that round-trips.
func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < math.MaxInt64 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
