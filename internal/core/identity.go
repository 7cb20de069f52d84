package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// RowKeyColumn is the reserved column holding synthetic row keys.
// It is hidden from the editing surface and never persisted.
const RowKeyColumn = "__row_key__"

// ErrReservedColumn is returned when a data column already uses RowKeyColumn.
var ErrReservedColumn = errors.New("reserved row key column collides with data column")

// AttachRowKeys returns a copy of s with a synthetic key column appended.
// Keys are zero-based ordinals rendered as text, assigned in load order.
// A data column that already carries the reserved name, even with surrounding
// whitespace that normalization would trim, is a configuration error and is
// reported, never resolved.
func AttachRowKeys(s *Snapshot) (*Snapshot, error) {
	if s == nil {
		return nil, nil
	}
	for _, name := range s.columns {
		if strings.TrimSpace(name) == RowKeyColumn {
			return nil, fmt.Errorf("%w: %q", ErrReservedColumn, name)
		}
	}

	columns := append(s.Columns(), RowKeyColumn)
	rows := make([][]Value, s.Len())
	for i := range rows {
		rows[i] = append(s.Row(i), Text(strconv.Itoa(i)))
	}
	return NewSnapshot(columns, rows), nil
}

// StripRowKeys returns a copy of s without the synthetic key column.
// Snapshots without the column are returned unchanged.
func StripRowKeys(s *Snapshot) *Snapshot {
	return dropColumns(s, func(name string) bool { return name == RowKeyColumn })
}

// HasRowKeys reports whether s carries synthetic keys.
func HasRowKeys(s *Snapshot) bool {
	return s.HasColumn(RowKeyColumn)
}

// dropColumns returns a copy of s without the columns matched by drop.
// Returns s itself when nothing matches.
func dropColumns(s *Snapshot, drop func(name string) bool) *Snapshot {
	if s == nil {
		return nil
	}

	keep := make([]int, 0, s.Width())
	for j, name := range s.columns {
		if !drop(name) {
			keep = append(keep, j)
		}
	}
	if len(keep) == s.Width() {
		return s
	}

	columns := make([]string, len(keep))
	for k, j := range keep {
		columns[k] = s.columns[j]
	}
	rows := make([][]Value, s.Len())
	for i, row := range s.rows {
		r := make([]Value, len(keep))
		for k, j := range keep {
			r[k] = row[j]
		}
		rows[i] = r
	}
	return NewSnapshot(columns, rows)
}
