package core

import "strings"

// IdentifierResolver picks the human-facing label for a changed row.
// Each dataset configures its own display columns; the resolver itself has
// no knowledge of specific datasets.
type IdentifierResolver struct {
	// DisplayColumns are tried in order, e.g. a device identifier for one
	// dataset and a person name for another.
	DisplayColumns []string

	// IDColumn is the generic designated ID column, tried after the display columns.
	IDColumn string
}

// Label returns the first non-empty display column value, then the ID column
// value, then fallbackKey.
func (r IdentifierResolver) Label(row map[string]string, fallbackKey string) string {
	if label, ok := r.resolve(row); ok {
		return label
	}
	return fallbackKey
}

func (r IdentifierResolver) resolve(row map[string]string) (string, bool) {
	for _, col := range r.DisplayColumns {
		if v := strings.TrimSpace(row[col]); v != "" {
			return v, true
		}
	}
	if r.IDColumn != "" {
		if v := strings.TrimSpace(row[r.IDColumn]); v != "" {
			return v, true
		}
	}
	return "", false
}
