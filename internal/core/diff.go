package core

import (
	"sort"
	"strconv"
)

// IdentityPolicy names how rows are matched across two snapshots.
type IdentityPolicy string

const (
	// PolicySynthetic matches rows by the ordinal key attached at load time.
	PolicySynthetic IdentityPolicy = "synthetic"
	// PolicyNatural matches rows by the dataset's ID column.
	PolicyNatural IdentityPolicy = "natural"
	// PolicyNone means no robust comparison is possible.
	PolicyNone IdentityPolicy = "none"
)

// DiffOptions configures a comparison.
type DiffOptions struct {
	// KeyColumn is the natural ID column used when synthetic keys are missing.
	KeyColumn string

	// Identifier labels each change record.
	Identifier IdentifierResolver

	// Normalizer overrides the default phantom patterns. Optional.
	Normalizer *Normalizer
}

func (o DiffOptions) normalizer() *Normalizer {
	if o.Normalizer != nil {
		return o.Normalizer
	}
	return defaultNormalizer
}

// Policy reports the identity policy Diff would use for two normalized snapshots.
func (o DiffOptions) Policy(original, edited *Snapshot) IdentityPolicy {
	if HasRowKeys(original) && HasRowKeys(edited) {
		return PolicySynthetic
	}
	if o.KeyColumn != "" && original.HasColumn(o.KeyColumn) {
		return PolicyNatural
	}
	return PolicyNone
}

// Diff compares two snapshots keyed by row identity and returns one record
// per changed cell, ordered by row key then original column order.
//
// Rows present in only one snapshot are not reported, and neither are added,
// removed or renamed columns: only cells present on both sides are compared.
// Values are compared by exact equality of their normalized text.
func Diff(original, edited *Snapshot, opts DiffOptions) []ChangeRecord {
	norm := opts.normalizer()
	original = norm.Normalize(original)
	edited = norm.Normalize(edited)

	identity := ""
	switch opts.Policy(original, edited) {
	case PolicySynthetic:
		identity = RowKeyColumn
	case PolicyNatural:
		identity = opts.KeyColumn
	default:
		return nil
	}

	origRows := indexRows(original, identity)
	editRows := indexRows(edited, identity)

	keys := make([]string, 0, len(origRows))
	for key := range origRows {
		if _, ok := editRows[key]; ok {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })

	type column struct {
		name       string
		orig, edit int
	}
	var columns []column
	for j, name := range original.columns {
		if name == identity || name == RowKeyColumn {
			continue
		}
		if k := edited.ColumnIndex(name); k >= 0 {
			columns = append(columns, column{name: name, orig: j, edit: k})
		}
	}

	var changes []ChangeRecord
	for _, key := range keys {
		o, e := origRows[key], editRows[key]
		label := ""
		for _, c := range columns {
			oldVal := original.rows[o][c.orig].String()
			newVal := edited.rows[e][c.edit].String()
			if oldVal == newVal {
				continue
			}
			if label == "" {
				label = rowLabel(opts.Identifier, key, edited, e, original, o)
			}
			changes = append(changes, ChangeRecord{
				Key:    key,
				Label:  label,
				Column: c.name,
				Old:    oldVal,
				New:    newVal,
			})
		}
	}

	return changes
}

// indexRows maps each row key to its first row index. Later duplicates and
// rows with an empty key are excluded from comparison.
func indexRows(s *Snapshot, identity string) map[string]int {
	col := s.ColumnIndex(identity)
	idx := make(map[string]int, s.Len())
	if col < 0 {
		return idx
	}
	for i, row := range s.rows {
		key := row[col].String()
		if key == "" {
			continue
		}
		if _, dup := idx[key]; dup {
			continue
		}
		idx[key] = i
	}
	return idx
}

// keyLess orders integer keys numerically and everything else lexically.
// Integer keys sort before non-integer keys.
func keyLess(a, b string) bool {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		return ai < bi
	case aErr == nil:
		return true
	case bErr == nil:
		return false
	default:
		return a < b
	}
}

// rowLabel labels a changed row from the edited values, falling back to the
// original row and finally the raw key.
func rowLabel(r IdentifierResolver, key string, edited *Snapshot, e int, original *Snapshot, o int) string {
	if label, ok := r.resolve(rowMap(edited, e)); ok {
		return label
	}
	return r.Label(rowMap(original, o), key)
}

func rowMap(s *Snapshot, i int) map[string]string {
	m := make(map[string]string, s.Width())
	for j, name := range s.columns {
		m[name] = s.rows[i][j].String()
	}
	return m
}
