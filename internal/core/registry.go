package core

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownDataset is returned when a dataset key is not registered.
var ErrUnknownDataset = errors.New("unknown dataset")

// DatasetInfo contains display and location information about a dataset.
type DatasetInfo struct {
	Key      string `json:"key"`      // Unique identifier and backup subfolder: "Fijo"
	Label    string `json:"label"`    // Report section title: "Fijo"
	FileName string `json:"fileName"` // Primary artifact name: "MasterfileSutel.xlsx"
	Order    int    `json:"order"`    // Position in combined reports
}

// BaseName returns the file name without its extension.
func (i DatasetInfo) BaseName() string {
	return strings.TrimSuffix(i.FileName, path.Ext(i.FileName))
}

// Ext returns the file extension without the leading dot.
func (i DatasetInfo) Ext() string {
	return strings.TrimPrefix(path.Ext(i.FileName), ".")
}

// DatasetDefinition contains everything needed to diff and publish a dataset.
type DatasetDefinition struct {
	Info DatasetInfo

	// SyntheticKeys attaches an ordinal row key column on load so edits
	// survive filtering and sorting in the editing surface.
	SyntheticKeys bool

	// KeyColumn is the natural ID column used when synthetic keys are
	// unavailable. It is also the generic label fallback.
	KeyColumn string

	// DisplayColumns are tried in order when labelling a changed row.
	DisplayColumns []string

	// Codec reads and writes the artifact format.
	Codec TabularCodec
}

// Identifier returns the label resolver configured for this dataset.
func (d DatasetDefinition) Identifier() IdentifierResolver {
	return IdentifierResolver{
		DisplayColumns: d.DisplayColumns,
		IDColumn:       d.KeyColumn,
	}
}

// Validate checks that the definition is usable.
func (d DatasetDefinition) Validate() error {
	var errs []string
	if strings.TrimSpace(d.Info.Key) == "" {
		errs = append(errs, "key is required")
	}
	if strings.ContainsAny(d.Info.Key, `/\`) {
		errs = append(errs, fmt.Sprintf("key %q must not contain path separators", d.Info.Key))
	}
	if strings.TrimSpace(d.Info.FileName) == "" {
		errs = append(errs, "file name is required")
	}
	if d.Info.Ext() == "" {
		errs = append(errs, fmt.Sprintf("file name %q has no extension", d.Info.FileName))
	}
	if d.Codec == nil {
		errs = append(errs, "codec is required")
	}
	if d.KeyColumn == RowKeyColumn {
		errs = append(errs, fmt.Sprintf("key column must not use reserved name %q", RowKeyColumn))
	}
	if len(errs) > 0 {
		return fmt.Errorf("dataset %q: %s", d.Info.Key, strings.Join(errs, "; "))
	}
	return nil
}

var (
	registry   = make(map[string]DatasetDefinition)
	registryMu sync.RWMutex
)

// Register adds a dataset definition to the registry.
// Panics if a dataset with the same key is already registered or the
// definition is invalid; both are wiring mistakes caught at startup.
func Register(def DatasetDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Info.Key]; exists {
		panic(fmt.Sprintf("dataset already registered: %s", def.Info.Key))
	}
	if err := def.Validate(); err != nil {
		panic(err.Error())
	}
	if def.Info.Label == "" {
		def.Info.Label = def.Info.Key
	}

	registry[def.Info.Key] = def
}

// Get returns a dataset definition by key.
// Returns false if not found.
func Get(key string) (DatasetDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// All returns all registered dataset definitions.
// Sorted by Order then by key for consistent report sections.
func All() []DatasetDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]DatasetDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Info.Order != result[j].Info.Order {
			return result[i].Info.Order < result[j].Info.Order
		}
		return result[i].Info.Key < result[j].Info.Key
	})

	return result
}

// DatasetCount returns the number of registered datasets.
func DatasetCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered datasets.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]DatasetDefinition)
}

func lookup(key string) (DatasetDefinition, error) {
	def, ok := Get(key)
	if !ok {
		return DatasetDefinition{}, fmt.Errorf("%w: %s", ErrUnknownDataset, key)
	}
	return def, nil
}
