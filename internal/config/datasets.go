package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/masterfile/internal/codec"
	"github.com/JonMunkholm/masterfile/internal/core"
)

// DatasetSpec describes one masterfile in the dataset catalog.
type DatasetSpec struct {
	Key            string   `yaml:"key"`
	Label          string   `yaml:"label"`
	File           string   `yaml:"file"`
	Order          int      `yaml:"order"`
	SyntheticKeys  bool     `yaml:"synthetic_keys"`
	KeyColumn      string   `yaml:"key_column"`
	DisplayColumns []string `yaml:"display_columns"`
	Sheet          string   `yaml:"sheet"`
	TextColumns    []int    `yaml:"text_columns"`
}

type catalog struct {
	Datasets []DatasetSpec `yaml:"datasets"`
}

// DefaultDatasets returns the Sutel Fijo and Movilidad masterfiles.
// The first two columns carry identifiers and are always read as text.
func DefaultDatasets() []DatasetSpec {
	return []DatasetSpec{
		{
			Key:            "Fijo",
			Label:          "Fijo",
			File:           "MasterfileSutel.xlsx",
			Order:          1,
			SyntheticKeys:  true,
			KeyColumn:      "ID SONDA",
			DisplayColumns: []string{"STM"},
			TextColumns:    []int{0, 1},
		},
		{
			Key:            "Movilidad",
			Label:          "Movilidad",
			File:           "MasterfileSutel_Movilidad.xlsx",
			Order:          2,
			SyntheticKeys:  true,
			KeyColumn:      "ID SONDA",
			DisplayColumns: []string{"STM"},
			TextColumns:    []int{0, 1},
		},
	}
}

// LoadDatasets reads the catalog at path, or returns the defaults when path is empty.
func LoadDatasets(path string) ([]DatasetSpec, error) {
	if path == "" {
		return DefaultDatasets(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset catalog: %w", err)
	}
	specs, err := ParseDatasets(data)
	if err != nil {
		return nil, fmt.Errorf("dataset catalog %s: %w", path, err)
	}
	return specs, nil
}

// ParseDatasets decodes and validates a YAML dataset catalog.
func ParseDatasets(data []byte) ([]DatasetSpec, error) {
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if len(c.Datasets) == 0 {
		return nil, errors.New("no datasets defined")
	}

	seen := make(map[string]bool, len(c.Datasets))
	var errs []string
	for i, d := range c.Datasets {
		if _, err := d.Definition(); err != nil {
			errs = append(errs, fmt.Sprintf("entry %d: %v", i, err))
			continue
		}
		if seen[d.Key] {
			errs = append(errs, fmt.Sprintf("entry %d: duplicate key %q", i, d.Key))
		}
		seen[d.Key] = true
	}
	if len(errs) > 0 {
		return nil, errors.New(strings.Join(errs, "; "))
	}
	return c.Datasets, nil
}

// Definition converts the catalog entry to a core definition with its codec.
func (d DatasetSpec) Definition() (core.DatasetDefinition, error) {
	c, err := codec.ForFile(d.File, codec.Options{Sheet: d.Sheet, TextColumns: d.TextColumns})
	if err != nil {
		return core.DatasetDefinition{}, fmt.Errorf("dataset %q: %w", d.Key, err)
	}
	def := core.DatasetDefinition{
		Info: core.DatasetInfo{
			Key:      d.Key,
			Label:    d.Label,
			FileName: d.File,
			Order:    d.Order,
		},
		SyntheticKeys:  d.SyntheticKeys,
		KeyColumn:      d.KeyColumn,
		DisplayColumns: d.DisplayColumns,
		Codec:          c,
	}
	if err := def.Validate(); err != nil {
		return core.DatasetDefinition{}, err
	}
	return def, nil
}

// RegisterDatasets adds specs to the core registry.
func RegisterDatasets(specs []DatasetSpec) error {
	for _, s := range specs {
		def, err := s.Definition()
		if err != nil {
			return err
		}
		if _, exists := core.Get(def.Info.Key); exists {
			return fmt.Errorf("dataset %q already registered", def.Info.Key)
		}
		core.Register(def)
	}
	return nil
}
