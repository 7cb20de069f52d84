package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/masterfile/internal/codec"
	"github.com/JonMunkholm/masterfile/internal/config"
	"github.com/JonMunkholm/masterfile/internal/core"
)

// DiffCmd compares two local masterfile versions without touching storage.
func DiffCmd() *cobra.Command {
	var (
		dataset    string
		catalog    string
		keyColumn  string
		display    []string
		positional bool
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "diff ORIGINAL EDITED",
		Short: "Show cell-level changes between two masterfile versions",
		Long: `Compare two local files (xlsx or csv) and list the changed cells.

Rows are matched by the dataset's ID column. With --positional, rows are
matched by position instead, which is what the editing surface does when
the row order was preserved.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := config.DatasetSpec{Key: "adhoc", File: args[0]}
			if dataset != "" {
				if catalog == "" {
					catalog = os.Getenv("MASTERFILE_DATASETS_FILE")
				}
				found, err := findDataset(catalog, dataset)
				if err != nil {
					return err
				}
				spec = found
			}
			if keyColumn != "" {
				spec.KeyColumn = keyColumn
			}
			if len(display) > 0 {
				spec.DisplayColumns = display
			}

			original, err := readSnapshot(args[0], spec)
			if err != nil {
				return err
			}
			edited, err := readSnapshot(args[1], spec)
			if err != nil {
				return err
			}
			if positional {
				if original, err = core.AttachRowKeys(original); err != nil {
					return err
				}
				if edited, err = core.AttachRowKeys(edited); err != nil {
					return err
				}
			}

			opts := core.DiffOptions{
				KeyColumn: spec.KeyColumn,
				Identifier: core.IdentifierResolver{
					DisplayColumns: spec.DisplayColumns,
					IDColumn:       spec.KeyColumn,
				},
			}
			changes := core.Diff(original, edited, opts)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(changes)
			}
			policy := opts.Policy(core.DefaultNormalizer().Normalize(original), core.DefaultNormalizer().Normalize(edited))
			fmt.Fprintf(out, "Rows matched by: %s\n\n", policy)
			printChanges(out, changes)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dataset, "dataset", "d", "", "Dataset key from the catalog (e.g. Fijo)")
	cmd.Flags().StringVar(&catalog, "catalog", "", "Dataset catalog YAML (default: MASTERFILE_DATASETS_FILE or built-in)")
	cmd.Flags().StringVarP(&keyColumn, "key-column", "k", "", "ID column used to match rows")
	cmd.Flags().StringSliceVar(&display, "display", nil, "Columns tried in order to label a changed row")
	cmd.Flags().BoolVar(&positional, "positional", false, "Match rows by position")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print changes as JSON")
	return cmd
}

func findDataset(catalog, key string) (config.DatasetSpec, error) {
	specs, err := config.LoadDatasets(catalog)
	if err != nil {
		return config.DatasetSpec{}, err
	}
	var keys []string
	for _, s := range specs {
		if s.Key == key {
			return s, nil
		}
		keys = append(keys, s.Key)
	}
	return config.DatasetSpec{}, fmt.Errorf("%w: %s (known: %s)", core.ErrUnknownDataset, key, strings.Join(keys, ", "))
}

// readSnapshot decodes a local file with the codec its extension selects,
// using the dataset's decode options.
func readSnapshot(path string, spec config.DatasetSpec) (*core.Snapshot, error) {
	c, err := codec.ForFile(path, codec.Options{Sheet: spec.Sheet, TextColumns: spec.TextColumns})
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	snap, err := c.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return snap, nil
}
