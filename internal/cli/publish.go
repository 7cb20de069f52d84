package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/masterfile/internal/application"
	"github.com/JonMunkholm/masterfile/internal/core"
)

// PublishCmd publishes edited masterfiles from local files.
func PublishCmd() *cobra.Command {
	var (
		edits    []string
		operator string
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "publish --edit KEY=PATH [--edit KEY=PATH ...]",
		Short: "Back up, replace and report edited masterfiles",
		Long: `Publish one or more edited masterfiles in a single batch.

Each dataset is diffed against its current version, backed up under a
timestamped name and replaced. One report listing every change is then sent
with the backups attached, and the day counter is advanced.

With --dry-run the changes are only printed.`,
		Example: `  mfctl publish --edit Fijo=./MasterfileSutel.xlsx
  mfctl publish --edit Fijo=fijo.xlsx --edit Movilidad=movilidad.xlsx --operator ana`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(edits) == 0 {
				return errors.New("at least one --edit KEY=PATH is required")
			}
			pairs, err := parseEdits(edits)
			if err != nil {
				return err
			}

			ctx := core.ContextWithOperator(cmd.Context(), operator)
			app, err := openApp(ctx, application.Options{})
			if err != nil {
				return err
			}
			defer app.Close()

			req := core.PublishRequest{Operator: operator}
			for _, p := range pairs {
				def, ok := core.Get(p.key)
				if !ok {
					return fmt.Errorf("%w: %s", core.ErrUnknownDataset, p.key)
				}
				data, err := os.ReadFile(p.path)
				if err != nil {
					return err
				}
				snap, err := def.Codec.Decode(data)
				if err != nil {
					return fmt.Errorf("decode %s: %w", p.path, err)
				}
				req.Edits = append(req.Edits, core.DatasetEdit{Dataset: p.key, Edited: snap})
			}

			out := cmd.OutOrStdout()
			if dryRun {
				for _, e := range req.Edits {
					preview, err := app.Service.Preview(ctx, e.Dataset, e.Edited)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s (rows matched by %s)\n", bold.Sprint(e.Dataset), preview.Policy)
					printChanges(out, preview.Changes)
					fmt.Fprintln(out)
				}
				return nil
			}

			result, err := app.Service.Publish(ctx, req)
			if result != nil {
				for _, o := range result.Datasets {
					printOutcome(out, o)
				}
				if result.Subject != "" {
					fmt.Fprintf(out, "\nSubject: %s\n", bold.Sprint(result.Subject))
				}
			}
			if err != nil {
				msg := core.MapError(err)
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %s (%s)\n  %s\n", red.Sprint("Error:"), msg.Message, msg.Code, msg.Action)
				return err
			}
			fmt.Fprintln(out, green.Sprint("Report sent, counter advanced."))
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&edits, "edit", "e", nil, "Dataset and edited file as KEY=PATH (repeatable)")
	cmd.Flags().StringVar(&operator, "operator", os.Getenv("USER"), "Name recorded in the publication log")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only print the changes")
	return cmd
}

type editPair struct {
	key  string
	path string
}

func parseEdits(raw []string) ([]editPair, error) {
	seen := make(map[string]bool, len(raw))
	pairs := make([]editPair, 0, len(raw))
	for _, r := range raw {
		key, path, ok := strings.Cut(r, "=")
		key, path = strings.TrimSpace(key), strings.TrimSpace(path)
		if !ok || key == "" || path == "" {
			return nil, fmt.Errorf("invalid --edit %q, want KEY=PATH", r)
		}
		if seen[key] {
			return nil, fmt.Errorf("dataset %s given twice", key)
		}
		seen[key] = true
		pairs = append(pairs, editPair{key: key, path: path})
	}
	return pairs, nil
}
