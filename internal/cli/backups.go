package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/masterfile/internal/application"
	"github.com/JonMunkholm/masterfile/internal/notify"
)

// BackupsCmd lists a dataset's backups and can fetch one.
func BackupsCmd() *cobra.Command {
	var fetch, outDir string

	cmd := &cobra.Command{
		Use:   "backups DATASET",
		Short: "List the backups of a dataset, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := openApp(ctx, application.Options{Notifier: notify.Log{}})
			if err != nil {
				return err
			}
			defer app.Close()

			out := cmd.OutOrStdout()
			if fetch != "" {
				data, _, err := app.Service.ReadBackup(ctx, args[0], fetch)
				if err != nil {
					return err
				}
				dest := filepath.Join(outDir, fetch)
				if err := os.WriteFile(dest, data, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(out, "Wrote %s (%d bytes)\n", dest, len(data))
				return nil
			}

			items, err := app.Service.ListBackups(ctx, args[0])
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(out, warn.Sprint("No backups yet"))
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, it := range items {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", it.Name, it.Size, it.LastModified.In(app.Location).Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&fetch, "fetch", "", "Backup file name to download")
	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "Directory to write a fetched backup to")
	return cmd
}
