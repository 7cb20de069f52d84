package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/masterfile/internal/application"
	"github.com/JonMunkholm/masterfile/internal/notify"
)

// CounterCmd shows today's publication counter.
func CounterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "counter",
		Short: "Show today's publication count and the next subject",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := openApp(ctx, application.Options{Notifier: notify.Log{}})
			if err != nil {
				return err
			}
			defer app.Close()

			status, err := app.Service.CounterStatus(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Date:          %s\n", status.Date)
			fmt.Fprintf(out, "Published:     %d\n", status.Count)
			fmt.Fprintf(out, "Next version:  %d\n", status.NextVersion)
			fmt.Fprintf(out, "Next subject:  %s\n", bold.Sprint(status.NextSubject))
			return nil
		},
	}
}
