package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/JonMunkholm/masterfile/internal/core"
)

var (
	bold  = color.New(color.Bold)
	red   = color.New(color.FgRed)
	green = color.New(color.FgGreen)
	warn  = color.New(color.FgYellow)
)

// printChanges writes one line per changed cell, grouped by row label.
func printChanges(w io.Writer, changes []core.ChangeRecord) {
	if len(changes) == 0 {
		fmt.Fprintln(w, warn.Sprint("No changes detected"))
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	last := ""
	for _, c := range changes {
		label := ""
		if c.Label != last {
			label = bold.Sprint(c.Label)
			last = c.Label
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t→\t%s\n", label, c.Column, red.Sprint(display(c.Old)), green.Sprint(display(c.New)))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d changed cell(s)\n", len(changes))
}

func display(s string) string {
	if s == "" {
		return "(empty)"
	}
	return s
}

// printOutcome writes the result of one dataset in a publication.
func printOutcome(w io.Writer, o core.DatasetOutcome) {
	if o.Published() {
		fmt.Fprintf(w, "%s %s: %d change(s), backup %s\n",
			green.Sprint("✓"), bold.Sprint(o.Label), len(o.Changes), o.BackupPath)
		return
	}
	fmt.Fprintf(w, "%s %s: stopped at %s: %s\n",
		red.Sprint("✗"), bold.Sprint(o.Label), o.Phase, o.Error)
}
