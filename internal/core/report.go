package core

import (
	"fmt"
	"strings"
	"time"
)

// ReportConfig holds the wording of the combined change report.
type ReportConfig struct {
	Title     string // Subject prefix: "Masterfile Sutel Fijo y Movilidad"
	Greeting  string // First line of the body
	Intro     string // Format string receiving the publication timestamp
	Section   string // Format string receiving the dataset label
	NoChanges string // Line used when a dataset has no changes
	Failed    string // Format string receiving the dataset label and failing phase
	Closing   string // Last line of the body
}

// DefaultReportConfig returns the report wording used by the Sutel masterfiles.
func DefaultReportConfig() ReportConfig {
	return ReportConfig{
		Title:     "Masterfile Sutel Fijo y Movilidad",
		Greeting:  "Buen día,",
		Intro:     "Se adjunta nueva versión de Masterfile con los cambios realizados el %s.",
		Section:   "Cambios en entorno %s:",
		NoChanges: "Ningún cambio detectado",
		Failed:    "Entorno %s no publicado (falló en %s):",
		Closing:   "Un saludo",
	}
}

// withDefaults fills unset fields from DefaultReportConfig.
func (c ReportConfig) withDefaults() ReportConfig {
	d := DefaultReportConfig()
	if c.Title == "" {
		c.Title = d.Title
	}
	if c.Greeting == "" {
		c.Greeting = d.Greeting
	}
	if c.Intro == "" {
		c.Intro = d.Intro
	}
	if c.Section == "" {
		c.Section = d.Section
	}
	if c.NoChanges == "" {
		c.NoChanges = d.NoChanges
	}
	if c.Failed == "" {
		c.Failed = d.Failed
	}
	if c.Closing == "" {
		c.Closing = d.Closing
	}
	return c
}

// BuildReport renders the combined multi-dataset report body: one section per
// dataset and one bullet per change. Datasets that failed are listed with the
// phase they reached so the operator knows they were not published.
func BuildReport(cfg ReportConfig, ts time.Time, loc *time.Location, outcomes []DatasetOutcome) string {
	cfg = cfg.withDefaults()
	if loc == nil {
		loc = time.UTC
	}

	var b strings.Builder
	b.WriteString(cfg.Greeting)
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf(cfg.Intro, ts.In(loc).Format(BackupTimestampLayout)))
	b.WriteString("\n\n")

	for _, o := range outcomes {
		if !o.Published() {
			continue
		}
		b.WriteString(fmt.Sprintf(cfg.Section, o.Label))
		b.WriteString("\n")
		if len(o.Changes) == 0 {
			b.WriteString(cfg.NoChanges)
			b.WriteString("\n")
		}
		for _, c := range o.Changes {
			b.WriteString(FormatChange(c))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	for _, o := range outcomes {
		if o.Published() {
			continue
		}
		b.WriteString(fmt.Sprintf(cfg.Failed, o.Label, o.Phase))
		b.WriteString("\n")
		b.WriteString("• ")
		b.WriteString(FormatUserError(o.Err))
		b.WriteString("\n\n")
	}

	b.WriteString(cfg.Closing)
	return b.String()
}

// FormatChange renders one change as a report bullet.
func FormatChange(c ChangeRecord) string {
	return fmt.Sprintf("• %s: %s %q → %q", c.Label, c.Column, c.Old, c.New)
}
