package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/fulmenhq/preflight/pkg/findings"
	"github.com/fulmenhq/preflight/pkg/scan"
)

const (
	colorReset       = "\033[0m"
	descriptionWidth = 100
)

var severityColors = map[findings.Severity]string{
	findings.SeverityCritical: "\033[1;31m",
	findings.SeverityHigh:     "\033[31m",
	findings.SeverityMedium:   "\033[33m",
	findings.SeverityLow:      "\033[36m",
}

var severityOrder = []findings.Severity{
	findings.SeverityCritical,
	findings.SeverityHigh,
	findings.SeverityMedium,
	findings.SeverityLow,
}

// renderText writes the human-readable report, grouped by severity.
func renderText(w io.Writer, r *scan.Report, color bool) {
	title := cases.Title(language.English)

	audit := "on"
	if !r.NetworkAudit {
		audit = "off"
	}
	source := r.DependencySource
	if source == "" {
		source = "none"
	}
	_, _ = fmt.Fprintf(w, "Preflight scan of %s\n", r.Target)
	_, _ = fmt.Fprintf(w, "Files: %d | Dependencies: %d (%s) | Network audit: %s | %s\n\n",
		r.FilesScanned, r.DependencyCount, source, audit, r.Duration.Round(time.Millisecond))

	if len(r.Findings) == 0 {
		_, _ = fmt.Fprintln(w, "No findings.")
		return
	}

	labelWidth, locWidth := 0, 0
	for _, f := range r.Findings {
		labelWidth = max(labelWidth, runewidth.StringWidth(f.Label))
		locWidth = max(locWidth, runewidth.StringWidth(location(f)))
	}

	for _, sev := range severityOrder {
		group := bySeverity(r.Findings, sev)
		if len(group) == 0 {
			continue
		}
		header := fmt.Sprintf("%s (%d)", title.String(string(sev)), len(group))
		if color {
			header = severityColors[sev] + header + colorReset
		}
		_, _ = fmt.Fprintln(w, header)

		for _, f := range group {
			_, _ = fmt.Fprintf(w, "  %s  %s  %s\n",
				runewidth.FillRight(location(f), locWidth),
				runewidth.FillRight(f.Label, labelWidth),
				runewidth.Truncate(f.Description, descriptionWidth, "…"))
			if f.Snippet != "" && f.Kind != findings.KindVulnerability {
				_, _ = fmt.Fprintf(w, "      > %s\n", f.Snippet)
			}
			if f.AdvisoryURL != "" {
				_, _ = fmt.Fprintf(w, "      %s\n", f.AdvisoryURL)
			}
			for _, ref := range f.References {
				_, _ = fmt.Fprintf(w, "      %s\n", ref)
			}
		}
		_, _ = fmt.Fprintln(w)
	}

	c := r.Counts
	_, _ = fmt.Fprintf(w, "Summary: critical=%d high=%d medium=%d low=%d total=%d\n",
		c[findings.SeverityCritical], c[findings.SeverityHigh], c[findings.SeverityMedium],
		c[findings.SeverityLow], len(r.Findings))
}

func location(f findings.Finding) string {
	file := f.File
	if file == "" {
		file = "-"
	}
	if f.Line > 0 {
		return fmt.Sprintf("%s:%d", file, f.Line)
	}
	return file
}

func bySeverity(list []findings.Finding, sev findings.Severity) []findings.Finding {
	var out []findings.Finding
	for _, f := range list {
		if strings.EqualFold(string(f.Severity), string(sev)) {
			out = append(out, f)
		}
	}
	return out
}
