/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/

// Package findings defines the record every preflight check emits.
package findings

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Kind tags which check produced a finding.
type Kind string

const (
	KindPattern         Kind = "pattern"
	KindHeuristic       Kind = "heuristic"
	KindSyntaxRule      Kind = "syntax_rule"
	KindLifecycleScript Kind = "lifecycle_script"
	KindTyposquat       Kind = "typosquat"
	KindReputation      Kind = "reputation"
	KindVulnerability   Kind = "vulnerability"
)

// MaxSnippetLength bounds Snippet in characters.
const MaxSnippetLength = 100

// Finding is one reported signal. Line is 1-based, 0 when not line-scoped.
// File is "" for findings that are not tied to a file.
type Finding struct {
	Kind        Kind     `json:"kind"`
	Label       string   `json:"label"`
	File        string   `json:"file"`
	Line        int      `json:"line"`
	Severity    Severity `json:"severity"`
	Snippet     string   `json:"snippet,omitempty"`
	Description string   `json:"description"`

	PackageVersion  string   `json:"packageVersion,omitempty"`
	AdvisoryID      string   `json:"advisoryId,omitempty"`
	AdvisorySummary string   `json:"advisorySummary,omitempty"`
	AdvisoryURL     string   `json:"advisoryUrl,omitempty"`
	FixedVersion    string   `json:"fixedVersion,omitempty"`
	References      []string `json:"references,omitempty"`
}

// WithFile returns a copy of f attributed to file.
func (f Finding) WithFile(file string) Finding {
	f.File = file
	if f.References != nil {
		f.References = append([]string(nil), f.References...)
	}
	return f
}

// Snippet trims s and caps it at MaxSnippetLength characters.
func Snippet(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= MaxSnippetLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxSnippetLength])
}

// Sort orders findings by severity (highest first), then file, line and label.
func Sort(list []Finding) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if ra, rb := a.Severity.Rank(), b.Severity.Rank(); ra != rb {
			return ra > rb
		}
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Label < b.Label
	})
}

// CountBySeverity tallies findings per severity.
func CountBySeverity(list []Finding) map[Severity]int {
	counts := map[Severity]int{
		SeverityCritical: 0,
		SeverityHigh:     0,
		SeverityMedium:   0,
		SeverityLow:      0,
	}
	for _, f := range list {
		counts[f.Severity]++
	}
	return counts
}

// AnyAtLeast reports whether any finding meets threshold.
func AnyAtLeast(list []Finding, threshold Severity) bool {
	for _, f := range list {
		if f.Severity.AtLeast(threshold) {
			return true
		}
	}
	return false
}
