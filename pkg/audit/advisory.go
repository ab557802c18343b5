package audit

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/fulmenhq/preflight/pkg/findings"
	"github.com/fulmenhq/preflight/pkg/registry"
)

var cvePattern = regexp.MustCompile(`^CVE-(\d{4}-\d{4,})$`)

// AdvisoryShape is the severity-bearing form an advisory record arrived in.
// DatabaseSeverityShape and UnknownShape are the only implementations.
type AdvisoryShape interface {
	Severity() findings.Severity
	isAdvisoryShape()
}

// DatabaseSeverityShape is an advisory whose database supplied a severity.
type DatabaseSeverityShape struct {
	Level findings.Severity
}

func (s DatabaseSeverityShape) Severity() findings.Severity { return s.Level }
func (DatabaseSeverityShape) isAdvisoryShape()              {}

// UnknownShape is any other record; severity is guessed from its text.
type UnknownShape struct {
	Text string
}

// Severity scans for severity words, strongest first, and defaults to low.
func (s UnknownShape) Severity() findings.Severity {
	text := strings.ToLower(s.Text)
	switch {
	case strings.Contains(text, "critical"):
		return findings.SeverityCritical
	case strings.Contains(text, "high"):
		return findings.SeverityHigh
	case strings.Contains(text, "medium"), strings.Contains(text, "moderate"):
		return findings.SeverityMedium
	default:
		return findings.SeverityLow
	}
}

func (UnknownShape) isAdvisoryShape() {}

// ClassifyAdvisory picks the shape for adv. A nil advisory is an empty UnknownShape.
func ClassifyAdvisory(adv *registry.Advisory) AdvisoryShape {
	if adv == nil {
		return UnknownShape{}
	}
	if len(adv.DatabaseSpecific) > 0 {
		var db struct {
			Severity string `json:"severity"`
		}
		if json.Unmarshal(adv.DatabaseSpecific, &db) == nil && db.Severity != "" {
			if sev, err := findings.ParseSeverity(db.Severity); err == nil {
				return DatabaseSeverityShape{Level: sev}
			}
		}
	}
	text := string(adv.Raw)
	if text == "" {
		text = adv.Summary + "\n" + adv.Details
	}
	return UnknownShape{Text: text}
}

// FixedVersion returns the greatest "fixed" event across every affected range.
// Versions compare as plain strings, so "10.0.0" sorts below "9.0.0".
func FixedVersion(adv *registry.Advisory) string {
	if adv == nil {
		return ""
	}
	var best string
	for _, aff := range adv.Affected {
		for _, r := range aff.Ranges {
			for _, ev := range r.Events {
				if ev.Fixed != "" && ev.Fixed > best {
					best = ev.Fixed
				}
			}
		}
	}
	return best
}

// CrossReferences returns search links for every CVE alias of adv, two per CVE.
func CrossReferences(adv *registry.Advisory) []string {
	if adv == nil {
		return nil
	}
	ids := append([]string{adv.ID}, adv.Aliases...)
	seen := make(map[string]bool, len(ids))

	var links []string
	for _, id := range ids {
		m := cvePattern.FindStringSubmatch(strings.TrimSpace(id))
		if m == nil || seen[m[0]] {
			continue
		}
		seen[m[0]] = true
		links = append(links,
			fmt.Sprintf("https://www.cvedetails.com/cve/%s/", m[0]),
			fmt.Sprintf("https://www.exploit-db.com/search?cve=%s", m[1]),
		)
	}
	return links
}

func advisoryURL(id string) string {
	return "https://osv.dev/vulnerability/" + id
}
