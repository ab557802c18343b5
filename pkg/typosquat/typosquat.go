// Package typosquat flags declared dependencies whose names sit within a few
// edits of a popular package.
package typosquat

import (
	"context"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/fulmenhq/preflight/pkg/findings"
	"github.com/fulmenhq/preflight/pkg/lockfile"
)

// shortNameLength is the popular-name length below which only one edit is tolerated.
const shortNameLength = 5

// Threshold returns the largest edit distance flagged against popular.
func Threshold(popular string) int {
	if len([]rune(popular)) < shortNameLength {
		return 1
	}
	return 2
}

// Check compares every declared name with every popular name that differs
// from it. Only an identical pair is exempt, so a popular package that sits
// close to another popular one (react and preact) is still reported. Each
// flagged pair yields one high-severity finding.
func Check(declared, popular []string) []findings.Finding {
	var out []findings.Finding
	for _, name := range declared {
		lname := strings.ToLower(name)
		if lname == "" {
			continue
		}
		for _, p := range popular {
			lp := strings.ToLower(p)
			if lp == lname {
				continue
			}
			dist := levenshtein.ComputeDistance(lname, lp)
			if dist > Threshold(lp) {
				continue
			}
			out = append(out, findings.Finding{
				Kind:     findings.KindTyposquat,
				Label:    "Possible Typosquat",
				File:     lockfile.ManifestFile,
				Severity: findings.SeverityHigh,
				Snippet:  name,
				Description: fmt.Sprintf("Dependency %q is %d edit(s) away from popular package %q",
					name, dist, p),
			})
		}
	}
	return out
}

// Detector runs Check against a shared popularity list.
type Detector struct {
	popular *PopularityService
}

// NewDetector creates a detector backed by svc.
func NewDetector(svc *PopularityService) *Detector {
	return &Detector{popular: svc}
}

// Check loads the popularity list (once per process) and compares declared against it.
func (d *Detector) Check(ctx context.Context, declared []string) []findings.Finding {
	if len(declared) == 0 {
		return nil
	}
	return Check(declared, d.popular.Names(ctx))
}
