// Package cooling holds the reputation policy: packages must have existed for
// a minimum period and see a minimum weekly download count before they are
// trusted, unless an exception names them.
package cooling

import (
	"fmt"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/fulmenhq/preflight/pkg/findings"
)

const (
	DefaultMinAgeDays         = 14
	DefaultMinWeeklyDownloads = 50
)

// Exception exempts matching package names from the policy.
type Exception struct {
	Pattern string `mapstructure:"pattern" yaml:"pattern" json:"pattern"`
	Reason  string `mapstructure:"reason" yaml:"reason" json:"reason"`
	// Until is an optional YYYY-MM-DD expiry; the exception lapses after that day.
	Until string `mapstructure:"until" yaml:"until" json:"until"`
}

// Policy is the reputation threshold set.
type Policy struct {
	Enabled            bool        `mapstructure:"enabled"`
	MinAgeDays         int         `mapstructure:"min_age_days"`
	MinWeeklyDownloads int         `mapstructure:"min_weekly_downloads"`
	Exceptions         []Exception `mapstructure:"exceptions"`
}

// DefaultPolicy returns the enabled policy with stock thresholds.
func DefaultPolicy() Policy {
	return Policy{
		Enabled:            true,
		MinAgeDays:         DefaultMinAgeDays,
		MinWeeklyDownloads: DefaultMinWeeklyDownloads,
	}
}

// Package is what the registry told us about one dependency.
type Package struct {
	Name    string
	Created time.Time
	// WeeklyDownloads is only meaningful when DownloadsKnown is set.
	WeeklyDownloads int
	DownloadsKnown  bool
}

// Checker validates packages against the policy
type Checker struct {
	policy Policy
	now    func() time.Time
}

// NewChecker creates a new checker using the wall clock.
func NewChecker(p Policy) *Checker {
	return &Checker{policy: p, now: time.Now}
}

// WithClock replaces the clock, for tests.
func (c *Checker) WithClock(now func() time.Time) *Checker {
	c.now = now
	return c
}

// Violation represents a policy violation
type Violation struct {
	Type     ViolationType
	Severity findings.Severity
	Message  string
	Actual   int
	Expected int
}

type ViolationType string

const (
	AgeViolation      ViolationType = "age_violation"
	DownloadViolation ViolationType = "download_violation"
)

// CheckResult contains the result of a policy check
type CheckResult struct {
	Passed      bool
	Violations  []Violation
	IsException bool
}

// Check validates a package against the policy.
func (c *Checker) Check(pkg Package) *CheckResult {
	if !c.policy.Enabled {
		return &CheckResult{Passed: true}
	}
	if c.IsException(pkg.Name) {
		return &CheckResult{Passed: true, IsException: true}
	}

	var violations []Violation

	// No creation date means nothing to judge
	if !pkg.Created.IsZero() {
		age := c.now().Sub(pkg.Created)
		if age < time.Duration(c.policy.MinAgeDays)*24*time.Hour {
			days := int(age.Hours() / 24)
			if days < 0 {
				days = 0
			}
			violations = append(violations, Violation{
				Type:     AgeViolation,
				Severity: findings.SeverityHigh,
				Message: fmt.Sprintf("Package %s was first published %d days ago (minimum: %d days)",
					pkg.Name, days, c.policy.MinAgeDays),
				Actual:   days,
				Expected: c.policy.MinAgeDays,
			})
		}
	}

	if pkg.DownloadsKnown && pkg.WeeklyDownloads < c.policy.MinWeeklyDownloads {
		violations = append(violations, Violation{
			Type:     DownloadViolation,
			Severity: findings.SeverityMedium,
			Message: fmt.Sprintf("Package %s has %d weekly downloads (minimum: %d)",
				pkg.Name, pkg.WeeklyDownloads, c.policy.MinWeeklyDownloads),
			Actual:   pkg.WeeklyDownloads,
			Expected: c.policy.MinWeeklyDownloads,
		})
	}

	return &CheckResult{
		Passed:     len(violations) == 0,
		Violations: violations,
	}
}

// IsException reports whether an unexpired exception matches name.
func (c *Checker) IsException(name string) bool {
	for _, exc := range c.policy.Exceptions {
		if !matchesPattern(name, exc.Pattern) {
			continue
		}
		if exc.Until != "" {
			until, err := time.Parse("2006-01-02", exc.Until)
			// The exception covers the whole Until day
			if err == nil && c.now().After(until.Add(24*time.Hour)) {
				continue
			}
		}
		return true
	}
	return false
}

// matchesPattern implements glob-style pattern matching
func matchesPattern(name, pattern string) bool {
	if pattern == "" {
		return false
	}
	if matched, err := doublestar.Match(pattern, name); err == nil && matched {
		return true
	}

	// "@org/*" also covers deeper names such as "@org/pkg/sub"
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(name, prefix+"/") {
			return true
		}
	}
	return false
}
