package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/fulmenhq/preflight/pkg/cooling"
	"github.com/fulmenhq/preflight/pkg/findings"
	"github.com/fulmenhq/preflight/pkg/lockfile"
	"github.com/fulmenhq/preflight/pkg/logger"
	"github.com/fulmenhq/preflight/pkg/registry"
)

var violationLabels = map[cooling.ViolationType]string{
	cooling.AgeViolation:      "Brand New Package",
	cooling.DownloadViolation: "Extremely Low Downloads",
}

func (a *Auditor) auditReputation(ctx context.Context, deps []lockfile.Dependency, direct []string) []findings.Finding {
	if a.registry == nil || len(direct) == 0 {
		return nil
	}
	if len(deps) >= a.cfg.ReputationCeiling {
		logger.Info("Skipping reputation checks for large dependency tree",
			logger.Int("dependencies", len(deps)),
			logger.Int("ceiling", a.cfg.ReputationCeiling))
		return nil
	}

	perPackage := make([][]findings.Finding, len(direct))
	var g errgroup.Group
	for i, name := range direct {
		g.Go(func() error {
			perPackage[i] = a.checkPackage(ctx, name)
			return nil
		})
	}
	_ = g.Wait()

	var out []findings.Finding
	for _, f := range perPackage {
		out = append(out, f...)
	}
	return out
}

func (a *Auditor) checkPackage(ctx context.Context, name string) []findings.Finding {
	var info *registry.PackageInfo
	err := a.limiter.Do(ctx, a.cfg.Timeouts.Metadata, func(ctx context.Context) error {
		var err error
		info, err = a.registry.PackageInfo(ctx, name)
		return err
	})
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return []findings.Finding{notFoundFinding(name)}
	case err != nil:
		logger.Debug("Reputation lookup failed", logger.String("package", name), logger.Err(err))
		return nil
	}

	pkg := cooling.Package{Name: name, Created: info.Created}
	if !a.checker.IsException(name) {
		var weekly int
		err = a.limiter.Do(ctx, a.cfg.Timeouts.Downloads, func(ctx context.Context) error {
			var err error
			weekly, err = a.registry.WeeklyDownloads(ctx, name)
			return err
		})
		if err == nil {
			pkg.WeeklyDownloads = weekly
			pkg.DownloadsKnown = true
		} else {
			logger.Trace("Download stats unavailable", logger.String("package", name), logger.Err(err))
		}
	}

	result := a.checker.Check(pkg)
	out := make([]findings.Finding, 0, len(result.Violations))
	for _, v := range result.Violations {
		out = append(out, findings.Finding{
			Kind:        findings.KindReputation,
			Label:       violationLabels[v.Type],
			Severity:    v.Severity,
			Snippet:     name,
			Description: v.Message,
		})
	}
	return out
}

// notFoundFinding: an unknown scoped name is most likely a private package,
// an unknown public name may have been pulled after a malware report.
func notFoundFinding(name string) findings.Finding {
	if strings.HasPrefix(name, "@") {
		return findings.Finding{
			Kind:        findings.KindReputation,
			Label:       "Package Not Found",
			Severity:    findings.SeverityLow,
			Snippet:     name,
			Description: fmt.Sprintf("Scoped package %s is not on the public registry; likely private", name),
		}
	}
	return findings.Finding{
		Kind:        findings.KindReputation,
		Label:       "Package Not Found",
		Severity:    findings.SeverityCritical,
		Snippet:     name,
		Description: fmt.Sprintf("Package %s does not exist on the public registry; possible malware or typosquat that was removed", name),
	}
}
