/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/

// Package audit runs the network-backed checks over a dependency list:
// batched vulnerability lookups for every dependency and reputation lookups
// for directly declared ones.
package audit

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fulmenhq/preflight/pkg/cooling"
	"github.com/fulmenhq/preflight/pkg/findings"
	"github.com/fulmenhq/preflight/pkg/lockfile"
	"github.com/fulmenhq/preflight/pkg/logger"
	"github.com/fulmenhq/preflight/pkg/registry"
)

const (
	DefaultBatchSize         = 500
	DefaultReputationCeiling = 200

	DefaultMetadataTimeout  = 5 * time.Second
	DefaultDownloadsTimeout = 3 * time.Second
	DefaultDetailTimeout    = 5 * time.Second
	DefaultBatchTimeout     = 10 * time.Second
)

// Registry answers package reputation questions.
type Registry interface {
	PackageInfo(ctx context.Context, name string) (*registry.PackageInfo, error)
	WeeklyDownloads(ctx context.Context, name string) (int, error)
}

// VulnerabilityDB answers which advisories affect which packages.
type VulnerabilityDB interface {
	QueryBatch(ctx context.Context, deps []lockfile.Dependency) ([][]string, error)
	Vulnerability(ctx context.Context, id string) (*registry.Advisory, error)
}

// Timeouts bound each outbound call once it holds a limiter slot.
type Timeouts struct {
	Metadata  time.Duration
	Downloads time.Duration
	Detail    time.Duration
	Batch     time.Duration
}

// Config tunes an Auditor. Zero values pick the defaults.
type Config struct {
	BatchSize         int
	ReputationCeiling int
	Timeouts          Timeouts
	Policy            *cooling.Policy
	Now               func() time.Time
}

// Auditor is stateless between Audit calls; every call is a fresh fan-out.
type Auditor struct {
	registry Registry
	vulns    VulnerabilityDB
	limiter  *registry.Limiter
	checker  *cooling.Checker
	cfg      Config
}

// New creates an Auditor. Either backend may be nil to skip its path. All
// outbound calls share limiter; nil gets a fresh one at the default cap.
func New(reg Registry, vulns VulnerabilityDB, limiter *registry.Limiter, cfg Config) *Auditor {
	if limiter == nil {
		limiter = registry.NewLimiter(registry.DefaultConcurrency)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.ReputationCeiling <= 0 {
		cfg.ReputationCeiling = DefaultReputationCeiling
	}
	if cfg.Timeouts.Metadata <= 0 {
		cfg.Timeouts.Metadata = DefaultMetadataTimeout
	}
	if cfg.Timeouts.Downloads <= 0 {
		cfg.Timeouts.Downloads = DefaultDownloadsTimeout
	}
	if cfg.Timeouts.Detail <= 0 {
		cfg.Timeouts.Detail = DefaultDetailTimeout
	}
	if cfg.Timeouts.Batch <= 0 {
		cfg.Timeouts.Batch = DefaultBatchTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	policy := cooling.DefaultPolicy()
	if cfg.Policy != nil {
		policy = *cfg.Policy
	}

	return &Auditor{
		registry: reg,
		vulns:    vulns,
		limiter:  limiter,
		checker:  cooling.NewChecker(policy).WithClock(cfg.Now),
		cfg:      cfg,
	}
}

// Limiter exposes the shared outbound limiter.
func (a *Auditor) Limiter() *registry.Limiter {
	return a.limiter
}

// Audit checks deps for known vulnerabilities and the direct dependency
// names for reputation problems. Network failures never surface as errors;
// they only reduce what is reported.
func (a *Auditor) Audit(ctx context.Context, deps []lockfile.Dependency, direct []string) []findings.Finding {
	if len(deps) == 0 && len(direct) == 0 {
		return nil
	}
	start := time.Now()

	var vulnFindings, repFindings []findings.Finding
	var g errgroup.Group
	g.Go(func() error {
		vulnFindings = a.auditVulnerabilities(ctx, deps)
		return nil
	})
	g.Go(func() error {
		repFindings = a.auditReputation(ctx, deps, direct)
		return nil
	})
	_ = g.Wait()

	out := append(vulnFindings, repFindings...)
	logger.Info("Dependency audit complete",
		logger.Int("dependencies", len(deps)),
		logger.Int("vulnerabilities", len(vulnFindings)),
		logger.Int("reputation", len(repFindings)),
		logger.Int("calls", a.limiter.Calls()),
		logger.Duration("elapsed", time.Since(start)))
	return out
}
