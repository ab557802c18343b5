/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/

// Package scan walks a project tree, runs the content matcher over every
// selected file and, once the root manifest turns up, runs the dependency
// checks alongside the remaining file work.
package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fulmenhq/preflight/pkg/audit"
	"github.com/fulmenhq/preflight/pkg/content"
	"github.com/fulmenhq/preflight/pkg/findings"
	"github.com/fulmenhq/preflight/pkg/lockfile"
	"github.com/fulmenhq/preflight/pkg/logger"
	"github.com/fulmenhq/preflight/pkg/safeio"
	"github.com/fulmenhq/preflight/pkg/typosquat"
	"github.com/fulmenhq/preflight/pkg/work"
)

// ErrTargetUnavailable is returned when the scan root cannot be resolved or read.
var ErrTargetUnavailable = errors.New("scan target unavailable")

// ProgressReporter receives per-file progress.
type ProgressReporter interface {
	SetTotal(total int)
	Increment()
}

// Options tunes a single scan.
type Options struct {
	// SkipNetworkAudit disables the registry and vulnerability lookups.
	SkipNetworkAudit bool
	Workers          int
	// StreamThreshold is the size above which files are read line by line.
	// Zero means content.MaxFileSize.
	StreamThreshold int64
	Extensions      []string
	ExcludePatterns []string
	NoIgnore        bool
	Progress        ProgressReporter
}

// Scanner wires the per-file matcher to the dependency checks. Either
// collaborator may be nil, which skips that check.
type Scanner struct {
	auditor  *audit.Auditor
	detector *typosquat.Detector
}

// New creates a Scanner.
func New(auditor *audit.Auditor, detector *typosquat.Detector) *Scanner {
	return &Scanner{auditor: auditor, detector: detector}
}

// Discover lists the files under root that a scan would inspect.
func Discover(root string, opts Options) (*work.WorkManifest, error) {
	planner := work.NewPlanner(work.PlannerConfig{
		Root:            root,
		Extensions:      opts.Extensions,
		MaxFileSize:     streamThreshold(opts),
		ExcludePatterns: opts.ExcludePatterns,
		NoIgnore:        opts.NoIgnore,
	})
	return planner.GenerateManifest()
}

// Scan resolves target, discovers its files and scans them.
func (s *Scanner) Scan(ctx context.Context, target string, opts Options) (*Report, error) {
	root, err := resolveTarget(target)
	if err != nil {
		return nil, err
	}
	manifest, err := Discover(root, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTargetUnavailable, err)
	}
	return s.ScanFiles(ctx, root, manifest.WorkItems, opts)
}

// ScanFiles scans an already selected list of root-relative files.
func (s *Scanner) ScanFiles(ctx context.Context, root string, items []work.WorkItem, opts Options) (*Report, error) {
	root, err := resolveTarget(root)
	if err != nil {
		return nil, err
	}

	report := &Report{
		ID:           uuid.New().String(),
		Target:       root,
		StartedAt:    time.Now(),
		FilesScanned: len(items),
		NetworkAudit: !opts.SkipNetworkAudit && s.auditor != nil,
	}
	logger.Info("Starting scan",
		logger.String("target", root),
		logger.Int("files", len(items)),
		logger.Bool("network_audit", report.NetworkAudit))

	deps := &dependencyStage{scanner: s, root: root, skipNetwork: opts.SkipNetworkAudit}

	if opts.Progress != nil {
		opts.Progress.SetTotal(len(items))
	}
	dispatcher := work.NewDispatcher(work.DispatcherConfig{
		MaxWorkers: opts.Workers,
		ProgressCallback: func(work.ExecutionResult) {
			if opts.Progress != nil {
				opts.Progress.Increment()
			}
		},
	}, work.ProcessorFunc(func(ctx context.Context, item *work.WorkItem) work.ExecutionResult {
		if item.Path == lockfile.ManifestFile {
			deps.start(ctx)
		}
		return scanFile(root, item)
	}))

	summary := dispatcher.ExecuteManifest(ctx, &work.WorkManifest{WorkItems: items})

	var all []findings.Finding
	for _, r := range summary.Results {
		all = append(all, r.Findings...)
	}
	all = append(all, deps.wait()...)

	findings.Sort(all)
	report.Findings = all
	report.Counts = findings.CountBySeverity(all)
	report.DependencySource = deps.source
	report.DependencyCount = len(deps.dependencies)
	report.Duration = time.Since(report.StartedAt)

	logger.Info("Scan complete",
		logger.Int("findings", len(all)),
		logger.Int("failed_files", summary.Failed),
		logger.Duration("elapsed", report.Duration))
	return report, nil
}

func resolveTarget(target string) (string, error) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTargetUnavailable, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTargetUnavailable, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrTargetUnavailable, abs)
	}
	return abs, nil
}

func streamThreshold(opts Options) int64 {
	if opts.StreamThreshold > 0 {
		return opts.StreamThreshold
	}
	return content.MaxFileSize
}

// scanFile runs the matcher over one file. Unreadable files yield nothing.
func scanFile(root string, item *work.WorkItem) work.ExecutionResult {
	var (
		found []findings.Finding
		err   error
	)
	if item.Stream {
		found, err = scanStream(root, item.Path)
	} else {
		var data []byte
		data, err = safeio.ReadFileContained(root, item.Path)
		if err == nil {
			found = content.Analyze(string(data), item.Path)
		}
	}
	if err != nil {
		logger.Debug("Skipping unreadable file", logger.String("path", item.Path), logger.Err(err))
		return work.ExecutionResult{Success: false, Error: err.Error()}
	}

	for i := range found {
		found[i] = found[i].WithFile(item.Path)
	}
	return work.ExecutionResult{Success: true, Findings: found}
}

func scanStream(root, rel string) ([]findings.Finding, error) {
	f, err := safeio.OpenContained(root, rel)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return content.AnalyzeStream(f, rel)
}

// LifecycleFindings flags install-time scripts declared in the manifest.
func LifecycleFindings(m *lockfile.Manifest) []findings.Finding {
	if m == nil {
		return nil
	}
	var out []findings.Finding
	for _, name := range lockfile.LifecycleScripts {
		body := strings.TrimSpace(m.Scripts[name])
		if body == "" {
			continue
		}
		out = append(out, findings.Finding{
			Kind:        findings.KindLifecycleScript,
			Label:       "Lifecycle Script",
			File:        lockfile.ManifestFile,
			Severity:    findings.SeverityCritical,
			Snippet:     findings.Snippet(body),
			Description: fmt.Sprintf("%q runs automatically when dependencies are installed", name),
		})
	}
	return out
}

// dependencyStage runs at most once per scan, triggered by the root manifest.
// Local checks finish inside start; the audit keeps running in the group.
type dependencyStage struct {
	scanner     *Scanner
	root        string
	skipNetwork bool

	once         sync.Once
	group        errgroup.Group
	local        []findings.Finding
	audited      []findings.Finding
	source       string
	dependencies []lockfile.Dependency
}

func (d *dependencyStage) start(ctx context.Context) {
	d.once.Do(func() { d.run(ctx) })
}

func (d *dependencyStage) run(ctx context.Context) {
	manifest, err := lockfile.ReadManifest(d.root)
	if err != nil {
		logger.Debug("Manifest not usable", logger.String("file", lockfile.ManifestFile), logger.Err(err))
	}
	d.local = append(d.local, LifecycleFindings(manifest)...)

	if res := lockfile.Extract(d.root); res != nil {
		d.source, d.dependencies = res.Source, res.Dependencies
	} else if manifest != nil {
		d.source, d.dependencies = lockfile.ManifestFile, lockfile.FromManifest(manifest)
	}
	if d.source != "" {
		logger.Info("Dependencies extracted",
			logger.String("source", d.source),
			logger.Int("count", len(d.dependencies)))
	}

	declared := manifest.DeclaredNames()
	if d.scanner.detector != nil && len(declared) > 0 {
		d.local = append(d.local, d.scanner.detector.Check(ctx, declared)...)
	}

	if d.skipNetwork || d.scanner.auditor == nil || len(d.dependencies) == 0 {
		return
	}
	deps, source := d.dependencies, d.source
	d.group.Go(func() error {
		found := d.scanner.auditor.Audit(ctx, deps, declared)
		for i := range found {
			found[i] = found[i].WithFile(source)
		}
		d.audited = found
		return nil
	})
}

// wait blocks until the audit, if any, is done and returns every dependency
// finding.
func (d *dependencyStage) wait() []findings.Finding {
	_ = d.group.Wait()
	out := make([]findings.Finding, 0, len(d.local)+len(d.audited))
	out = append(out, d.local...)
	return append(out, d.audited...)
}
