package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/fulmenhq/preflight/pkg/audit"
	"github.com/fulmenhq/preflight/pkg/config"
	"github.com/fulmenhq/preflight/pkg/exitcode"
	"github.com/fulmenhq/preflight/pkg/findings"
	"github.com/fulmenhq/preflight/pkg/logger"
	"github.com/fulmenhq/preflight/pkg/registry"
	"github.com/fulmenhq/preflight/pkg/safeio"
	"github.com/fulmenhq/preflight/pkg/scan"
	"github.com/fulmenhq/preflight/pkg/typosquat"
)

type scanFlags struct {
	format      string
	output      string
	failOn      string
	workers     int
	skipNetwork bool
	noIgnore    bool
	noProgress  bool
	exclude     []string
}

func newScanCommand() *cobra.Command {
	f := &scanFlags{}
	cmd := &cobra.Command{
		Use:   "scan [target]",
		Short: "Scan a project tree before installing its dependencies",
		Long: `Scan inspects JavaScript and TypeScript sources, the root package.json and
the first recognized lockfile. Network checks query the npm registry and
OSV for every resolved dependency unless --skip-network is given.`,
		Example: `  preflight scan                          # Scan the current directory
  preflight scan ./repo --fail-on high    # Exit 10 on any high or critical finding
  preflight scan --format json -o out.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "."
			if len(args) > 0 {
				target = args[0]
			}
			return runScan(cmd, target, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.format, "format", "f", "text", "Output format (text|json)")
	flags.StringVarP(&f.output, "output", "o", "", "Write the report to a file instead of stdout")
	flags.StringVar(&f.failOn, "fail-on", "", "Exit non-zero if any finding is at or above severity (critical, high, medium, low)")
	flags.IntVar(&f.workers, "workers", 0, "Number of file scan workers (default from config)")
	flags.BoolVar(&f.skipNetwork, "skip-network", false, "Skip registry and vulnerability lookups")
	flags.BoolVar(&f.noIgnore, "no-ignore", false, "Disable .gitignore/.preflightignore processing")
	flags.BoolVar(&f.noProgress, "no-progress", false, "Hide the progress bar")
	flags.StringSliceVar(&f.exclude, "exclude", nil, "Glob patterns to exclude (repeatable)")
	return cmd
}

func runScan(cmd *cobra.Command, target string, f *scanFlags) error {
	format := strings.ToLower(strings.TrimSpace(f.format))
	if format != "text" && format != "json" {
		return exitcode.Wrap(exitcode.UsageError, fmt.Errorf("invalid format %q (want text or json)", f.format))
	}

	cfg, err := config.Load(target)
	if err != nil {
		return exitcode.Wrap(exitcode.ConfigError, err)
	}
	if cfg.Source != "" {
		logger.Debug("Loaded project config", logger.String("path", cfg.Source))
	}
	applyScanFlags(cmd.Flags(), f, cfg)

	var threshold findings.Severity
	if cfg.FailOn != "" {
		threshold, err = findings.ParseSeverity(cfg.FailOn)
		if err != nil {
			return exitcode.Wrap(exitcode.UsageError, fmt.Errorf("invalid fail-on severity: %w", err))
		}
	}

	// Keep stdout clean for machine-readable output
	if format == "json" && f.output == "" {
		logger.SetOutput(io.Discard)
	}

	scanner := buildScanner(cfg, f.skipNetwork)
	opts := scan.Options{
		SkipNetworkAudit: f.skipNetwork,
		Workers:          cfg.Scan.Workers,
		StreamThreshold:  cfg.Scan.MaxFileSize,
		Extensions:       cfg.Scan.Extensions,
		ExcludePatterns:  f.exclude,
		NoIgnore:         f.noIgnore,
	}
	if format == "text" && !f.noProgress {
		opts.Progress = newBarProgressReporter(cmd.ErrOrStderr(), "Scanning files")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	report, err := scanner.Scan(ctx, target, opts)
	if err != nil {
		if errors.Is(err, scan.ErrTargetUnavailable) {
			return exitcode.Wrap(exitcode.FileSystemError, err)
		}
		return exitcode.Wrap(exitcode.GeneralError, err)
	}

	noColor, _ := cmd.Flags().GetBool("no-color")
	var buf bytes.Buffer
	switch format {
	case "json":
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return exitcode.Wrap(exitcode.GeneralError, fmt.Errorf("failed to encode report: %w", err))
		}
		buf.Write(data)
		buf.WriteByte('\n')
	default:
		renderText(&buf, report, !noColor && f.output == "")
	}

	if f.output != "" {
		path := filepath.Clean(f.output)
		if err := safeio.WriteFilePreservePerms(path, buf.Bytes()); err != nil {
			return exitcode.Wrap(exitcode.FileSystemError, fmt.Errorf("failed to write report: %w", err))
		}
		logger.Info("Report written", logger.String("path", path))
	} else if _, err := cmd.OutOrStdout().Write(buf.Bytes()); err != nil {
		return exitcode.Wrap(exitcode.GeneralError, err)
	}

	if threshold != "" && report.FailsAt(threshold) {
		return exitcode.Wrap(exitcode.FindingsAtThreshold,
			fmt.Errorf("found findings at or above %s severity", threshold))
	}
	return nil
}

// applyScanFlags lets explicitly set flags win over file and env config.
func applyScanFlags(flags *pflag.FlagSet, f *scanFlags, cfg *config.Config) {
	if flags.Changed("workers") {
		cfg.Scan.Workers = f.workers
	}
	if flags.Changed("fail-on") {
		cfg.FailOn = f.failOn
	}
}

// buildScanner wires the registry clients, the shared limiter and the
// popularity source from cfg.
func buildScanner(cfg *config.Config, offline bool) *scan.Scanner {
	limiter := registry.NewLimiter(cfg.Audit.Concurrency)
	npm := registry.NewNPMClient(cfg.Audit.Endpoints.Registry, cfg.Audit.Endpoints.Downloads)
	osv := registry.NewOSVClient(cfg.Audit.Endpoints.OSV)

	policy := cfg.Reputation
	auditor := audit.New(npm, osv, limiter, audit.Config{
		BatchSize:         cfg.Audit.BatchSize,
		ReputationCeiling: cfg.Audit.ReputationCeiling,
		Timeouts: audit.Timeouts{
			Metadata:  cfg.Audit.Timeouts.Metadata,
			Downloads: cfg.Audit.Timeouts.Downloads,
			Detail:    cfg.Audit.Timeouts.Detail,
			Batch:     cfg.Audit.Timeouts.Batch,
		},
		Policy: &policy,
	})

	var fetch typosquat.Fetcher
	if cfg.Typosquat.Live && !offline {
		fetch = func(ctx context.Context) ([]string, error) {
			var names []string
			err := limiter.Do(ctx, cfg.Typosquat.Timeout, func(ctx context.Context) error {
				var err error
				names, err = npm.PopularPackages(ctx)
				return err
			})
			return names, err
		}
	}
	detector := typosquat.NewDetector(typosquat.NewPopularityService(fetch))
	return scan.New(auditor, detector)
}
