package work

import (
	"crypto/sha256"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/fulmenhq/preflight/pkg/ignore"
	"github.com/fulmenhq/preflight/pkg/logger"
)

// DefaultExtensions are the file types scanned when none are configured.
var DefaultExtensions = []string{"js", "ts", "jsx", "tsx", "json"}

// WorkItem represents a single file to be processed
type WorkItem struct {
	ID          string `json:"id"`
	Path        string `json:"path"` // root-relative, slash separated
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	// Stream marks files above the size threshold; they are read line by line.
	Stream bool `json:"stream"`
}

// Plan represents the complete execution plan
type Plan struct {
	Root          string    `json:"root"`
	Timestamp     time.Time `json:"timestamp"`
	TotalFiles    int       `json:"total_files"`
	FilteredFiles int       `json:"filtered_files"`
	IgnoredPaths  int       `json:"ignored_paths"`
}

// Statistics provides statistical information about the work plan
type Statistics struct {
	FilesByType      map[string]int `json:"files_by_type"`
	SizeDistribution SizeStats      `json:"size_distribution"`
	StreamedFiles    int            `json:"streamed_files"`
}

// SizeStats provides file size statistics
type SizeStats struct {
	MinSize   int64   `json:"min_size"`
	MaxSize   int64   `json:"max_size"`
	AvgSize   float64 `json:"avg_size"`
	TotalSize int64   `json:"total_size"`
}

// WorkManifest represents the complete work plan
type WorkManifest struct {
	Plan       Plan       `json:"plan"`
	WorkItems  []WorkItem `json:"work_items"`
	Statistics Statistics `json:"statistics"`
}

// PlannerConfig configures the work planner
type PlannerConfig struct {
	Root       string
	Extensions []string
	// MaxFileSize is the threshold above which items are marked Stream.
	MaxFileSize     int64
	ExcludePatterns []string // doublestar globs, root-relative
	NoIgnore        bool     // Disable .preflightignore/.gitignore matching entirely
	Verbose         bool     // Enable verbose logging for skipped files
}

// Planner handles work planning and manifest generation
type Planner struct {
	config        PlannerConfig
	include       string
	ignoreMatcher *ignore.Matcher
}

// NewPlanner creates a new work planner
func NewPlanner(config PlannerConfig) *Planner {
	if len(config.Extensions) == 0 {
		config.Extensions = DefaultExtensions
	}
	planner := &Planner{config: config, include: IncludePattern(config.Extensions)}

	if !config.NoIgnore {
		if matcher, err := ignore.NewMatcher(config.Root); err != nil {
			logger.Warn("Failed to initialize ignore matcher", logger.Err(err))
		} else {
			planner.ignoreMatcher = matcher
		}
	}
	return planner
}

// IncludePattern builds the doublestar pattern selecting exts, e.g. **/*.{js,ts}.
func IncludePattern(exts []string) string {
	cleaned := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			cleaned = append(cleaned, e)
		}
	}
	if len(cleaned) == 1 {
		return "**/*." + cleaned[0]
	}
	return "**/*.{" + strings.Join(cleaned, ",") + "}"
}

// GenerateManifest walks the root and returns every selected file.
func (p *Planner) GenerateManifest() (*WorkManifest, error) {
	files, ignored, err := p.discoverFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	items := make([]WorkItem, 0, len(files))
	for _, f := range files {
		items = append(items, p.newWorkItem(f.path, f.size))
	}

	manifest := &WorkManifest{
		Plan: Plan{
			Root:          p.config.Root,
			Timestamp:     time.Now(),
			TotalFiles:    len(files) + ignored,
			FilteredFiles: len(items),
			IgnoredPaths:  ignored,
		},
		WorkItems:  items,
		Statistics: calculateStatistics(items),
	}

	logger.Debug("Generated work manifest",
		logger.Int("items", len(items)),
		logger.Int("ignored", ignored))
	return manifest, nil
}

type discovered struct {
	path string
	size int64
}

// discoverFiles finds all files matching the criteria, sorted by path.
func (p *Planner) discoverFiles() ([]discovered, int, error) {
	var files []discovered
	ignored := 0

	err := filepath.WalkDir(p.config.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// The root itself must be readable; anything below is skipped
			if path == p.config.Root {
				return err
			}
			logger.Debug("Skipping unreadable path", logger.String("path", path), logger.Err(err))
			return nil
		}

		rel, relErr := filepath.Rel(p.config.Root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if p.ignoreMatcher != nil && p.ignoreMatcher.IsIgnored(rel, true) {
				if p.config.Verbose {
					logger.Debug("Skipping directory: matches ignore pattern", logger.String("path", rel))
				}
				ignored++
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		if !p.shouldIncludeFile(rel) {
			return nil
		}
		if p.ignoreMatcher != nil && p.ignoreMatcher.IsIgnored(rel, false) {
			ignored++
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logger.Debug("Skipping file that can't be stat'd", logger.String("path", rel), logger.Err(err))
			return nil
		}
		files = append(files, discovered{path: rel, size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	return files, ignored, nil
}

// shouldIncludeFile determines if a root-relative path should be included
func (p *Planner) shouldIncludeFile(rel string) bool {
	// Extensions are matched case-insensitively
	if ok, _ := doublestar.Match(p.include, strings.ToLower(rel)); !ok {
		return false
	}
	for _, pattern := range p.config.ExcludePatterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			if p.config.Verbose {
				logger.Debug("Skipping file: matches exclude pattern",
					logger.String("path", rel), logger.String("pattern", pattern))
			}
			return false
		}
	}
	return true
}

func (p *Planner) newWorkItem(rel string, size int64) WorkItem {
	sum := sha256.Sum256([]byte(rel))
	return WorkItem{
		ID:          fmt.Sprintf("%x", sum[:6]),
		Path:        rel,
		ContentType: ContentType(rel),
		Size:        size,
		Stream:      p.config.MaxFileSize > 0 && size > p.config.MaxFileSize,
	}
}

// ContentType determines content type from file extension
func ContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".js", ".jsx", ".mjs", ".cjs":
		return "javascript"
	case ".ts", ".tsx", ".mts", ".cts":
		return "typescript"
	default:
		return "unknown"
	}
}

// calculateStatistics calculates statistical information
func calculateStatistics(items []WorkItem) Statistics {
	stats := Statistics{FilesByType: make(map[string]int)}

	var totalSize int64
	var minSize, maxSize int64 = -1, 0
	for _, item := range items {
		stats.FilesByType[item.ContentType]++
		if item.Stream {
			stats.StreamedFiles++
		}
		totalSize += item.Size
		if minSize == -1 || item.Size < minSize {
			minSize = item.Size
		}
		if item.Size > maxSize {
			maxSize = item.Size
		}
	}

	if len(items) > 0 {
		stats.SizeDistribution = SizeStats{
			MinSize:   minSize,
			MaxSize:   maxSize,
			AvgSize:   float64(totalSize) / float64(len(items)),
			TotalSize: totalSize,
		}
	}
	return stats
}
