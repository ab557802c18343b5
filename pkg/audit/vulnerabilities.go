package audit

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fulmenhq/preflight/pkg/findings"
	"github.com/fulmenhq/preflight/pkg/lockfile"
	"github.com/fulmenhq/preflight/pkg/logger"
	"github.com/fulmenhq/preflight/pkg/registry"
)

// chunkResult pairs a batch of dependencies with the advisory ids matched
// for each of them. ok is false when the batch query failed.
type chunkResult struct {
	deps []lockfile.Dependency
	ids  [][]string
	ok   bool
}

// Chunk splits deps into consecutive slices of at most size entries.
func Chunk(deps []lockfile.Dependency, size int) [][]lockfile.Dependency {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var chunks [][]lockfile.Dependency
	for start := 0; start < len(deps); start += size {
		end := start + size
		if end > len(deps) {
			end = len(deps)
		}
		chunks = append(chunks, deps[start:end])
	}
	return chunks
}

func (a *Auditor) auditVulnerabilities(ctx context.Context, deps []lockfile.Dependency) []findings.Finding {
	if a.vulns == nil || len(deps) == 0 {
		return nil
	}

	chunks := Chunk(deps, a.cfg.BatchSize)
	results := make([]chunkResult, len(chunks))

	var g errgroup.Group
	for i, chunk := range chunks {
		g.Go(func() error {
			results[i] = a.queryChunk(ctx, i, chunk)
			return nil
		})
	}
	_ = g.Wait()

	details := a.fetchDetails(ctx, uniqueIDs(results))

	var out []findings.Finding
	for _, r := range results {
		if !r.ok {
			continue
		}
		for i, dep := range r.deps {
			for _, id := range r.ids[i] {
				out = append(out, vulnerabilityFinding(dep, id, details[id]))
			}
		}
	}
	return out
}

func (a *Auditor) queryChunk(ctx context.Context, index int, chunk []lockfile.Dependency) chunkResult {
	var ids [][]string
	err := a.limiter.Do(ctx, a.cfg.Timeouts.Batch, func(ctx context.Context) error {
		var err error
		ids, err = a.vulns.QueryBatch(ctx, chunk)
		return err
	})
	if err == nil && len(ids) != len(chunk) {
		err = fmt.Errorf("batch returned %d results for %d packages", len(ids), len(chunk))
	}
	if err != nil {
		logger.Warn("Skipping vulnerability batch",
			logger.Int("batch", index),
			logger.Int("packages", len(chunk)),
			logger.Err(err))
		return chunkResult{deps: chunk}
	}
	return chunkResult{deps: chunk, ids: ids, ok: true}
}

// uniqueIDs returns every advisory id referenced by a successful chunk, once, sorted.
func uniqueIDs(results []chunkResult) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, r := range results {
		for _, perDep := range r.ids {
			for _, id := range perDep {
				if !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// fetchDetails fetches each id once. ids must already be distinct; the map
// write is the only shared state.
func (a *Auditor) fetchDetails(ctx context.Context, ids []string) map[string]*registry.Advisory {
	details := make(map[string]*registry.Advisory, len(ids))
	var mu sync.Mutex
	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			var adv *registry.Advisory
			err := a.limiter.Do(ctx, a.cfg.Timeouts.Detail, func(ctx context.Context) error {
				var err error
				adv, err = a.vulns.Vulnerability(ctx, id)
				return err
			})
			if err != nil {
				logger.Debug("Advisory detail unavailable", logger.String("id", id), logger.Err(err))
				return nil
			}
			mu.Lock()
			details[id] = adv
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return details
}

// vulnerabilityFinding builds the finding for one (package, advisory) pair.
// adv may be nil when its detail could not be fetched.
func vulnerabilityFinding(dep lockfile.Dependency, id string, adv *registry.Advisory) findings.Finding {
	summary := ""
	if adv != nil {
		summary = adv.Summary
		if summary == "" {
			summary = findings.Snippet(adv.Details)
		}
	}

	desc := fmt.Sprintf("%s@%s is affected by %s", dep.Name, dep.Version, id)
	if summary != "" {
		desc += ": " + summary
	}
	fixed := FixedVersion(adv)
	if fixed != "" {
		desc += fmt.Sprintf(" (fixed in %s)", fixed)
	}

	return findings.Finding{
		Kind:            findings.KindVulnerability,
		Label:           "Known Vulnerability",
		Severity:        ClassifyAdvisory(adv).Severity(),
		Snippet:         dep.Key(),
		Description:     desc,
		PackageVersion:  dep.Version,
		AdvisoryID:      id,
		AdvisorySummary: summary,
		AdvisoryURL:     advisoryURL(id),
		FixedVersion:    fixed,
		References:      CrossReferences(adv),
	}
}
