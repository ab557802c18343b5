package typosquat

import (
	"context"
	_ "embed"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/fulmenhq/preflight/pkg/logger"
)

//go:embed data/popular_npm.txt
var seedData string

// Seed returns the built-in popular package list.
func Seed() []string {
	var names []string
	for _, line := range strings.Split(seedData, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	return names
}

// Fetcher retrieves the live popularity list.
type Fetcher func(ctx context.Context) ([]string, error)

// PopularityService loads the popularity list at most once per process.
// A failed or empty fetch falls back to Seed; the result is never refreshed.
type PopularityService struct {
	fetch Fetcher
	group singleflight.Group

	mu    sync.RWMutex
	names []string
}

// NewPopularityService creates a service. A nil fetch always uses the seed list.
func NewPopularityService(fetch Fetcher) *PopularityService {
	return &PopularityService{fetch: fetch}
}

// Names returns the cached list, loading it on first use. Concurrent first
// callers share one fetch.
func (s *PopularityService) Names(ctx context.Context) []string {
	if names, ok := s.cached(); ok {
		return names
	}

	v, _, _ := s.group.Do("popular", func() (interface{}, error) {
		if names, ok := s.cached(); ok {
			return names, nil
		}
		names := s.load(ctx)
		s.mu.Lock()
		s.names = names
		s.mu.Unlock()
		return names, nil
	})
	return v.([]string)
}

// Loaded reports whether the list has been resolved.
func (s *PopularityService) Loaded() bool {
	_, ok := s.cached()
	return ok
}

func (s *PopularityService) cached() ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.names, s.names != nil
}

func (s *PopularityService) load(ctx context.Context) []string {
	if s.fetch == nil {
		return Seed()
	}
	names, err := s.fetch(ctx)
	if err != nil || len(names) == 0 {
		if err != nil {
			logger.Debug("Popular package list unavailable, using seed list", logger.Err(err))
		}
		return Seed()
	}
	logger.Debug("Loaded popular package list", logger.Int("count", len(names)))
	return names
}
