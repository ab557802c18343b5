package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultNPMRegistryURL  = "https://registry.npmjs.org"
	DefaultNPMDownloadsURL = "https://api.npmjs.org/downloads/point"
	popularSearchQuery     = "/-/v1/search?text=not:unstable&popularity=1.0&size=250"
)

// PackageInfo is the subset of registry metadata used for reputation checks.
type PackageInfo struct {
	Name    string
	Created time.Time
	Latest  string
}

// NPMClient talks to the npm registry and download-count API.
type NPMClient struct {
	registryURL  string
	downloadsURL string
	fetcher      HTTPFetcher
}

// NewNPMClient creates an NPMClient with real HTTP for production use. Empty
// URLs select the public npm endpoints.
func NewNPMClient(registryURL, downloadsURL string) *NPMClient {
	return NewNPMClientWithFetcher(registryURL, downloadsURL, NewRealHTTPFetcher(nil))
}

// NewNPMClientWithFetcher creates an NPMClient with injectable HTTP for testing
func NewNPMClientWithFetcher(registryURL, downloadsURL string, fetcher HTTPFetcher) *NPMClient {
	if registryURL == "" {
		registryURL = DefaultNPMRegistryURL
	}
	if downloadsURL == "" {
		downloadsURL = DefaultNPMDownloadsURL
	}
	return &NPMClient{
		registryURL:  strings.TrimRight(registryURL, "/"),
		downloadsURL: strings.TrimRight(downloadsURL, "/"),
		fetcher:      fetcher,
	}
}

// PackageInfo fetches package metadata. A package the registry does not know
// yields an error wrapping ErrNotFound.
func (c *NPMClient) PackageInfo(ctx context.Context, name string) (*PackageInfo, error) {
	// Scoped names keep their "@" but the slash must be escaped
	pkgURL := fmt.Sprintf("%s/%s", c.registryURL, url.PathEscape(name))

	var pkgData struct {
		Name     string            `json:"name"`
		Time     map[string]string `json:"time"`
		DistTags map[string]string `json:"dist-tags"`
	}
	if err := doJSON(ctx, c.fetcher, http.MethodGet, pkgURL, nil, &pkgData); err != nil {
		return nil, fmt.Errorf("failed to fetch package metadata: %w", err)
	}

	info := &PackageInfo{Name: name, Latest: pkgData.DistTags["latest"]}
	if created, ok := pkgData.Time["created"]; ok {
		t, err := time.Parse(time.RFC3339, created)
		if err != nil {
			return nil, fmt.Errorf("failed to parse creation date %q: %w", created, err)
		}
		info.Created = t
	}
	return info, nil
}

// WeeklyDownloads returns the last-week download count for name.
func (c *NPMClient) WeeklyDownloads(ctx context.Context, name string) (int, error) {
	downloadsURL := fmt.Sprintf("%s/last-week/%s", c.downloadsURL, name)

	var dlData struct {
		Downloads *int `json:"downloads"`
	}
	if err := doJSON(ctx, c.fetcher, http.MethodGet, downloadsURL, nil, &dlData); err != nil {
		return 0, fmt.Errorf("failed to fetch download stats: %w", err)
	}
	if dlData.Downloads == nil {
		return 0, fmt.Errorf("download stats for %s missing count", name)
	}
	return *dlData.Downloads, nil
}

// PopularPackages returns the names ranked highest by npm's popularity score.
func (c *NPMClient) PopularPackages(ctx context.Context) ([]string, error) {
	var result struct {
		Objects []struct {
			Package struct {
				Name string `json:"name"`
			} `json:"package"`
		} `json:"objects"`
	}
	if err := doJSON(ctx, c.fetcher, http.MethodGet, c.registryURL+popularSearchQuery, nil, &result); err != nil {
		return nil, fmt.Errorf("failed to fetch popular packages: %w", err)
	}

	names := make([]string, 0, len(result.Objects))
	for _, o := range result.Objects {
		if o.Package.Name != "" {
			names = append(names, o.Package.Name)
		}
	}
	return names, nil
}
