package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/fulmenhq/preflight/pkg/lockfile"
)

const (
	DefaultOSVURL = "https://api.osv.dev"
	npmEcosystem  = "npm"
)

type osvQuery struct {
	Package osvPackage `json:"package"`
	Version string     `json:"version"`
}

type osvPackage struct {
	Name      string `json:"name"`
	Ecosystem string `json:"ecosystem"`
}

type osvBatchResponse struct {
	Results []struct {
		Vulns []struct {
			ID string `json:"id"`
		} `json:"vulns"`
	} `json:"results"`
}

// Advisory is a full OSV vulnerability record. Raw keeps the original body
// for callers that need to inspect fields not modelled here.
type Advisory struct {
	ID               string          `json:"id"`
	Summary          string          `json:"summary"`
	Details          string          `json:"details"`
	Aliases          []string        `json:"aliases"`
	Affected         []Affected      `json:"affected"`
	DatabaseSpecific json.RawMessage `json:"database_specific"`
	References       []Reference     `json:"references"`

	Raw json.RawMessage `json:"-"`
}

// Reference is an external link attached to an advisory.
type Reference struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Affected describes one affected package and its version ranges.
type Affected struct {
	Package struct {
		Name      string `json:"name"`
		Ecosystem string `json:"ecosystem"`
	} `json:"package"`
	Ranges []Range `json:"ranges"`
}

// Range is an ordered list of introduced/fixed events.
type Range struct {
	Type   string  `json:"type"`
	Events []Event `json:"events"`
}

// Event is a range boundary; exactly one field is set.
type Event struct {
	Introduced   string `json:"introduced,omitempty"`
	Fixed        string `json:"fixed,omitempty"`
	LastAffected string `json:"last_affected,omitempty"`
}

// OSVClient queries the OSV vulnerability database.
type OSVClient struct {
	baseURL string
	fetcher HTTPFetcher
}

// NewOSVClient creates a client with real HTTP. An empty URL selects api.osv.dev.
func NewOSVClient(baseURL string) *OSVClient {
	return NewOSVClientWithFetcher(baseURL, NewRealHTTPFetcher(nil))
}

// NewOSVClientWithFetcher creates an OSVClient with injectable HTTP for testing
func NewOSVClientWithFetcher(baseURL string, fetcher HTTPFetcher) *OSVClient {
	if baseURL == "" {
		baseURL = DefaultOSVURL
	}
	return &OSVClient{baseURL: strings.TrimRight(baseURL, "/"), fetcher: fetcher}
}

// QueryBatch asks which advisories affect each dependency. The result has one
// entry per input, in input order, holding the matched advisory ids.
func (c *OSVClient) QueryBatch(ctx context.Context, deps []lockfile.Dependency) ([][]string, error) {
	if len(deps) == 0 {
		return nil, nil
	}

	queries := make([]osvQuery, len(deps))
	for i, d := range deps {
		queries[i] = osvQuery{
			Package: osvPackage{Name: d.Name, Ecosystem: npmEcosystem},
			Version: d.Version,
		}
	}

	var resp osvBatchResponse
	body := map[string]interface{}{"queries": queries}
	if err := doJSON(ctx, c.fetcher, http.MethodPost, c.baseURL+"/v1/querybatch", body, &resp); err != nil {
		return nil, fmt.Errorf("OSV batch query failed: %w", err)
	}
	if len(resp.Results) != len(deps) {
		return nil, fmt.Errorf("OSV batch returned %d results for %d queries", len(resp.Results), len(deps))
	}

	ids := make([][]string, len(deps))
	for i, r := range resp.Results {
		for _, v := range r.Vulns {
			if v.ID != "" {
				ids[i] = append(ids[i], v.ID)
			}
		}
	}
	return ids, nil
}

// Vulnerability fetches the full record for one advisory id.
func (c *OSVClient) Vulnerability(ctx context.Context, id string) (*Advisory, error) {
	var raw json.RawMessage
	if err := doJSON(ctx, c.fetcher, http.MethodGet, c.baseURL+"/v1/vulns/"+url.PathEscape(id), nil, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch advisory %s: %w", id, err)
	}

	var adv Advisory
	if err := json.Unmarshal(raw, &adv); err != nil {
		return nil, fmt.Errorf("failed to decode advisory %s: %w", id, err)
	}
	if adv.ID == "" {
		adv.ID = id
	}
	adv.Raw = raw
	return &adv, nil
}
