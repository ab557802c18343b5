package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/preflight/pkg/lockfile"
)

func TestOSVClient_QueryBatch(t *testing.T) {
	mock := NewMockHTTPFetcher()
	mock.AddResponse("https://api.osv.dev/v1/querybatch", 200, `{
  "results": [
    {"vulns": [{"id": "GHSA-35jh-r3h4-6jhm", "modified": "2024-01-01T00:00:00Z"}, {"id": "GHSA-29mw-wpgm-hmr9"}]},
    {}
  ]
}`)
	client := NewOSVClientWithFetcher("", mock)

	ids, err := client.QueryBatch(context.Background(), []lockfile.Dependency{
		{Name: "lodash", Version: "4.17.20"},
		{Name: "react", Version: "18.2.0"},
	})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"GHSA-35jh-r3h4-6jhm", "GHSA-29mw-wpgm-hmr9"}, nil}, ids)
	assert.Equal(t, []string{"POST https://api.osv.dev/v1/querybatch"}, mock.Requests())
}

func TestOSVClient_QueryBatch_MismatchedResults(t *testing.T) {
	mock := NewMockHTTPFetcher()
	mock.AddResponse("https://api.osv.dev/v1/querybatch", 200, `{"results": [{}]}`)
	client := NewOSVClientWithFetcher("", mock)

	_, err := client.QueryBatch(context.Background(), []lockfile.Dependency{
		{Name: "a", Version: "1.0.0"},
		{Name: "b", Version: "1.0.0"},
	})
	assert.Error(t, err)

	ids, err := client.QueryBatch(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, ids)
}

func TestOSVClient_Vulnerability(t *testing.T) {
	mock := NewMockHTTPFetcher()
	mock.AddResponse("https://api.osv.dev/v1/vulns/GHSA-35jh-r3h4-6jhm", 200, `{
  "id": "GHSA-35jh-r3h4-6jhm",
  "summary": "Command Injection in lodash",
  "aliases": ["CVE-2021-23337"],
  "affected": [{
    "package": {"name": "lodash", "ecosystem": "npm"},
    "ranges": [{"type": "SEMVER", "events": [{"introduced": "0"}, {"fixed": "4.17.21"}]}]
  }],
  "database_specific": {"severity": "HIGH", "cwe_ids": ["CWE-77"]}
}`)
	client := NewOSVClientWithFetcher("", mock)

	adv, err := client.Vulnerability(context.Background(), "GHSA-35jh-r3h4-6jhm")
	require.NoError(t, err)
	assert.Equal(t, "Command Injection in lodash", adv.Summary)
	assert.Equal(t, []string{"CVE-2021-23337"}, adv.Aliases)
	require.Len(t, adv.Affected, 1)
	assert.Equal(t, "4.17.21", adv.Affected[0].Ranges[0].Events[1].Fixed)
	assert.Contains(t, string(adv.DatabaseSpecific), "HIGH")
	assert.Contains(t, string(adv.Raw), "cwe_ids")

	_, err = client.Vulnerability(context.Background(), "GHSA-missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
