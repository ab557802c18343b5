package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fulmenhq/preflight/pkg/findings"
	"github.com/fulmenhq/preflight/pkg/registry"
)

func TestClassifyAdvisory(t *testing.T) {
	tests := []struct {
		name  string
		adv   *registry.Advisory
		shape AdvisoryShape
		want  findings.Severity
	}{
		{
			name:  "database severity",
			adv:   &registry.Advisory{DatabaseSpecific: []byte(`{"severity": "MODERATE"}`), Raw: []byte(`critical`)},
			shape: DatabaseSeverityShape{Level: findings.SeverityMedium},
			want:  findings.SeverityMedium,
		},
		{
			name:  "unrecognized database severity falls back to text",
			adv:   &registry.Advisory{DatabaseSpecific: []byte(`{"severity": "SEVERE"}`), Raw: []byte(`{"details": "a High impact bug"}`)},
			shape: UnknownShape{Text: `{"details": "a High impact bug"}`},
			want:  findings.SeverityHigh,
		},
		{
			name: "critical wins over high in text",
			adv:  &registry.Advisory{Raw: []byte(`high risk, CRITICAL impact`)},
			want: findings.SeverityCritical,
		},
		{
			name: "summary text when raw is absent",
			adv:  &registry.Advisory{Summary: "Moderate severity prototype pollution"},
			want: findings.SeverityMedium,
		},
		{
			name: "defaults to low",
			adv:  &registry.Advisory{Raw: []byte(`{"summary": "bug"}`)},
			want: findings.SeverityLow,
		},
		{
			name:  "nil advisory",
			shape: UnknownShape{},
			want:  findings.SeverityLow,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shape := ClassifyAdvisory(tt.adv)
			if tt.shape != nil {
				assert.Equal(t, tt.shape, shape)
			}
			assert.Equal(t, tt.want, shape.Severity())
		})
	}
}

func TestFixedVersion_LexicographicMax(t *testing.T) {
	adv := &registry.Advisory{Affected: []registry.Affected{
		{Ranges: []registry.Range{{Events: []registry.Event{{Introduced: "0"}, {Fixed: "9.0.0"}}}}},
		{Ranges: []registry.Range{{Events: []registry.Event{{Introduced: "10.0.0"}, {Fixed: "10.0.1"}}}}},
	}}
	// String order, not semver order
	assert.Equal(t, "9.0.0", FixedVersion(adv))
	assert.Empty(t, FixedVersion(&registry.Advisory{}))
	assert.Empty(t, FixedVersion(nil))
}

func TestCrossReferences(t *testing.T) {
	adv := &registry.Advisory{
		ID:      "CVE-2020-8203",
		Aliases: []string{"GHSA-p6mc-m468-83gw", "CVE-2020-8203", "CVE-2019-10744", "not-a-cve"},
	}
	assert.Equal(t, []string{
		"https://www.cvedetails.com/cve/CVE-2020-8203/",
		"https://www.exploit-db.com/search?cve=2020-8203",
		"https://www.cvedetails.com/cve/CVE-2019-10744/",
		"https://www.exploit-db.com/search?cve=2019-10744",
	}, CrossReferences(adv))

	assert.Nil(t, CrossReferences(&registry.Advisory{ID: "GHSA-xxxx", Aliases: []string{"PYSEC-1"}}))
}
