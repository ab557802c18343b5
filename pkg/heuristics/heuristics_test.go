package heuristics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntropy(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
	}{
		{"empty", "", 0},
		{"single symbol", "aaaaaaa", 0},
		{"two symbols", "abababab", 1},
		{"four symbols", "abcdabcd", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Entropy(tt.in), 1e-9)
		})
	}
}

func TestEntropyNaturalCodeStaysBelowThreshold(t *testing.T) {
	code := strings.Repeat("function add(a, b) {\n  return a + b;\n}\n", 20)
	assert.Less(t, Entropy(code), EntropyThreshold)
}

func TestSampleCutsOnRuneBoundary(t *testing.T) {
	s := strings.Repeat("a", EntropySampleSize-1) + "é" + "tail"
	got := Sample(s)
	assert.Equal(t, EntropySampleSize-1, len(got))
	assert.Equal(t, "abc", Sample("abc"))
}

func TestLongestLine(t *testing.T) {
	length, line := LongestLine("short\n" + strings.Repeat("x", 12) + "\r\nmid line\n")
	assert.Equal(t, 12, length)
	assert.Equal(t, 2, line)

	length, line = LongestLine("")
	assert.Equal(t, 0, length)
	assert.Equal(t, 0, line)
}

func TestLineLengthExceeded(t *testing.T) {
	length, _, ok := LineLengthExceeded(strings.Repeat("a", 2000))
	assert.True(t, ok)
	assert.Equal(t, 2000, length)

	_, _, ok = LineLengthExceeded(strings.Repeat("a", MaxLineLength))
	assert.False(t, ok)

	length, _, _ = LineLengthExceeded(strings.Repeat("ü", 1200))
	assert.Equal(t, 1200, length, "length is counted in characters, not bytes")
}
