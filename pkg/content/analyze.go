/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/

// Package content inspects a single source file for suspicious constructs:
// a static regex table, a syntax-tree walk for JavaScript/TypeScript and two
// text heuristics (line length, entropy).
package content

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/fulmenhq/preflight/pkg/findings"
	"github.com/fulmenhq/preflight/pkg/heuristics"
)

// MaxFileSize is the size above which only the long-line heuristic runs.
const MaxFileSize = 1 << 20

// Analyze runs every applicable check over text. It has no side effects and
// returns the same findings for the same input. File is left empty; callers
// attribute findings to a path.
func Analyze(text, relPath string) []findings.Finding {
	if len(text) > MaxFileSize {
		if f, ok := longLineFinding(text); ok {
			return []findings.Finding{f}
		}
		return nil
	}

	var out []findings.Finding
	out = append(out, matchRules(text)...)

	if f, ok := longLineFinding(text); ok {
		out = append(out, f)
	}

	if isJSON(relPath) {
		return out
	}
	if f, ok := entropyFinding(heuristics.Sample(text)); ok {
		out = append(out, f)
	}
	if lang := grammarFor(relPath); lang != nil {
		out = append(out, analyzeSyntax([]byte(text), lang)...)
	}
	return out
}

// matchRules applies the regex table. Line numbers come from the count of
// newlines preceding each match offset.
func matchRules(text string) []findings.Finding {
	var newlines []int
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			newlines = append(newlines, i)
		}
	}

	var out []findings.Finding
	for _, rule := range Rules {
		for _, loc := range rule.Regex.FindAllStringIndex(text, -1) {
			idx := sort.SearchInts(newlines, loc[0])
			out = append(out, findings.Finding{
				Kind:        findings.KindPattern,
				Label:       rule.Name,
				Line:        idx + 1,
				Severity:    rule.Severity,
				Snippet:     findings.Snippet(lineAt(text, newlines, idx)),
				Description: rule.Description,
			})
		}
	}
	return out
}

// lineAt returns the idx-th (0-based) line of text given its newline offsets.
func lineAt(text string, newlines []int, idx int) string {
	start := 0
	if idx > 0 {
		start = newlines[idx-1] + 1
	}
	end := len(text)
	if idx < len(newlines) {
		end = newlines[idx]
	}
	return text[start:end]
}

func longLineFinding(text string) (findings.Finding, bool) {
	length, line, ok := heuristics.LineLengthExceeded(text)
	if !ok {
		return findings.Finding{}, false
	}
	return newLongLineFinding(length, line), true
}

func newLongLineFinding(length, line int) findings.Finding {
	return findings.Finding{
		Kind:     findings.KindHeuristic,
		Label:    "Massive Line Length",
		Line:     line,
		Severity: findings.SeverityHigh,
		Description: fmt.Sprintf("Line is %d characters long (limit %d); minified or packed code can hide payloads",
			length, heuristics.MaxLineLength),
	}
}

func entropyFinding(sample string) (findings.Finding, bool) {
	h := heuristics.Entropy(sample)
	if h <= heuristics.EntropyThreshold {
		return findings.Finding{}, false
	}
	return findings.Finding{
		Kind:     findings.KindHeuristic,
		Label:    "High Entropy",
		Severity: findings.SeverityMedium,
		Description: fmt.Sprintf("Shannon entropy %.2f bits/char exceeds %.1f; content may be encoded or encrypted",
			h, heuristics.EntropyThreshold),
	}, true
}

// AnalyzeStream is the large-file variant of Analyze. It reads r in chunks,
// stops after the first over-length line and otherwise keeps only the
// entropy sample in memory. Syntax analysis never runs.
func AnalyzeStream(r io.Reader, relPath string) ([]findings.Finding, error) {
	br := bufio.NewReaderSize(r, 32*1024)

	var (
		sample strings.Builder
		line   = 1
		runes  = 0
	)

	for {
		chunk, err := br.ReadSlice('\n')
		if len(chunk) > 0 {
			if room := heuristics.EntropySampleSize - sample.Len(); room > 0 {
				if len(chunk) <= room {
					sample.Write(chunk)
				} else {
					sample.Write(chunk[:room])
				}
			}

			body := chunk
			ended := body[len(body)-1] == '\n'
			if ended {
				body = body[:len(body)-1]
				if n := len(body); n > 0 && body[n-1] == '\r' {
					body = body[:n-1]
				}
			}
			for _, b := range body {
				if utf8.RuneStart(b) {
					runes++
				}
			}

			if ended {
				if runes > heuristics.MaxLineLength {
					return []findings.Finding{newLongLineFinding(runes, line)}, nil
				}
				line++
				runes = 0
			}
		}

		if err != nil {
			if errors.Is(err, bufio.ErrBufferFull) {
				continue
			}
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("reading %s: %w", relPath, err)
		}
	}

	if runes > heuristics.MaxLineLength {
		return []findings.Finding{newLongLineFinding(runes, line)}, nil
	}

	if isJSON(relPath) {
		return nil, nil
	}
	if f, ok := entropyFinding(heuristics.Sample(sample.String())); ok {
		return []findings.Finding{f}, nil
	}
	return nil, nil
}
