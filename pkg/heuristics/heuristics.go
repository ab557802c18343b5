// Package heuristics holds stateless text measurements used to spot packed or
// obfuscated payloads.
package heuristics

import (
	"math"
	"strings"
	"unicode/utf8"
)

const (
	// MaxLineLength is the longest line, in characters, that is not reported.
	MaxLineLength = 1000
	// EntropyThreshold is the bits-per-character level above which text is reported.
	EntropyThreshold = 4.5
	// EntropySampleSize bounds how many bytes of a file feed the entropy estimate.
	EntropySampleSize = 64 * 1024
)

// Entropy returns the Shannon entropy of s in bits per character.
// Empty input has entropy 0.
func Entropy(s string) float64 {
	if s == "" {
		return 0
	}
	freq := make(map[rune]int)
	total := 0
	for _, r := range s {
		freq[r]++
		total++
	}
	n := float64(total)
	var h float64
	for _, c := range freq {
		p := float64(c) / n
		h -= p * math.Log2(p)
	}
	return h
}

// Sample returns at most EntropySampleSize bytes of s, cut on a rune boundary.
func Sample(s string) string {
	if len(s) <= EntropySampleSize {
		return s
	}
	cut := EntropySampleSize
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// LongestLine returns the character length and 1-based number of the longest
// line in s. Ties keep the first line.
func LongestLine(s string) (length, line int) {
	n := 0
	for s != "" {
		n++
		var cur string
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			cur, s = s[:i], s[i+1:]
		} else {
			cur, s = s, ""
		}
		if l := utf8.RuneCountInString(strings.TrimSuffix(cur, "\r")); l > length {
			length, line = l, n
		}
	}
	return length, line
}

// LineLengthExceeded reports whether any line in s is longer than MaxLineLength.
func LineLengthExceeded(s string) (length, line int, ok bool) {
	length, line = LongestLine(s)
	return length, line, length > MaxLineLength
}
