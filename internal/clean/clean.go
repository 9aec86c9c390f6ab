// Package clean normalizes raw extracted text before it is indexed or rendered.
package clean

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Line filter thresholds.
const (
	MinLineLength  = 3
	MaxSymbolRatio = 0.4
)

var (
	reCRLF        = regexp.MustCompile(`\r\n?`)
	reHyphenBreak = regexp.MustCompile(`(\w+)-\n(\w+)`)
	rePageNumber  = regexp.MustCompile(`(?i)^\s*page\s*\d+\s*$`)
	reSeparator   = regexp.MustCompile(`^[\p{P}\p{S}\s]+$`)
	reMultiBlank  = regexp.MustCompile(`\n{3,}`)
	reHSpace      = regexp.MustCompile(`[\t\f\v \p{Zs}]{2,}`)

	// Slide transcript markers are structure, not noise: exports split decks on them.
	reSlideMarker = regexp.MustCompile(`^--- Slide: \S.* ---$`)
)

// Clean normalizes raw extracted text. It is pure and idempotent:
// Clean(Clean(s)) == Clean(s).
func Clean(s string) string {
	if s == "" {
		return s
	}
	for {
		next := pass(s)
		if next == s {
			return next
		}
		s = next
	}
}

// pass never grows its input, so Clean's loop terminates.
func pass(s string) string {
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reHyphenBreak.ReplaceAllString(s, "$1$2")

	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, ln := range lines {
		trimmed := strings.TrimSpace(ln)
		if trimmed == "" {
			kept = append(kept, "")
			continue
		}
		if reSlideMarker.MatchString(trimmed) {
			kept = append(kept, trimmed)
			continue
		}
		if rePageNumber.MatchString(trimmed) || IsNoise(trimmed) {
			continue
		}
		kept = append(kept, trimmed)
	}
	s = strings.Join(kept, "\n")

	s = reMultiBlank.ReplaceAllString(s, "\n\n")
	s = reHSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// IsNoise reports whether a trimmed, non-empty line is low-signal OCR output.
func IsNoise(line string) bool {
	if utf8.RuneCountInString(line) < MinLineLength {
		return true
	}
	if reSeparator.MatchString(line) {
		return true
	}
	if !strings.ContainsFunc(line, unicode.IsLetter) {
		return true
	}
	return SymbolRatio(line) > MaxSymbolRatio
}

// SymbolRatio is the share of non-alphanumeric runes among the non-space runes
// of line. Pipe characters are table cell delimiters and are not counted.
func SymbolRatio(line string) float64 {
	var total, symbols int
	for _, r := range line {
		if unicode.IsSpace(r) || r == '|' {
			continue
		}
		total++
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			symbols++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(symbols) / float64(total)
}
