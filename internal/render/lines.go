package render

import (
	"regexp"
	"strings"
)

type LineKind int

const (
	LineParagraph LineKind = iota
	LineBlank
	LineHeader
	LineTableRow
	LineTableSeparator
	LineListItem
	LineMonospace
)

func (k LineKind) String() string {
	switch k {
	case LineBlank:
		return "blank"
	case LineHeader:
		return "header"
	case LineTableRow:
		return "table-row"
	case LineTableSeparator:
		return "table-separator"
	case LineListItem:
		return "list-item"
	case LineMonospace:
		return "monospace"
	default:
		return "paragraph"
	}
}

var (
	reHeader     = regexp.MustCompile(`^(#+)\s*`)
	reBullet     = regexp.MustCompile(`^[*\-+] `)
	reNumbered   = regexp.MustCompile(`^\d+\.`)
	reWideSpaces = regexp.MustCompile(`[ \t]{3,}`)
)

// Line is one classified input line.
type Line struct {
	Kind  LineKind
	Raw   string
	Text  string   // header text without the leading #s
	Level int      // header level
	Cells []string // pipe table cells, trimmed and non-empty
}

// ClassifyLine decides how a single line of cleaned text is laid out.
// Precedence: header, pipe row, list item, blank, tabular-looking, paragraph.
func ClassifyLine(line string) Line {
	trimmed := strings.TrimSpace(line)
	l := Line{Raw: line, Text: trimmed}

	switch {
	case strings.HasPrefix(trimmed, "#"):
		m := reHeader.FindStringSubmatch(trimmed)
		l.Kind = LineHeader
		l.Level = len(m[1])
		l.Text = strings.TrimSpace(trimmed[len(m[0]):])
	case len(trimmed) > 1 && strings.HasPrefix(trimmed, "|") && strings.HasSuffix(trimmed, "|"):
		if strings.Contains(trimmed, "---") || strings.Contains(trimmed, "===") {
			l.Kind = LineTableSeparator
			return l
		}
		l.Kind = LineTableRow
		for _, c := range strings.Split(trimmed, "|") {
			if c = strings.TrimSpace(c); c != "" {
				l.Cells = append(l.Cells, c)
			}
		}
	case reBullet.MatchString(trimmed) || reNumbered.MatchString(trimmed):
		l.Kind = LineListItem
	case trimmed == "":
		l.Kind = LineBlank
	case reWideSpaces.MatchString(line) || strings.Contains(trimmed, "|"):
		l.Kind = LineMonospace
	default:
		l.Kind = LineParagraph
	}
	return l
}

// HeaderSize is the font size for a header of the given level.
func HeaderSize(level int) float64 {
	return max(18-2*float64(level), 12)
}
