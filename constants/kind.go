package constants

import "strings"

// DocumentKind is the classified format of an upload.
type DocumentKind string

const (
	KindText      DocumentKind = "text"
	KindTabular   DocumentKind = "tabular"
	KindDocx      DocumentKind = "docx"
	KindDoc       DocumentKind = "doc"
	KindPDF       DocumentKind = "pdf"
	KindSlideDeck DocumentKind = "slide-deck"
	KindImage     DocumentKind = "image"
	KindUnknown   DocumentKind = "unknown"
)

var allKinds = []DocumentKind{
	KindText,
	KindTabular,
	KindDocx,
	KindDoc,
	KindPDF,
	KindSlideDeck,
	KindImage,
	KindUnknown,
}

func AllKinds() []DocumentKind {
	out := make([]DocumentKind, len(allKinds))
	copy(out, allKinds)
	return out
}

func (k DocumentKind) String() string { return string(k) }

// ParseKind accepts a kind name in any case, plus a few common aliases.
func ParseKind(input string) (DocumentKind, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return KindUnknown, false
	}

	aliases := map[string]DocumentKind{
		"txt":          KindText,
		"plain":        KindText,
		"csv":          KindTabular,
		"spreadsheet":  KindTabular,
		"table":        KindTabular,
		"word":         KindDocx,
		"slides":       KindSlideDeck,
		"deck":         KindSlideDeck,
		"presentation": KindSlideDeck,
	}
	if k, ok := aliases[normalized]; ok {
		return k, true
	}
	for _, k := range allKinds {
		if normalized == string(k) {
			return k, true
		}
	}
	return KindUnknown, false
}
