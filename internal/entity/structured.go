package entity

import (
	"fmt"
	"strings"
)

// PageData is the recognized content of one PDF page.
type PageData struct {
	PageNumber int    `json:"page_number"`
	Content    string `json:"content"`
}

// StructuredData is the per-page OCR output kept by the enhanced upload path.
type StructuredData struct {
	PageCount int        `json:"page_count"`
	Pages     []PageData `json:"pages"`
	FullText  string     `json:"full_text"`
}

// NewStructuredData builds StructuredData from page texts in page order.
func NewStructuredData(pages []string) *StructuredData {
	sd := &StructuredData{PageCount: len(pages), Pages: make([]PageData, 0, len(pages))}
	parts := make([]string, 0, len(pages))
	for i, text := range pages {
		n := i + 1
		content := strings.TrimSpace(text)
		sd.Pages = append(sd.Pages, PageData{PageNumber: n, Content: content})
		parts = append(parts, fmt.Sprintf("--- Page %d ---\n%s", n, content))
	}
	sd.FullText = strings.Join(parts, "\n\n")
	return sd
}

// HasText reports whether any page produced non-blank content.
func (s *StructuredData) HasText() bool {
	if s == nil {
		return false
	}
	for _, p := range s.Pages {
		if p.Content != "" {
			return true
		}
	}
	return false
}

// PlainText joins the non-empty page contents with blank lines, without page markers.
func (s *StructuredData) PlainText() string {
	if s == nil {
		return ""
	}
	var parts []string
	for _, p := range s.Pages {
		if p.Content != "" {
			parts = append(parts, p.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}
