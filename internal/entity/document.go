package entity

import (
	"strconv"
	"time"

	"github.com/joseph-ayodele/docforge/constants"
)

// Document is the canonical per-upload record for data transfer between layers.
// It is immutable once stored; the only mutation is deletion.
type Document struct {
	ID               int64                  `json:"id"`
	OriginalFileName string                 `json:"originalFileName"`
	StoredFileName   string                 `json:"storedFileName"`
	MimeType         string                 `json:"mimeType"`
	Size             int64                  `json:"size"`
	Path             string                 `json:"path"`
	Kind             constants.DocumentKind `json:"kind"`
	PDFPath          string                 `json:"pdfPath"`
	PDFURL           string                 `json:"pdfUrl"`
	ExtractedText    string                 `json:"extractedText"`
	Preview          string                 `json:"preview"`
	IsTable          bool                   `json:"isTable"`
	Headers          []string               `json:"headers,omitempty"`
	TableRows        []map[string]string    `json:"tableRows"`
	Method           string                 `json:"method"`
	Warnings         []string               `json:"warnings,omitempty"`
	StructuredData   *StructuredData        `json:"structuredData,omitempty"`
	CreatedAt        time.Time              `json:"createdAt"`
}

// Summary is the listing projection of a Document.
type Summary struct {
	ID               int64  `json:"id"`
	OriginalFileName string `json:"originalFileName"`
	StoredFileName   string `json:"storedFileName"`
	MimeType         string `json:"mimeType"`
	Size             int64  `json:"size"`
	PDFPath          string `json:"pdfPath"`
}

func (d *Document) Summary() Summary {
	return Summary{
		ID:               d.ID,
		OriginalFileName: d.OriginalFileName,
		StoredFileName:   d.StoredFileName,
		MimeType:         d.MimeType,
		Size:             d.Size,
		PDFPath:          d.PDFPath,
	}
}

// PDFURL is the route serving the canonical PDF of document id.
func PDFURL(id int64) string {
	return "/documents/" + strconv.FormatInt(id, 10) + "/pdf"
}
