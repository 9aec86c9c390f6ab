package pipeline

import (
	"github.com/joseph-ayodele/docforge/internal/entity"
)

// Upload is a file already saved under the upload directory.
type Upload struct {
	OriginalName string
	StoredName   string
	Path         string
	MimeType     string
	Size         int64
}

const successMessage = "File processed successfully"

// DocumentView is the per-file payload of a successful upload.
type DocumentView struct {
	ID               int64                  `json:"id"`
	OriginalFileName string                 `json:"originalFileName"`
	StoredFileName   string                 `json:"storedFileName"`
	MimeType         string                 `json:"mimeType"`
	Size             int64                  `json:"size"`
	Preview          string                 `json:"preview"`
	PDFURL           string                 `json:"pdfUrl"`
	IsTable          bool                   `json:"isTable"`
	StructuredData   *entity.StructuredData `json:"structuredData,omitempty"`
}

// FileOutcome is one entry of an upload response.
type FileOutcome struct {
	Success          bool          `json:"success"`
	Message          string        `json:"message"`
	Document         *DocumentView `json:"document,omitempty"`
	OriginalFileName string        `json:"originalFileName,omitempty"`

	Record *entity.Document `json:"-"`
	Err    error            `json:"-"`
}

func success(doc *entity.Document, withStructured bool) FileOutcome {
	view := &DocumentView{
		ID:               doc.ID,
		OriginalFileName: doc.OriginalFileName,
		StoredFileName:   doc.StoredFileName,
		MimeType:         doc.MimeType,
		Size:             doc.Size,
		Preview:          doc.Preview,
		PDFURL:           entity.PDFURL(doc.ID),
		IsTable:          doc.IsTable,
	}
	if withStructured {
		view.StructuredData = doc.StructuredData
	}
	return FileOutcome{Success: true, Message: successMessage, Document: view, Record: doc}
}

func failure(u Upload, err error) FileOutcome {
	return FileOutcome{
		Success:          false,
		Message:          "Error processing file " + u.OriginalName + ": " + err.Error(),
		OriginalFileName: u.OriginalName,
		Err:              err,
	}
}
