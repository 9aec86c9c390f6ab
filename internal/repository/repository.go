package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/joseph-ayodele/docforge/constants"
	"github.com/joseph-ayodele/docforge/internal/common"
	"github.com/joseph-ayodele/docforge/internal/entity"
)

// DocumentRepository stores immutable document records. Insert assigns the
// ID; IDs are never reused, even after deletion.
type DocumentRepository interface {
	Insert(ctx context.Context, doc *entity.Document) (*entity.Document, error)
	Find(ctx context.Context, id int64) (*entity.Document, error)
	Delete(ctx context.Context, id int64) (*entity.Document, error)
	List(ctx context.Context) ([]*entity.Document, error)
}

// Pinger is implemented by every store; it backs the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

func notFound(id int64) error {
	return common.NotFoundf("document %d not found", id)
}

// documentColumns is the column list shared by the SQL stores, in scan order.
const documentColumns = `id, original_file_name, stored_file_name, mime_type, size, path, kind,
	pdf_path, extracted_text, preview, is_table, headers, table_rows, method, warnings,
	structured_data, created_at`

// jsonFields are the record fields kept as JSON columns.
type jsonFields struct {
	Headers        []byte
	TableRows      []byte
	Warnings       []byte
	StructuredData []byte
}

func encodeJSONFields(d *entity.Document) (jsonFields, error) {
	var (
		jf  jsonFields
		err error
	)
	if jf.Headers, err = marshalOrNil(d.Headers, len(d.Headers) == 0); err != nil {
		return jf, fmt.Errorf("encode headers: %w", err)
	}
	if jf.TableRows, err = marshalOrNil(d.TableRows, len(d.TableRows) == 0); err != nil {
		return jf, fmt.Errorf("encode table rows: %w", err)
	}
	if jf.Warnings, err = marshalOrNil(d.Warnings, len(d.Warnings) == 0); err != nil {
		return jf, fmt.Errorf("encode warnings: %w", err)
	}
	if jf.StructuredData, err = marshalOrNil(d.StructuredData, d.StructuredData == nil); err != nil {
		return jf, fmt.Errorf("encode structured data: %w", err)
	}
	return jf, nil
}

func marshalOrNil(v any, empty bool) ([]byte, error) {
	if empty {
		return nil, nil
	}
	return json.Marshal(v)
}

func (jf jsonFields) decodeInto(d *entity.Document) error {
	if len(jf.Headers) > 0 {
		if err := json.Unmarshal(jf.Headers, &d.Headers); err != nil {
			return fmt.Errorf("decode headers: %w", err)
		}
	}
	if len(jf.TableRows) > 0 {
		if err := json.Unmarshal(jf.TableRows, &d.TableRows); err != nil {
			return fmt.Errorf("decode table rows: %w", err)
		}
	}
	if len(jf.Warnings) > 0 {
		if err := json.Unmarshal(jf.Warnings, &d.Warnings); err != nil {
			return fmt.Errorf("decode warnings: %w", err)
		}
	}
	if len(jf.StructuredData) > 0 {
		d.StructuredData = &entity.StructuredData{}
		if err := json.Unmarshal(jf.StructuredData, d.StructuredData); err != nil {
			return fmt.Errorf("decode structured data: %w", err)
		}
	}
	return nil
}

// scanner is satisfied by *sql.Row, *sql.Rows and pgx rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanDocument reads one row in documentColumns order. created_at goes to
// createdAt because the stores keep it in different column types.
func scanDocument(s scanner, createdAt any) (*entity.Document, error) {
	var (
		d    entity.Document
		kind string
		jf   jsonFields
	)
	err := s.Scan(&d.ID, &d.OriginalFileName, &d.StoredFileName, &d.MimeType, &d.Size, &d.Path, &kind,
		&d.PDFPath, &d.ExtractedText, &d.Preview, &d.IsTable, &jf.Headers, &jf.TableRows, &d.Method, &jf.Warnings,
		&jf.StructuredData, createdAt)
	if err != nil {
		return nil, err
	}
	d.Kind = constants.DocumentKind(kind)
	d.PDFURL = entity.PDFURL(d.ID)
	if err := jf.decodeInto(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

func cloneDocument(d *entity.Document) *entity.Document {
	c := *d
	if d.Headers != nil {
		c.Headers = append([]string(nil), d.Headers...)
	}
	if d.Warnings != nil {
		c.Warnings = append([]string(nil), d.Warnings...)
	}
	if d.TableRows != nil {
		c.TableRows = make([]map[string]string, len(d.TableRows))
		for i, row := range d.TableRows {
			m := make(map[string]string, len(row))
			for k, v := range row {
				m[k] = v
			}
			c.TableRows[i] = m
		}
	}
	if d.StructuredData != nil {
		sd := *d.StructuredData
		sd.Pages = append([]entity.PageData(nil), d.StructuredData.Pages...)
		c.StructuredData = &sd
	}
	return &c
}

// nullJSON maps an absent JSON column to SQL NULL.
func nullJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
