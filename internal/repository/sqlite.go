package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/joseph-ayodele/docforge/internal/common"
	"github.com/joseph-ayodele/docforge/internal/entity"
)

//go:embed schema/sqlite.sql
var sqliteSchema string

type SQLiteRepository struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) the database file and applies the schema.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	logger.Info("opening sqlite store", "path", path)
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, common.NewAppError("DB_SCHEMA", "apply sqlite schema", errors.Join(common.ErrDatabase, err))
	}
	return &SQLiteRepository{db: db, path: path, logger: logger}, nil
}

func (r *SQLiteRepository) Close() error { return r.db.Close() }

func (r *SQLiteRepository) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func (r *SQLiteRepository) Insert(ctx context.Context, doc *entity.Document) (*entity.Document, error) {
	jf, err := encodeJSONFields(doc)
	if err != nil {
		return nil, err
	}
	created := doc.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx, `INSERT INTO documents (original_file_name, stored_file_name, mime_type, size, path, kind,
		pdf_path, extracted_text, preview, is_table, headers, table_rows, method, warnings, structured_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.OriginalFileName, doc.StoredFileName, doc.MimeType, doc.Size, doc.Path, doc.Kind.String(),
		doc.PDFPath, doc.ExtractedText, doc.Preview, doc.IsTable, nullJSON(jf.Headers), nullJSON(jf.TableRows),
		doc.Method, nullJSON(jf.Warnings), nullJSON(jf.StructuredData), created.Format(time.RFC3339Nano))
	if err != nil {
		r.logger.Error("failed to insert document", "stored_file_name", doc.StoredFileName, "error", err)
		return nil, common.WrapError(errors.Join(common.ErrDatabase, err), "insert document")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, common.WrapError(errors.Join(common.ErrDatabase, err), "insert document")
	}

	out := cloneDocument(doc)
	out.ID = id
	out.PDFURL = entity.PDFURL(id)
	out.CreatedAt = created
	return out, nil
}

func (r *SQLiteRepository) scan(s scanner) (*entity.Document, error) {
	var ts string
	d, err := scanDocument(s, &ts)
	if err != nil {
		return nil, err
	}
	if d.CreatedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return d, nil
}

func (r *SQLiteRepository) Find(ctx context.Context, id int64) (*entity.Document, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	d, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, common.WrapError(errors.Join(common.ErrDatabase, err), "find document")
	}
	return d, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) (*entity.Document, error) {
	row := r.db.QueryRowContext(ctx, `DELETE FROM documents WHERE id = ? RETURNING `+documentColumns, id)
	d, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, common.WrapError(errors.Join(common.ErrDatabase, err), "delete document")
	}
	return d, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*entity.Document, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY id`)
	if err != nil {
		return nil, common.WrapError(errors.Join(common.ErrDatabase, err), "list documents")
	}
	defer rows.Close()

	var out []*entity.Document
	for rows.Next() {
		d, err := r.scan(rows)
		if err != nil {
			return nil, common.WrapError(errors.Join(common.ErrDatabase, err), "list documents")
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, common.WrapError(errors.Join(common.ErrDatabase, err), "list documents")
	}
	return out, nil
}
