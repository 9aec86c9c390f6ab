package repository

import (
	"context"
	_ "embed"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/docforge/internal/common"
	"github.com/joseph-ayodele/docforge/internal/entity"
)

//go:embed schema/postgres.sql
var postgresSchema string

type Config struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ConfigFrom maps the application database settings onto pool settings.
func ConfigFrom(c common.DatabaseConfig) Config {
	return Config{
		DSN:              c.DSN,
		MaxConns:         c.MaxConns,
		MinConns:         c.MinConns,
		MaxConnLifetime:  c.MaxConnLifetime,
		MaxConnIdleTime:  c.MaxConnIdleTime,
		DialTimeout:      c.DialTimeout,
		StatementTimeout: c.StatementTimeout,
	}
}

// Open creates a pgx pool and makes sure the documents table exists.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	logger.Info("connecting to database")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database dsn", "error", err)
		return nil, common.NewAppError("DB_CONFIG", "parse dsn", errors.Join(common.ErrInvalidInput, err))
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "docforge"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = cfg.StatementTimeout.String()
	}

	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, common.WrapError(errors.Join(common.ErrDatabase, err), "connect")
	}
	if _, err := pool.Exec(dialCtx, postgresSchema); err != nil {
		pool.Close()
		logger.Error("failed to apply schema", "error", err)
		return nil, common.NewAppError("DB_SCHEMA", "apply postgres schema", errors.Join(common.ErrDatabase, err))
	}

	logger.Info("successfully connected to database")
	return pool, nil
}

// Close closes the database connections gracefully
func Close(pool *pgxpool.Pool, logger *slog.Logger) {
	logger.Info("closing database connections")
	if pool != nil {
		pool.Close()
	}
	logger.Info("database connections closed")
}

// HealthCheck pings the pool to catch DSN issues early.
func HealthCheck(ctx context.Context, pool *pgxpool.Pool, timeout time.Duration, logger *slog.Logger) error {
	logger.Debug("pinging database")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error("database ping failed", "error", err)
		return err
	}
	logger.Debug("database ping successful")
	return nil
}

type PostgresRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresRepository(pool *pgxpool.Pool, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{pool: pool, logger: logger}
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return HealthCheck(ctx, r.pool, 0, r.logger)
}

func (r *PostgresRepository) Insert(ctx context.Context, doc *entity.Document) (*entity.Document, error) {
	jf, err := encodeJSONFields(doc)
	if err != nil {
		return nil, err
	}
	created := doc.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	var id int64
	err = r.pool.QueryRow(ctx, `INSERT INTO documents (original_file_name, stored_file_name, mime_type, size, path, kind,
		pdf_path, extracted_text, preview, is_table, headers, table_rows, method, warnings, structured_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id`,
		doc.OriginalFileName, doc.StoredFileName, doc.MimeType, doc.Size, doc.Path, doc.Kind.String(),
		doc.PDFPath, doc.ExtractedText, doc.Preview, doc.IsTable, nullJSON(jf.Headers), nullJSON(jf.TableRows),
		doc.Method, nullJSON(jf.Warnings), nullJSON(jf.StructuredData), created).Scan(&id)
	if err != nil {
		r.logger.Error("failed to insert document", "stored_file_name", doc.StoredFileName, "error", err)
		return nil, common.WrapError(errors.Join(common.ErrDatabase, err), "insert document")
	}

	out := cloneDocument(doc)
	out.ID = id
	out.PDFURL = entity.PDFURL(id)
	out.CreatedAt = created
	return out, nil
}

func (r *PostgresRepository) scan(s scanner) (*entity.Document, error) {
	var ts time.Time
	d, err := scanDocument(s, &ts)
	if err != nil {
		return nil, err
	}
	d.CreatedAt = ts
	return d, nil
}

func (r *PostgresRepository) Find(ctx context.Context, id int64) (*entity.Document, error) {
	d, err := r.scan(r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, common.WrapError(errors.Join(common.ErrDatabase, err), "find document")
	}
	return d, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) (*entity.Document, error) {
	d, err := r.scan(r.pool.QueryRow(ctx, `DELETE FROM documents WHERE id = $1 RETURNING `+documentColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, common.WrapError(errors.Join(common.ErrDatabase, err), "delete document")
	}
	return d, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*entity.Document, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY id`)
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
