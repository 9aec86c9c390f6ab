// Package pipeline runs uploaded files through classify, extract, clean,
// render and persist, one isolated task per file.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/docforge/constants"
	"github.com/joseph-ayodele/docforge/internal/clean"
	"github.com/joseph-ayodele/docforge/internal/entity"
	"github.com/joseph-ayodele/docforge/internal/extract"
	"github.com/joseph-ayodele/docforge/internal/repository"
	"github.com/joseph-ayodele/docforge/internal/sink"
)

const (
	PreviewLength     = 500
	DefaultMinIndexed = 10
)

// Extractor is the never-failing dispatch the orchestrator depends on;
// *extract.Registry implements it.
type Extractor interface {
	Extract(ctx context.Context, kind constants.DocumentKind, path string) extract.Result
}

type Renderer interface {
	PathFor(storedName string) string
	RenderText(text, outPath string) error
	RenderTable(headers []string, rows []map[string]string, outPath string) error
}

// StructuredOCR produces per-page text for the enhanced path.
type StructuredOCR interface {
	ExtractStructured(ctx context.Context, path string) (extract.Result, *entity.StructuredData, error)
}

// Indexer accepts entries for asynchronous delivery; *async.IndexQueue implements it.
type Indexer interface {
	Enqueue(e sink.Entry) error
}

type Orchestrator struct {
	repo        repository.DocumentRepository
	extractor   Extractor
	renderer    Renderer
	pageOCR     StructuredOCR
	indexer     Indexer
	workers     int
	fileTimeout time.Duration
	minIndexed  int
	logger      *slog.Logger
}

type Option func(*Orchestrator)

func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithFileTimeout bounds the whole pipeline of a single file.
func WithFileTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.fileTimeout = d
		}
	}
}

func WithIndexer(ix Indexer) Option {
	return func(o *Orchestrator) { o.indexer = ix }
}

func WithStructuredOCR(s StructuredOCR) Option {
	return func(o *Orchestrator) { o.pageOCR = s }
}

// WithMinIndexLength sets the length text must exceed to be indexed.
func WithMinIndexLength(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.minIndexed = n
		}
	}
}

func NewOrchestrator(repo repository.DocumentRepository, ex Extractor, r Renderer, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		repo:        repo,
		extractor:   ex,
		renderer:    r,
		workers:     runtime.NumCPU(),
		fileTimeout: 10 * time.Minute,
		minIndexed:  DefaultMinIndexed,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Ingest processes a batch with bounded parallelism. Outcomes are returned
// in input order; one file failing never affects its siblings.
func (o *Orchestrator) Ingest(ctx context.Context, uploads []Upload) []FileOutcome {
	out := make([]FileOutcome, len(uploads))
	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, u := range uploads {
		g.Go(func() error {
			out[i] = o.processFile(ctx, u, false)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range out {
		if !r.Success {
			failed++
		}
	}
	o.logger.Info("pipeline.batch.done", "files", len(uploads), "failed", failed)
	return out
}

// IngestEnhanced runs the pipeline for one file and, for PDFs, also keeps
// per-page OCR output. When the text layer is empty the OCR text replaces it.
func (o *Orchestrator) IngestEnhanced(ctx context.Context, u Upload) FileOutcome {
	return o.processFile(ctx, u, true)
}

func (o *Orchestrator) processFile(ctx context.Context, u Upload, enhanced bool) (res FileOutcome) {
	logger := o.logger.With("file", u.OriginalName, "stored", u.StoredName)
	defer func() {
		if p := recover(); p != nil {
			logger.Error("pipeline.file.panic", "panic", p, "stack", string(debug.Stack()))
			res = failure(u, fmt.Errorf("%v", p))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, o.fileTimeout)
	defer cancel()

	doc, err := o.run(ctx, u, enhanced, logger)
	if err != nil {
		logger.Error("pipeline.file.failed", "error", err)
		return failure(u, err)
	}
	o.index(doc, logger)
	return success(doc, enhanced)
}

func (o *Orchestrator) run(ctx context.Context, u Upload, enhanced bool, logger *slog.Logger) (*entity.Document, error) {
	start := time.Now()
	kind := constants.Classify(u.OriginalName, u.MimeType)

	res := o.extractor.Extract(ctx, kind, u.Path)
	logger.Info("pipeline.extracted", "kind", kind.String(), "method", res.Method, "chars", len(res.Text), "table", res.IsTable)

	var structured *entity.StructuredData
	if enhanced && kind == constants.KindPDF && o.pageOCR != nil {
		ocrRes, sd, err := o.pageOCR.ExtractStructured(ctx, u.Path)
		if err != nil {
			logger.Warn("pipeline.pdf_ocr.failed", "error", err)
			res.Warnings = append(res.Warnings, "pdf ocr: "+err.Error())
		} else {
			structured = sd
			if strings.TrimSpace(res.Text) == "" {
				res.Text = ocrRes.Text
				res.Method = ocrRes.Method
			}
		}
	}

	text := res.Text
	if !res.IsTable {
		text = clean.Clean(text)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extraction: %w", err)
	}

	pdfPath := o.renderer.PathFor(u.StoredName)
	var err error
	if res.IsTable {
		err = o.renderer.RenderTable(res.Headers, res.TableRows, pdfPath)
	} else {
		err = o.renderer.RenderText(text, pdfPath)
	}
	if err != nil {
		removeQuietly(pdfPath, logger)
		return nil, fmt.Errorf("render pdf: %w", err)
	}

	doc := &entity.Document{
		OriginalFileName: u.OriginalName,
		StoredFileName:   u.StoredName,
		MimeType:         u.MimeType,
		Size:             u.Size,
		Path:             u.Path,
		Kind:             kind,
		PDFPath:          pdfPath,
		ExtractedText:    text,
		Preview:          Preview(text),
		IsTable:          res.IsTable,
		Headers:          res.Headers,
		TableRows:        res.TableRows,
		Method:           res.Method,
		Warnings:         res.Warnings,
		StructuredData:   structured,
	}
	saved, err := o.repo.Insert(ctx, doc)
	if err != nil {
		removeQuietly(pdfPath, logger)
		return nil, fmt.Errorf("save record: %w", err)
	}
	logger.Info("pipeline.file.done", "id", saved.ID, "method", saved.Method, "duration_ms", time.Since(start).Milliseconds())
	return saved, nil
}

// index hands the text to the sink queue; it never affects the outcome.
func (o *Orchestrator) index(doc *entity.Document, logger *slog.Logger) {
	if o.indexer == nil || utf8.RuneCountInString(doc.ExtractedText) <= o.minIndexed {
		return
	}
	if err := o.indexer.Enqueue(sink.Entry{DocID: doc.ID, Filename: doc.OriginalFileName, Text: doc.ExtractedText}); err != nil {
		logger.Warn("pipeline.index.skipped", "id", doc.ID, "error", err)
	}
}

func (o *Orchestrator) Get(ctx context.Context, id int64) (*entity.Document, error) {
	return o.repo.Find(ctx, id)
}

func (o *Orchestrator) List(ctx context.Context) ([]*entity.Document, error) {
	return o.repo.List(ctx)
}

// Delete removes the record, then unlinks the source and canonical PDF.
// Missing files are ignored; other unlink errors are only logged.
func (o *Orchestrator) Delete(ctx context.Context, id int64) (*entity.Document, error) {
	doc, err := o.repo.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	logger := o.logger.With("id", id)
	removeQuietly(doc.Path, logger)
	removeQuietly(doc.PDFPath, logger)
	logger.Info("pipeline.document.deleted", "file", doc.OriginalFileName)
	return doc, nil
}

func removeQuietly(path string, logger *slog.Logger) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to remove file", "path", path, "error", err)
	}
}

// Preview returns the first PreviewLength runes of text, with "..." when cut.
func Preview(text string) string {
	if utf8.RuneCountInString(text) <= PreviewLength {
		return text
	}
	return string([]rune(text)[:PreviewLength]) + "..."
}
