package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docforge/constants"
	"github.com/joseph-ayodele/docforge/internal/common"
	"github.com/joseph-ayodele/docforge/internal/entity"
	"github.com/joseph-ayodele/docforge/internal/export"
	"github.com/joseph-ayodele/docforge/internal/extract"
	"github.com/joseph-ayodele/docforge/internal/ocr"
	"github.com/joseph-ayodele/docforge/internal/render"
	"github.com/joseph-ayodele/docforge/internal/repository"
	"github.com/joseph-ayodele/docforge/internal/sink"
	"github.com/joseph-ayodele/docforge/internal/slides"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fixture struct {
	uploadDir string
	pdfDir    string
	repo      *repository.MemoryRepository
	registry  *extract.Registry
	renderer  *render.Renderer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		uploadDir: filepath.Join(root, "uploads"),
		pdfDir:    filepath.Join(root, "pdfs"),
		repo:      repository.NewMemoryRepository(),
	}
	require.NoError(t, os.MkdirAll(f.uploadDir, 0o755))
	f.registry = extract.NewDefaultRegistry(extract.Deps{WorkDir: filepath.Join(root, "work"), Logger: quietLogger()})
	f.renderer = render.NewRenderer(f.pdfDir, quietLogger())
	return f
}

func (f *fixture) upload(t *testing.T, name, mime, content string) Upload {
	t.Helper()
	stored := strings.TrimSuffix(name, filepath.Ext(name)) + "-1700000000000" + filepath.Ext(name)
	path := filepath.Join(f.uploadDir, stored)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return Upload{OriginalName: name, StoredName: stored, Path: path, MimeType: mime, Size: int64(len(content))}
}

// panicOn wraps an extractor and panics for one path, simulating a
// strategy bug outside the registry's guard.
type panicOn struct {
	Extractor
	path string
}

func (p panicOn) Extract(ctx context.Context, kind constants.DocumentKind, path string) extract.Result {
	if path == p.path {
		panic("decoder exploded")
	}
	return p.Extractor.Extract(ctx, kind, path)
}

type recordingIndexer struct {
	mu      sync.Mutex
	entries []sink.Entry
	err     error
}

func (r *recordingIndexer) Enqueue(e sink.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return r.err
}

func TestIngest_CSVBecomesTable(t *testing.T) {
	f := newFixture(t)
	o := NewOrchestrator(f.repo, f.registry, f.renderer, quietLogger())

	u := f.upload(t, "people.csv", "text/csv", "Name,Age\nAlice,30\nBob,25\n")
	out := o.Ingest(context.Background(), []Upload{u})
	require.Len(t, out, 1)
	require.True(t, out[0].Success, out[0].Message)
	assert.Equal(t, "File processed successfully", out[0].Message)

	view := out[0].Document
	require.NotNil(t, view)
	assert.True(t, view.IsTable)
	assert.Equal(t, entity.PDFURL(view.ID), view.PDFURL)

	doc, err := o.Get(context.Background(), view.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Age"}, doc.Headers)
	assert.Equal(t, []map[string]string{
		{"Name": "Alice", "Age": "30"},
		{"Name": "Bob", "Age": "25"},
	}, doc.TableRows)
	assert.Equal(t, constants.MethodTableCSV, doc.Method)
	assert.FileExists(t, doc.PDFPath)
	assert.Equal(t, filepath.Join(f.pdfDir, "people-1700000000000.pdf"), doc.PDFPath)
}

func TestIngest_TextIsCleaned(t *testing.T) {
	f := newFixture(t)
	o := NewOrchestrator(f.repo, f.registry, f.renderer, quietLogger())

	out := o.Ingest(context.Background(), []Upload{f.upload(t, "notes.txt", "text/plain", "page 3\n\nHello world")})
	require.True(t, out[0].Success, out[0].Message)
	assert.Equal(t, "Hello world", out[0].Document.Preview)
	assert.False(t, out[0].Document.IsTable)
	assert.Nil(t, out[0].Document.StructuredData)

	doc, err := o.Get(context.Background(), out[0].Document.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", doc.ExtractedText)
	assert.Empty(t, doc.TableRows)
}

type deckRasterizer []string

func (d deckRasterizer) Rasterize(_ context.Context, _ string, outDir string) error {
	for _, name := range d {
		if err := os.WriteFile(filepath.Join(outDir, name), []byte("png"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

type slideEngine map[string]string

func (m slideEngine) Recognize(_ context.Context, path string) (ocr.Recognition, error) {
	return ocr.Recognition{Text: m[filepath.Base(path)]}, nil
}

func TestIngest_SlideDeckExportsAsSlides(t *testing.T) {
	f := newFixture(t)
	work := t.TempDir()
	conv := slides.NewConverter(slides.Config{WorkDir: work, PDFDir: f.pdfDir},
		deckRasterizer{"1.png", "2.png"}, slideEngine{"1.png": "Budget", "2.png": "Roadmap ahead"}, quietLogger())
	registry := extract.NewDefaultRegistry(extract.Deps{Slides: conv, WorkDir: work, Logger: quietLogger()})
	o := NewOrchestrator(f.repo, registry, f.renderer, quietLogger())

	out := o.Ingest(context.Background(), []Upload{f.upload(t, "deck.pptx", "", "pptx bytes")})
	require.True(t, out[0].Success, out[0].Message)

	doc, err := o.Get(context.Background(), out[0].Document.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.MethodSlidesOCR, doc.Method)

	p := export.Project(doc)
	assert.Equal(t, export.TypeSlides, p.Type)
	assert.Equal(t, 2, p.SlideCount)
	require.Len(t, p.Slides, 2)
	assert.Equal(t, export.SlideContent{Slide: "1.png", Content: "Budget"}, p.Slides[0])
	assert.Equal(t, "Roadmap ahead", p.Slides[1].Content)
}

// waitForDeadline blocks until the per-file context ends.
type waitForDeadline struct{}

func (waitForDeadline) Extract(ctx context.Context, _ constants.DocumentKind, _ string) extract.Result {
	<-ctx.Done()
	return extract.Result{Method: constants.MethodExtractFailed}
}

func TestIngest_FileTimeoutFailsTheFile(t *testing.T) {
	f := newFixture(t)
	o := NewOrchestrator(f.repo, waitForDeadline{}, f.renderer, quietLogger(), WithFileTimeout(20*time.Millisecond))

	out := o.Ingest(context.Background(), []Upload{f.upload(t, "slow.txt", "text/plain", "body text here")})
	require.Len(t, out, 1)
	assert.False(t, out[0].Success)
	assert.Contains(t, out[0].Message, "Error processing file slow.txt")
	assert.Contains(t, out[0].Message, context.DeadlineExceeded.Error())

	docs, err := o.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestIngest_OneFailureDoesNotAffectSiblings(t *testing.T) {
	f := newFixture(t)
	a := f.upload(t, "a.txt", "text/plain", "first file body")
	b := f.upload(t, "b.txt", "text/plain", "second file body")
	c := f.upload(t, "c.txt", "text/plain", "third file body")

	o := NewOrchestrator(f.repo, panicOn{Extractor: f.registry, path: b.Path}, f.renderer, quietLogger(), WithWorkers(3))
	out := o.Ingest(context.Background(), []Upload{a, b, c})

	require.Len(t, out, 3)
	assert.True(t, out[0].Success)
	assert.Equal(t, "a.txt", out[0].Document.OriginalFileName)

	assert.False(t, out[1].Success)
	assert.Nil(t, out[1].Document)
	assert.Equal(t, "b.txt", out[1].OriginalFileName)
	assert.Contains(t, out[1].Message, "Error processing file b.txt")
	assert.Contains(t, out[1].Message, "decoder exploded")

	assert.True(t, out[2].Success)
	assert.Equal(t, "c.txt", out[2].Document.OriginalFileName)

	docs, err := o.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestIngest_EmptyTextRendersPlaceholder(t *testing.T) {
	f := newFixture(t)
	o := NewOrchestrator(f.repo, f.registry, f.renderer, quietLogger())

	out := o.Ingest(context.Background(), []Upload{f.upload(t, "blank.txt", "text/plain", "   \n\n")})
	require.True(t, out[0].Success, out[0].Message)
	assert.Equal(t, "", out[0].Document.Preview)
	assert.FileExists(t, out[0].Record.PDFPath)
}

type failingRenderer struct{ Renderer }

func (failingRenderer) RenderText(string, string) error { return errors.New("disk full") }

func TestIngest_RenderFailureIsFileFailure(t *testing.T) {
	f := newFixture(t)
	o := NewOrchestrator(f.repo, f.registry, failingRenderer{f.renderer}, quietLogger())

	out := o.Ingest(context.Background(), []Upload{f.upload(t, "x.txt", "text/plain", "content here")})
	assert.False(t, out[0].Success)
	assert.Equal(t, "Error processing file x.txt: render pdf: disk full", out[0].Message)

	docs, err := o.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestIngest_IndexesLongEnoughText(t *testing.T) {
	f := newFixture(t)
	ix := &recordingIndexer{err: errors.New("index queue full")}
	o := NewOrchestrator(f.repo, f.registry, f.renderer, quietLogger(), WithIndexer(ix))

	out := o.Ingest(context.Background(), []Upload{
		f.upload(t, "long.txt", "text/plain", "a sentence long enough to index"),
		f.upload(t, "short.txt", "text/plain", "tiny"),
	})
	require.True(t, out[0].Success)
	require.True(t, out[1].Success, "enqueue failure never fails the upload")

	require.Len(t, ix.entries, 1)
	assert.Equal(t, out[0].Document.ID, ix.entries[0].DocID)
	assert.Equal(t, "long.txt", ix.entries[0].Filename)
	assert.Equal(t, "a sentence long enough to index", ix.entries[0].Text)
}

type stubPages struct {
	sd  *entity.StructuredData
	err error
}

func (s stubPages) ExtractStructured(context.Context, string) (extract.Result, *entity.StructuredData, error) {
	if s.err != nil {
		return extract.Result{}, nil, s.err
	}
	return extract.Result{Text: s.sd.PlainText(), Method: constants.MethodPDFOCR}, s.sd, nil
}

func TestIngestEnhanced_ScannedPDFUsesOCR(t *testing.T) {
	f := newFixture(t)
	sd := entity.NewStructuredData([]string{"Invoice total", "Thank you"})
	o := NewOrchestrator(f.repo, f.registry, f.renderer, quietLogger(), WithStructuredOCR(stubPages{sd: sd}))

	// not a parseable PDF, so the text layer comes back empty
	res := o.IngestEnhanced(context.Background(), f.upload(t, "scan.pdf", "application/pdf", "%PDF-broken"))
	require.True(t, res.Success, res.Message)
	require.NotNil(t, res.Document.StructuredData)
	assert.Equal(t, 2, res.Document.StructuredData.PageCount)
	assert.Equal(t, "Invoice total\n\nThank you", res.Document.Preview)
	assert.Equal(t, constants.MethodPDFOCR, res.Record.Method)
}

func TestIngestEnhanced_OCRFailureKeepsTextLayer(t *testing.T) {
	f := newFixture(t)
	o := NewOrchestrator(f.repo, f.registry, f.renderer, quietLogger(), WithStructuredOCR(stubPages{err: errors.New("pdftoppm missing")}))

	res := o.IngestEnhanced(context.Background(), f.upload(t, "scan.pdf", "application/pdf", "%PDF-broken"))
	require.True(t, res.Success, res.Message)
	assert.Nil(t, res.Document.StructuredData)
	assert.Contains(t, res.Record.Warnings, "pdf ocr: pdftoppm missing")
}

func TestDelete_RemovesRecordAndFiles(t *testing.T) {
	f := newFixture(t)
	o := NewOrchestrator(f.repo, f.registry, f.renderer, quietLogger())
	out := o.Ingest(context.Background(), []Upload{f.upload(t, "a.txt", "text/plain", "hello there")})
	require.True(t, out[0].Success)
	doc := out[0].Record

	// source already gone; delete still succeeds
	require.NoError(t, os.Remove(doc.Path))

	deleted, err := o.Delete(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, deleted.ID)
	assert.NoFileExists(t, doc.PDFPath)

	_, err = o.Get(context.Background(), doc.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = o.Delete(context.Background(), doc.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("short"))
	exact := strings.Repeat("é", PreviewLength)
	assert.Equal(t, exact, Preview(exact))
	long := strings.Repeat("x", PreviewLength+1)
	assert.Equal(t, strings.Repeat("x", PreviewLength)+"...", Preview(long))
}
