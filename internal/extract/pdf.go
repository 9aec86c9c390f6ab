package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/docforge/constants"
	"github.com/joseph-ayodele/docforge/internal/entity"
)

// WarningNeedsOCR marks a PDF with no text layer but embedded images.
const WarningNeedsOCR = "needs_ocr"

// PDFExtractor reads the embedded text layer only. Scanned PDFs come back
// empty; OCR is opt-in through PDFOCRExtractor.
type PDFExtractor struct {
	logger *slog.Logger
}

func NewPDFExtractor(logger *slog.Logger) *PDFExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFExtractor{logger: logger}
}

func (e *PDFExtractor) Extract(ctx context.Context, path string) (Result, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return Result{Method: constants.MethodPDFUnavailable}, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	res := Result{Pages: r.NumPage()}
	var b strings.Builder
	for i := 1; i <= res.Pages; i++ {
		if err := ctx.Err(); err != nil {
			return Result{Method: constants.MethodPDFUnavailable, Pages: res.Pages}, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Warn("pdf.page.failed", "path", path, "page", i, "error", err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("page %d: %v", i, err))
			continue
		}
		if b.Len() > 0 && text != "" {
			b.WriteString("\n")
		}
		b.WriteString(text)
	}

	res.Text = b.String()
	if strings.TrimSpace(res.Text) != "" {
		res.Method = constants.MethodPDFText
		return res, nil
	}

	res.Text = ""
	res.Method = constants.MethodPDFEmpty
	if scanned, err := HasImageXObjects(path); err != nil {
		e.logger.Debug("pdf.inspect.failed", "path", path, "error", err)
	} else if scanned {
		res.Warnings = append(res.Warnings, WarningNeedsOCR)
	}
	return res, nil
}

// HasImageXObjects reports whether any page of the PDF references an image
// XObject. Callers use it after the text layer came back empty.
func HasImageXObjects(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	ctx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return false, fmt.Errorf("pdfcpu read: %w", err)
	}
	if ctx.Optimize == nil {
		return false, nil
	}
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		if len(pdfcpu.ImageObjNrs(ctx, pageNr)) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// PageOCR is the subset of ocr.PageExtractor used here.
type PageOCR interface {
	ExtractPages(ctx context.Context, pdfPath string) (*entity.StructuredData, error)
}

// PDFOCRExtractor rasterizes and OCRs every page. It is never selected by
// default; the enhanced upload path calls it explicitly.
type PDFOCRExtractor struct {
	pages PageOCR
}

func NewPDFOCRExtractor(pages PageOCR) *PDFOCRExtractor {
	return &PDFOCRExtractor{pages: pages}
}

func (e *PDFOCRExtractor) Extract(ctx context.Context, path string) (Result, error) {
	res, _, err := e.ExtractStructured(ctx, path)
	return res, err
}

// ExtractStructured returns the page-annotated output alongside the Result.
func (e *PDFOCRExtractor) ExtractStructured(ctx context.Context, path string) (Result, *entity.StructuredData, error) {
	sd, err := e.pages.ExtractPages(ctx, path)
	if err != nil {
		return Result{Method: constants.MethodPDFUnavailable}, nil, err
	}
	return Result{Text: sd.PlainText(), Method: constants.MethodPDFOCR, Pages: sd.PageCount}, sd, nil
}
