package slides

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/docforge/internal/ocr"
)

// OfficeRasterizer converts a deck to PDF with LibreOffice, then renders
// every page to PNG with pdftoppm.
type OfficeRasterizer struct {
	Soffice     string
	Pdftoppm    string
	DPI         int
	StepTimeout time.Duration

	runner ocr.Runner
	logger *slog.Logger
}

func NewOfficeRasterizer(soffice, pdftoppm string, dpi int, stepTimeout time.Duration, runner ocr.Runner, logger *slog.Logger) *OfficeRasterizer {
	if soffice == "" {
		soffice = "soffice"
	}
	if pdftoppm == "" {
		pdftoppm = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = 150
	}
	if runner == nil {
		runner = ocr.ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OfficeRasterizer{
		Soffice:     soffice,
		Pdftoppm:    pdftoppm,
		DPI:         dpi,
		StepTimeout: stepTimeout,
		runner:      runner,
		logger:      logger,
	}
}

func (r *OfficeRasterizer) Rasterize(ctx context.Context, deckPath, outDir string) error {
	pdfPath, err := r.toPDF(ctx, deckPath, outDir)
	if err != nil {
		return err
	}
	// the intermediate PDF must not be mistaken for a slide image
	defer os.Remove(pdfPath)

	ctx, cancel := ocr.WithStepTimeout(ctx, r.StepTimeout)
	defer cancel()

	// pdftoppm pads page numbers to a common width, so lexicographic order is slide order
	prefix := filepath.Join(outDir, "slide")
	if _, errb, err := r.runner.Run(ctx, r.Pdftoppm, r.logger, "-r", strconv.Itoa(r.DPI), "-png", pdfPath, prefix); err != nil {
		return fmt.Errorf("pdftoppm: %w (%s)", err, strings.TrimSpace(string(errb)))
	}
	return nil
}

func (r *OfficeRasterizer) toPDF(ctx context.Context, deckPath, outDir string) (string, error) {
	ctx, cancel := ocr.WithStepTimeout(ctx, r.StepTimeout)
	defer cancel()

	// soffice --headless --convert-to pdf --outdir <dir> <deck>
	_, errb, err := r.runner.Run(ctx, r.Soffice, r.logger, "--headless", "--convert-to", "pdf", "--outdir", outDir, deckPath)
	if err != nil {
		return "", fmt.Errorf("soffice convert: %w (%s)", err, strings.TrimSpace(string(errb)))
	}
	base := strings.TrimSuffix(filepath.Base(deckPath), filepath.Ext(deckPath))
	pdfPath := filepath.Join(outDir, base+".pdf")
	if _, err := os.Stat(pdfPath); err != nil {
		return "", fmt.Errorf("soffice produced no pdf: %w", err)
	}
	return pdfPath, nil
}
