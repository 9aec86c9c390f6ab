package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/docforge/internal/entity"
)

// PageExtractor rasterizes every page of a PDF and OCRs the pages in parallel.
// It backs the opt-in PDF OCR strategy; the default PDF path never rasterizes.
type PageExtractor struct {
	cfg    Config
	engine Engine
	runner Runner
	logger *slog.Logger
}

func NewPageExtractor(cfg Config, engine Engine, runner Runner, logger *slog.Logger) *PageExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &PageExtractor{cfg: cfg.withDefaults(), engine: engine, runner: runner, logger: logger}
}

// ExtractPages returns one PageData per rendered page. A page whose OCR fails
// contributes empty content; only a failed rasterization is an error.
func (p *PageExtractor) ExtractPages(ctx context.Context, pdfPath string) (*entity.StructuredData, error) {
	tmpDir, err := os.MkdirTemp(p.cfg.WorkDir, "pdfpages-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			p.logger.Warn("failed to remove temp dir", "path", path, "error", err)
		}
	}(tmpDir)

	images, err := p.rasterize(ctx, pdfPath, tmpDir)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i, img := range images {
		g.Go(func() error {
			rec, err := p.engine.Recognize(gctx, img)
			if err != nil {
				p.logger.Warn("ocr.page.failed", "pdf", pdfPath, "page", i+1, "error", err)
				return nil
			}
			texts[i] = rec.Text
			return nil
		})
	}
	_ = g.Wait()

	sd := entity.NewStructuredData(texts)
	p.logger.Info("ocr.pages.done", "pdf", pdfPath, "pages", sd.PageCount)
	return sd, nil
}

func (p *PageExtractor) rasterize(ctx context.Context, pdfPath, dir string) ([]string, error) {
	ctx, cancel := WithStepTimeout(ctx, p.cfg.StepTimeout)
	defer cancel()

	prefix := filepath.Join(dir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := p.runner.Run(ctx, p.cfg.Pdftoppm, p.logger, "-r", strconv.Itoa(p.cfg.DPI), "-png", pdfPath, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w (%s)", err, truncate(string(errb), 512))
	}

	// prefix-1.png, prefix-2.png, ... zero padded by pdftoppm to a common width
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no images")
	}
	return matches, nil
}
