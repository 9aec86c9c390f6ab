// Package app wires configuration into a ready pipeline for the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/docforge/internal/async"
	"github.com/joseph-ayodele/docforge/internal/common"
	"github.com/joseph-ayodele/docforge/internal/extract"
	"github.com/joseph-ayodele/docforge/internal/ocr"
	"github.com/joseph-ayodele/docforge/internal/pipeline"
	"github.com/joseph-ayodele/docforge/internal/render"
	"github.com/joseph-ayodele/docforge/internal/repository"
	"github.com/joseph-ayodele/docforge/internal/sink"
	"github.com/joseph-ayodele/docforge/internal/slides"
)

type App struct {
	Config       *common.Config
	Repo         repository.DocumentRepository
	Engine       *ocr.Tesseract
	Pages        *ocr.PageExtractor
	Registry     *extract.Registry
	Queue        *async.IndexQueue
	Orchestrator *pipeline.Orchestrator

	closeRepo func()
	logger    *slog.Logger
}

// NewLogger builds the JSON logger used by every binary.
func NewLogger(level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// OCRConfig maps the ocr section onto the engine configuration.
func OCRConfig(cfg *common.Config) ocr.Config {
	return ocr.Config{
		Tesseract:   cfg.OCR.Tesseract,
		Pdftoppm:    cfg.OCR.Pdftoppm,
		Language:    cfg.OCR.Language,
		TessdataDir: cfg.OCR.TessdataDir,
		DPI:         cfg.OCR.DPI,
		PSM:         cfg.OCR.PSM,

		EnableTSVConfidence: cfg.OCR.TSVConfidence,

		StepTimeout: cfg.Pipeline.StepTimeout,
		WorkDir:     cfg.Storage.WorkDir,
	}
}

// New opens the record store and builds the pipeline. Close must be called
// to drain the index queue and release the store.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	for _, dir := range []string{cfg.Storage.UploadDir, cfg.Storage.PDFDir, cfg.Storage.WorkDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	repo, closeRepo, err := repository.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	runner := ocr.ExecRunner{}
	ocrCfg := OCRConfig(cfg)
	engine := ocr.NewTesseract(ocrCfg, logger, ocr.WithRunner(runner))
	pages := ocr.NewPageExtractor(ocrCfg, engine, runner, logger)

	raster := slides.NewOfficeRasterizer(cfg.Slides.Soffice, cfg.OCR.Pdftoppm, cfg.OCR.DPI, cfg.Pipeline.StepTimeout, runner, logger)
	converter := slides.NewConverter(slides.Config{WorkDir: cfg.Storage.WorkDir, PDFDir: cfg.Storage.PDFDir}, raster, engine, logger)

	registry := extract.NewDefaultRegistry(extract.Deps{
		Engine:      engine,
		Slides:      converter,
		Runner:      runner,
		Soffice:     cfg.Slides.Soffice,
		WorkDir:     cfg.Storage.WorkDir,
		StepTimeout: cfg.Pipeline.StepTimeout,
		Logger:      logger,
	})

	s, err := sink.NewFromConfig(cfg.Sink, cfg.Storage.WorkDir, runner, logger)
	if err != nil {
		closeRepo()
		return nil, fmt.Errorf("index sink: %w", err)
	}
	queue := async.NewIndexQueue(s, logger,
		async.WithWorkers(cfg.Sink.Workers),
		async.WithQueueSize(cfg.Sink.QueueSize),
		async.WithRetries(cfg.Sink.Retries),
		async.WithBackoff(cfg.Sink.Backoff),
		async.WithAttemptTimeout(cfg.Sink.Timeout),
	)

	orch := pipeline.NewOrchestrator(repo, registry, render.NewRenderer(cfg.Storage.PDFDir, logger), logger,
		pipeline.WithWorkers(cfg.Pipeline.Workers),
		pipeline.WithFileTimeout(cfg.Pipeline.FileTimeout),
		pipeline.WithIndexer(queue),
		pipeline.WithStructuredOCR(extract.NewPDFOCRExtractor(pages)),
		pipeline.WithMinIndexLength(cfg.Pipeline.MinIndexLength),
	)

	logger.Info("pipeline ready",
		"store", cfg.Storage.Driver,
		"sink", cfg.Sink.Kind,
		"workers", cfg.Pipeline.Workers,
	)
	return &App{
		Config:       cfg,
		Repo:         repo,
		Engine:       engine,
		Pages:        pages,
		Registry:     registry,
		Queue:        queue,
		Orchestrator: orch,
		closeRepo:    closeRepo,
		logger:       logger,
	}, nil
}

// Close drains pending index deliveries, bounded by timeout, then closes the store.
func (a *App) Close(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	a.Queue.Shutdown(ctx)
	delivered, dead := a.Queue.Stats()
	a.logger.Info("index queue stopped", "delivered", delivered, "dead_lettered", dead)
	a.closeRepo()
}
