package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joseph-ayodele/docforge/internal/app"
	"github.com/joseph-ayodele/docforge/internal/common"
	"github.com/joseph-ayodele/docforge/internal/export"
	"github.com/joseph-ayodele/docforge/internal/ingest"
	"github.com/joseph-ayodele/docforge/internal/pipeline"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		inmem      = flag.Bool("inmem", false, "keep records in memory instead of sqlite")
		dir        = flag.String("dir", "", "directory of documents to ingest (required)")
		out        = flag.String("out", "", "directory for JSON projections and table workbooks (optional)")
		showHidden = flag.Bool("hidden", false, "include hidden files and directories")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}

	cfg := common.LoadConfig()
	if *inmem {
		cfg.Storage.Driver = "memory"
	} else if cfg.Storage.Driver == "" || cfg.Storage.Driver == "memory" {
		cfg.Storage.Driver = "sqlite"
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && (a.Key == slog.TimeKey || a.Key == slog.LevelKey) {
				return slog.Attr{}
			}
			return a
		},
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files, stats, err := ingest.CollectFiles(*dir, !*showHidden)
	if err != nil {
		logger.Error("failed to walk directory", "dir", *dir, "error", err)
		os.Exit(1)
	}
	logger.Info("directory scanned",
		"dir", *dir,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"skipped", stats.Skipped,
		"failed", stats.Failed)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer a.Close(time.Minute)

	store := ingest.NewStore(cfg.Storage.UploadDir)
	uploads := make([]pipeline.Upload, 0, len(files))
	copyFailures := 0
	for _, f := range files {
		u, err := store.SaveFile(f)
		if err != nil {
			logger.Error("failed to copy file", "path", f, "error", err)
			copyFailures++
			continue
		}
		uploads = append(uploads, u)
	}

	start := time.Now()
	results := a.Orchestrator.Ingest(ctx, uploads)

	processed, failures := 0, copyFailures
	for _, r := range results {
		if !r.Success {
			failures++
			fmt.Printf("FAIL %s\n", r.Message)
			continue
		}
		processed++
		if *out != "" {
			if err := writeArtifacts(*out, r); err != nil {
				logger.Error("failed to write export", "id", r.Record.ID, "error", err)
			}
		}
	}

	logger.Info("batch processing complete",
		"files_found", len(files),
		"files_processed", processed,
		"failures", failures,
		"duration_ms", time.Since(start).Milliseconds())

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files found: %d\n", len(files))
	fmt.Printf("- Files processed: %d\n", processed)
	fmt.Printf("- Failures: %d\n", failures)
	fmt.Printf("- PDFs: %s\n", cfg.Storage.PDFDir)
	if *out != "" {
		fmt.Printf("- Exports: %s\n", *out)
	}
}

// writeArtifacts stores the JSON projection of a record and, for tables, a workbook.
func writeArtifacts(dir string, r pipeline.FileOutcome) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	doc := r.Record
	base := strings.TrimSuffix(doc.StoredFileName, filepath.Ext(doc.StoredFileName))

	b, err := export.MarshalProjection(export.Project(doc))
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, base+".json"), b, 0o644); err != nil {
		return err
	}
	if !doc.IsTable {
		return nil
	}
	x, err := export.TableXLSX(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, base+".xlsx"), x, 0o644)
}
