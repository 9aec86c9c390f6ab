package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/docforge/internal/app"
	"github.com/joseph-ayodele/docforge/internal/common"
	"github.com/joseph-ayodele/docforge/internal/ocr"
)

type output struct {
	Path       string   `json:"path"`
	Text       string   `json:"text"`
	Language   string   `json:"language,omitempty"`
	Confidence float32  `json:"confidence,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	DurationMS int64    `json:"duration_ms"`
	Pages      any      `json:"structured_data,omitempty"`
}

func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "overall timeout")
	conf := flag.Bool("conf", false, "report mean word confidence (extra tesseract TSV pass)")
	flag.Parse()

	cfg := common.LoadConfig()
	if *conf {
		cfg.OCR.TSVConfidence = true
	}
	logger := app.NewLogger(cfg.SlogLevel())

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "runocr [-timeout 5m] [-conf] <image-or-pdf>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	ocrCfg := app.OCRConfig(cfg)
	runner := ocr.ExecRunner{}
	engine := ocr.NewTesseract(ocrCfg, logger, ocr.WithRunner(runner))

	start := time.Now()
	out := output{Path: path}
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		sd, err := ocr.NewPageExtractor(ocrCfg, engine, runner, logger).ExtractPages(ctx, path)
		if err != nil {
			logger.Error("pdf ocr failed", "path", path, "error", err)
			os.Exit(1)
		}
		out.Text = sd.PlainText()
		out.Pages = sd
	} else {
		rec, err := engine.Recognize(ctx, path)
		if err != nil {
			logger.Error("ocr failed", "path", path, "error", err)
			os.Exit(1)
		}
		out.Text = rec.Text
		out.Language = rec.Language
		out.Confidence = rec.Confidence
		out.Warnings = rec.Warnings
	}
	out.DurationMS = time.Since(start).Milliseconds()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("encode result", "error", err)
		os.Exit(1)
	}
}
