// Package slides turns a presentation deck into text by rasterizing every
// slide and running OCR over the images in page order.
package slides

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joseph-ayodele/docforge/internal/ocr"
)

// NoTextSentinel replaces an empty transcript so the renderer always has input.
const NoTextSentinel = "No readable text extracted from slides."

// Rasterizer renders one image per slide of deckPath into outDir.
type Rasterizer interface {
	Rasterize(ctx context.Context, deckPath, outDir string) error
}

// Slide is one entry of the ephemeral transcript.
type Slide struct {
	Index     int
	ImagePath string
	Text      string
}

// Transcript is the outcome of converting one deck.
type Transcript struct {
	Slides   []Slide
	Text     string
	Warnings []string
	Duration time.Duration
}

type Config struct {
	WorkDir string // per-deck output dirs live under WorkDir/<base>
	PDFDir  string // canonical PDF location, used to drop stale output
}

type Converter struct {
	cfg        Config
	rasterizer Rasterizer
	engine     ocr.Engine
	logger     *slog.Logger
}

func NewConverter(cfg Config, rasterizer Rasterizer, engine ocr.Engine, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{cfg: cfg, rasterizer: rasterizer, engine: engine, logger: logger}
}

// Convert runs prepare, rasterize, recognize and finalize for one deck.
// baseName is the stored file's name without extension.
func (c *Converter) Convert(ctx context.Context, deckPath, baseName string) (Transcript, error) {
	start := time.Now()
	logger := c.logger.With("deck", deckPath)

	outDir, err := c.prepare(baseName)
	if err != nil {
		return Transcript{}, err
	}
	defer func() {
		if err := os.RemoveAll(outDir); err != nil {
			logger.Warn("failed to remove slide images", "dir", outDir, "error", err)
		}
	}()

	var tr Transcript
	if err := c.rasterizer.Rasterize(ctx, deckPath, outDir); err != nil {
		// keep going with whatever images exist
		logger.Warn("slides.rasterize.failed", "error", err)
		tr.Warnings = append(tr.Warnings, "rasterize: "+err.Error())
	}

	images, err := listImages(outDir)
	if err != nil {
		return Transcript{}, fmt.Errorf("list slide images: %w", err)
	}

	var b strings.Builder
	for i, img := range images {
		name := filepath.Base(img)
		rec, err := c.engine.Recognize(ctx, img)
		if err != nil {
			logger.Warn("slides.ocr.failed", "slide", name, "error", err)
			tr.Warnings = append(tr.Warnings, fmt.Sprintf("slide %s: %v", name, err))
			continue
		}
		text := strings.TrimSpace(rec.Text)
		tr.Slides = append(tr.Slides, Slide{Index: i + 1, ImagePath: img, Text: text})
		if text == "" {
			continue
		}
		b.WriteString("\n--- Slide: " + name + " ---\n")
		b.WriteString(text)
		b.WriteString("\n")
	}

	tr.Text = b.String()
	if strings.TrimSpace(tr.Text) == "" {
		tr.Text = NoTextSentinel
	}
	tr.Duration = time.Since(start)
	logger.Info("slides.converted", "slides", len(images), "chars", len(tr.Text), "duration_ms", tr.Duration.Milliseconds())
	return tr, nil
}

// prepare removes leftovers of a previous run for the same base name and
// returns a fresh, empty output directory.
func (c *Converter) prepare(baseName string) (string, error) {
	if baseName == "" || baseName != filepath.Base(baseName) {
		return "", fmt.Errorf("invalid deck base name %q", baseName)
	}
	outDir := filepath.Join(c.cfg.WorkDir, "slides", baseName)

	if c.cfg.PDFDir != "" {
		stale := filepath.Join(c.cfg.PDFDir, baseName+".pdf")
		if err := os.Remove(stale); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("failed to remove stale canonical pdf", "path", stale, "error", err)
		}
	}
	if err := os.RemoveAll(outDir); err != nil {
		return "", fmt.Errorf("clear slide dir: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create slide dir: %w", err)
	}
	return outDir, nil
}

// listImages returns the PNGs in dir sorted by filename.
func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".png") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}
