package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// MinLineLength is the shortest trimmed line kept from raw engine output.
const MinLineLength = 3

type Config struct {
	Tesseract string // binary name or absolute path; if empty -> "tesseract"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"

	Language    string // default "eng"
	TessdataDir string
	DPI         int // rasterization DPI for PDF pages, default 300
	PSM         int // page segmentation mode, default 3 (fully automatic)

	EnableTSVConfidence bool

	StepTimeout time.Duration // per external command; 0 = caller's context only
	Workers     int           // parallel page OCR, default 4
	WorkDir     string        // parent for temp dirs; "" = os.TempDir()
}

func (c Config) withDefaults() Config {
	if c.Tesseract == "" {
		c.Tesseract = "tesseract"
	}
	if c.Pdftoppm == "" {
		c.Pdftoppm = "pdftoppm"
	}
	if c.Language == "" {
		c.Language = "eng"
	}
	if c.DPI <= 0 {
		c.DPI = 300
	}
	if c.PSM <= 0 {
		c.PSM = 3
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	return c
}

// Recognition is the result of running the engine over one image.
type Recognition struct {
	Text       string
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32 // 0 when not computed
}

// Engine turns a raster image into text for a single fixed language model.
type Engine interface {
	Recognize(ctx context.Context, imagePath string) (Recognition, error)
}

// Tesseract is the Engine backed by the tesseract CLI.
type Tesseract struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

type Option func(*Tesseract)

// WithRunner replaces the command runner, mainly for tests.
func WithRunner(r Runner) Option {
	return func(t *Tesseract) {
		if r != nil {
			t.runner = r
		}
	}
}

func NewTesseract(cfg Config, logger *slog.Logger, opts ...Option) *Tesseract {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tesseract{cfg: cfg.withDefaults(), runner: ExecRunner{}, logger: logger}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Tesseract) Config() Config { return t.cfg }

// Recognize preprocesses the image (grayscale, contrast stretch, sharpen) and
// runs tesseract on the result. Lines shorter than MinLineLength are dropped.
func (t *Tesseract) Recognize(ctx context.Context, imagePath string) (Recognition, error) {
	start := time.Now()
	res := Recognition{Language: t.cfg.Language}

	tmpDir, err := os.MkdirTemp(t.cfg.WorkDir, "ocr-*")
	if err != nil {
		return res, fmt.Errorf("create temp dir: %w", err)
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			t.logger.Warn("failed to remove temp dir", "path", path, "error", err)
		}
	}(tmpDir)

	prepped, err := Preprocess(imagePath, tmpDir)
	if err != nil {
		t.logger.Error("ocr.preprocess.failed", "path", imagePath, "error", err)
		res.Duration = time.Since(start)
		return res, fmt.Errorf("preprocess %s: %w", imagePath, err)
	}

	raw, warn, err := t.tesseractOCR(ctx, prepped)
	res.Warnings = append(res.Warnings, warn...)
	if err != nil {
		res.Duration = time.Since(start)
		return res, err
	}
	res.Text = FilterShortLines(raw)

	if t.cfg.EnableTSVConfidence {
		if c, err := t.tesseractTSVConfidence(ctx, prepped); err == nil {
			res.Confidence = c
		} else {
			res.Warnings = append(res.Warnings, err.Error())
		}
	}

	res.Duration = time.Since(start)
	t.logger.Debug("ocr.recognized", "path", imagePath, "chars", len(res.Text), "duration_ms", res.Duration.Milliseconds())
	return res, nil
}

func (t *Tesseract) baseArgs(path string) []string {
	args := []string{path, "stdout", "-l", t.cfg.Language, "--psm", strconv.Itoa(t.cfg.PSM)}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	return args
}

func (t *Tesseract) tesseractOCR(ctx context.Context, path string) (string, []string, error) {
	ctx, cancel := WithStepTimeout(ctx, t.cfg.StepTimeout)
	defer cancel()

	// tesseract <file> stdout -l <lang> --psm <n>
	out, errb, err := t.runner.Run(ctx, t.cfg.Tesseract, t.logger, t.baseArgs(path)...)
	if err != nil {
		return "", nonEmpty(string(errb)), fmt.Errorf("tesseract: %w", err)
	}
	return string(out), nil, nil
}

// FilterShortLines trims every line and drops those shorter than MinLineLength runes.
func FilterShortLines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	kept := make([]string, 0, len(lines))
	for _, ln := range lines {
		ln = strings.TrimSpace(ln)
		if utf8.RuneCountInString(ln) < MinLineLength {
			continue
		}
		kept = append(kept, ln)
	}
	return strings.Join(kept, "\n")
}

func nonEmpty(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return []string{truncate(s, 1<<10)}
}
