package sink

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/docforge/internal/ocr"
)

// CommandSink hands entries to an external ingest script:
//
//	<python> <script> ingest --text <file> --doc_id <id> --filename <name>
//
// The script prints a JSON status object as its last line of output.
type CommandSink struct {
	python      string
	script      string
	workDir     string
	stepTimeout time.Duration
	runner      ocr.Runner
	logger      *slog.Logger
}

func NewCommandSink(python, script, workDir string, stepTimeout time.Duration, runner ocr.Runner, logger *slog.Logger) *CommandSink {
	if python == "" {
		python = "python"
	}
	if runner == nil {
		runner = ocr.ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandSink{python: python, script: script, workDir: workDir, stepTimeout: stepTimeout, runner: runner, logger: logger}
}

func (s *CommandSink) Index(ctx context.Context, e Entry) error {
	f, err := os.CreateTemp(s.workDir, "index-*.txt")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	defer func(path string) {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove temp file", "path", path, "error", err)
		}
	}(tmp)

	if _, err := f.WriteString(e.Text); err != nil {
		f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	ctx, cancel := ocr.WithStepTimeout(ctx, s.stepTimeout)
	defer cancel()

	out, errb, err := s.runner.Run(ctx, s.python, s.logger,
		s.script, "ingest", "--text", tmp, "--doc_id", e.IDString(), "--filename", e.Filename)
	if err != nil {
		return fmt.Errorf("ingest script: %w (%s)", err, strings.TrimSpace(string(errb)))
	}
	return checkReply(lastLine(out))
}

func lastLine(b []byte) []byte {
	b = bytes.TrimSpace(b)
	if i := bytes.LastIndexByte(b, '\n'); i >= 0 {
		return b[i+1:]
	}
	return b
}
