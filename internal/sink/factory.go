package sink

import (
	"log/slog"

	"github.com/joseph-ayodele/docforge/internal/common"
	"github.com/joseph-ayodele/docforge/internal/ocr"
)

// NewFromConfig builds the sink named by sink.kind.
func NewFromConfig(cfg common.SinkConfig, workDir string, runner ocr.Runner, logger *slog.Logger) (Sink, error) {
	switch cfg.Kind {
	case "", "none":
		return NopSink{}, nil
	case "http":
		return NewHTTPSink(cfg.URL, logger, WithRate(cfg.RatePerSec)), nil
	case "command":
		return NewCommandSink(cfg.PythonBin, cfg.ScriptPath, workDir, cfg.Timeout, runner, logger), nil
	default:
		return nil, common.InvalidInputf("unknown sink kind %q", cfg.Kind)
	}
}
