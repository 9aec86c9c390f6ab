package extract

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/joseph-ayodele/docforge/constants"
)

// Registry dispatches a classified file to its strategy. Kinds without a
// strategy, including unknown, use the fallback (plain text).
type Registry struct {
	mu       sync.RWMutex
	byKind   map[constants.DocumentKind]Extractor
	fallback Extractor
	logger   *slog.Logger
}

func NewRegistry(fallback Extractor, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if fallback == nil {
		fallback = NewTextExtractor()
	}
	return &Registry{
		byKind:   make(map[constants.DocumentKind]Extractor),
		fallback: fallback,
		logger:   logger,
	}
}

func (r *Registry) Register(kind constants.DocumentKind, e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKind[kind] = e
}

func (r *Registry) lookup(kind constants.DocumentKind) Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.byKind[kind]; ok {
		return e
	}
	return r.fallback
}

// Extract never fails: strategy errors and panics come back as a degraded
// Result with empty text and a diagnostic warning.
func (r *Registry) Extract(ctx context.Context, kind constants.DocumentKind, path string) (res Result) {
	start := time.Now()
	logger := r.logger.With("kind", kind.String(), "path", path)

	defer func() {
		if p := recover(); p != nil {
			logger.Error("extract.panic", "panic", p, "stack", string(debug.Stack()))
			res = Result{
				Method:   constants.MethodExtractFailed,
				Warnings: []string{fmt.Sprintf("panic: %v", p)},
			}
		}
		res.normalize()
		res.Duration = time.Since(start)
	}()

	out, err := r.lookup(kind).Extract(ctx, path)
	if err != nil {
		logger.Warn("extract.degraded", "method", out.Method, "error", err)
		method := out.Method
		if method == "" {
			method = constants.MethodExtractFailed
		}
		return Result{
			Method:   method,
			Warnings: append(out.Warnings, err.Error()),
			Pages:    out.Pages,
		}
	}
	logger.Debug("extract.done", "method", out.Method, "chars", len(out.Text), "table", len(out.TableRows) > 0)
	return out
}
