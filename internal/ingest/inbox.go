package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/joseph-ayodele/docforge/internal/pipeline"
)

// Ingester is the batch entry point of the pipeline.
type Ingester interface {
	Ingest(ctx context.Context, uploads []pipeline.Upload) []pipeline.FileOutcome
}

// Inbox copies files dropped into a watched directory into the upload
// store and ingests each one. Content already ingested is skipped, so
// repeated write events for the same file do not produce duplicates.
type Inbox struct {
	store  *Store
	svc    Ingester
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

func NewInbox(store *Store, svc Ingester, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{store: store, svc: svc, logger: logger, seen: make(map[string]struct{})}
}

// Handle ingests one inbox file. ok is false when its content was already ingested.
func (i *Inbox) Handle(ctx context.Context, path string) (out pipeline.FileOutcome, ok bool, err error) {
	sum, err := hashFile(path)
	if err != nil {
		return out, false, err
	}

	i.mu.Lock()
	_, dup := i.seen[sum]
	if !dup {
		i.seen[sum] = struct{}{}
	}
	i.mu.Unlock()
	if dup {
		i.logger.Debug("inbox.duplicate", "path", path, "sha256", sum)
		return out, false, nil
	}

	u, err := i.store.SaveFile(path)
	if err != nil {
		i.forget(sum)
		return out, false, err
	}
	out = i.svc.Ingest(ctx, []pipeline.Upload{u})[0]
	if !out.Success {
		// let a later write of the same file retry
		i.forget(sum)
	}
	i.logger.Info("inbox.ingested", "path", path, "stored", u.StoredName, "success", out.Success)
	return out, true, nil
}

func (i *Inbox) forget(sum string) {
	i.mu.Lock()
	delete(i.seen, sum)
	i.mu.Unlock()
}

// Run watches cfg.Roots and ingests every emitted file until ctx is done.
func (i *Inbox) Run(ctx context.Context, cfg WatchConfig) error {
	events, errs, err := StartWatcher(ctx, cfg, i.logger)
	if err != nil {
		return err
	}
	for {
		select {
		case path, ok := <-events:
			if !ok {
				return ctx.Err()
			}
			if _, _, err := i.Handle(ctx, path); err != nil {
				i.logger.Error("inbox.failed", "path", path, "error", err)
			}
		case err, ok := <-errs:
			if ok {
				i.logger.Warn("inbox.watch_error", "error", err)
			} else {
				errs = nil
			}
		}
	}
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
