package repository

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/docforge/internal/common"
)

// NewFromConfig opens the store selected by storage.driver. The returned
// close func is always non-nil.
func NewFromConfig(ctx context.Context, cfg *common.Config, logger *slog.Logger) (DocumentRepository, func(), error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		repo, err := OpenSQLite(ctx, cfg.Storage.SQLitePath, logger)
		if err != nil {
			return nil, func() {}, err
		}
		return repo, func() {
			if err := repo.Close(); err != nil {
				logger.Error("failed to close sqlite store", "error", err)
			}
		}, nil
	case "postgres":
		pool, err := Open(ctx, ConfigFrom(cfg.Database), logger)
		if err != nil {
			return nil, func() {}, err
		}
		return NewPostgresRepository(pool, logger), func() { Close(pool, logger) }, nil
	case "", "memory":
		return NewMemoryRepository(), func() {}, nil
	default:
		return nil, func() {}, common.InvalidInputf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
