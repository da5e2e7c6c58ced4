package backend

import (
	"context"
	"fmt"

	"lifedash/internal/log"
	"lifedash/internal/storage"
)

type DefaultFactory struct {
	logger *log.Logger
}

var _ Factory = (*DefaultFactory)(nil)

func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.Default(log.ComponentStorage)
	}
	return &DefaultFactory{logger: logger}
}

// CreateKV opens the backend named by config. The caller owns the result
// and must Close it.
func (f *DefaultFactory) CreateKV(ctx context.Context, config Config) (storage.KV, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Kind {
	case SQLite:
		kv, err := storage.NewSQLiteKV(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite backend: %w", err)
		}
		f.logger.InfoContext(ctx, "Using SQLite backend", "db_path", config.SQLiteDBPath)
		return kv, nil
	default:
		f.logger.WarnContext(ctx, "Using memory backend, records are lost on restart")
		return storage.NewMemoryKV(), nil
	}
}

// NewKV opens a backend with the default factory.
func NewKV(ctx context.Context, config Config) (storage.KV, error) {
	return NewFactory(nil).CreateKV(ctx, config)
}
