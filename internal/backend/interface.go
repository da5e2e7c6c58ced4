// Package backend selects the key-value store the record store persists to.
package backend

import (
	"context"
	"slices"

	"lifedash/internal/storage"
)

type Factory interface {
	CreateKV(ctx context.Context, config Config) (storage.KV, error)
}

// Kind is a DATA_BACKEND value.
type Kind string

const (
	Memory Kind = "memory"
	SQLite Kind = "sqlite"
)

// Kinds lists every supported backend.
var Kinds = []Kind{Memory, SQLite}

func (k Kind) Valid() bool {
	return slices.Contains(Kinds, k)
}

type Config struct {
	Kind         Kind
	SQLiteDBPath string
}
