package backend

import (
	"errors"
	"fmt"

	"lifedash/internal/config"
)

func ConfigFrom(appConfig *config.Config) Config {
	return Config{
		Kind:         Kind(appConfig.DataBackend),
		SQLiteDBPath: appConfig.SQLiteDBPath,
	}
}

func (c Config) Validate() error {
	if !c.Kind.Valid() {
		return fmt.Errorf("unsupported backend %q, want one of %v", c.Kind, Kinds)
	}
	if c.Kind == SQLite && c.SQLiteDBPath == "" {
		return errors.New("sqlite backend needs SQLITE_DB_PATH")
	}
	return nil
}
