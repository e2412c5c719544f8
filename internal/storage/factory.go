// internal/storage/factory.go
package storage

import (
	"fmt"
	"log/slog"

	"github.com/rs/zerolog"
	"github.com/seatrack/gpxplayer/internal/config"
	"github.com/seatrack/gpxplayer/internal/database"
	gormstorage "github.com/seatrack/gpxplayer/internal/storage/gorm"
	"github.com/seatrack/gpxplayer/internal/storage/memory"
)

// NewBackend creates a storage backend based on configuration.
// The returned backend still needs Init.
func NewBackend(cfg config.StorageConfig, dbCfg config.DBConfig, logger *slog.Logger, dbLog zerolog.Logger) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		mgr := database.NewManager(dbLog)
		if err := mgr.ConnectPostgres(dbCfg); err != nil {
			return nil, err
		}
		return gormstorage.New(mgr, logger), nil
	case "sqlite":
		mgr := database.NewManager(dbLog)
		if err := mgr.ConnectSqlite(cfg.SQLite.Path); err != nil {
			return nil, err
		}
		return gormstorage.New(mgr, logger), nil
	case "memory", "":
		return memory.New(cfg.Memory, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
