package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/mailrisk/internal/adapters/store"
	"github.com/mikey/mailrisk/internal/config"
	"github.com/mikey/mailrisk/internal/core"
	"go.uber.org/zap"
)

// Store bundles the persistence ports every backend implements
type Store interface {
	core.WhitelistStore
	core.LearningStore
	core.LeadStore
	Close() error
}

// StoreFactory creates stores based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateStore creates a store based on the configuration
func (f *StoreFactory) CreateStore() (Store, error) {
	storeType := f.cfg.GetString("store.type")

	switch storeType {
	case "memory":
		return store.NewMemoryStore(f.logger), nil
	case "sqlite":
		sqlitePath := f.cfg.GetString("store.sqlite_path")
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(sqlitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return store.NewSQLiteStore(sqlitePath, f.logger)
	case "mysql":
		mysqlDSN := f.cfg.GetString("store.mysql_dsn")
		return store.NewMySQLStore(mysqlDSN, f.logger)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeType)
	}
}
