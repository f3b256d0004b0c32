package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zhouzirui/luxbus/backend/internal/config"
	"github.com/zhouzirui/luxbus/backend/internal/model/bus"
	"github.com/zhouzirui/luxbus/backend/internal/model/chat"
	"github.com/zhouzirui/luxbus/backend/pkg/log"
)

// Pinger reports database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Stores bundles the backends selected by STORAGE_DRIVER.
type Stores struct {
	Buses    bus.Store
	Messages chat.Store
	// DB is nil for the in-memory driver.
	DB    Pinger
	close func() error
}

// Close releases the database, if any.
func (s *Stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Open builds the stores for cfg and seeds an empty bus directory.
func Open(ctx context.Context, cfg config.StorageConfig) (*Stores, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		if cfg.SQLitePath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		store, err := NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := seed(ctx, store, cfg.Driver); err != nil {
			store.Close()
			return nil, err
		}
		return &Stores{Buses: store, Messages: store.ChatLog(), DB: store, close: store.Close}, nil

	case config.DriverPostgres:
		store, err := NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := seed(ctx, store, cfg.Driver); err != nil {
			store.Close()
			return nil, err
		}
		return &Stores{Buses: store, Messages: store.ChatLog(), DB: store, close: store.Close}, nil

	default:
		return &Stores{
			Buses:    bus.NewMemoryStore(bus.Seed()),
			Messages: chat.NewMemoryStore(),
		}, nil
	}
}

type seeder interface {
	SeedIfEmpty(ctx context.Context, buses []bus.Bus) (bool, error)
}

func seed(ctx context.Context, store seeder, driver string) error {
	seeded, err := store.SeedIfEmpty(ctx, bus.Seed())
	if err != nil {
		return fmt.Errorf("failed to seed buses: %w", err)
	}
	if seeded {
		log.Infof("[storage] seeded %s bus directory", driver)
	}
	return nil
}
