package storage

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kisscool-fr/simdive/internal/config"
	"github.com/kisscool-fr/simdive/internal/storage/gormstore"
	"github.com/kisscool-fr/simdive/internal/storage/memory"
)

// Compile-time interface checks
var (
	_ Backend    = (*memory.Backend)(nil)
	_ Exportable = (*memory.Backend)(nil)
	_ Backend    = (*gormstore.Backend)(nil)
	_ Exportable = (*gormstore.Backend)(nil)
)

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, log zerolog.Logger) (Backend, error) {
	switch cfg.Type {
	case "postgres", "sqlite":
		return gormstore.New(gormstore.Config{
			Type:          cfg.Type,
			OutputDir:     cfg.OutputDir,
			FlushInterval: time.Second,
		}, log), nil
	case "memory":
		return memory.New(memory.Config{
			OutputDir:      cfg.OutputDir,
			CompressOutput: cfg.CompressOutput,
		}), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
