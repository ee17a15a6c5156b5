package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SergeiKhy/shortlink-registry/internal/config"
)

var (
	ErrKeyNotFound  = errors.New("key not found")
	ErrStorageRead  = errors.New("storage read failed")
	ErrStorageWrite = errors.New("storage write failed")
)

// Драйверы хранилища
const (
	DriverFile     = "file"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Backend долговременное key-value хранилище.
// Get возвращает ErrKeyNotFound, если ключ отсутствует.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// NewBackend создаёт бэкенд по драйверу из конфига
func NewBackend(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.Storage.Driver {
	case DriverFile, "":
		return NewFileBackend(cfg.Storage.Dir)
	case DriverMemory:
		return NewMemoryBackend(), nil
	case DriverRedis:
		db, err := NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return NewRedisBackend(db), nil
	case DriverPostgres:
		db, err := NewPostgresDB(ctx, cfg.DB)
		if err != nil {
			return nil, err
		}
		return NewPostgresBackend(ctx, db)
	case DriverSQLite:
		return NewSQLiteBackend(ctx, cfg.Storage.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.Storage.Driver)
	}
}
