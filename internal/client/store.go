package client

import (
	"context"
	"fmt"

	"github.com/TheMichaelB/casevault/internal/config"
	"github.com/TheMichaelB/casevault/internal/events"
	"github.com/TheMichaelB/casevault/internal/storage"
	"github.com/TheMichaelB/casevault/internal/storage/adapters"
)

// OpenStore builds the blob store selected by cfg, wrapped in its namespace.
func OpenStore(ctx context.Context, cfg config.StoreConfig, logger *events.Logger) (storage.BlobStore, error) {
	var (
		store storage.BlobStore
		err   error
	)

	switch cfg.Backend {
	case config.BackendMemory:
		store = storage.NewMemoryStore()
	case config.BackendFile:
		store, err = storage.NewFileStore(cfg.Path, logger)
	case config.BackendBolt:
		store, err = storage.NewBoltStore(cfg.Path, logger)
	case config.BackendSQLite:
		store, err = storage.NewSQLiteStore(cfg.Path, logger)
	case config.BackendS3:
		store, err = adapters.NewS3Store(ctx, cfg.S3Bucket, cfg.S3Prefix, logger)
	case config.BackendDynamoDB:
		store, err = adapters.NewDynamoDBStore(ctx, cfg.DynamoTable, logger)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}

	return storage.Namespaced(store, cfg.Namespace), nil
}
