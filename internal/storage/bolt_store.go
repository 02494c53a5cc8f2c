package storage

import (
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/TheMichaelB/casevault/internal/events"
)

var blobsBucket = []byte("blobs")

const boltTimeout = 5 * time.Second

// BoltStore keeps records in one bbolt bucket.
type BoltStore struct {
	db     *bolt.DB
	logger *events.Logger
}

// NewBoltStore opens (or creates) the bolt database at path.
func NewBoltStore(path string, logger *events.Logger) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: boltTimeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(blobsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	return &BoltStore{
		db:     db,
		logger: logger.WithField("component", "bolt_store"),
	}, nil
}

// Get implements BlobStore.
func (s *BoltStore) Get(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(blobsBucket).Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		// v is only valid inside the transaction.
		out = cloneNonNil(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Set implements BlobStore.
func (s *BoltStore) Set(ctx context.Context, id string, value []byte) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"id":      id,
		"size":    len(value),
		"session": events.GetStore(ctx),
	}).Debug("Writing record")

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(blobsBucket).Put([]byte(id), cloneNonNil(value))
	})
}

// SetIfAbsent checks and writes inside one read-write transaction.
func (s *BoltStore) SetIfAbsent(ctx context.Context, id string, value []byte) ([]byte, bool, error) {
	if err := ValidateID(id); err != nil {
		return nil, false, err
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var (
		stored  []byte
		created bool
	)
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(blobsBucket)
		if v := bucket.Get([]byte(id)); v != nil {
			stored = cloneNonNil(v)
			return nil
		}
		stored = cloneNonNil(value)
		created = true
		return bucket.Put([]byte(id), cloneNonNil(value))
	})
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

// Delete implements BlobStore.
func (s *BoltStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.logger.WithField("id", id).Debug("Deleting record")

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(blobsBucket).Delete([]byte(id))
	})
}

// Close implements BlobStore.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
