package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/TheMichaelB/casevault/internal/crypto"
	"github.com/TheMichaelB/casevault/internal/events"
	"github.com/TheMichaelB/casevault/internal/metrics"
	"github.com/TheMichaelB/casevault/internal/storage"
)

// SaltSource loads or creates the key-derivation salt shared by every session
// on one store. Concurrent callers in one process wait for a single load; the
// store's SetIfAbsent settles races between processes.
type SaltSource struct {
	store   storage.BlobStore
	id      string
	logger  *events.Logger
	metrics *metrics.Registry

	mu   sync.Mutex
	salt []byte
}

// NewSaltSource creates a salt source for the record id on store.
func NewSaltSource(store storage.BlobStore, id string, logger *events.Logger, m *metrics.Registry) *SaltSource {
	if logger == nil {
		logger = events.Nop()
	}
	return &SaltSource{
		store:   store,
		id:      id,
		logger:  logger.WithField("component", "salt_source"),
		metrics: m,
	}
}

// ID returns the record id the salt is stored under.
func (s *SaltSource) ID() string {
	return s.id
}

// Salt returns the shared salt, generating and storing it if the store has
// none. Once a value is returned every later call returns the same bytes.
func (s *SaltSource) Salt(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.salt != nil {
		return append([]byte(nil), s.salt...), nil
	}

	salt, created, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	s.salt = salt
	s.metrics.RecordSalt(created)
	if created {
		s.logger.Info("Generated new key derivation salt")
	} else {
		s.logger.Debug("Loaded key derivation salt")
	}

	return append([]byte(nil), s.salt...), nil
}

func (s *SaltSource) load(ctx context.Context) ([]byte, bool, error) {
	data, err := s.store.Get(ctx, s.id)
	switch {
	case err == nil:
		salt, err := storage.DecodeSalt(data, crypto.SaltSize)
		if err != nil {
			return nil, false, fmt.Errorf("decode salt %s: %w", s.id, err)
		}
		return salt, false, nil

	case errors.Is(err, storage.ErrNotFound):
		// First open against this store.

	default:
		return nil, false, fmt.Errorf("read salt %s: %w", s.id, err)
	}

	fresh, err := crypto.GenerateSalt()
	if err != nil {
		return nil, false, err
	}
	encoded, err := storage.EncodeSalt(fresh)
	if err != nil {
		return nil, false, err
	}

	stored, created, err := s.store.SetIfAbsent(ctx, s.id, encoded)
	if err != nil {
		return nil, false, fmt.Errorf("store salt %s: %w", s.id, err)
	}

	salt, err := storage.DecodeSalt(stored, crypto.SaltSize)
	if err != nil {
		return nil, false, fmt.Errorf("decode salt %s: %w", s.id, err)
	}
	return salt, created, nil
}

// Exists reports whether a salt is cached or present in the store, without
// creating one.
func (s *SaltSource) Exists(ctx context.Context) (bool, error) {
	s.mu.Lock()
	cached := s.salt != nil
	s.mu.Unlock()
	if cached {
		return true, nil
	}

	_, err := s.store.Get(ctx, s.id)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read salt %s: %w", s.id, err)
	}
	return true, nil
}

// Forget drops the cached salt so the next call reads the store again.
func (s *SaltSource) Forget() {
	s.mu.Lock()
	defer s.mu.Unlock()

	crypto.Zero(s.salt)
	s.salt = nil
}
