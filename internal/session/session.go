// Package session binds an in-memory relational database to one encrypted
// blob: open derives the key and decrypts (or bootstraps) the database,
// persist re-encrypts the full state and overwrites the blob, close discards
// the key and the engine.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/TheMichaelB/casevault/internal/crypto"
	"github.com/TheMichaelB/casevault/internal/engine"
	"github.com/TheMichaelB/casevault/internal/events"
	"github.com/TheMichaelB/casevault/internal/metrics"
	"github.com/TheMichaelB/casevault/internal/models"
	"github.com/TheMichaelB/casevault/internal/schema"
	"github.com/TheMichaelB/casevault/internal/storage"
)

// State is the lifecycle position of a session.
type State int32

const (
	StateClosed State = iota
	StateOpening
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Operation names used in errors, logs and metrics.
const (
	OpOpen    = "open"
	OpPersist = "persist"
	OpClose   = "close"
)

// Options configures a Session.
type Options struct {
	// Name identifies the store in errors, logs, metrics and domain separation.
	Name string

	// BlobID is the record id of this store's encrypted blob.
	BlobID string

	Store storage.BlobStore
	Salts *SaltSource
	KDF   crypto.KDF

	// Loader resolves the engine runtime; composition code decides which.
	Loader engine.Loader

	// Bootstrap runs once on a fresh database, before its first persist.
	Bootstrap schema.Bootstrap

	// Codec is applied to the exported image before encryption. Nil means none.
	Codec crypto.Codec

	Logger  *events.Logger
	Metrics *metrics.Registry

	// Limiter throttles opens after authentication failures. Each failure
	// takes a token; an open is refused while none are left.
	Limiter *rate.Limiter

	// DomainSeparation derives a per-store key from the passphrase key.
	DomainSeparation bool
}

// Session is one encrypted store's open/persist/close lifecycle.
type Session struct {
	name      string
	blobID    string
	store     storage.BlobStore
	salts     *SaltSource
	kdf       crypto.KDF
	loader    engine.Loader
	bootstrap schema.Bootstrap
	codec     crypto.Codec
	logger    *events.Logger
	metrics   *metrics.Registry
	limiter   *rate.Limiter
	separate  bool

	// mu serializes Open, Persist and Close.
	mu    sync.Mutex
	state atomic.Int32
	eng   engine.Engine
	key   []byte
}

// New validates opts and returns a closed session.
func New(opts Options) (*Session, error) {
	if opts.Store == nil {
		return nil, models.NewStoreError(models.ErrCodeConfig, opts.Name, "configure", models.ErrStoreNotConfigured)
	}
	if opts.Name == "" || opts.BlobID == "" {
		return nil, fmt.Errorf("session name and blob id are required")
	}
	if opts.Salts == nil || opts.KDF == nil || opts.Loader == nil {
		return nil, fmt.Errorf("session %s: salt source, kdf and engine loader are required", opts.Name)
	}
	if opts.Salts.ID() == opts.BlobID {
		return nil, fmt.Errorf("session %s: blob id %q collides with the salt id", opts.Name, opts.BlobID)
	}
	if err := storage.ValidateID(opts.BlobID); err != nil {
		return nil, err
	}

	if opts.Bootstrap == nil {
		opts.Bootstrap = schema.None
	}
	if opts.Codec == nil {
		codec, err := crypto.CodecByName(crypto.CodecNone)
		if err != nil {
			return nil, err
		}
		opts.Codec = codec
	}
	if opts.Logger == nil {
		opts.Logger = events.Nop()
	}

	return &Session{
		name:      opts.Name,
		blobID:    opts.BlobID,
		store:     opts.Store,
		salts:     opts.Salts,
		kdf:       opts.KDF,
		loader:    opts.Loader,
		bootstrap: opts.Bootstrap,
		codec:     opts.Codec,
		logger: opts.Logger.WithFields(map[string]interface{}{
			"component": "session",
			"store":     opts.Name,
		}),
		metrics:  opts.Metrics,
		limiter:  opts.Limiter,
		separate: opts.DomainSeparation,
	}, nil
}

// Name returns the store name.
func (s *Session) Name() string {
	return s.name
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// IsOpen reports whether the session holds an engine and a key.
func (s *Session) IsOpen() bool {
	return s.State() == StateOpen
}

// Open derives the key from passphrase and decrypts the stored blob into a
// new engine. When the store holds no blob yet, the database is bootstrapped
// and persisted before Open returns. On failure the session stays closed.
func (s *Session) Open(ctx context.Context, passphrase string) error {
	ctx = events.WithStore(ctx, s.name)
	start := time.Now()
	err := s.open(ctx, passphrase)
	s.metrics.RecordOperation(s.name, OpOpen, err, time.Since(start))
	return err
}

func (s *Session) open(ctx context.Context, passphrase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.IsOpen() {
		return s.fail(models.ErrCodeState, OpOpen, models.ErrAlreadyOpen)
	}
	if passphrase == "" {
		return s.fail(models.ErrCodeValidation, OpOpen, crypto.ErrEmptyPassphrase)
	}
	if s.limiter != nil && s.limiter.Tokens() < 1 {
		s.metrics.RecordUnlockFailure(s.name, "throttled")
		return s.fail(models.ErrCodeThrottled, OpOpen, models.ErrTooManyAttempts)
	}

	s.state.Store(int32(StateOpening))
	opened := false
	defer func() {
		if !opened {
			s.state.Store(int32(StateClosed))
		}
	}()

	rt, err := s.loader(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Engine runtime unavailable")
		return s.fail(models.ErrCodeInit, "load runtime", err)
	}

	key, err := s.deriveKey(ctx, passphrase)
	if err != nil {
		return err
	}

	bootstrapped := false
	data, err := s.store.Get(ctx, s.blobID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		eng, err := s.create(ctx, rt, key)
		if err != nil {
			crypto.Zero(key)
			return err
		}
		s.eng, s.key = eng, key
		bootstrapped = true

	case err != nil:
		crypto.Zero(key)
		return s.fail(models.ErrCodeStorage, "read blob", err)

	default:
		eng, err := s.restore(ctx, rt, key, data)
		if err != nil {
			crypto.Zero(key)
			return err
		}
		s.eng, s.key = eng, key
		s.metrics.SetBlobSize(s.name, len(data))
	}

	opened = true
	s.state.Store(int32(StateOpen))
	s.logger.WithField("bootstrapped", bootstrapped).Info("Store opened")
	return nil
}

func (s *Session) deriveKey(ctx context.Context, passphrase string) ([]byte, error) {
	salt, err := s.salts.Salt(ctx)
	if err != nil {
		return nil, s.fail(models.ErrCodeStorage, "load salt", err)
	}
	defer crypto.Zero(salt)

	key, err := s.kdf.DeriveKey(passphrase, salt)
	if err != nil {
		if errors.Is(err, crypto.ErrEmptyPassphrase) {
			return nil, s.fail(models.ErrCodeValidation, "derive key", err)
		}
		return nil, s.fail(models.ErrCodeInit, "derive key", err)
	}

	if !s.separate {
		return key, nil
	}

	storeKey, err := crypto.DomainKey(key, s.name)
	crypto.Zero(key)
	if err != nil {
		return nil, s.fail(models.ErrCodeInit, "derive key", err)
	}
	return storeKey, nil
}

// create bootstraps a fresh database and writes its first blob.
func (s *Session) create(ctx context.Context, rt engine.Runtime, key []byte) (engine.Engine, error) {
	eng, err := rt.New(ctx)
	if err != nil {
		return nil, s.fail(engineCode(err), "create database", err)
	}

	if err := s.bootstrap(ctx, eng); err != nil {
		eng.Close()
		return nil, s.fail(models.ErrCodeInit, "bootstrap schema", err)
	}

	if err := s.write(ctx, eng, key); err != nil {
		eng.Close()
		return nil, err
	}

	s.logger.Info("Created new encrypted store")
	return eng, nil
}

// restore decrypts a stored blob into an engine.
func (s *Session) restore(ctx context.Context, rt engine.Runtime, key, data []byte) (engine.Engine, error) {
	blob, err := storage.DecodeBlob(data)
	if err != nil {
		return nil, s.fail(models.ErrCodeStorage, "decode blob", err)
	}

	codec, err := crypto.CodecByName(blob.Codec)
	if err != nil {
		return nil, s.fail(models.ErrCodeStorage, "decode blob", err)
	}

	plaintext, err := crypto.Open(key, blob.IV, blob.Cipher)
	if err != nil {
		if errors.Is(err, crypto.ErrAuthentication) || errors.Is(err, crypto.ErrInvalidNonce) {
			s.recordAuthFailure()
			return nil, s.fail(models.ErrCodeAuth, "decrypt", models.ErrAuthentication)
		}
		return nil, s.fail(models.ErrCodeInit, "decrypt", err)
	}

	// With codec none image aliases plaintext; zero both only after Load.
	image, err := codec.Decode(plaintext)
	if err != nil {
		crypto.Zero(plaintext)
		return nil, s.fail(models.ErrCodeStorage, "decode payload", err)
	}

	eng, err := rt.Load(ctx, image)
	crypto.Zero(image)
	crypto.Zero(plaintext)
	if err != nil {
		return nil, s.fail(engineCode(err), "load database", err)
	}
	return eng, nil
}

func (s *Session) recordAuthFailure() {
	s.metrics.RecordUnlockFailure(s.name, "auth")
	if s.limiter != nil {
		s.limiter.Allow()
	}
	s.logger.Warn("Unlock failed: wrong passphrase or corrupted blob")
}

// Persist exports the full engine state, encrypts it under a fresh nonce and
// overwrites the stored blob. The previous blob stays authoritative until the
// store write succeeds.
func (s *Session) Persist(ctx context.Context) error {
	ctx = events.WithStore(ctx, s.name)
	start := time.Now()
	err := s.persist(ctx)
	s.metrics.RecordOperation(s.name, OpPersist, err, time.Since(start))
	return err
}

func (s *Session) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.IsOpen() {
		return s.fail(models.ErrCodeNotOpen, OpPersist, models.ErrNotOpen)
	}
	return s.write(ctx, s.eng, s.key)
}

func (s *Session) write(ctx context.Context, eng engine.Engine, key []byte) error {
	image, err := eng.Export(ctx)
	if err != nil {
		return s.fail(engineCode(err), "export database", err)
	}

	payload, err := s.codec.Encode(image)
	if err != nil {
		return s.fail(models.ErrCodeStorage, "encode payload", err)
	}

	sealed, err := crypto.Seal(key, payload)
	if err != nil {
		return s.fail(models.ErrCodeInit, "encrypt", err)
	}

	blob := storage.EncryptedBlob{IV: sealed.Nonce, Cipher: sealed.Ciphertext}
	if s.codec.Name() != crypto.CodecNone {
		blob.Codec = s.codec.Name()
	}

	data, err := storage.EncodeBlob(blob)
	if err != nil {
		return s.fail(models.ErrCodeStorage, "encode blob", err)
	}

	if err := s.store.Set(ctx, s.blobID, data); err != nil {
		s.logger.WithError(err).Error("Failed to write blob")
		return s.fail(models.ErrCodeStorage, "write blob", err)
	}

	s.metrics.SetBlobSize(s.name, len(data))
	s.logger.WithFields(map[string]interface{}{
		"image_bytes": len(image),
		"blob_bytes":  len(data),
	}).Debug("Persisted store")

	return nil
}

// Close discards the key and the engine. Unpersisted changes are lost.
// Closing a closed session does nothing.
func (s *Session) Close() error {
	start := time.Now()
	err := s.close()
	s.metrics.RecordOperation(s.name, OpClose, err, time.Since(start))
	return err
}

func (s *Session) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.IsOpen() {
		return nil
	}

	err := s.eng.Close()
	crypto.Zero(s.key)
	s.eng, s.key = nil, nil
	s.state.Store(int32(StateClosed))

	s.logger.Info("Store closed")

	if err != nil {
		return s.fail(models.ErrCodeStorage, OpClose, err)
	}
	return nil
}

// Handle returns the open database for direct queries and mutations.
// Mutations reach storage only through Persist.
func (s *Session) Handle() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.IsOpen() {
		return nil, s.fail(models.ErrCodeNotOpen, "handle", models.ErrNotOpen)
	}
	return s.eng.DB(), nil
}

// Snapshot returns the current engine state as an exported image.
func (s *Session) Snapshot(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.IsOpen() {
		return nil, s.fail(models.ErrCodeNotOpen, "snapshot", models.ErrNotOpen)
	}
	image, err := s.eng.Export(ctx)
	if err != nil {
		return nil, s.fail(engineCode(err), "snapshot", err)
	}
	return image, nil
}

// Exists reports whether this store's blob is present, which tells a first
// run from an unlock.
func (s *Session) Exists(ctx context.Context) (bool, error) {
	_, err := s.store.Get(events.WithStore(ctx, s.name), s.blobID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, s.fail(models.ErrCodeStorage, "read blob", err)
	}
	return true, nil
}

// Destroy deletes this store's blob. The session must be closed.
func (s *Session) Destroy(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.IsOpen() {
		return s.fail(models.ErrCodeState, "destroy", models.ErrAlreadyOpen)
	}
	if err := s.store.Delete(events.WithStore(ctx, s.name), s.blobID); err != nil {
		return s.fail(models.ErrCodeStorage, "destroy", err)
	}

	s.logger.Warn("Deleted encrypted store")
	return nil
}

func (s *Session) fail(code, op string, err error) error {
	return models.NewStoreError(code, s.name, op, err)
}

func engineCode(err error) string {
	if errors.Is(err, engine.ErrRuntimeUnavailable) {
		return models.ErrCodeInit
	}
	return models.ErrCodeStorage
}
