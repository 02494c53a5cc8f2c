// Package client wires the Core and Vault stores, their shared salt and the
// record services into one handle.
package client

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/TheMichaelB/casevault/internal/config"
	"github.com/TheMichaelB/casevault/internal/crypto"
	"github.com/TheMichaelB/casevault/internal/engine"
	"github.com/TheMichaelB/casevault/internal/engine/sqlite"
	"github.com/TheMichaelB/casevault/internal/events"
	"github.com/TheMichaelB/casevault/internal/metrics"
	"github.com/TheMichaelB/casevault/internal/models"
	"github.com/TheMichaelB/casevault/internal/schema"
	"github.com/TheMichaelB/casevault/internal/services/documents"
	"github.com/TheMichaelB/casevault/internal/services/students"
	"github.com/TheMichaelB/casevault/internal/session"
	"github.com/TheMichaelB/casevault/internal/storage"
)

// Store names used in logs, metrics and errors.
const (
	CoreName  = "core"
	VaultName = "vault"
)

// Client provides the high-level API over both encrypted stores.
type Client struct {
	Core      *session.Session
	Vault     *session.Session
	Students  *students.Service
	Documents *documents.Service

	config    *config.Config
	logger    *events.Logger
	store     storage.BlobStore
	ownsStore bool
	salts     *session.SaltSource
	metrics   *metrics.Registry
}

// Option customizes New.
type Option func(*options)

type options struct {
	store   storage.BlobStore
	loader  engine.Loader
	metrics *metrics.Registry
}

// WithStore uses store instead of the configured backend. The caller keeps
// ownership and closes it.
func WithStore(store storage.BlobStore) Option {
	return func(o *options) { o.store = store }
}

// WithLoader replaces the SQLite engine runtime.
func WithLoader(loader engine.Loader) Option {
	return func(o *options) { o.loader = loader }
}

// WithMetrics records into m instead of a registry built from config.
func WithMetrics(m *metrics.Registry) Option {
	return func(o *options) { o.metrics = m }
}

// New creates a client. Both stores start closed.
func New(ctx context.Context, cfg *config.Config, logger *events.Logger, opts ...Option) (*Client, error) {
	if logger == nil {
		logger = events.Nop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, models.NewStoreError(models.ErrCodeConfig, "client", "configure", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	kdf, err := crypto.NewKDF(cfg.KDF)
	if err != nil {
		return nil, models.NewStoreError(models.ErrCodeConfig, "client", "configure", err)
	}
	codec, err := crypto.CodecByName(cfg.Session.Codec)
	if err != nil {
		return nil, models.NewStoreError(models.ErrCodeConfig, "client", "configure", err)
	}

	m := o.metrics
	if m == nil && cfg.Metrics.Enabled {
		m = metrics.NewRegistry(cfg.Metrics.Namespace)
	}

	loader := o.loader
	if loader == nil {
		loader = sqlite.Loader(logger)
	}

	store, owns := o.store, false
	if store == nil {
		store, err = OpenStore(ctx, cfg.Store, logger)
		if err != nil {
			return nil, models.NewStoreError(models.ErrCodeConfig, "client", "open store", err)
		}
		owns = true
	}

	salts := session.NewSaltSource(store, cfg.Store.SaltID, logger, m)

	newSession := func(name, blobID string, bootstrap schema.Bootstrap) (*session.Session, error) {
		return session.New(session.Options{
			Name:             name,
			BlobID:           blobID,
			Store:            store,
			Salts:            salts,
			KDF:              kdf,
			Loader:           loader,
			Bootstrap:        bootstrap,
			Codec:            codec,
			Logger:           logger,
			Metrics:          m,
			Limiter:          newLimiter(cfg.Session),
			DomainSeparation: cfg.KDF.DomainSeparation,
		})
	}

	core, err := newSession(CoreName, cfg.Store.CoreID, schema.Core)
	if err != nil {
		closeOwned(store, owns)
		return nil, err
	}
	vault, err := newSession(VaultName, cfg.Store.VaultID, schema.Vault)
	if err != nil {
		closeOwned(store, owns)
		return nil, err
	}

	return &Client{
		Core:      core,
		Vault:     vault,
		Students:  students.NewService(core, logger),
		Documents: documents.NewService(vault, logger),
		config:    cfg,
		logger:    logger.WithField("component", "client"),
		store:     store,
		ownsStore: owns,
		salts:     salts,
		metrics:   m,
	}, nil
}

func closeOwned(store storage.BlobStore, owns bool) {
	if owns {
		store.Close()
	}
}

// newLimiter returns nil when unlock throttling is disabled.
func newLimiter(cfg config.SessionConfig) *rate.Limiter {
	if cfg.MaxFailedUnlocks <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(cfg.UnlockCooldown), cfg.MaxFailedUnlocks)
}

// Metrics returns the registry in use, or nil when metrics are disabled.
func (c *Client) Metrics() *metrics.Registry {
	return c.metrics
}

// OpenAll unlocks Core, then Vault. If Vault fails Core is closed again so the
// client is either fully open or fully closed.
func (c *Client) OpenAll(ctx context.Context, passphrase string) error {
	if err := c.Core.Open(ctx, passphrase); err != nil {
		return err
	}
	if err := c.Vault.Open(ctx, passphrase); err != nil {
		if cerr := c.Core.Close(); cerr != nil {
			c.logger.WithError(cerr).Warn("Failed to close core after vault unlock failure")
		}
		return err
	}

	c.logger.Info("Unlocked core and vault")
	return nil
}

// CloseAll closes both stores. Unpersisted Core changes are lost.
func (c *Client) CloseAll() error {
	return errors.Join(c.Vault.Close(), c.Core.Close())
}

// Close closes both stores and the backend if the client opened it.
func (c *Client) Close() error {
	err := c.CloseAll()
	if c.ownsStore {
		err = errors.Join(err, c.store.Close())
	}
	return err
}

// Status describes what the backend holds and which stores are open.
type Status struct {
	SaltPresent bool `json:"salt_present"`
	CoreExists  bool `json:"core_exists"`
	VaultExists bool `json:"vault_exists"`
	CoreOpen    bool `json:"core_open"`
	VaultOpen   bool `json:"vault_open"`
}

// Initialized reports whether a first unlock has already happened.
func (s Status) Initialized() bool {
	return s.CoreExists || s.VaultExists
}

// Status reads the presence of the salt and both blobs without decrypting.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var (
		st  Status
		err error
	)
	if st.SaltPresent, err = c.salts.Exists(ctx); err != nil {
		return Status{}, models.NewStoreError(models.ErrCodeStorage, "client", "status", err)
	}
	if st.CoreExists, err = c.Core.Exists(ctx); err != nil {
		return Status{}, err
	}
	if st.VaultExists, err = c.Vault.Exists(ctx); err != nil {
		return Status{}, err
	}
	st.CoreOpen = c.Core.IsOpen()
	st.VaultOpen = c.Vault.IsOpen()
	return st, nil
}

// Destroy deletes both blobs and the salt. Both stores must be closed. After
// Destroy the next OpenAll starts a fresh pair of stores with a new salt.
func (c *Client) Destroy(ctx context.Context) error {
	if c.Core.IsOpen() || c.Vault.IsOpen() {
		return models.NewStoreError(models.ErrCodeState, "client", "destroy", models.ErrAlreadyOpen)
	}

	if err := c.Vault.Destroy(ctx); err != nil {
		return err
	}
	if err := c.Core.Destroy(ctx); err != nil {
		return err
	}
	if err := c.store.Delete(ctx, c.salts.ID()); err != nil {
		return models.NewStoreError(models.ErrCodeStorage, "client", "destroy", fmt.Errorf("delete salt: %w", err))
	}
	c.salts.Forget()

	c.logger.Warn("Destroyed core, vault and salt")
	return nil
}

// Config returns the configuration the client was built from.
func (c *Client) Config() *config.Config {
	return c.config
}
