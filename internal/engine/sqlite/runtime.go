// Package sqlite implements the engine runtime with mattn/go-sqlite3. Each
// instance is a private in-memory database pinned to a single connection;
// images are exported with sqlite3_serialize and restored through
// sqlite3_deserialize plus the online backup API.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/TheMichaelB/casevault/internal/engine"
	"github.com/TheMichaelB/casevault/internal/events"
)

const (
	driverName = "sqlite3"
	memoryDSN  = ":memory:?_foreign_keys=1"

	// ApplicationID is written into the header of every fresh image ("CVLT").
	ApplicationID = 0x43564C54
)

// Runtime creates in-memory SQLite engines.
type Runtime struct {
	logger *events.Logger
}

// Loader returns an engine.Loader that probes the driver before handing out
// the runtime, so a build without cgo fails at open with a clear message.
func Loader(logger *events.Logger) engine.Loader {
	return engine.Once(func(ctx context.Context) (engine.Runtime, error) {
		if err := probe(ctx); err != nil {
			return nil, err
		}
		return &Runtime{logger: logger.WithField("component", "sqlite_runtime")}, nil
	})
}

func probe(ctx context.Context) error {
	if !serializeSupported {
		return fmt.Errorf("%w: go-sqlite3 needs cgo; rebuild with CGO_ENABLED=1 and a C toolchain", engine.ErrRuntimeUnavailable)
	}

	db, err := sql.Open(driverName, memoryDSN)
	if err != nil {
		return fmt.Errorf("%w: %v", engine.ErrRuntimeUnavailable, err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", engine.ErrRuntimeUnavailable, err)
	}
	return nil
}

// Name implements engine.Runtime.
func (r *Runtime) Name() string {
	return "sqlite3"
}

// New implements engine.Runtime.
func (r *Runtime) New(ctx context.Context) (engine.Engine, error) {
	e, err := open(ctx)
	if err != nil {
		return nil, err
	}

	// Writing the header gives even a schema-less database a first page, so
	// it always exports to a valid image.
	if err := e.Exec(ctx, fmt.Sprintf("PRAGMA application_id = %d", ApplicationID)); err != nil {
		e.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	r.logger.Debug("Created empty database")
	return e, nil
}

// Load implements engine.Runtime.
func (r *Runtime) Load(ctx context.Context, image []byte) (engine.Engine, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", engine.ErrInvalidImage)
	}

	scratch, err := open(ctx)
	if err != nil {
		return nil, err
	}
	defer scratch.Close()

	// A deserialized database lives in a fixed-size buffer and cannot grow,
	// so it is only used as the source of a backup into a regular one.
	if err := scratch.raw(ctx, func(conn any) error { return deserialize(conn, image) }); err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrInvalidImage, err)
	}

	// deserialize accepts any bytes; the first read validates the header.
	var tables int
	if err := scratch.db.QueryRowContext(ctx, `SELECT count(*) FROM sqlite_master`).Scan(&tables); err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrInvalidImage, err)
	}

	e, err := open(ctx)
	if err != nil {
		return nil, err
	}

	err = e.raw(ctx, func(dst any) error {
		return scratch.raw(ctx, func(src any) error { return backup(dst, src) })
	})
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("restore database: %w", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"bytes":  len(image),
		"tables": tables,
	}).Debug("Loaded database image")

	return e, nil
}

// Engine is one in-memory SQLite database.
type Engine struct {
	db *sql.DB

	mu     sync.Mutex
	closed bool
}

func open(ctx context.Context) (*Engine, error) {
	db, err := sql.Open(driverName, memoryDSN)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrRuntimeUnavailable, err)
	}

	// Every connection to ":memory:" is a different database, so the pool
	// must never open a second one or recycle the first.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", engine.ErrRuntimeUnavailable, err)
	}

	return &Engine{db: db}, nil
}

// DB implements engine.Engine. The pool holds one connection: close every
// *sql.Rows before issuing the next statement.
func (e *Engine) DB() *sql.DB {
	return e.db
}

// Exec implements engine.Engine.
func (e *Engine) Exec(ctx context.Context, query string, args ...any) error {
	if e.isClosed() {
		return engine.ErrClosed
	}
	_, err := e.db.ExecContext(ctx, query, args...)
	return err
}

// Export implements engine.Engine.
func (e *Engine) Export(ctx context.Context) ([]byte, error) {
	if e.isClosed() {
		return nil, engine.ErrClosed
	}

	var image []byte
	err := e.raw(ctx, func(conn any) error {
		var err error
		image, err = serialize(conn)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("serialize database: %w", err)
	}
	return image, nil
}

// Close implements engine.Engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	return e.db.Close()
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *Engine) raw(ctx context.Context, fn func(conn any) error) error {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	return conn.Raw(func(driverConn any) error {
		return fn(driverConn)
	})
}
