// Package engine defines the relational engine a session persists: an
// in-process SQL database that can be created empty, loaded from an exported
// image and exported back to bytes.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrRuntimeUnavailable means the engine runtime cannot be loaded in this build or environment.
	ErrRuntimeUnavailable = errors.New("relational engine runtime unavailable")

	// ErrInvalidImage means the bytes handed to Load are not a database image.
	ErrInvalidImage = errors.New("invalid database image")

	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("engine closed")
)

// Engine is one live database instance.
type Engine interface {
	// DB exposes the database for queries and mutations.
	DB() *sql.DB

	// Exec runs statements that return no rows.
	Exec(ctx context.Context, query string, args ...any) error

	// Export returns the complete current state as bytes.
	Export(ctx context.Context) ([]byte, error)

	Close() error
}

// Runtime creates engine instances.
type Runtime interface {
	Name() string

	// New creates an empty instance.
	New(ctx context.Context) (Engine, error)

	// Load creates an instance from an image produced by Export.
	Load(ctx context.Context, image []byte) (Engine, error)
}

// Loader resolves a Runtime. Composition code picks the implementation.
type Loader func(ctx context.Context) (Runtime, error)

// Once wraps a Loader so the first successful result is reused. Failures are
// not cached, so a later call can succeed once the environment is fixed.
func Once(load Loader) Loader {
	var (
		mu      sync.Mutex
		runtime Runtime
	)

	return func(ctx context.Context) (Runtime, error) {
		mu.Lock()
		defer mu.Unlock()

		if runtime != nil {
			return runtime, nil
		}

		rt, err := load(ctx)
		if err != nil {
			if !errors.Is(err, ErrRuntimeUnavailable) {
				err = fmt.Errorf("%w: %v", ErrRuntimeUnavailable, err)
			}
			return nil, err
		}
		if rt == nil {
			return nil, fmt.Errorf("%w: loader returned no runtime", ErrRuntimeUnavailable)
		}

		runtime = rt
		return runtime, nil
	}
}

// Static returns a Loader for an already constructed runtime.
func Static(rt Runtime) Loader {
	return func(context.Context) (Runtime, error) {
		return rt, nil
	}
}
