//go:build !cgo

package sqlite

import (
	"github.com/TheMichaelB/casevault/internal/engine"

	_ "github.com/mattn/go-sqlite3"
)

const serializeSupported = false

func serialize(any) ([]byte, error) {
	return nil, engine.ErrRuntimeUnavailable
}

func deserialize(any, []byte) error {
	return engine.ErrRuntimeUnavailable
}

func backup(any, any) error {
	return engine.ErrRuntimeUnavailable
}
