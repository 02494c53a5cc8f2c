//go:build cgo

package sqlite

import (
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"
)

const serializeSupported = true

func driverConn(conn any) (*sqlite3.SQLiteConn, error) {
	c, ok := conn.(*sqlite3.SQLiteConn)
	if !ok {
		return nil, fmt.Errorf("unexpected driver connection %T", conn)
	}
	return c, nil
}

func serialize(conn any) ([]byte, error) {
	c, err := driverConn(conn)
	if err != nil {
		return nil, err
	}
	return c.Serialize("main")
}

func deserialize(conn any, image []byte) error {
	c, err := driverConn(conn)
	if err != nil {
		return err
	}
	return c.Deserialize(image, "main")
}

// backup copies the main database of src over the main database of dst.
func backup(dst, src any) error {
	d, err := driverConn(dst)
	if err != nil {
		return err
	}
	s, err := driverConn(src)
	if err != nil {
		return err
	}

	b, err := d.Backup("main", s, "main")
	if err != nil {
		return fmt.Errorf("start backup: %w", err)
	}

	done, err := b.Step(-1)
	if err != nil {
		b.Finish()
		return fmt.Errorf("backup step: %w", err)
	}
	if !done {
		b.Finish()
		return fmt.Errorf("backup incomplete")
	}
	return b.Finish()
}
