// Package store provides key-value stores for shuffle snapshots.
package store

import (
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"
)

const (
	appName    = "shufflebox"
	dbFileName = "shufflebox.db"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Store is a synchronous key-value store.
type Store interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// Open opens the store for the given driver.
// An empty sqlite path resolves to the XDG data directory.
func Open(driver, path string) (Store, error) {
	switch driver {
	case DriverMemory, "":
		return NewMemory(), nil
	case DriverSQLite:
		if path == "" {
			p, err := DefaultPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		return OpenSQLite(path)
	default:
		return nil, errors.Newf("unsupported store driver: %s", driver)
	}
}

// DefaultPath returns the default sqlite database location.
func DefaultPath() (string, error) {
	p, err := xdg.DataFile(filepath.Join(appName, dbFileName))
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve data directory")
	}
	return p, nil
}
