package badger

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"
)

// layoutVersion is stamped into every database and bumped whenever the key
// layout in helpers.go changes.
const layoutVersion = 1

// LayoutError is returned when a database was written with a key layout that
// this build can't read.
type LayoutError struct {
	Path    string
	Version int
}

func (err LayoutError) Error() string {
	if err.Version == 0 {
		return fmt.Sprintf("badger database at %q has values but no layout version, expected version %d", err.Path, layoutVersion)
	}
	return fmt.Sprintf("badger database at %q has layout version %d, expected version %d", err.Path, err.Version, layoutVersion)
}

// checkLayout stamps a new database with the current layout version and
// rejects databases with any other layout.
func checkLayout(db *badger.DB, path string) error {
	return db.Update(func(txn *badger.Txn) error {
		version, err := getVersion(txn)
		if err == badger.ErrKeyNotFound {
			if hasValues(txn) {
				return LayoutError{Path: path}
			}
			logger.Printf("initializing %q with layout version %d", path, layoutVersion)
			return setVersion(txn, layoutVersion)
		}
		if err != nil {
			return fmt.Errorf("badger database at %q: bad layout version: %w", path, err)
		}
		if version != layoutVersion {
			return LayoutError{Path: path, Version: version}
		}
		return nil
	})
}
