package badger

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/vipnode/nodehealth/store"
)

// Open returns a store.Store implementation using Badger as the storage
// driver. The database layout version is checked, or stamped if the database is new. The store should be
// .Close()'d after use.
func Open(opts badger.Options) (*badgerStore, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	if err := checkLayout(db, opts.Dir); err != nil {
		db.Close()
		return nil, err
	}
	return &badgerStore{db: db}, nil
}

// OpenMemory returns an in-memory badger store, useful for tests.
func OpenMemory() (*badgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	return Open(opts)
}

var _ store.Store = &badgerStore{}

type badgerStore struct {
	db *badger.DB
}

func (s *badgerStore) Close() error {
	return s.db.Close()
}

func (s *badgerStore) Get(key string) (string, error) {
	var value string
	err := s.db.View(func(txn *badger.Txn) error {
		val, err := getValue(txn, valueKey(key))
		if err == badger.ErrKeyNotFound {
			return store.ErrNotFound
		}
		value = string(val)
		return err
	})
	return value, err
}

func (s *badgerStore) Set(key string, value string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(valueKey(key), []byte(value))
	})
}

func (s *badgerStore) Remove(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(valueKey(key))
	})
}
