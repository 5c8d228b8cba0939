package badger

import (
	"strconv"

	"github.com/dgraph-io/badger/v2"
)

const (
	versionKey  = "nh:version"
	valuePrefix = "nh:kv:"
)

func valueKey(key string) []byte {
	return []byte(valuePrefix + key)
}

func getValue(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// getVersion returns badger.ErrKeyNotFound if the database was never stamped.
func getVersion(txn *badger.Txn) (int, error) {
	raw, err := getValue(txn, []byte(versionKey))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(raw))
}

func setVersion(txn *badger.Txn, version int) error {
	return txn.Set([]byte(versionKey), []byte(strconv.Itoa(version)))
}

// hasValues reports whether any store value exists.
func hasValues(txn *badger.Txn) bool {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(valuePrefix)
	it := txn.NewIterator(opts)
	defer it.Close()
	it.Rewind()
	return it.Valid()
}
