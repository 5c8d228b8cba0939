package badger

import (
	"testing"

	"github.com/dgraph-io/badger/v2"
)

func openRaw(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLayoutStampsNewDatabase(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	err = s.db.View(func(txn *badger.Txn) error {
		version, err := getVersion(txn)
		if err != nil {
			return err
		}
		if version != layoutVersion {
			t.Errorf("incorrect version on fresh database: %d", version)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	// Stamped databases pass again.
	if err := checkLayout(s.db, "test"); err != nil {
		t.Error(err)
	}
}

func TestLayoutRejects(t *testing.T) {
	testCases := []struct {
		Setup   func(txn *badger.Txn) error
		Version int
	}{
		{
			// Values without a version were written by something else.
			Setup: func(txn *badger.Txn) error {
				return txn.Set(valueKey("nodes/eth"), []byte("[]"))
			},
			Version: 0,
		},
		{
			Setup: func(txn *badger.Txn) error {
				return setVersion(txn, layoutVersion+1)
			},
			Version: layoutVersion + 1,
		},
	}

	for i, tc := range testCases {
		db := openRaw(t)
		if err := db.Update(tc.Setup); err != nil {
			t.Fatal(err)
		}
		err := checkLayout(db, "test")
		layoutErr, ok := err.(LayoutError)
		if !ok {
			t.Errorf("[case %d] expected LayoutError, got: %v", i, err)
			continue
		}
		if layoutErr.Version != tc.Version {
			t.Errorf("[case %d] got version %d; want %d", i, layoutErr.Version, tc.Version)
		}
	}
}

func TestLayoutBadVersion(t *testing.T) {
	db := openRaw(t)
	err := db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(versionKey), []byte("one"))
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := checkLayout(db, "test"); err == nil {
		t.Error("expected an error for an unparseable version")
	}
}
