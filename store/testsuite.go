package store

import (
	"fmt"
	"sync"
	"testing"
)

// TestSuite runs a suite of tests against a store implementation.
func TestSuite(t *testing.T, newStore func() Store) {
	t.Helper()
	t.Run("GetSet", func(t *testing.T) {
		s := newStore()
		defer s.Close()

		if _, err := s.Get("nodes/eth"); err != ErrNotFound {
			t.Errorf("expected not found error, got: %v", err)
		}
		if err := s.Set("nodes/eth", `[{"id":"a"}]`); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if got, err := s.Get("nodes/eth"); err != nil {
			t.Errorf("unexpected error: %s", err)
		} else if got != `[{"id":"a"}]` {
			t.Errorf("got: %q", got)
		}
		if err := s.Set("nodes/eth", `[]`); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if got, _ := s.Get("nodes/eth"); got != `[]` {
			t.Errorf("value was not replaced: %q", got)
		}
		if _, err := s.Get("nodes/btc"); err != ErrNotFound {
			t.Errorf("keys should be independent, got: %v", err)
		}
	})

	t.Run("EmptyValue", func(t *testing.T) {
		s := newStore()
		defer s.Close()

		if err := s.Set("empty", ""); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if got, err := s.Get("empty"); err != nil || got != "" {
			t.Errorf("got: %q %v", got, err)
		}
	})

	t.Run("Remove", func(t *testing.T) {
		s := newStore()
		defer s.Close()

		if err := s.Remove("missing"); err != nil {
			t.Errorf("removing a missing key should succeed: %s", err)
		}
		if err := s.Set("nodes/adm", "x"); err != nil {
			t.Fatal(err)
		}
		if err := s.Remove("nodes/adm"); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Get("nodes/adm"); err != ErrNotFound {
			t.Errorf("expected not found error after remove, got: %v", err)
		}
	})

	t.Run("Concurrent", func(t *testing.T) {
		s := newStore()
		defer s.Close()

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := fmt.Sprintf("key/%d", i)
				if err := s.Set(key, key); err != nil {
					t.Errorf("unexpected error: %s", err)
				}
				if got, err := s.Get(key); err != nil || got != key {
					t.Errorf("got: %q %v", got, err)
				}
			}(i)
		}
		wg.Wait()
	})
}
