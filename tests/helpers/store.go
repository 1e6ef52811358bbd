package helpers

import (
	"testing"

	"github.com/xiaot623/hitl-relay/store"
)

func NewTestStore(t *testing.T) *store.MemoryStore {
	t.Helper()

	s := store.NewMemoryStore()
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func NewTestSQLiteStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}
