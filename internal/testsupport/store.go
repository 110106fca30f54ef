package testsupport

import (
	"context"
	"testing"

	"transponster/internal/config"
	"transponster/internal/mapping"
)

// MustOpenStore opens a mapping.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *mapping.Store {
	t.Helper()

	store, err := mapping.Open(cfg)
	if err != nil {
		t.Fatalf("mapping.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustPut stores a mapping or fails the test.
func MustPut(t testing.TB, store *mapping.Store, sourceFileID, documentID string) {
	t.Helper()

	if err := store.Put(context.Background(), sourceFileID, documentID); err != nil {
		t.Fatalf("store.Put: %v", err)
	}
}
