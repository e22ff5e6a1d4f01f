package testsupport

import (
	"context"
	"testing"

	"siksha/internal/config"
	"siksha/internal/progress"
)

// MustOpenStore opens the configured progress store and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) progress.Store {
	t.Helper()

	store, err := progress.Open(cfg)
	if err != nil {
		t.Fatalf("progress.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustGet returns the stored status for key, failing the test when absent.
func MustGet(t testing.TB, store progress.Store, key string) progress.Status {
	t.Helper()

	status, ok, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("store.Get(%s): %v", key, err)
	}
	if !ok {
		t.Fatalf("no status stored for %s", key)
	}
	return status
}
