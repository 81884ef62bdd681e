package testing

import (
	"testing"

	"github.com/promptloom/promptloom/storage"
)

// CreateTestStore creates a Store backed by a temporary directory that is
// removed when the test finishes.
func CreateTestStore(t *testing.T) *storage.Store {
	t.Helper()

	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	return store
}
