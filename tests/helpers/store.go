package helpers

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xiaot623/gogo/sopdesk/internal/repository"
)

// NewTestSQLiteStore opens a migrated store in a per-test temporary file.
func NewTestSQLiteStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()

	s, err := repository.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "sopdesk.db")+"?_busy_timeout=5000")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}
