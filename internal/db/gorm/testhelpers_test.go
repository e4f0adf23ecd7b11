package gorm

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

// testStore opens a fresh SQLite-backed store in a temp directory.
func testStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "insight_test.db")
	// Production pool size. The store itself serializes SQLite onto one
	// connection, and the concurrency tests depend on that.
	store, err := NewStore(Config{
		DSN:      dbPath,
		MaxConns: 10,
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}
