package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesSchema(t *testing.T) {
	s := newTestStore(t)

	for _, table := range []string{"records", "record_changes", "decision_audit", "sync_runs"} {
		var name string
		err := s.DB().QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		require.NoError(t, err, "table %s", table)
		assert.Equal(t, table, name)
	}
}

func TestOpen_SetsPragmas(t *testing.T) {
	s := newTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, _, err = s.Submit(context.Background(), "EXT-1", "feed-a", Snapshot{TicketStatus: "Portado"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Schema application and migrations are idempotent on an existing file.
	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	entry, err := s.Latest(context.Background(), "EXT-1")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Version)
	assert.Equal(t, "Portado", entry.TicketStatus)
}

func TestOpen_SchemaVersionRecorded(t *testing.T) {
	s := newTestStore(t)

	var version int
	require.NoError(t, s.DB().QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestContentHash_TrackedFieldsOnly(t *testing.T) {
	base := Snapshot{TicketStatus: "Portado", OrderStatus: "Enviado"}

	same := base
	same.CustomerName = "Maria Silva"
	same.Address = "Rua A, 123"
	assert.Equal(t, ContentHash(&base), ContentHash(&same),
		"customer data does not participate in change detection")

	changed := base
	changed.TicketStatus = "Concluído"
	assert.NotEqual(t, ContentHash(&base), ContentHash(&changed))
}

func TestContentHash_FieldBoundaries(t *testing.T) {
	a := Snapshot{OrderStatus: "ab", LogisticsStatus: "c"}
	b := Snapshot{OrderStatus: "a", LogisticsStatus: "bc"}
	assert.NotEqual(t, ContentHash(&a), ContentHash(&b))
}
