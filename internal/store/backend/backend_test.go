package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/mindcheck/backend/internal/config"
)

func TestOpenMemory(t *testing.T) {
	s, err := Open(context.Background(), config.StorageConfig{Backend: config.StorageMemory})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(context.Background(), "k", "v"))
	v, ok, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestOpenSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	s, err := Open(context.Background(), config.StorageConfig{Backend: config.StorageSQLite, SQLitePath: path})
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestOpenUnknown(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Backend: "etcd"})
	assert.Error(t, err)
}
