package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStateStore(t *testing.T) {
	ctx := context.Background()
	store := &FileStateStore{Path: filepath.Join(t.TempDir(), "state")}

	token, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, store.Save(ctx, "H4sIAAAAAAAEAO29B2AcSZ+long-token"))
	token, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "H4sIAAAAAAAEAO29B2AcSZ+long-token", token)

	require.NoError(t, store.Save(ctx, "short"))
	data, err := os.ReadFile(store.Path)
	require.NoError(t, err)
	assert.Equal(t, "short", string(data))

	require.NoError(t, store.Reset(ctx))
	token, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
	require.NoError(t, store.Reset(ctx))
}

func TestFileStateStoreMissingDirectory(t *testing.T) {
	store := &FileStateStore{Path: filepath.Join(t.TempDir(), "missing", "state")}
	assert.Error(t, store.Save(context.Background(), "token"))
}

func TestDBStateStore(t *testing.T) {
	ctx := context.Background()
	db, err := openDB(filepath.Join(t.TempDir(), "ewssync.db"))
	require.NoError(t, err)
	defer db.Close()

	alice := &DBStateStore{DB: db, Account: "alice@example.com"}
	bob := &DBStateStore{DB: db, Account: "bob@example.com"}

	token, err := alice.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, alice.Save(ctx, "a1"))
	require.NoError(t, alice.Save(ctx, "a2"))
	require.NoError(t, bob.Save(ctx, "b1"))

	token, err = alice.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a2", token)

	require.NoError(t, alice.Reset(ctx))
	token, err = alice.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	token, err = bob.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b1", token)
}

func TestOpenDBIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ewssync.db")
	db, err := openDB(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = openDB(path)
	require.NoError(t, err)
	defer db.Close()

	var version int
	require.NoError(t, db.QueryRow("SELECT version FROM db_version WHERE name='ewssync'").Scan(&version))
	assert.Equal(t, schemaVersion, version)
}
