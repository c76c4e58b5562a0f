package toolchain

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/sabre/internal/storage/sqlite"
)

func newTestFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	root := t.TempDir()
	index, err := sqlite.New(filepath.Join(root, "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	return NewFileStore(root, index), root
}

func digestOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestFileStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	store, root := newTestFileStore(t)
	data := []byte("#!/bin/sh\necho solc\n")

	snap, err := store.Save(ctx, Build{Version: "0.8.19", LongVersion: "0.8.19+commit.7dd6d404", SHA256: "0x" + digestOf(data)}, bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, digestOf(data), snap.SHA256)
	assert.Equal(t, int64(len(data)), snap.Size)
	assert.Equal(t, filepath.Join(root, "objects", snap.SHA256[:2], snap.SHA256), snap.Path)

	info, err := os.Stat(snap.Path)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0100, "blob should be executable")

	loaded, ok, err := store.Load(ctx, "0.8.19")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snap, loaded)

	// No temp files are left behind
	entries, err := os.ReadDir(filepath.Join(root, "tmp"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileStore_FailedDownloadLeavesNoEntry(t *testing.T) {
	ctx := context.Background()
	store, root := newTestFileStore(t)

	_, err := store.Save(ctx, Build{Version: "0.8.19"}, &failingReader{after: []byte("partial")})
	require.Error(t, err)

	_, ok, err := store.Load(ctx, "0.8.19")
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := os.ReadDir(filepath.Join(root, "tmp"))
	require.NoError(t, err)
	assert.Empty(t, entries)
	_, err = os.Stat(filepath.Join(root, "objects"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_DigestMismatch(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestFileStore(t)

	_, err := store.Save(ctx, Build{Version: "0.8.19", SHA256: digestOf([]byte("other"))}, bytes.NewReader([]byte("bin")))
	assert.ErrorIs(t, err, ErrDigestMismatch)

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFileStore_MissingBlobIsMiss(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestFileStore(t)

	snap, err := store.Save(ctx, Build{Version: "0.8.19"}, bytes.NewReader([]byte("bin")))
	require.NoError(t, err)
	require.NoError(t, os.Remove(snap.Path))

	_, ok, err := store.Load(ctx, "0.8.19")
	require.NoError(t, err)
	assert.False(t, ok)

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list, "stale index row should be dropped")
}

func TestFileStore_RemoveKeepsSharedBlob(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestFileStore(t)
	data := []byte("same-binary")

	a, err := store.Save(ctx, Build{Version: "0.8.18"}, bytes.NewReader(data))
	require.NoError(t, err)
	_, err = store.Save(ctx, Build{Version: "0.8.19"}, bytes.NewReader(data))
	require.NoError(t, err)

	removed, err := store.Remove(ctx, "0.8.18")
	require.NoError(t, err)
	assert.True(t, removed)
	_, err = os.Stat(a.Path)
	assert.NoError(t, err, "blob still referenced by 0.8.19")

	removed, err = store.Remove(ctx, "0.8.19")
	require.NoError(t, err)
	assert.True(t, removed)
	_, err = os.Stat(a.Path)
	assert.True(t, os.IsNotExist(err))

	removed, err = store.Remove(ctx, "0.8.19")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestFileStore_WithCache(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestFileStore(t)
	src := newFakeSource("0.8.19")
	c := newTestCache(t, store, src)

	first, cached, err := c.Acquire(ctx, "0.8.19")
	require.NoError(t, err)
	assert.False(t, cached)

	// A fresh cache over the same store (new process) hits without fetching
	c2 := newTestCache(t, store, src)
	second, cached, err := c2.Acquire(ctx, "0.8.19")
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), src.fetches.Load())
}

type failingReader struct {
	after []byte
	done  bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, errors.New("connection reset by peer")
	}
	r.done = true
	return copy(p, r.after), nil
}
