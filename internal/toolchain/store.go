package toolchain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/steveyegge/sabre/internal/types"
)

// ErrDigestMismatch is returned when downloaded bytes do not hash to the listed digest
var ErrDigestMismatch = errors.New("sha256 digest mismatch")

// Store persists snapshots keyed by release version
type Store interface {
	// Load returns the snapshot for version; ok is false on a miss
	Load(ctx context.Context, version string) (snap types.ToolchainSnapshot, ok bool, err error)
	// Save consumes r, verifies it against b's digest when one is listed, and
	// stores it. A failed Save leaves no entry behind.
	Save(ctx context.Context, b Build, r io.Reader) (types.ToolchainSnapshot, error)
	List(ctx context.Context) ([]types.ToolchainSnapshot, error)
	// Remove drops the entry for version, reporting whether one existed
	Remove(ctx context.Context, version string) (bool, error)
}

// MemoryStore implements Store in memory.
// Useful for testing and short-lived processes.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]types.ToolchainSnapshot
	blobs   map[string][]byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]types.ToolchainSnapshot),
		blobs:   make(map[string][]byte),
	}
}

// Load returns the snapshot for version
func (m *MemoryStore) Load(ctx context.Context, version string) (types.ToolchainSnapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.entries[version]
	return snap, ok, nil
}

// Save stores the bytes of r for b
func (m *MemoryStore) Save(ctx context.Context, b Build, r io.Reader) (types.ToolchainSnapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return types.ToolchainSnapshot{}, fmt.Errorf("failed to read build: %w", err)
	}
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	if want := b.Digest(); want != "" && want != digest {
		return types.ToolchainSnapshot{}, fmt.Errorf("%w: want %s, got %s", ErrDigestMismatch, want, digest)
	}

	snap := types.ToolchainSnapshot{
		Version:     b.Version,
		LongVersion: b.LongVersion,
		SHA256:      digest,
		Size:        int64(len(data)),
		Path:        "mem://" + digest,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[b.Version] = snap
	m.blobs[digest] = data
	return snap, nil
}

// List returns snapshots ordered by version string
func (m *MemoryStore) List(ctx context.Context) ([]types.ToolchainSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.ToolchainSnapshot, 0, len(m.entries))
	for _, snap := range m.entries {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Remove drops version
func (m *MemoryStore) Remove(ctx context.Context, version string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.entries[version]
	if !ok {
		return false, nil
	}
	delete(m.entries, version)
	delete(m.blobs, snap.SHA256)
	return true, nil
}

// Blob returns the stored bytes for a digest
func (m *MemoryStore) Blob(digest string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[digest]
	return data, ok
}

// StoreCatalog lists the releases present in a Store, so cached compilers can
// satisfy version detection without network access
type StoreCatalog struct {
	Store Store
}

// Releases lists cached release versions
func (c StoreCatalog) Releases(ctx context.Context) ([]string, error) {
	snaps, err := c.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, s.Version)
	}
	return out, nil
}
