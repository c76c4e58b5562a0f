// Package toolchain acquires and caches compiler binaries by release version.
package toolchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/steveyegge/sabre/internal/types"
)

// ErrToolchainUnavailable wraps every download or storage failure. It is
// fatal to the run and never retried here.
var ErrToolchainUnavailable = errors.New("toolchain unavailable")

// DefaultMemoryEntries is the default size of the in-process snapshot layer
const DefaultMemoryEntries = 16

// Cache resolves a release version to a stored snapshot, downloading at most
// once per version at a time within the process.
type Cache struct {
	store  Store
	source Source
	mem    *lru.Cache[string, types.ToolchainSnapshot]
	logger *slog.Logger

	flights   singleflight.Group
	downloads atomic.Int64
}

// NewCache creates a cache over store, downloading misses from source
func NewCache(store Store, source Source, memEntries int, logger *slog.Logger) (*Cache, error) {
	if memEntries <= 0 {
		memEntries = DefaultMemoryEntries
	}
	mem, err := lru.New[string, types.ToolchainSnapshot](memEntries)
	if err != nil {
		return nil, fmt.Errorf("creating snapshot lru: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: store, source: source, mem: mem, logger: logger}, nil
}

// Acquire returns the snapshot for version and whether it was already cached.
// Concurrent callers for the same version share one download; each caller
// still honours its own ctx while waiting.
func (c *Cache) Acquire(ctx context.Context, version string) (types.ToolchainSnapshot, bool, error) {
	if snap, ok := c.mem.Get(version); ok {
		return snap, true, nil
	}

	snap, ok, err := c.store.Load(ctx, version)
	if err != nil {
		return types.ToolchainSnapshot{}, false, fmt.Errorf("%w: loading %s: %w", ErrToolchainUnavailable, version, err)
	}
	if ok {
		c.mem.Add(version, snap)
		c.logger.Debug("toolchain cache hit", "version", version, "path", snap.Path)
		return snap, true, nil
	}

	// The flight outlives any single caller's cancellation so that other
	// waiters are not failed by it.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(version, func() (any, error) {
		return c.download(flightCtx, version)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return types.ToolchainSnapshot{}, false, fmt.Errorf("%w: %s: %w", ErrToolchainUnavailable, version, res.Err)
		}
		return res.Val.(types.ToolchainSnapshot), false, nil
	case <-ctx.Done():
		return types.ToolchainSnapshot{}, false, fmt.Errorf("%w: %s: %w", ErrToolchainUnavailable, version, ctx.Err())
	}
}

// download runs inside a flight. It re-checks the store first: a flight that
// finished between our miss and joining would otherwise download twice.
func (c *Cache) download(ctx context.Context, version string) (types.ToolchainSnapshot, error) {
	if snap, ok, err := c.store.Load(ctx, version); err != nil {
		return types.ToolchainSnapshot{}, err
	} else if ok {
		c.mem.Add(version, snap)
		return snap, nil
	}

	if c.source == nil {
		return types.ToolchainSnapshot{}, fmt.Errorf("no toolchain source configured")
	}
	build, err := c.source.Lookup(ctx, version)
	if err != nil {
		return types.ToolchainSnapshot{}, err
	}

	c.logger.Info("downloading compiler", "version", version, "build", build.Path)
	c.downloads.Add(1)
	rc, err := c.source.Fetch(ctx, build)
	if err != nil {
		return types.ToolchainSnapshot{}, err
	}
	defer rc.Close()

	snap, err := c.store.Save(ctx, build, rc)
	if err != nil {
		return types.ToolchainSnapshot{}, err
	}
	c.mem.Add(version, snap)
	c.logger.Debug("compiler stored", "version", version, "sha256", snap.SHA256, "size", snap.Size)
	return snap, nil
}

// Downloads returns how many downloads this cache has started
func (c *Cache) Downloads() int64 {
	return c.downloads.Load()
}

// List returns every stored snapshot
func (c *Cache) List(ctx context.Context) ([]types.ToolchainSnapshot, error) {
	return c.store.List(ctx)
}

// Invalidate drops version from memory and the store so the next Acquire
// downloads it again
func (c *Cache) Invalidate(ctx context.Context, version string) (bool, error) {
	c.mem.Remove(version)
	return c.store.Remove(ctx, version)
}

// Local returns a catalog of the releases already in the store
func (c *Cache) Local() StoreCatalog {
	return StoreCatalog{Store: c.store}
}
