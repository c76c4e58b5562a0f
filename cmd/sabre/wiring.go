package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/steveyegge/sabre/internal/analysis"
	"github.com/steveyegge/sabre/internal/compiler"
	"github.com/steveyegge/sabre/internal/config"
	"github.com/steveyegge/sabre/internal/deduplication"
	"github.com/steveyegge/sabre/internal/events"
	"github.com/steveyegge/sabre/internal/pipeline"
	"github.com/steveyegge/sabre/internal/resolver"
	"github.com/steveyegge/sabre/internal/storage/sqlite"
	"github.com/steveyegge/sabre/internal/toolchain"
	"github.com/steveyegge/sabre/internal/version"
)

const indexFile = "index.db"

// newSource builds the configured compiler source
func newSource(c config.Config) (toolchain.Source, error) {
	switch c.Toolchain.Source {
	case config.SourceS3:
		prefix := c.Toolchain.S3.Prefix
		if prefix == "" {
			prefix = c.Toolchain.Platform
		}
		return toolchain.NewS3Source(toolchain.S3Config{
			Endpoint:  c.Toolchain.S3.Endpoint,
			Region:    c.Toolchain.S3.Region,
			AccessKey: c.Toolchain.S3.AccessKey,
			SecretKey: c.Toolchain.S3.SecretKey,
			Bucket:    c.Toolchain.S3.Bucket,
			Prefix:    prefix,
			UseSSL:    c.Toolchain.S3.UseSSL,
		})
	case config.SourceHTTP, "":
		return toolchain.NewHTTPSource(c.Toolchain.URL, c.Toolchain.Platform), nil
	default:
		return nil, fmt.Errorf("unknown toolchain source %q", c.Toolchain.Source)
	}
}

// localCache is the on-disk compiler cache; Close releases its index
type localCache struct {
	*toolchain.Cache
	store *toolchain.FileStore
	index *sqlite.SQLiteStorage
}

func (l *localCache) Close() error {
	return l.index.Close()
}

// openCache opens the compiler cache under c.Toolchain.CacheDir
func openCache(c config.Config, source toolchain.Source) (*localCache, error) {
	index, err := sqlite.New(filepath.Join(c.Toolchain.CacheDir, indexFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache index: %w", err)
	}
	store := toolchain.NewFileStore(c.Toolchain.CacheDir, index)
	cache, err := toolchain.NewCache(store, source, c.Toolchain.MemoryEntries, slog.Default())
	if err != nil {
		_ = index.Close()
		return nil, err
	}
	return &localCache{Cache: cache, store: store, index: index}, nil
}

// newEngine wires every stage of a run from c
func newEngine(c config.Config, source toolchain.Source, cache *localCache, observer events.Observer) *pipeline.Engine {
	logger := slog.Default()
	fsys := resolver.OSFS{}

	unit := compiler.NewUnit(compiler.ExecRunner{}, compiler.Options{
		Optimize:     c.Compiler.Optimize,
		OptimizeRuns: c.Compiler.OptimizeRuns,
		EVMVersion:   c.Compiler.EVMVersion,
		Remappings:   c.Compiler.Remappings,
	})
	unit.Logger = logger

	return &pipeline.Engine{
		FS: fsys,
		Detector: &version.Detector{
			Remote: source,
			Local:  cache.Local(),
			Policy: version.Policy(c.Toolchain.Policy),
			Logger: logger,
		},
		Cache: cache,
		Resolver: &resolver.Resolver{
			FS:           fsys,
			IncludePaths: c.Compiler.IncludePaths,
			MaxParallel:  c.Compiler.MaxParallelReads,
			Logger:       logger,
		},
		Compiler: unit,
		Client:   newClient(c),
		Reducer:  deduplication.NewReducer(logger),
		Observer: observer,
		Logger:   logger,
	}
}

func newClient(c config.Config) *analysis.HTTPClient {
	client := analysis.NewHTTPClient(c.Service.URL, c.Service.RequestsPerSecond)
	client.UserAgent = "sabre/" + Version
	return client
}
