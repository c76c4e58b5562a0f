// Package resolver discovers the transitive import closure of an entry source file.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/sabre/internal/types"
)

// DefaultMaxParallelReads bounds concurrent file reads within one BFS level
const DefaultMaxParallelReads = 8

// UnresolvedImportError is returned when an import path matches no file
type UnresolvedImportError struct {
	Path string
	// From is the source unit that declared the import
	From string
}

func (e *UnresolvedImportError) Error() string {
	return fmt.Sprintf("unresolved import %q in %s", e.Path, e.From)
}

// SourceReadError is returned when a resolved file cannot be read
type SourceReadError struct {
	Path string
	Err  error
}

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("failed to read %s: %v", e.Path, e.Err)
}

func (e *SourceReadError) Unwrap() error { return e.Err }

// Resolver walks imports breadth-first starting from an entry file
type Resolver struct {
	FS FS
	// Parse extracts import paths; defaults to ParseImports
	Parse ImportParser
	// BaseDir anchors source unit names; defaults to the entry file's directory
	BaseDir string
	// IncludePaths are searched, relative to BaseDir unless absolute, for
	// non-relative imports that are not found under BaseDir
	IncludePaths []string
	MaxParallel  int
	Logger       *slog.Logger
}

type pending struct {
	name string // source unit name
	path string // file system path
	// alias marks a unit whose file was already queued under another name
	alias bool
}

// Resolve returns the frozen SourceSet for entryPath: the entry file first,
// then its imports in breadth-first order of first discovery. Every file
// path is read exactly once, including under cyclic imports. A file reached
// through two import spellings appears under both unit names with the
// content of the single read.
func (r *Resolver) Resolve(ctx context.Context, entryPath string, snapshot types.ToolchainSnapshot) (*types.SourceSet, error) {
	fsys := r.FS
	if fsys == nil {
		fsys = OSFS{}
	}
	parse := r.Parse
	if parse == nil {
		parse = ParseImports
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := r.MaxParallel
	if limit <= 0 {
		limit = DefaultMaxParallelReads
	}

	baseDir := r.BaseDir
	if baseDir == "" {
		baseDir = filepath.Dir(entryPath)
	}
	entryName, err := filepath.Rel(baseDir, entryPath)
	if err != nil {
		entryName = filepath.Base(entryPath)
	}
	entryName = path.Clean(filepath.ToSlash(entryName))

	if !fsys.Exists(entryPath) {
		return nil, &SourceReadError{Path: entryPath, Err: fmt.Errorf("file does not exist")}
	}

	set := types.NewSourceSet()
	queued := map[string]bool{entryName: true}
	queuedPaths := map[string]bool{filepath.Clean(entryPath): true}
	contentByPath := make(map[string]string)
	level := []pending{{name: entryName, path: entryPath}}

	for depth := 0; len(level) > 0; depth++ {
		contents, err := r.readLevel(ctx, fsys, level, limit)
		if err != nil {
			return nil, err
		}

		var next []pending
		for i, p := range level {
			key := filepath.Clean(p.path)
			content := contents[i]
			if p.alias {
				// the first spelling sits earlier in this level or in a previous one
				content = contentByPath[key]
			} else {
				contentByPath[key] = content
			}
			if err := set.Add(types.SourceFile{Name: p.name, Path: p.path, Content: content}); err != nil {
				return nil, err
			}
			for _, imp := range parse(content) {
				name, filePath, ok := r.locate(fsys, baseDir, p, imp)
				if !ok {
					return nil, &UnresolvedImportError{Path: imp, From: p.name}
				}
				if queued[name] {
					continue
				}
				queued[name] = true
				fileKey := filepath.Clean(filePath)
				next = append(next, pending{name: name, path: filePath, alias: queuedPaths[fileKey]})
				queuedPaths[fileKey] = true
			}
		}
		logger.Debug("resolved import level", "depth", depth, "files", len(level), "discovered", len(next))
		level = next
	}

	set.Freeze()
	logger.Debug("resolved sources", "entry", entryName, "files", set.Len(), "compiler", snapshot.Version)
	return set, nil
}

// readLevel reads every non-alias file of one BFS level concurrently. The reported
// error is the first failing file in level order, so failures are deterministic.
func (r *Resolver) readLevel(ctx context.Context, fsys FS, level []pending, limit int) ([]string, error) {
	contents := make([]string, len(level))
	errs := make([]error, len(level))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, p := range level {
		if p.alias {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			data, err := fsys.ReadFile(p.path)
			if err != nil {
				errs[i] = &SourceReadError{Path: p.path, Err: err}
				return nil
			}
			contents[i] = string(data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return contents, nil
}

// locate maps an import declared in from to a source unit name and a file
// path. Relative imports name a unit relative to from's unit name but are
// read relative to from's file, which differ for include-path files.
func (r *Resolver) locate(fsys FS, baseDir string, from pending, imp string) (name, filePath string, ok bool) {
	imp = filepath.ToSlash(imp)

	if strings.HasPrefix(imp, "./") || strings.HasPrefix(imp, "../") {
		name = path.Clean(path.Join(path.Dir(from.name), imp))
		filePath = filepath.Join(filepath.Dir(from.path), filepath.FromSlash(imp))
		return name, filePath, fsys.Exists(filePath)
	}

	name = path.Clean(imp)
	if path.IsAbs(name) {
		filePath = filepath.FromSlash(name)
		return name, filePath, fsys.Exists(filePath)
	}

	candidates := []string{filepath.Join(baseDir, filepath.FromSlash(name))}
	for _, inc := range r.IncludePaths {
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(baseDir, inc)
		}
		candidates = append(candidates, filepath.Join(inc, filepath.FromSlash(name)))
	}
	for _, c := range candidates {
		if fsys.Exists(c) {
			return name, c, true
		}
	}
	return name, "", false
}
