package resolver

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FS is the file-system boundary the resolver reads through
type FS interface {
	Exists(path string) bool
	ReadFile(path string) ([]byte, error)
}

// OSFS reads from the local file system
type OSFS struct{}

// Exists reports whether path names a regular file
func (OSFS) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ReadFile reads path
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// MapFS is an in-memory FS that counts reads per path.
// Useful for testing.
type MapFS struct {
	Files map[string]string

	mu    sync.Mutex
	reads map[string]int
}

// NewMapFS creates a MapFS over files (keys are cleaned paths)
func NewMapFS(files map[string]string) *MapFS {
	cleaned := make(map[string]string, len(files))
	for p, c := range files {
		cleaned[filepath.Clean(p)] = c
	}
	return &MapFS{Files: cleaned, reads: make(map[string]int)}
}

// Exists reports whether path is present
func (m *MapFS) Exists(path string) bool {
	_, ok := m.Files[filepath.Clean(path)]
	return ok
}

// ReadFile returns the content for path
func (m *MapFS) ReadFile(path string) ([]byte, error) {
	path = filepath.Clean(path)
	m.mu.Lock()
	m.reads[path]++
	m.mu.Unlock()
	content, ok := m.Files[path]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: path, Err: fs.ErrNotExist}
	}
	return []byte(content), nil
}

// Reads returns how many times path was read
func (m *MapFS) Reads(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads[filepath.Clean(path)]
}

// TotalReads returns the number of reads across all paths
func (m *MapFS) TotalReads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.reads {
		n += c
	}
	return n
}
