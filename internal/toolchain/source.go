package toolchain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ErrUnknownRelease is returned when the repository has no build for a version
var ErrUnknownRelease = errors.New("unknown release")

// Build describes one downloadable compiler binary
type Build struct {
	Path        string `json:"path"`
	Version     string `json:"version"`
	LongVersion string `json:"longVersion"`
	// SHA256 is hex, optionally "0x"-prefixed in the repository listing
	SHA256 string `json:"sha256"`
}

// Digest returns the lowercase hex digest without a "0x" prefix
func (b Build) Digest() string {
	return strings.ToLower(strings.TrimPrefix(b.SHA256, "0x"))
}

// Source is the versioned binary repository the cache downloads from
type Source interface {
	// Releases lists every release version the repository offers
	Releases(ctx context.Context) ([]string, error)
	// Lookup returns the build for an exact release
	Lookup(ctx context.Context, version string) (Build, error)
	// Fetch opens the binary for a build
	Fetch(ctx context.Context, b Build) (io.ReadCloser, error)
}

// releaseList mirrors the solc binaries repository list.json
type releaseList struct {
	Builds        []Build           `json:"builds"`
	Releases      map[string]string `json:"releases"`
	LatestRelease string            `json:"latestRelease"`
}

func parseReleaseList(r io.Reader) (*releaseList, error) {
	var list releaseList
	if err := json.NewDecoder(r).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to parse release list: %w", err)
	}
	return &list, nil
}

// listing memoizes a successfully fetched release list. A failed fetch is
// not remembered, so a later call fetches again.
type listing struct {
	mu   sync.Mutex
	list *releaseList
}

func (l *listing) get(ctx context.Context, fetch func(context.Context) (io.ReadCloser, error)) (*releaseList, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.list != nil {
		return l.list, nil
	}
	rc, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	list, err := parseReleaseList(rc)
	if err != nil {
		return nil, err
	}
	l.list = list
	return list, nil
}

func (l *releaseList) versions() []string {
	out := make([]string, 0, len(l.Releases))
	for v := range l.Releases {
		out = append(out, v)
	}
	return out
}

func (l *releaseList) lookup(version string) (Build, error) {
	path, ok := l.Releases[version]
	if !ok {
		return Build{}, fmt.Errorf("%w: %s", ErrUnknownRelease, version)
	}
	for _, b := range l.Builds {
		if b.Path == path {
			return b, nil
		}
	}
	return Build{}, fmt.Errorf("%w: %s (listed as %s but no build entry)", ErrUnknownRelease, version, path)
}
