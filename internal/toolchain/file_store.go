package toolchain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/steveyegge/sabre/internal/types"
)

// Index records which blob holds which release
type Index interface {
	GetToolchain(ctx context.Context, version string) (*types.ToolchainSnapshot, error)
	PutToolchain(ctx context.Context, snap types.ToolchainSnapshot) error
	DeleteToolchain(ctx context.Context, version string) (bool, error)
	ListToolchains(ctx context.Context) ([]types.ToolchainSnapshot, error)
	CountBySHA256(ctx context.Context, sha string) (int, error)
}

// FileStore keeps compiler binaries on disk, content-addressed by digest.
//
// Structure:
//
//	{Root}/
//	  objects/
//	    {sha[0:2]}/
//	      {sha}        (executable)
//
// The version → digest mapping lives in the Index. A blob is renamed into
// place before its index row is written, so an interrupted download is a
// cache miss, never a corrupt snapshot.
type FileStore struct {
	Root  string
	Index Index
}

// NewFileStore creates a store rooted at root
func NewFileStore(root string, index Index) *FileStore {
	return &FileStore{Root: root, Index: index}
}

// Load returns the snapshot for version. An index row whose blob has gone
// missing is dropped and reported as a miss.
func (s *FileStore) Load(ctx context.Context, version string) (types.ToolchainSnapshot, bool, error) {
	snap, err := s.Index.GetToolchain(ctx, version)
	if err != nil {
		return types.ToolchainSnapshot{}, false, err
	}
	if snap == nil {
		return types.ToolchainSnapshot{}, false, nil
	}
	if _, err := os.Stat(snap.Path); err != nil {
		if os.IsNotExist(err) {
			if _, err := s.Index.DeleteToolchain(ctx, version); err != nil {
				return types.ToolchainSnapshot{}, false, err
			}
			return types.ToolchainSnapshot{}, false, nil
		}
		return types.ToolchainSnapshot{}, false, fmt.Errorf("checking blob for %s: %w", version, err)
	}
	return *snap, true, nil
}

// Save streams r into a temp file beside its final location, verifies the
// digest, renames it into place and then indexes it.
func (s *FileStore) Save(ctx context.Context, b Build, r io.Reader) (types.ToolchainSnapshot, error) {
	tmpDir := filepath.Join(s.Root, "tmp")
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return types.ToolchainSnapshot{}, fmt.Errorf("creating cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(tmpDir, "download-"+b.Version+"-*")
	if err != nil {
		return types.ToolchainSnapshot{}, fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err != nil {
		return types.ToolchainSnapshot{}, fmt.Errorf("downloading %s: %w", b.Version, err)
	}
	digest := hex.EncodeToString(h.Sum(nil))
	if want := b.Digest(); want != "" && want != digest {
		return types.ToolchainSnapshot{}, fmt.Errorf("%w: want %s, got %s", ErrDigestMismatch, want, digest)
	}
	if err := tmp.Chmod(0755); err != nil {
		return types.ToolchainSnapshot{}, fmt.Errorf("marking executable: %w", err)
	}
	_ = tmp.Sync() // best-effort durability
	if err := tmp.Close(); err != nil {
		return types.ToolchainSnapshot{}, fmt.Errorf("closing temp file: %w", err)
	}

	blobPath := s.blobPath(digest)
	if err := os.MkdirAll(filepath.Dir(blobPath), 0755); err != nil {
		return types.ToolchainSnapshot{}, fmt.Errorf("creating object directory: %w", err)
	}
	if err := os.Rename(tmpName, blobPath); err != nil {
		return types.ToolchainSnapshot{}, fmt.Errorf("committing blob: %w", err)
	}
	committed = true

	snap := types.ToolchainSnapshot{
		Version:     b.Version,
		LongVersion: b.LongVersion,
		SHA256:      digest,
		Size:        size,
		Path:        blobPath,
	}
	if err := s.Index.PutToolchain(ctx, snap); err != nil {
		return types.ToolchainSnapshot{}, err
	}
	return snap, nil
}

// List returns every indexed snapshot
func (s *FileStore) List(ctx context.Context) ([]types.ToolchainSnapshot, error) {
	return s.Index.ListToolchains(ctx)
}

// Remove drops version from the index and deletes its blob when no other
// release references it
func (s *FileStore) Remove(ctx context.Context, version string) (bool, error) {
	snap, err := s.Index.GetToolchain(ctx, version)
	if err != nil {
		return false, err
	}
	if snap == nil {
		return false, nil
	}
	if _, err := s.Index.DeleteToolchain(ctx, version); err != nil {
		return false, err
	}
	refs, err := s.Index.CountBySHA256(ctx, snap.SHA256)
	if err != nil {
		return true, err
	}
	if refs == 0 {
		if err := os.Remove(snap.Path); err != nil && !os.IsNotExist(err) {
			return true, fmt.Errorf("removing blob: %w", err)
		}
	}
	return true, nil
}

// blobPath shards objects by the first two digest characters to avoid
// having too many entries in a single directory
func (s *FileStore) blobPath(digest string) string {
	return filepath.Join(s.Root, "objects", digest[:2], digest)
}
