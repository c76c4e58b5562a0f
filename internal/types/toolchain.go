package types

// ToolchainSnapshot is a stored compiler binary for one release.
// Immutable once stored; owned by the toolchain cache.
type ToolchainSnapshot struct {
	// Version is the release, e.g. "0.8.19"
	Version string `json:"version"`
	// LongVersion includes the commit, e.g. "0.8.19+commit.7dd6d404"
	LongVersion string `json:"long_version"`
	// SHA256 is the hex digest of the binary; it addresses the blob in the store
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
	// Path is where the executable lives
	Path string `json:"path"`
}
