// Package config loads sabre's settings from defaults, a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFile is read from the working directory when no file is named
const DefaultFile = ".sabre.yml"

const (
	SourceHTTP = "http"
	SourceS3   = "s3"
)

// Config holds every setting of a run
type Config struct {
	// Mode is the analysis depth, "quick" or "full"
	// Default: quick
	Mode string `yaml:"mode"`

	// Format selects the report format
	// Default: stylish
	Format string `yaml:"format"`

	Service   ServiceConfig   `yaml:"service"`
	Toolchain ToolchainConfig `yaml:"toolchain"`
	Compiler  CompilerConfig  `yaml:"compiler"`
}

// ServiceConfig configures the remote analysis service
type ServiceConfig struct {
	URL        string `yaml:"url"`
	EthAddress string `yaml:"eth_address"`
	Password   string `yaml:"password"`

	// RequestsPerSecond bounds API requests; 0 disables limiting
	// Default: 5
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// ToolchainConfig configures compiler acquisition and caching
type ToolchainConfig struct {
	// Source is where compilers are downloaded from: "http" or "s3"
	Source string `yaml:"source"`
	// URL is the binaries repository for the http source
	URL string `yaml:"url"`
	// Platform is the repository directory, e.g. linux-amd64
	Platform string `yaml:"platform"`

	// Policy is the version selection policy: "latest" or "prefer-cached"
	Policy string `yaml:"policy"`

	// CacheDir holds the compiler blobs and their index
	CacheDir string `yaml:"cache_dir"`

	// MemoryEntries sizes the in-process snapshot cache
	// Default: 16, Range: 1-1024
	MemoryEntries int `yaml:"memory_entries"`

	S3 S3Config `yaml:"s3"`
}

// S3Config locates a compiler mirror in an S3-compatible bucket
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// CompilerConfig configures source resolution and compilation
type CompilerConfig struct {
	// IncludePaths are searched for non-relative imports
	// Default: [node_modules]
	IncludePaths []string `yaml:"include_paths"`

	// MaxParallelReads bounds concurrent source reads
	// Default: 8, Range: 1-64
	MaxParallelReads int `yaml:"max_parallel_reads"`

	Optimize     bool     `yaml:"optimize"`
	OptimizeRuns int      `yaml:"optimize_runs"`
	EVMVersion   string   `yaml:"evm_version"`
	Remappings   []string `yaml:"remappings"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Mode:   "quick",
		Format: "stylish",
		Service: ServiceConfig{
			URL:               "https://api.mythx.io",
			RequestsPerSecond: 5,
		},
		Toolchain: ToolchainConfig{
			Source:        SourceHTTP,
			URL:           "https://binaries.soliditylang.org",
			Platform:      DefaultPlatform(),
			Policy:        "latest",
			CacheDir:      defaultCacheDir(),
			MemoryEntries: 16,
			S3: S3Config{
				Region: "us-east-1",
				UseSSL: true,
			},
		},
		Compiler: CompilerConfig{
			IncludePaths:     []string{"node_modules"},
			MaxParallelReads: 8,
			OptimizeRuns:     200,
		},
	}
}

// DefaultPlatform maps the running OS onto the binaries repository layout
func DefaultPlatform() string {
	switch runtime.GOOS {
	case "darwin":
		return "macosx-amd64"
	case "windows":
		return "windows-amd64"
	default:
		return "linux-amd64"
	}
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "sabre")
	}
	return filepath.Join(dir, "sabre")
}

// Validate checks if the configuration has valid values. Mode and format
// are checked where they are used so that they fail with their own error kinds.
func (c Config) Validate() error {
	switch c.Toolchain.Policy {
	case "latest", "prefer-cached":
	default:
		return fmt.Errorf("toolchain.policy must be latest or prefer-cached (got %q)", c.Toolchain.Policy)
	}
	switch c.Toolchain.Source {
	case SourceHTTP:
		if c.Toolchain.URL == "" {
			return errors.New("toolchain.url is required for the http source")
		}
	case SourceS3:
		if c.Toolchain.S3.Endpoint == "" || c.Toolchain.S3.Bucket == "" {
			return errors.New("toolchain.s3.endpoint and toolchain.s3.bucket are required for the s3 source")
		}
	default:
		return fmt.Errorf("toolchain.source must be http or s3 (got %q)", c.Toolchain.Source)
	}
	if c.Toolchain.Platform == "" {
		return errors.New("toolchain.platform cannot be empty")
	}
	if c.Toolchain.CacheDir == "" {
		return errors.New("toolchain.cache_dir cannot be empty")
	}
	if c.Toolchain.MemoryEntries < 1 || c.Toolchain.MemoryEntries > 1024 {
		return fmt.Errorf("toolchain.memory_entries must be between 1 and 1024 (got %d)", c.Toolchain.MemoryEntries)
	}
	if c.Compiler.MaxParallelReads < 1 || c.Compiler.MaxParallelReads > 64 {
		return fmt.Errorf("compiler.max_parallel_reads must be between 1 and 64 (got %d)", c.Compiler.MaxParallelReads)
	}
	if c.Compiler.OptimizeRuns < 0 {
		return fmt.Errorf("compiler.optimize_runs cannot be negative (got %d)", c.Compiler.OptimizeRuns)
	}
	if c.Service.RequestsPerSecond < 0 {
		return fmt.Errorf("service.requests_per_second cannot be negative (got %v)", c.Service.RequestsPerSecond)
	}
	if c.Service.URL == "" {
		return errors.New("service.url cannot be empty")
	}
	return nil
}

// String returns a human-readable representation of the config without secrets
func (c Config) String() string {
	return fmt.Sprintf(
		"Config{Mode: %s, Format: %s, Service: %s, Address: %s, Toolchain: %s(%s), "+
			"Platform: %s, Policy: %s, CacheDir: %s, IncludePaths: %v}",
		c.Mode, c.Format, c.Service.URL, c.Service.EthAddress, c.Toolchain.Source,
		c.toolchainLocation(), c.Toolchain.Platform, c.Toolchain.Policy,
		c.Toolchain.CacheDir, c.Compiler.IncludePaths,
	)
}

func (c Config) toolchainLocation() string {
	if c.Toolchain.Source == SourceS3 {
		return strings.TrimRight(c.Toolchain.S3.Endpoint, "/") + "/" + c.Toolchain.S3.Bucket
	}
	return c.Toolchain.URL
}

// LoadFile overlays the YAML file at path onto cfg
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing YAML %s: %w", path, err)
	}
	return nil
}

// Load builds the configuration: defaults, then the YAML file at path (or
// DefaultFile when path is empty and it exists), then .env and the
// environment. The result is not validated so callers can apply flags first.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	LoadDotEnv()
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
