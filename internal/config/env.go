package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads a .env file from the working directory when present.
// Variables already set in the environment win.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// ApplyEnv overlays environment variables onto cfg
//
// Environment variables:
//   - MYTHX_API_URL: Analysis service URL
//   - MYTHX_ETH_ADDRESS: Account address
//   - MYTHX_PASSWORD: Account password
//   - SABRE_MODE: quick or full (default: quick)
//   - SABRE_FORMAT: Report format (default: stylish)
//   - SABRE_CACHE_DIR: Compiler cache directory
//   - SABRE_VERSION_POLICY: latest or prefer-cached (default: latest)
//   - SABRE_TOOLCHAIN_SOURCE: http or s3 (default: http)
//   - SABRE_TOOLCHAIN_URL: Binaries repository URL
//   - SABRE_S3_ENDPOINT, SABRE_S3_BUCKET, SABRE_S3_ACCESS_KEY, SABRE_S3_SECRET_KEY: S3 mirror
//   - SABRE_S3_USE_SSL: Use TLS for the S3 mirror (default: true)
//   - SABRE_REQUESTS_PER_SECOND: API request limit, 0 for unlimited (default: 5)
//   - SABRE_MAX_PARALLEL_READS: Concurrent source reads (default: 8)
//
// Returns an error if any environment variable has an invalid value.
func ApplyEnv(cfg *Config) error {
	strs := []struct {
		key  string
		dest *string
	}{
		{"MYTHX_API_URL", &cfg.Service.URL},
		{"MYTHX_ETH_ADDRESS", &cfg.Service.EthAddress},
		{"MYTHX_PASSWORD", &cfg.Service.Password},
		{"SABRE_MODE", &cfg.Mode},
		{"SABRE_FORMAT", &cfg.Format},
		{"SABRE_CACHE_DIR", &cfg.Toolchain.CacheDir},
		{"SABRE_VERSION_POLICY", &cfg.Toolchain.Policy},
		{"SABRE_TOOLCHAIN_SOURCE", &cfg.Toolchain.Source},
		{"SABRE_TOOLCHAIN_URL", &cfg.Toolchain.URL},
		{"SABRE_S3_ENDPOINT", &cfg.Toolchain.S3.Endpoint},
		{"SABRE_S3_BUCKET", &cfg.Toolchain.S3.Bucket},
		{"SABRE_S3_ACCESS_KEY", &cfg.Toolchain.S3.AccessKey},
		{"SABRE_S3_SECRET_KEY", &cfg.Toolchain.S3.SecretKey},
	}
	for _, s := range strs {
		if err := parseEnvString(s.key, s.dest); err != nil {
			return err
		}
	}

	if err := parseEnvBool("SABRE_S3_USE_SSL", &cfg.Toolchain.S3.UseSSL); err != nil {
		return err
	}
	if err := parseEnvFloat("SABRE_REQUESTS_PER_SECOND", &cfg.Service.RequestsPerSecond); err != nil {
		return err
	}
	if err := parseEnvInt("SABRE_MAX_PARALLEL_READS", &cfg.Compiler.MaxParallelReads); err != nil {
		return err
	}
	return nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvFloat parses a float64 from an environment variable
func parseEnvFloat(key string, dest *float64) error {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvString parses a string from an environment variable
func parseEnvString(key string, dest *string) error {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil // Use default
	}
	*dest = value
	return nil
}
