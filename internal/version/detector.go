// Package version resolves a Solidity source file's pragma constraint to one
// concrete compiler release.
package version

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/mod/semver"
)

// Policy decides where candidate releases come from
type Policy string

const (
	// PolicyLatest always selects from the remote release catalog
	PolicyLatest Policy = "latest"
	// PolicyPreferCached selects among locally cached releases first and falls
	// back to the remote catalog when none satisfies the constraint
	PolicyPreferCached Policy = "prefer-cached"
)

// IsValid checks if the policy value is valid
func (p Policy) IsValid() bool {
	switch p {
	case PolicyLatest, PolicyPreferCached:
		return true
	}
	return false
}

// Catalog lists known releases (e.g. "0.8.19")
type Catalog interface {
	Releases(ctx context.Context) ([]string, error)
}

// CatalogError wraps a failure to list releases. It is a toolchain failure,
// not a version failure.
type CatalogError struct {
	Err error
}

func (e *CatalogError) Error() string { return fmt.Sprintf("listing releases: %v", e.Err) }
func (e *CatalogError) Unwrap() error { return e.Err }

// Detector turns source text into one VersionIdentifier
type Detector struct {
	Remote Catalog
	// Local lists cached releases; consulted only under PolicyPreferCached
	Local  Catalog
	Policy Policy
	Logger *slog.Logger
}

// Detect parses the constraint, then picks the highest satisfying release.
// A missing or malformed constraint fails before any catalog is consulted.
func (d *Detector) Detect(ctx context.Context, source string) (string, error) {
	constraint, err := ParseConstraint(source)
	if err != nil {
		return "", err
	}

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if d.Policy == PolicyPreferCached && d.Local != nil {
		cached, err := d.Local.Releases(ctx)
		if err != nil {
			return "", &CatalogError{Err: err}
		}
		if v, ok := Select(constraint, cached); ok {
			logger.Debug("selected cached compiler release", "version", v, "constraint", constraint.String())
			return v, nil
		}
	}

	if d.Remote == nil {
		return "", &CatalogError{Err: fmt.Errorf("no release catalog configured")}
	}
	releases, err := d.Remote.Releases(ctx)
	if err != nil {
		return "", &CatalogError{Err: err}
	}
	v, ok := Select(constraint, releases)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoMatchingRelease, constraint)
	}
	logger.Debug("selected compiler release", "version", v, "constraint", constraint.String(), "candidates", len(releases))
	return v, nil
}

// Select returns the highest release satisfying c. Input order does not
// affect the result.
func Select(c *Constraint, releases []string) (string, bool) {
	best := ""
	for _, r := range releases {
		v := canonical(r)
		if v == "" || semver.Prerelease(v) != "" || !c.Matches(r) {
			continue
		}
		if best == "" || semver.Compare(v, best) > 0 {
			best = v
		}
	}
	if best == "" {
		return "", false
	}
	return strings.TrimPrefix(best, "v"), true
}
