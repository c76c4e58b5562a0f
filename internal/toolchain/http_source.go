package toolchain

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the public solc binaries repository
const DefaultBaseURL = "https://binaries.soliditylang.org"

// HTTPSource downloads compilers from a binaries.soliditylang.org style repository:
// <base>/<platform>/list.json and <base>/<platform>/<build path>
type HTTPSource struct {
	BaseURL  string
	Platform string
	Client   *http.Client

	list listing
}

// NewHTTPSource creates a source for baseURL and platform (e.g. "linux-amd64")
func NewHTTPSource(baseURL, platform string) *HTTPSource {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPSource{
		BaseURL:  strings.TrimSuffix(baseURL, "/"),
		Platform: platform,
		Client:   &http.Client{Timeout: 10 * time.Minute},
	}
}

// Releases lists release versions
func (s *HTTPSource) Releases(ctx context.Context) ([]string, error) {
	list, err := s.list.get(ctx, s.fetchList)
	if err != nil {
		return nil, err
	}
	return list.versions(), nil
}

// Lookup returns the build for version
func (s *HTTPSource) Lookup(ctx context.Context, version string) (Build, error) {
	list, err := s.list.get(ctx, s.fetchList)
	if err != nil {
		return Build{}, err
	}
	return list.lookup(version)
}

// Fetch opens the binary for b
func (s *HTTPSource) Fetch(ctx context.Context, b Build) (io.ReadCloser, error) {
	return s.get(ctx, b.Path)
}

func (s *HTTPSource) fetchList(ctx context.Context) (io.ReadCloser, error) {
	return s.get(ctx, "list.json")
}

func (s *HTTPSource) get(ctx context.Context, name string) (io.ReadCloser, error) {
	url := fmt.Sprintf("%s/%s/%s", s.BaseURL, s.Platform, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := s.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch %s: %s", url, resp.Status)
	}
	return resp.Body, nil
}

func (s *HTTPSource) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}
