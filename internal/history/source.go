package history

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Source provides the annual dataset used by the harness.
type Source interface {
	Load(ctx context.Context) (*Dataset, error)
	Name() string
}

// EmbeddedSource serves the dataset compiled into the binary.
type EmbeddedSource struct{}

func (EmbeddedSource) Name() string { return "embedded" }

func (EmbeddedSource) Load(_ context.Context) (*Dataset, error) { return Default() }

// FileSource reads a YAML dataset from disk.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return "file" }

func (s FileSource) Load(_ context.Context) (*Dataset, error) { return LoadFile(s.Path) }

// HTTPSource downloads a YAML dataset, for example from a shared config repo.
type HTTPSource struct {
	Client *resty.Client
	URL    string
}

// NewHTTPSource creates an HTTP source. proxyURL may be empty.
func NewHTTPSource(url, proxyURL string) *HTTPSource {
	c := resty.New().
		SetTimeout(30*time.Second).
		SetRetryCount(2).
		SetHeader("User-Agent", "RetireSentinel/1.0")
	if proxyURL != "" {
		c.SetProxy(proxyURL)
	}
	return &HTTPSource{Client: c, URL: url}
}

func (s *HTTPSource) Name() string { return "http" }

func (s *HTTPSource) Load(ctx context.Context) (*Dataset, error) {
	resp, err := s.Client.R().SetContext(ctx).Get(s.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch dataset: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch dataset: status %d, body: %s", resp.StatusCode(), resp.String())
	}
	return Parse(resp.Body())
}

// Fallback tries each source in turn and returns the first dataset that loads.
type Fallback []Source

func (f Fallback) Name() string { return "fallback" }

func (f Fallback) Load(ctx context.Context) (*Dataset, error) {
	var errs []error
	for _, s := range f {
		ds, err := s.Load(ctx)
		if err == nil {
			return ds, nil
		}
		log.Printf("[WARN] dataset source %s failed: %v", s.Name(), err)
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	if len(errs) == 0 {
		return nil, errors.New("no dataset source configured")
	}
	return nil, errors.Join(errs...)
}

// NewSource picks the source for a configured location: an http(s) URL, a
// file path, or the embedded data when empty. Remote and file sources fall
// back to the embedded data.
func NewSource(location, proxyURL string) Source {
	switch {
	case location == "":
		return EmbeddedSource{}
	case strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://"):
		return Fallback{NewHTTPSource(location, proxyURL), EmbeddedSource{}}
	default:
		return Fallback{FileSource{Path: location}, EmbeddedSource{}}
	}
}
