package widget

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

var (
	// ErrFetch is matched by every feature collection loading failure.
	ErrFetch = errors.New("fetch failed")
	// ErrDocumentTooLarge is returned for responses over the fetcher's MaxSize.
	ErrDocumentTooLarge = errors.New("document too large")
)

// FetchError reports a failed feature collection request.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFetch}
	}
	return []error{ErrFetch, e.Err}
}

// Fetcher loads a feature collection document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }

const (
	DefaultCacheTTL        = 30 * time.Second
	defaultCleanupInterval = 5 * time.Minute

	maxDocumentSize = 64 << 20
)

// HTTPFetcher fetches documents over HTTP. Relative URLs resolve against
// BaseURL, so maps can load collections served by this process.
type HTTPFetcher struct {
	Client  *http.Client
	BaseURL string
	// MaxSize caps the response body in bytes; zero means 64 MiB.
	MaxSize int64
	cache   *gocache.Cache
}

// NewHTTPFetcher creates a fetcher caching successful responses for ttl.
// A zero ttl disables the cache.
func NewHTTPFetcher(baseURL string, ttl time.Duration) *HTTPFetcher {
	f := &HTTPFetcher{Client: http.DefaultClient, BaseURL: baseURL}
	if ttl > 0 {
		f.cache = gocache.New(ttl, defaultCleanupInterval)
	}
	return f
}

func (f *HTTPFetcher) resolve(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.IsAbs() || f.BaseURL == "" {
		return u.String(), nil
	}
	base, err := url.Parse(f.BaseURL)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context, raw string) ([]byte, error) {
	target, err := f.resolve(raw)
	if err != nil {
		return nil, &FetchError{URL: raw, Err: err}
	}
	if f.cache != nil {
		if v, ok := f.cache.Get(target); ok {
			if body, ok := v.([]byte); ok {
				return body, nil
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: target, StatusCode: resp.StatusCode}
	}
	limit := f.MaxSize
	if limit <= 0 {
		limit = maxDocumentSize
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	if int64(len(body)) > limit {
		return nil, &FetchError{URL: target, Err: fmt.Errorf("%w: over %d bytes", ErrDocumentTooLarge, limit)}
	}

	if f.cache != nil {
		f.cache.SetDefault(target, body)
	}
	return body, nil
}

// Invalidate drops every cached document.
func (f *HTTPFetcher) Invalidate() {
	if f.cache != nil {
		f.cache.Flush()
	}
}
