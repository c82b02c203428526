// Package http downloads remote images with size and content checks.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/jmylchreest/blotch/internal/security"
	"github.com/jmylchreest/blotch/internal/version"
)

const (
	// DefaultTimeout bounds a whole request, body included.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxBytes caps the size of a downloaded image (64 MiB).
	DefaultMaxBytes = 64 * 1024 * 1024
)

// ErrNotImage is returned when the server answers with a document, such as
// an HTML error or login page, instead of image data.
var ErrNotImage = errors.New("response is not an image")

// StatusError reports a non-200 response.
type StatusError struct {
	URL    string
	Status string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %s", e.URL, e.Status)
}

// Options configures a Fetcher. Zero values select the defaults.
type Options struct {
	Timeout  time.Duration
	MaxBytes int64
	Headers  map[string]string

	// Client overrides the HTTP client; Timeout is then ignored.
	Client *http.Client
}

// Fetcher downloads images over HTTP(S).
type Fetcher struct {
	client   *http.Client
	maxBytes int64
	headers  http.Header
}

// NewFetcher creates a Fetcher from opts.
func NewFetcher(opts Options) *Fetcher {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	headers := http.Header{}
	headers.Set("User-Agent", version.UserAgent())
	headers.Set("Accept", "image/*")
	for k, v := range opts.Headers {
		headers.Set(k, v)
	}
	return &Fetcher{client: client, maxBytes: maxBytes, headers: headers}
}

// Response is a downloaded image body.
type Response struct {
	Body        []byte
	ContentType string
}

// Fetch downloads url. Bodies larger than the size limit fail with
// security.ErrLimitExceeded, textual bodies with ErrNotImage.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = f.headers.Clone()

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: url, Status: resp.Status, Code: resp.StatusCode}
	}
	if resp.ContentLength > f.maxBytes {
		return nil, fmt.Errorf("%s is %d bytes: %w", url, resp.ContentLength, security.ErrLimitExceeded)
	}
	contentType := resp.Header.Get("Content-Type")
	if isDocument(contentType) {
		return nil, fmt.Errorf("%s has content type %q: %w", url, contentType, ErrNotImage)
	}

	body, err := io.ReadAll(security.NewLimitedReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &Response{Body: body, ContentType: contentType}, nil
}

// isDocument reports whether a Content-Type names text rather than binary
// data. Missing or unparsable types are left for the decoder to judge.
func isDocument(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch {
	case strings.HasPrefix(mediaType, "text/"):
		return true
	case mediaType == "application/json", mediaType == "application/xhtml+xml":
		return true
	}
	return false
}
