// Package imagecache keeps downloaded remote images on disk so repeated runs
// against the same URL skip the network.
package imagecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	httputil "github.com/jmylchreest/blotch/internal/util/http"
)

// Options configures a Cache.
type Options struct {
	// Dir holds the cached files. Empty selects DefaultDir.
	Dir string

	// Overwrite re-downloads images that are already cached.
	Overwrite bool

	// Fetcher downloads missing images. Nil uses a default Fetcher.
	Fetcher *httputil.Fetcher
}

// Cache maps image URLs to files in a directory.
type Cache struct {
	dir       string
	overwrite bool
	fetcher   *httputil.Fetcher
}

// DefaultDir returns blotch/images under the user cache directory.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return "", fmt.Errorf("failed to determine cache directory: %w", err)
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "blotch", "images"), nil
}

// New creates a Cache. The directory is created on first download.
func New(opts Options) (*Cache, error) {
	dir := opts.Dir
	if dir == "" {
		var err error
		if dir, err = DefaultDir(); err != nil {
			return nil, err
		}
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = httputil.NewFetcher(httputil.Options{})
	}
	return &Cache{dir: dir, overwrite: opts.Overwrite, fetcher: fetcher}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// Path returns where url is stored, whether or not it has been downloaded.
func (c *Cache) Path(url string) string {
	return filepath.Join(c.dir, Filename(url))
}

// Filename names the cache file for a URL: 32 hex digits of its SHA-256
// followed by the lower-cased extension of the URL path, or .img.
func Filename(url string) string {
	sum := sha256.Sum256([]byte(url))

	path := url
	if i := strings.IndexAny(path, "?#"); i != -1 {
		path = path[:i]
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" || len(ext) > 5 || strings.ContainsRune(ext, '/') {
		ext = ".img"
	}
	return hex.EncodeToString(sum[:16]) + ext
}

// Get returns the local path of url, downloading it when it is not cached
// yet or when the cache overwrites.
func (c *Cache) Get(ctx context.Context, url string) (string, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", fmt.Errorf("invalid URL %q: must start with http:// or https://", url)
	}

	path := c.Path(url)
	if !c.overwrite {
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, nil
		}
	}

	resp, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", fmt.Errorf("failed to download image: %w", err)
	}
	if err := c.store(path, resp.Body); err != nil {
		return "", err
	}
	return path, nil
}

// store writes data next to path and renames it into place, so a cancelled
// download never leaves a truncated image behind.
func (c *Cache) store(path string, data []byte) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil { // #nosec G301 - Cache directory needs standard permissions
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(c.dir, ".download-*")
	if err != nil {
		return fmt.Errorf("failed to write cached image: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cached image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write cached image: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil { // #nosec G302 - Cache files need standard read permissions
		return fmt.Errorf("failed to write cached image: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write cached image: %w", err)
	}
	return nil
}
