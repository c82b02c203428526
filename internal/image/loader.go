// Package image loads images and raw pixel buffers for palette extraction.
package image

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gen2brain/avif"
	"github.com/gobwas/glob"
	"golang.org/x/image/webp"

	httputil "github.com/jmylchreest/blotch/internal/util/http"
	"github.com/jmylchreest/blotch/internal/util/imagecache"
)

// Loader handles loading images from various sources.
type Loader interface {
	// Load loads an image from the given path.
	Load(ctx context.Context, path string) (image.Image, error)
}

var (
	_ Loader = (*FileLoader)(nil)
	_ Loader = (*SmartLoader)(nil)
)

type decodeFunc func(io.Reader) (image.Image, error)

// decoders maps file extensions to the codec tried first for them.
var decoders = map[string]decodeFunc{
	".png":  png.Decode,
	".jpg":  jpeg.Decode,
	".jpeg": jpeg.Decode,
	".gif":  gif.Decode,
	".webp": webp.Decode,
	".avif": avif.Decode,
}

// SupportedImageExtensions returns a list of supported image file extensions.
func SupportedImageExtensions() []string {
	exts := make([]string, 0, len(decoders))
	for ext := range decoders {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// Decode decodes data with the codec matching name's extension and, if that
// fails or the extension is unknown, falls back to format sniffing.
func Decode(data []byte, name string) (image.Image, error) {
	ext := strings.ToLower(filepath.Ext(name))
	var firstErr error
	if decode, ok := decoders[ext]; ok {
		img, err := decode(bytes.NewReader(data))
		if err == nil {
			return img, nil
		}
		firstErr = fmt.Errorf("decode as %s: %w", strings.TrimPrefix(ext, "."), err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if firstErr != nil {
			return nil, fmt.Errorf("%w; fallback decode: %w", firstErr, err)
		}
		return nil, fmt.Errorf("failed to decode image (format: %s): %w", format, err)
	}
	return img, nil
}

// FileLoader loads images from the local filesystem.
type FileLoader struct{}

// NewFileLoader creates a new FileLoader instance.
func NewFileLoader() *FileLoader {
	return &FileLoader{}
}

// Load loads an image from a file path.
// Supported formats: JPEG, PNG, GIF, WebP, AVIF.
func (l *FileLoader) Load(_ context.Context, path string) (image.Image, error) {
	if path == "" {
		return nil, fmt.Errorf("image path cannot be empty")
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("image file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to stat image file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	data, err := os.ReadFile(path) // #nosec G304 - User-specified image path, intended to be read
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	return Decode(data, path)
}

// SmartLoader loads images from both local files and HTTP(S) URLs.
// Remote images are written to the cache first when one is configured.
type SmartLoader struct {
	fileLoader *FileLoader
	fetcher    *httputil.Fetcher
	cache      *imagecache.Cache
}

// NewSmartLoader creates a new SmartLoader. A nil cache fetches remote
// images straight into memory.
func NewSmartLoader(cache *imagecache.Cache) *SmartLoader {
	return &SmartLoader{
		fileLoader: NewFileLoader(),
		fetcher:    httputil.NewFetcher(httputil.Options{}),
		cache:      cache,
	}
}

// Load loads an image from either a local file path or HTTP(S) URL.
func (l *SmartLoader) Load(ctx context.Context, path string) (image.Image, error) {
	if !IsURL(path) {
		return l.fileLoader.Load(ctx, path)
	}

	if l.cache != nil {
		cached, err := l.cache.Get(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to cache image: %w", err)
		}
		return l.fileLoader.Load(ctx, cached)
	}

	resp, err := l.fetcher.Fetch(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image from URL: %w", err)
	}
	return Decode(resp.Body, path)
}

// IsURL reports whether path is an HTTP(S) URL.
func IsURL(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// isImageFile checks if a file has a supported image extension.
func isImageFile(path string) bool {
	_, ok := decoders[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ScanDirectoryForImages scans a directory and returns all valid image files
// whose names match the glob. A nil glob matches everything.
// It does not recurse into subdirectories, but follows symlinks.
func ScanDirectoryForImages(dirPath string, match glob.Glob) ([]string, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var imageFiles []string
	for _, entry := range entries {
		fullPath := filepath.Join(dirPath, entry.Name())

		// Stat the target so symlinks to directories are skipped too.
		info, err := os.Stat(fullPath)
		if err != nil || info.IsDir() {
			continue
		}
		if isImageFile(entry.Name()) && (match == nil || match.Match(entry.Name())) {
			imageFiles = append(imageFiles, fullPath)
		}
	}

	if len(imageFiles) == 0 {
		return nil, fmt.Errorf("no supported image files found in directory: %s", dirPath)
	}
	return imageFiles, nil
}

// SelectRandomImage selects a random image from a list of image paths.
func SelectRandomImage(imagePaths []string) (string, error) {
	if len(imagePaths) == 0 {
		return "", fmt.Errorf("image path list is empty")
	}
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(imagePaths))))
	if err != nil {
		return "", fmt.Errorf("failed to generate random number: %w", err)
	}
	return imagePaths[idx.Int64()], nil
}

// ResolveImagePath resolves a path that could be a file, a directory or a URL.
// Directories resolve to a random image inside them whose name matches
// pattern (empty matches all); files and URLs are returned as-is.
func ResolveImagePath(path, pattern string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("image path cannot be empty")
	}
	if IsURL(path) {
		return path, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("image file or directory not found: %s", path)
		}
		return "", fmt.Errorf("failed to access path: %w", err)
	}
	if !info.IsDir() {
		return path, nil
	}

	var match glob.Glob
	if pattern != "" {
		match, err = glob.Compile(pattern)
		if err != nil {
			return "", fmt.Errorf("invalid match pattern %q: %w", pattern, err)
		}
	}
	imageFiles, err := ScanDirectoryForImages(path, match)
	if err != nil {
		return "", err
	}
	return SelectRandomImage(imageFiles)
}
