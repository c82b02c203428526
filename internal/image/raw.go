package image

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/jmylchreest/blotch/internal/security"
)

// MaxRawBytes bounds how much a raw buffer may decompress to (256 MiB).
const MaxRawBytes = 256 * 1024 * 1024

// RawImage is an uncompressed row-major RGBA buffer.
type RawImage struct {
	Pix    []uint8
	Width  int
	Height int
}

// LoadRaw reads a raw RGBA dump with the given row width. Files ending in
// ".xz" are decompressed first.
func LoadRaw(path string, width int) (*RawImage, error) {
	data, err := os.ReadFile(path) // #nosec G304 - User-specified image path, intended to be read
	if err != nil {
		return nil, fmt.Errorf("failed to read raw image: %w", err)
	}

	if strings.HasSuffix(strings.ToLower(path), ".xz") {
		data, err = decompressXz(data, MaxRawBytes)
		if err != nil {
			return nil, err
		}
	}
	return NewRawImage(data, width)
}

// NewRawImage checks that pix holds whole rows of RGBA pixels.
func NewRawImage(pix []uint8, width int) (*RawImage, error) {
	if width <= 0 {
		return nil, fmt.Errorf("raw width must be positive, got %d", width)
	}
	if len(pix)%4 != 0 {
		return nil, fmt.Errorf("raw buffer length %d is not a multiple of 4", len(pix))
	}
	pixels := len(pix) / 4
	if pixels%width != 0 {
		return nil, fmt.Errorf("raw buffer of %d pixels does not split into rows of %d", pixels, width)
	}
	return &RawImage{Pix: pix, Width: width, Height: pixels / width}, nil
}

func decompressXz(data []byte, limit int64) ([]byte, error) {
	xzr, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create xz reader: %w", err)
	}
	out, err := io.ReadAll(security.NewLimitedReader(xzr, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress raw image: %w", err)
	}
	return out, nil
}
