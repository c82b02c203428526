// Package security provides bounds-checked conversions and size-limited readers.
package security

import (
	"errors"
	"io"
)

// ErrLimitExceeded is returned once a LimitedReader has handed out its budget.
var ErrLimitExceeded = errors.New("size limit exceeded")

// SafeUint8 converts an integer to uint8, clamping to 0-255.
func SafeUint8(val int) uint8 {
	if val < 0 {
		return 0
	}
	if val > 255 {
		return 255
	}
	return uint8(val)
}

// LimitedReader wraps an io.Reader and limits the total bytes that can be read.
// Unlike io.LimitReader it fails instead of reporting EOF, so oversized
// input (e.g. decompression bombs) is not silently truncated.
type LimitedReader struct {
	R         io.Reader
	Remaining int64
}

// Read implements io.Reader with size limits.
func (l *LimitedReader) Read(p []byte) (int, error) {
	if l.Remaining <= 0 {
		return 0, l.checkExhausted()
	}
	if int64(len(p)) > l.Remaining {
		p = p[:l.Remaining]
	}
	n, err := l.R.Read(p)
	l.Remaining -= int64(n)
	return n, err
}

// maxEmptyReads bounds how often an exhausted reader retries a source that
// returns no data and no error.
const maxEmptyReads = 100

// checkExhausted reads one more byte from the source once the budget is spent.
// A clean EOF means the input was exactly the limit; any data means it was
// larger.
func (l *LimitedReader) checkExhausted() error {
	var next [1]byte
	for range maxEmptyReads {
		n, err := l.R.Read(next[:])
		switch {
		case n > 0:
			return ErrLimitExceeded
		case err == io.EOF:
			return io.EOF
		case err != nil:
			return err
		}
	}
	return io.ErrNoProgress
}

// NewLimitedReader creates a new LimitedReader with the specified size limit.
func NewLimitedReader(r io.Reader, maxBytes int64) *LimitedReader {
	return &LimitedReader{
		R:         r,
		Remaining: maxBytes,
	}
}
