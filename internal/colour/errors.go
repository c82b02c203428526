package colour

import "errors"

var (
	// ErrUnsupportedColorspace is returned when the working colour space is not rgb, xyz or lab.
	ErrUnsupportedColorspace = errors.New("colorspace not supported")

	// ErrInvalidInput is returned when the pixel buffer, width or configuration
	// breaks a precondition of the extractor.
	ErrInvalidInput = errors.New("invalid input")
)
