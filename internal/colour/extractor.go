package colour

import (
	"fmt"
	"image"
	"image/draw"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Config holds configuration for palette extraction.
// Zero values are replaced by the defaults from DefaultConfig.
type Config struct {
	// Fixed colours are pinned at the head of the palette and never moved.
	Fixed []RGB

	// QtyMax is the most entries kept after each iteration.
	QtyMax int

	// ColorSpace is the working space for distances and means.
	ColorSpace ColorSpace

	// Threshold is the significance factor an entry must exceed to be kept.
	Threshold float64

	// RThreshold is accepted for compatibility and currently unused.
	RThreshold float64

	// RFactor is the score floor used when reordering by distance.
	RFactor float64

	// StopIncQty is how many iterations may increase the displacement before the loop stops.
	StopIncQty int

	// MaxIterations caps the clustering loop.
	MaxIterations int
}

// DefaultConfig returns the default extraction configuration.
func DefaultConfig() Config {
	return Config{
		QtyMax:        16,
		ColorSpace:    ColorSpaceLab,
		Threshold:     0.2,
		RThreshold:    100,
		RFactor:       0.001,
		StopIncQty:    3,
		MaxIterations: 100,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.QtyMax == 0 {
		c.QtyMax = d.QtyMax
	}
	if c.ColorSpace == "" {
		c.ColorSpace = d.ColorSpace
	}
	if c.Threshold == 0 {
		c.Threshold = d.Threshold
	}
	if c.RThreshold == 0 {
		c.RThreshold = d.RThreshold
	}
	if c.RFactor == 0 {
		c.RFactor = d.RFactor
	}
	if c.StopIncQty == 0 {
		c.StopIncQty = d.StopIncQty
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = d.MaxIterations
	}
	return c
}

// Key identifies the configuration after defaults are applied; two configs
// with the same key produce the same palette for the same pixels.
func (c Config) Key() string {
	c = c.normalized()
	var sb strings.Builder
	fmt.Fprintf(&sb, "cs:%s|q:%d|t:%g|rt:%g|rf:%g|s:%d|i:%d|f:", c.ColorSpace, c.QtyMax, c.Threshold, c.RThreshold, c.RFactor, c.StopIncQty, c.MaxIterations)
	for i, rgb := range c.Fixed {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(rgb.Hex())
	}
	return sb.String()
}

// Validate validates the configuration after defaults are applied.
func (c Config) Validate() error {
	c = c.normalized()
	if err := c.ColorSpace.Validate(); err != nil {
		return err
	}
	if c.QtyMax < 1 {
		return fmt.Errorf("%w: color count must be at least 1, got %d", ErrInvalidInput, c.QtyMax)
	}
	if c.StopIncQty < 1 {
		return fmt.Errorf("%w: stop count must be at least 1, got %d", ErrInvalidInput, c.StopIncQty)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("%w: max iterations must be at least 1, got %d", ErrInvalidInput, c.MaxIterations)
	}
	if c.RFactor < 0 || c.RFactor > 1 {
		return fmt.Errorf("%w: r-factor must be within [0, 1], got %g", ErrInvalidInput, c.RFactor)
	}
	return nil
}

// Extractor runs the palette extraction pipeline.
type Extractor struct {
	logger hclog.Logger
}

// NewExtractor creates an Extractor. A nil logger discards output.
func NewExtractor(logger hclog.Logger) *Extractor {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Extractor{logger: logger}
}

// Extract builds a palette from a row-major RGBA buffer (4 bytes per pixel)
// with width pixels per row. Pixels with alpha <= 127 are ignored.
func (e *Extractor) Extract(pixels []uint8, width int, cfg Config) (*Palette, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg = cfg.normalized()
	if len(pixels)%4 != 0 {
		return nil, fmt.Errorf("%w: buffer length %d is not a multiple of 4", ErrInvalidInput, len(pixels))
	}
	if width <= 0 {
		return nil, fmt.Errorf("%w: width must be positive, got %d", ErrInvalidInput, width)
	}

	data, err := convertBuffer(pixels, cfg.ColorSpace)
	if err != nil {
		return nil, err
	}
	palette, err := initPalette(data, cfg)
	if err != nil {
		return nil, err
	}

	log := e.logger.With("colorspace", string(cfg.ColorSpace))
	log.Debug("extracting palette", "pixels", len(pixels)/4, "width", width, "fixed", len(cfg.Fixed), "qty_max", cfg.QtyMax)

	eng := &engine{data: data, palette: palette, cfg: cfg, logger: log}
	iterations := eng.refine()

	index := quantize(data, eng.palette)
	analyzeDimensions(index, width, eng.palette)
	calcFactor(eng.palette)
	kept := filterByFactor(eng.palette, cfg.Threshold)
	log.Debug("filtered palette", "iterations", iterations, "candidates", len(eng.palette), "kept", len(kept), "threshold", cfg.Threshold)

	for i := range kept {
		rgb, err := cfg.ColorSpace.ToRGB(kept[i].Color)
		if err != nil {
			return nil, err
		}
		kept[i].RGB = rgb
		kept[i].Hex = rgb.Hex()
		kept[i].sum = Vec3{}
		kept[i].bound = sphere{}
	}

	return &Palette{Entries: kept, ColorSpace: cfg.ColorSpace}, nil
}

// ExtractImage converts img to a non-premultiplied RGBA buffer and extracts its palette.
func (e *Extractor) ExtractImage(img image.Image, cfg Config) (*Palette, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: image cannot be nil", ErrInvalidInput)
	}
	pixels, width := ToNRGBA(img)
	return e.Extract(pixels, width, cfg)
}

// ToNRGBA returns the pixels of img as a packed RGBA buffer and the image width.
func ToNRGBA(img image.Image) ([]uint8, int) {
	bounds := img.Bounds()
	// SubImage shares Pix with its parent, so only the rows inside bounds belong to img.
	if n, ok := img.(*image.NRGBA); ok && n.Stride == 4*bounds.Dx() && n.Rect.Min == (image.Point{}) {
		return n.Pix[:4*bounds.Dx()*bounds.Dy()], bounds.Dx()
	}
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return dst.Pix, bounds.Dx()
}

// convertBuffer converts an RGBA buffer into the working space, keeping alpha.
func convertBuffer(pixels []uint8, cs ColorSpace) ([]float64, error) {
	data := make([]float64, len(pixels))
	for i := 0; i < len(pixels); i += 4 {
		c, err := cs.FromRGB(pixels[i], pixels[i+1], pixels[i+2])
		if err != nil {
			return nil, err
		}
		data[i], data[i+1], data[i+2] = c[0], c[1], c[2]
		data[i+3] = float64(pixels[i+3])
	}
	return data, nil
}

// initPalette seeds the palette with the fixed colours or, when there are
// none, with the first opaque pixel.
func initPalette(data []float64, cfg Config) ([]Entry, error) {
	palette := make([]Entry, 0, cfg.QtyMax)
	for _, rgb := range cfg.Fixed {
		c, err := cfg.ColorSpace.FromRGB(rgb.R, rgb.G, rgb.B)
		if err != nil {
			return nil, err
		}
		palette = append(palette, Entry{Color: c, IsFixed: true})
	}
	if len(palette) > 0 {
		return palette, nil
	}

	for i := 0; i+3 < len(data); i += 4 {
		if data[i+3] > alphaOpaque {
			palette = append(palette, Entry{Color: pixelAt(data, i)})
			break
		}
	}
	return palette, nil
}
