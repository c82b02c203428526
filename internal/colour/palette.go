package colour

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// RGB represents a color in RGB format.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// String returns the RGB color as a string in the format "rgb(r, g, b)".
func (rgb RGB) String() string {
	return fmt.Sprintf("rgb(%d, %d, %d)", rgb.R, rgb.G, rgb.B)
}

// Hex returns the RGB color as a hex string (e.g., "#1a2b3c").
func (rgb RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", rgb.R, rgb.G, rgb.B)
}

// ParseHex parses "#rrggbb" or the "#rgb" shorthand. The leading '#' is optional.
func ParseHex(s string) (RGB, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	if len(s) != 4 && len(s) != 7 {
		return RGB{}, fmt.Errorf("%w: hex colour %q must have 3 or 6 digits", ErrInvalidInput, s)
	}
	c, err := colorful.Hex(strings.ToLower(s))
	if err != nil {
		return RGB{}, fmt.Errorf("%w: hex colour %q: %v", ErrInvalidInput, s, err)
	}
	r, g, b := c.RGB255()
	return RGB{R: r, G: g, B: b}, nil
}

// ParseHexList parses a list of hex colours, as given to --fixed.
func ParseHexList(values []string) ([]RGB, error) {
	colours := make([]RGB, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		rgb, err := ParseHex(v)
		if err != nil {
			return nil, err
		}
		colours = append(colours, rgb)
	}
	return colours, nil
}

// sphere approximates the minimum enclosing sphere of a cluster.
type sphere struct {
	center Vec3
	radius float64
	// vector points from center to the last point that grew the sphere.
	vector Vec3
	set    bool
}

// Entry is one palette colour.
//
// Fields are filled in by successive stages: Color and IsFixed always hold;
// sum and bound are only meaningful inside the clustering loop; Qty is
// recomputed by every assignment pass and is final after quantization;
// DimMax, DimAvg, DimQty and Factor are set by the significance analysis;
// RGB and Hex are set last.
type Entry struct {
	Color   Vec3
	IsFixed bool
	Qty     int

	sum   Vec3
	bound sphere

	DimMax int
	DimAvg float64
	DimQty int
	Factor float64

	RGB RGB
	Hex string
}

func (e *Entry) resetBounds() {
	e.Qty = 0
	e.sum = Vec3{}
	e.bound = sphere{}
}

// Palette is the ordered result of an extraction.
type Palette struct {
	Entries    []Entry
	ColorSpace ColorSpace
}

// Len returns the number of colors in the palette.
func (p *Palette) Len() int {
	return len(p.Entries)
}

// ToHex returns the hex codes of every entry, in order.
func (p *Palette) ToHex() []string {
	hexColors := make([]string, len(p.Entries))
	for i, e := range p.Entries {
		hexColors[i] = e.Hex
	}
	return hexColors
}

// EntryJSON represents an entry in JSON output format.
type EntryJSON struct {
	Hex    string  `json:"hex"`
	RGB    RGB     `json:"rgb"`
	Fixed  bool    `json:"fixed"`
	Qty    int     `json:"qty"`
	DimMax int     `json:"dimMax"`
	DimAvg float64 `json:"dimAvg"`
	DimQty int     `json:"dimQty"`
	Factor float64 `json:"factor"`
}

// PaletteJSON represents the palette in JSON format.
type PaletteJSON struct {
	Count      int         `json:"count"`
	ColorSpace ColorSpace  `json:"colorspace"`
	Colors     []EntryJSON `json:"colors"`
}

// ToJSON converts the palette to indented JSON.
func (p *Palette) ToJSON() ([]byte, error) {
	colors := make([]EntryJSON, len(p.Entries))
	for i, e := range p.Entries {
		colors[i] = EntryJSON{
			Hex:    e.Hex,
			RGB:    e.RGB,
			Fixed:  e.IsFixed,
			Qty:    e.Qty,
			DimMax: e.DimMax,
			DimAvg: e.DimAvg,
			DimQty: e.DimQty,
			Factor: e.Factor,
		}
	}

	return json.MarshalIndent(PaletteJSON{
		Count:      len(p.Entries),
		ColorSpace: p.ColorSpace,
		Colors:     colors,
	}, "", "  ")
}

// ParseJSON rebuilds a palette from the output of ToJSON. Entry colours are
// recomputed in the working space from their rounded RGB values.
func ParseJSON(data []byte) (*Palette, error) {
	var pj PaletteJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := pj.ColorSpace.Validate(); err != nil {
		return nil, err
	}

	p := &Palette{Entries: make([]Entry, len(pj.Colors)), ColorSpace: pj.ColorSpace}
	for i, c := range pj.Colors {
		working, err := pj.ColorSpace.FromRGB(c.RGB.R, c.RGB.G, c.RGB.B)
		if err != nil {
			return nil, err
		}
		p.Entries[i] = Entry{
			Color:   working,
			IsFixed: c.Fixed,
			Qty:     c.Qty,
			DimMax:  c.DimMax,
			DimAvg:  c.DimAvg,
			DimQty:  c.DimQty,
			Factor:  c.Factor,
			RGB:     c.RGB,
			Hex:     c.RGB.Hex(),
		}
	}
	return p, nil
}

// String returns a human-readable string representation of the palette.
func (p *Palette) String() string {
	if len(p.Entries) == 0 {
		return "Empty palette"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Palette with %d colors:\n", len(p.Entries))
	for i, e := range p.Entries {
		fixed := ""
		if e.IsFixed {
			fixed = " fixed"
		}
		fmt.Fprintf(&sb, "  %2d: %s (%s) qty=%d factor=%.3f%s\n", i+1, e.Hex, e.RGB.String(), e.Qty, e.Factor, fixed)
	}
	return sb.String()
}
