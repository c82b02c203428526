package colour_test

import (
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/jmylchreest/blotch/internal/colour"
)

var (
	red    = color.NRGBA{R: 255, A: 255}
	blue   = color.NRGBA{B: 255, A: 255}
	green  = color.NRGBA{G: 200, A: 255}
	purple = color.NRGBA{R: 200, B: 200, A: 255}
)

func fillRect(img *image.NRGBA, rect image.Rectangle, fill color.NRGBA) {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.SetNRGBA(x, y, fill)
		}
	}
}

func near(t *testing.T, got colour.RGB, want color.NRGBA) {
	t.Helper()
	d := func(a, b uint8) int {
		if a > b {
			return int(a - b)
		}
		return int(b - a)
	}
	if d(got.R, want.R) > 1 || d(got.G, want.G) > 1 || d(got.B, want.B) > 1 {
		t.Errorf("colour = %+v, want within 1 of %+v", got, want)
	}
}

func TestExtractSolidColour(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	fillRect(img, img.Bounds(), red)

	palette, err := colour.NewExtractor(nil).ExtractImage(img, colour.Config{QtyMax: 16})
	if err != nil {
		t.Fatalf("ExtractImage() error: %v", err)
	}
	if d := cmp.Diff([]string{"#ff0000"}, palette.ToHex()); d != "" {
		t.Errorf("hex mismatch (-want +got):\n%s", d)
	}
	if palette.Entries[0].Qty != 4 {
		t.Errorf("Qty = %d, want 4", palette.Entries[0].Qty)
	}
}

func TestExtractFixedColourStaysFirst(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	fillRect(img, image.Rect(0, 0, 8, 4), red)
	fillRect(img, image.Rect(0, 4, 8, 8), blue)

	fixed, err := colour.ParseHexList([]string{"#ff0000"})
	if err != nil {
		t.Fatalf("ParseHexList() error: %v", err)
	}
	palette, err := colour.NewExtractor(nil).ExtractImage(img, colour.Config{Fixed: fixed})
	if err != nil {
		t.Fatalf("ExtractImage() error: %v", err)
	}

	if palette.Len() != 2 {
		t.Fatalf("palette = %s, want 2 entries", palette)
	}
	first := palette.Entries[0]
	if !first.IsFixed || first.Hex != "#ff0000" {
		t.Errorf("first entry = %s fixed=%v, want fixed #ff0000", first.Hex, first.IsFixed)
	}
	if palette.Entries[1].IsFixed {
		t.Error("second entry must not be fixed")
	}
	near(t, palette.Entries[1].RGB, blue)
}

func TestExtractFixedColoursPrecedeOthers(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := range 16 {
		fillRect(img, image.Rect(0, y, 16, y+1), color.NRGBA{R: uint8(y * 16), G: 40, B: 255 - uint8(y*16), A: 255})
	}

	cfg := colour.Config{
		Fixed:     []colour.RGB{{G: 255}, {R: 255, G: 255, B: 255}},
		Threshold: -1,
	}
	palette, err := colour.NewExtractor(nil).ExtractImage(img, cfg)
	if err != nil {
		t.Fatalf("ExtractImage() error: %v", err)
	}
	if palette.Len() < 2 {
		t.Fatalf("palette = %s, want at least the fixed entries", palette)
	}
	// Fixed entries are ordered among themselves by population.
	gotFixed := []string{palette.Entries[0].Hex, palette.Entries[1].Hex}
	if d := cmp.Diff([]string{"#00ff00", "#ffffff"}, gotFixed, cmpopts.SortSlices(func(a, b string) bool { return a < b })); d != "" {
		t.Errorf("fixed entries mismatch (-want +got):\n%s", d)
	}
	for i, e := range palette.Entries {
		if e.IsFixed != (i < 2) {
			t.Errorf("entry %d fixed = %v", i, e.IsFixed)
		}
	}
}

func TestExtractDropsScatteredNoise(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	fillRect(img, image.Rect(0, 0, 10, 10), green)
	for y := 10; y < 20; y++ {
		for x := range 20 {
			if (x+y)%2 == 0 {
				img.SetNRGBA(x, y, purple)
			}
		}
	}

	palette, err := colour.NewExtractor(nil).ExtractImage(img, colour.Config{Threshold: 1})
	if err != nil {
		t.Fatalf("ExtractImage() error: %v", err)
	}
	if palette.Len() != 1 {
		t.Fatalf("palette = %s, want only the solid block", palette)
	}
	near(t, palette.Entries[0].RGB, green)
	if palette.Entries[0].DimMax != 100 {
		t.Errorf("DimMax = %d, want 100", palette.Entries[0].DimMax)
	}
}

func TestExtractTransparentImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	fillRect(img, img.Bounds(), color.NRGBA{R: 255, A: 127})

	palette, err := colour.NewExtractor(nil).ExtractImage(img, colour.Config{})
	if err != nil {
		t.Fatalf("ExtractImage() error: %v", err)
	}
	if palette.Len() != 0 {
		t.Errorf("palette = %s, want empty", palette)
	}
}

func TestExtractRespectsQtyMax(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for i := range 8 {
		fillRect(img, image.Rect(i*4, 0, i*4+4, 32), color.NRGBA{R: uint8(i * 32), G: uint8(255 - i*32), B: uint8(i * 16), A: 255})
	}

	for _, qtyMax := range []int{1, 3, 5} {
		palette, err := colour.NewExtractor(nil).ExtractImage(img, colour.Config{QtyMax: qtyMax, Threshold: -1})
		if err != nil {
			t.Fatalf("ExtractImage() error: %v", err)
		}
		if palette.Len() > qtyMax {
			t.Errorf("QtyMax %d: got %d entries", qtyMax, palette.Len())
		}
	}
}

func TestExtractDeterministic(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 24, 24))
	for y := range 24 {
		for x := range 24 {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 10), B: uint8((x * y) % 256), A: 255})
		}
	}

	for _, cs := range colour.ValidColorSpaces() {
		t.Run(string(cs), func(t *testing.T) {
			cfg := colour.Config{ColorSpace: cs, Threshold: -1}
			a, err := colour.NewExtractor(nil).ExtractImage(img, cfg)
			if err != nil {
				t.Fatalf("ExtractImage() error: %v", err)
			}
			b, err := colour.NewExtractor(nil).ExtractImage(img, cfg)
			if err != nil {
				t.Fatalf("ExtractImage() error: %v", err)
			}
			if d := cmp.Diff(a.Entries, b.Entries, cmpopts.IgnoreUnexported(colour.Entry{})); d != "" {
				t.Errorf("runs differ (-first +second):\n%s", d)
			}
		})
	}
}

func TestExtractMatchesImagePath(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	var pixels []uint8
	for y := range 2 {
		for x := range 3 {
			c := color.RGBA{R: 255, A: 255}
			if y == 1 {
				c = color.RGBA{B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
			pixels = append(pixels, c.R, c.G, c.B, c.A)
		}
	}

	converted, width := colour.ToNRGBA(img)
	if width != 3 {
		t.Fatalf("ToNRGBA() width = %d, want 3", width)
	}
	if d := cmp.Diff(pixels, converted); d != "" {
		t.Fatalf("ToNRGBA() mismatch (-want +got):\n%s", d)
	}

	e := colour.NewExtractor(nil)
	fromBuffer, err := e.Extract(pixels, 3, colour.Config{Threshold: -1})
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	fromImage, err := e.ExtractImage(img, colour.Config{Threshold: -1})
	if err != nil {
		t.Fatalf("ExtractImage() error: %v", err)
	}
	if d := cmp.Diff(fromBuffer.ToHex(), fromImage.ToHex()); d != "" {
		t.Errorf("buffer and image results differ:\n%s", d)
	}
}

func TestExtractSubImage(t *testing.T) {
	parent := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := range 4 {
		for x := range 4 {
			c := color.NRGBA{R: 255, A: 255}
			if y >= 2 {
				c = color.NRGBA{B: 255, A: 255}
			}
			parent.SetNRGBA(x, y, c)
		}
	}

	tests := []struct {
		name string
		rect image.Rectangle
		want []string
	}{
		{name: "top rows", rect: image.Rect(0, 0, 4, 2), want: []string{"#ff0000"}},
		{name: "bottom rows", rect: image.Rect(0, 2, 4, 4), want: []string{"#0000ff"}},
		{name: "left columns", rect: image.Rect(0, 0, 2, 2), want: []string{"#ff0000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := parent.SubImage(tt.rect)
			pixels, width := colour.ToNRGBA(sub)
			if width != tt.rect.Dx() {
				t.Errorf("ToNRGBA() width = %d, want %d", width, tt.rect.Dx())
			}
			if want := 4 * tt.rect.Dx() * tt.rect.Dy(); len(pixels) != want {
				t.Errorf("ToNRGBA() returned %d bytes, want %d", len(pixels), want)
			}

			p, err := colour.NewExtractor(nil).ExtractImage(sub, colour.Config{})
			if err != nil {
				t.Fatalf("ExtractImage() error: %v", err)
			}
			if d := cmp.Diff(tt.want, p.ToHex()); d != "" {
				t.Errorf("ExtractImage() mismatch (-want +got):\n%s", d)
			}
		})
	}
}

func TestExtractErrors(t *testing.T) {
	pixels := []uint8{255, 0, 0, 255}

	tests := []struct {
		name   string
		pixels []uint8
		width  int
		cfg    colour.Config
		want   error
	}{
		{name: "unsupported colorspace", pixels: pixels, width: 1, cfg: colour.Config{ColorSpace: "hsv"}, want: colour.ErrUnsupportedColorspace},
		{name: "ragged buffer", pixels: []uint8{1, 2, 3, 4, 5}, width: 1, want: colour.ErrInvalidInput},
		{name: "zero width", pixels: pixels, width: 0, want: colour.ErrInvalidInput},
		{name: "negative qty max", pixels: pixels, width: 1, cfg: colour.Config{QtyMax: -1}, want: colour.ErrInvalidInput},
		{name: "r-factor out of range", pixels: pixels, width: 1, cfg: colour.Config{RFactor: 2}, want: colour.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := colour.NewExtractor(nil).Extract(tt.pixels, tt.width, tt.cfg)
			if !errors.Is(err, tt.want) {
				t.Errorf("Extract() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := colour.NewExtractor(nil).ExtractImage(nil, colour.Config{}); !errors.Is(err, colour.ErrInvalidInput) {
		t.Errorf("ExtractImage(nil) error = %v, want ErrInvalidInput", err)
	}
}

func TestPaletteJSON(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	fillRect(img, img.Bounds(), red)
	palette, err := colour.NewExtractor(nil).ExtractImage(img, colour.Config{})
	if err != nil {
		t.Fatalf("ExtractImage() error: %v", err)
	}

	data, err := palette.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error: %v", err)
	}
	var decoded colour.PaletteJSON
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	want := colour.PaletteJSON{
		Count:      1,
		ColorSpace: colour.ColorSpaceLab,
		Colors: []colour.EntryJSON{{
			Hex:    "#ff0000",
			RGB:    colour.RGB{R: 255},
			Qty:    4,
			DimMax: 4,
			DimAvg: 4,
			DimQty: 1,
			Factor: 2,
		}},
	}
	if d := cmp.Diff(want, decoded, cmpopts.EquateApprox(0, 1e-9)); d != "" {
		t.Errorf("JSON mismatch (-want +got):\n%s", d)
	}
}

func TestParseJSON(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	fillRect(img, image.Rect(0, 0, 8, 4), red)
	fillRect(img, image.Rect(0, 4, 8, 8), blue)
	palette, err := colour.NewExtractor(nil).ExtractImage(img, colour.Config{ColorSpace: colour.ColorSpaceRGB})
	if err != nil {
		t.Fatalf("ExtractImage() error: %v", err)
	}
	data, err := palette.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error: %v", err)
	}

	got, err := colour.ParseJSON(data)
	if err != nil {
		t.Fatalf("ParseJSON() error: %v", err)
	}
	if d := cmp.Diff(palette, got, cmpopts.IgnoreUnexported(colour.Entry{}), cmpopts.EquateApprox(0, 1e-9)); d != "" {
		t.Errorf("palette mismatch (-want +got):\n%s", d)
	}

	for _, bad := range []string{`{`, `{"colorspace":"hsv","colors":[]}`} {
		if _, err := colour.ParseJSON([]byte(bad)); err == nil {
			t.Errorf("ParseJSON(%s) expected error", bad)
		}
	}
}

func TestConfigKey(t *testing.T) {
	base := colour.Config{}
	if base.Key() != colour.DefaultConfig().Key() {
		t.Errorf("zero config key %q differs from defaults %q", base.Key(), colour.DefaultConfig().Key())
	}

	variants := []colour.Config{
		{QtyMax: 8},
		{ColorSpace: colour.ColorSpaceXYZ},
		{Threshold: 0.5},
		{RFactor: 0.5},
		{StopIncQty: 1},
		{MaxIterations: 10},
		{Fixed: []colour.RGB{{R: 255}}},
	}
	seen := map[string]bool{base.Key(): true}
	for _, v := range variants {
		k := v.Key()
		if seen[k] {
			t.Errorf("config %+v shares key %q", v, k)
		}
		seen[k] = true
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := colour.DefaultConfig()
	want := colour.Config{
		QtyMax:        16,
		ColorSpace:    colour.ColorSpaceLab,
		Threshold:     0.2,
		RThreshold:    100,
		RFactor:       0.001,
		StopIncQty:    3,
		MaxIterations: 100,
	}
	if d := cmp.Diff(want, cfg); d != "" {
		t.Errorf("DefaultConfig() mismatch (-want +got):\n%s", d)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}
