package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/jmylchreest/blotch/internal/colour"
)

// colorSpaceValue is a pflag.Value that only accepts supported colour spaces.
type colorSpaceValue colour.ColorSpace

var _ pflag.Value = (*colorSpaceValue)(nil)

func newColorSpaceValue(def colour.ColorSpace, p *colour.ColorSpace) *colorSpaceValue {
	*p = def
	return (*colorSpaceValue)(p)
}

func (v *colorSpaceValue) Set(s string) error {
	cs, err := colour.ParseColorSpace(s)
	if err != nil {
		return err
	}
	*v = colorSpaceValue(cs)
	return nil
}

func (v *colorSpaceValue) String() string { return string(*v) }

func (v *colorSpaceValue) Type() string { return "colorspace" }

// outputFormat selects how an extracted palette is printed.
type outputFormat string

const (
	formatHex   outputFormat = "hex"
	formatText  outputFormat = "text"
	formatRGB   outputFormat = "rgb"
	formatJSON  outputFormat = "json"
	formatTable outputFormat = "table"
)

var outputFormats = []outputFormat{formatHex, formatText, formatRGB, formatJSON, formatTable}

var _ pflag.Value = (*outputFormat)(nil)

func (f *outputFormat) Set(s string) error {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, valid := range outputFormats {
		if s == string(valid) {
			*f = valid
			return nil
		}
	}
	names := make([]string, len(outputFormats))
	for i, valid := range outputFormats {
		names[i] = string(valid)
	}
	return fmt.Errorf("unsupported format: %s (supported: %s)", s, strings.Join(names, ", "))
}

func (f *outputFormat) String() string { return string(*f) }

func (f *outputFormat) Type() string { return "format" }
