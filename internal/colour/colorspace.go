// Package colour provides palette extraction and the colour space maths it runs on.
package colour

import (
	"fmt"
	"math"
	"strings"

	"github.com/jmylchreest/blotch/internal/security"
)

// Vec3 is a colour in one of the working colour spaces.
type Vec3 [3]float64

// Distance returns the Euclidean distance between two colours.
func (v Vec3) Distance(o Vec3) float64 {
	d0 := v[0] - o[0]
	d1 := v[1] - o[1]
	d2 := v[2] - o[2]
	return math.Sqrt(d0*d0 + d1*d1 + d2*d2)
}

// ColorSpace selects the space in which clustering distances and means are computed.
type ColorSpace string

const (
	// ColorSpaceRGB clusters on raw 0-255 channel values.
	ColorSpaceRGB ColorSpace = "rgb"

	// ColorSpaceXYZ clusters in CIE XYZ (sRGB primaries, D65).
	ColorSpaceXYZ ColorSpace = "xyz"

	// ColorSpaceLab clusters in CIE L*a*b*.
	ColorSpaceLab ColorSpace = "lab"
)

// D65 reference white.
var whiteD65 = Vec3{95.047, 100, 108.883}

// ValidColorSpaces returns the supported working colour spaces.
func ValidColorSpaces() []ColorSpace {
	return []ColorSpace{ColorSpaceRGB, ColorSpaceXYZ, ColorSpaceLab}
}

// ParseColorSpace parses a colour space name, case-insensitively.
func ParseColorSpace(s string) (ColorSpace, error) {
	cs := ColorSpace(strings.ToLower(strings.TrimSpace(s)))
	if err := cs.Validate(); err != nil {
		return "", err
	}
	return cs, nil
}

// Validate returns ErrUnsupportedColorspace for anything other than rgb, xyz or lab.
func (cs ColorSpace) Validate() error {
	switch cs {
	case ColorSpaceRGB, ColorSpaceXYZ, ColorSpaceLab:
		return nil
	}
	return fmt.Errorf("%w: %q (valid: %v)", ErrUnsupportedColorspace, string(cs), ValidColorSpaces())
}

// FromRGB converts an 8-bit RGB triple into the working space.
func (cs ColorSpace) FromRGB(r, g, b uint8) (Vec3, error) {
	c := Vec3{float64(r), float64(g), float64(b)}
	switch cs {
	case ColorSpaceRGB:
		return c, nil
	case ColorSpaceXYZ:
		return RGBToXYZ(c), nil
	case ColorSpaceLab:
		return RGBToLab(c), nil
	}
	return Vec3{}, cs.Validate()
}

// ToRGB converts a working space colour back to 8-bit RGB.
func (cs ColorSpace) ToRGB(c Vec3) (RGB, error) {
	switch cs {
	case ColorSpaceRGB:
		return clampRGB(c), nil
	case ColorSpaceXYZ:
		return clampRGB(XYZToRGB(c)), nil
	case ColorSpaceLab:
		return clampRGB(LabToRGB(c)), nil
	}
	return RGB{}, cs.Validate()
}

// RGBToXYZ converts 0-255 RGB to XYZ scaled to 0-100.
func RGBToXYZ(c Vec3) Vec3 {
	var lin Vec3
	for i := range 3 {
		v := c[i] / 255
		if v > 0.04045 {
			v = math.Pow((v+0.055)/1.055, 2.4) * 100
		} else {
			v /= 0.1292
		}
		lin[i] = v
	}
	return Vec3{
		lin[0]*0.4124 + lin[1]*0.3576 + lin[2]*0.1805,
		lin[0]*0.2126 + lin[1]*0.7152 + lin[2]*0.0722,
		lin[0]*0.0193 + lin[1]*0.1192 + lin[2]*0.9505,
	}
}

// XYZToRGB converts XYZ back to RGB. Channels are rounded to whole numbers but
// not clamped, so out-of-gamut input can fall outside 0-255.
func XYZToRGB(c Vec3) Vec3 {
	out := Vec3{
		c[0]*3.2406 + c[1]*-1.5372 + c[2]*-0.4986,
		c[0]*-0.9689 + c[1]*1.8758 + c[2]*0.0415,
		c[0]*0.0557 + c[1]*-0.2040 + c[2]*1.0570,
	}
	for i := range 3 {
		v := out[i] / 100
		if v > 0.0031308 {
			v = 1.055*math.Pow(v, 1/2.4) - 0.055
		} else {
			v *= 12.92
		}
		out[i] = math.Round(v * 255)
	}
	return out
}

// XYZToLab converts XYZ to CIE L*a*b* against the D65 white point.
func XYZToLab(c Vec3) Vec3 {
	var f Vec3
	for i := range 3 {
		v := c[i] / whiteD65[i]
		if v > 0.008856 {
			v = math.Cbrt(v)
		} else {
			v = 7.787*v + 16.0/116
		}
		f[i] = v
	}
	return Vec3{
		116*f[1] - 16,
		500 * (f[0] - f[1]),
		200 * (f[1] - f[2]),
	}
}

// LabToXYZ is the inverse of XYZToLab.
func LabToXYZ(c Vec3) Vec3 {
	fy := (c[0] + 16) / 116
	f := Vec3{c[1]/500 + fy, fy, fy - c[2]/200}
	for i := range 3 {
		v := f[i]
		if v*v*v > 0.008856 {
			v = v * v * v
		} else {
			v = (v - 16.0/116) / 7.787
		}
		f[i] = v * whiteD65[i]
	}
	return f
}

// RGBToLab converts 0-255 RGB to L*a*b*.
func RGBToLab(c Vec3) Vec3 {
	return XYZToLab(RGBToXYZ(c))
}

// LabToRGB converts L*a*b* to rounded, unclamped RGB.
func LabToRGB(c Vec3) Vec3 {
	return XYZToRGB(LabToXYZ(c))
}

func clampRGB(c Vec3) RGB {
	return RGB{
		R: security.SafeUint8(int(math.Round(c[0]))),
		G: security.SafeUint8(int(math.Round(c[1]))),
		B: security.SafeUint8(int(math.Round(c[2]))),
	}
}
