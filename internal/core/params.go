package core

import (
	"fmt"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"virtual-hair-salon/internal/layers"
)

// RGB is an opaque tint color.
type RGB struct {
	R, G, B uint8
}

// ParseHexColor parses "#rrggbb" or "#rgb".
func ParseHexColor(s string) (RGB, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return RGB{}, errors.Wrapf(err, "invalid hex color %q", s)
	}
	r, g, b := c.RGB255()
	return RGB{R: r, G: g, B: b}, nil
}

// RGBFromColor drops the alpha of c and returns its straight RGB value.
func RGBFromColor(c color.Color) RGB {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return RGB{R: n.R, G: n.G, B: n.B}
}

// Hex formats the color as "#rrggbb".
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// RGBA returns the color as an opaque color.RGBA.
func (c RGB) RGBA() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
}

func (c RGB) pack() uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

func unpackRGB(v uint32) RGB {
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}
}

// OverlayParameters holds the user's tint color and opacity. The two values are stored
// in separate atomics: each read returns a whole value, and a render cycle reads each
// of them once.
type OverlayParameters struct {
	color   atomic.Uint32
	opacity atomic.Float64
}

// NewOverlayParameters returns parameters initialised to c and opacity (clamped).
func NewOverlayParameters(c RGB, opacity float64) *OverlayParameters {
	p := &OverlayParameters{}
	p.color.Store(c.pack())
	p.opacity.Store(layers.ClampOpacity(opacity))
	return p
}

// Color returns the current tint.
func (p *OverlayParameters) Color() RGB {
	return unpackRGB(p.color.Load())
}

// SetColor stores c and reports whether it differs from the previous value.
func (p *OverlayParameters) SetColor(c RGB) bool {
	return p.color.Swap(c.pack()) != c.pack()
}

// Opacity returns the current opacity in [0,1].
func (p *OverlayParameters) Opacity() float64 {
	return p.opacity.Load()
}

// SetOpacity clamps v to [0,1], stores it and reports whether the value changed.
func (p *OverlayParameters) SetOpacity(v float64) bool {
	v = layers.ClampOpacity(v)
	return p.opacity.Swap(v) != v
}
