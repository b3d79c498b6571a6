package layers

import (
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/pkg/errors"
	xdraw "golang.org/x/image/draw"
)

// Scaling selects how a mask bitmap is stretched to the surface size.
type Scaling int

const (
	ScaleNearest Scaling = iota
	ScaleBilinear
)

// ParseScaling maps a config value to a Scaling.
func ParseScaling(s string) (Scaling, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nearest":
		return ScaleNearest, nil
	case "bilinear":
		return ScaleBilinear, nil
	default:
		return ScaleNearest, errors.Errorf("unknown scaling mode: %q", s)
	}
}

func (s Scaling) String() string {
	switch s {
	case ScaleBilinear:
		return "bilinear"
	default:
		return "nearest"
	}
}

func (s Scaling) interpolator() xdraw.Interpolator {
	if s == ScaleBilinear {
		return xdraw.ApproxBiLinear
	}
	return xdraw.NearestNeighbor
}

// ClampOpacity limits v to [0,1]. NaN is treated as 0.
func ClampOpacity(v float64) float64 {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= 1:
		return 1
	default:
		return v
	}
}

// Overlay renders the tinted hair overlay for one surface size. Its buffers are reused
// between frames, so an Overlay must not be shared between goroutines.
type Overlay struct {
	scaling Scaling
	scaled  *image.RGBA
	out     *image.RGBA
	lut     [256][4]uint8
	lutKey  [4]float64
}

// NewOverlay allocates an overlay renderer for a width x height surface.
func NewOverlay(width, height int, scaling Scaling) *Overlay {
	bounds := image.Rect(0, 0, width, height)
	return &Overlay{
		scaling: scaling,
		scaled:  image.NewRGBA(bounds),
		out:     image.NewRGBA(bounds),
		lutKey:  [4]float64{-1, -1, -1, -1},
	}
}

// Bounds returns the surface bounds the overlay is rendered for.
func (o *Overlay) Bounds() image.Rectangle {
	return o.out.Bounds()
}

// Render stretches bitmap to the surface size and fills its coverage with tint at the
// given opacity. Only the RGB channels of tint are used. The mask alpha acts as
// coverage: the effective alpha of a pixel is opacity * coverage, and pixels without
// coverage stay transparent.
//
// The returned image is owned by the Overlay and is overwritten by the next call.
func (o *Overlay) Render(bitmap image.Image, tint color.RGBA, opacity float64) *image.RGBA {
	opacity = ClampOpacity(opacity)
	if bitmap == nil || bitmap.Bounds().Empty() || opacity == 0 {
		clear(o.out.Pix)
		return o.out
	}

	coverage := o.stretch(bitmap)
	o.buildLUT(tint, opacity)

	src := coverage.Pix
	dst := o.out.Pix
	for i := 0; i+3 < len(dst); i += 4 {
		px := o.lut[src[i+3]]
		dst[i+0] = px[0]
		dst[i+1] = px[1]
		dst[i+2] = px[2]
		dst[i+3] = px[3]
	}
	return o.out
}

// stretch returns bitmap at surface size. Same-sized RGBA bitmaps are used as-is.
func (o *Overlay) stretch(bitmap image.Image) *image.RGBA {
	if rgba, ok := bitmap.(*image.RGBA); ok && rgba.Bounds() == o.scaled.Bounds() {
		return rgba
	}
	o.scaling.interpolator().Scale(o.scaled, o.scaled.Bounds(), bitmap, bitmap.Bounds(), xdraw.Src, nil)
	return o.scaled
}

// buildLUT precomputes the premultiplied overlay pixel for every coverage value.
func (o *Overlay) buildLUT(tint color.RGBA, opacity float64) {
	key := [4]float64{float64(tint.R), float64(tint.G), float64(tint.B), opacity}
	if key == o.lutKey {
		return
	}
	o.lutKey = key

	for cov := 0; cov < 256; cov++ {
		a := opacity * float64(cov) / 255
		o.lut[cov] = [4]uint8{
			uint8(math.Round(float64(tint.R) * a)),
			uint8(math.Round(float64(tint.G) * a)),
			uint8(math.Round(float64(tint.B) * a)),
			uint8(math.Round(255 * a)),
		}
	}
}

// TintOverlay is the one-shot form of Overlay.Render for a surface of the given bounds.
func TintOverlay(bitmap image.Image, bounds image.Rectangle, tint color.RGBA, opacity float64, scaling Scaling) *image.RGBA {
	return NewOverlay(bounds.Dx(), bounds.Dy(), scaling).Render(bitmap, tint, opacity)
}
