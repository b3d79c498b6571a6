package layers

import (
	"image"
	"image/draw"
)

// Compositor draws a camera frame and an overlay onto the output surface.
type Compositor struct {
	scaling Scaling
}

func NewCompositor(scaling Scaling) *Compositor {
	return &Compositor{scaling: scaling}
}

// Compose redraws dst from scratch: the surface is cleared, the frame is stretched to
// fill it, and the overlay is alpha-blended on top. A nil frame leaves the cleared
// surface; a nil overlay leaves the plain frame.
func (c *Compositor) Compose(dst *image.RGBA, frame, overlay image.Image) {
	bounds := dst.Bounds()

	// Clear first so nothing from the previous frame can show through.
	draw.Draw(dst, bounds, image.Transparent, image.Point{}, draw.Src)

	if frame != nil && !frame.Bounds().Empty() {
		c.drawLayer(dst, frame, draw.Over)
	}
	if overlay != nil && !overlay.Bounds().Empty() {
		c.drawLayer(dst, overlay, draw.Over)
	}
}

func (c *Compositor) drawLayer(dst *image.RGBA, src image.Image, op draw.Op) {
	bounds := dst.Bounds()
	sb := src.Bounds()
	if sb.Size() == bounds.Size() {
		draw.Draw(dst, bounds, src, sb.Min, op)
		return
	}
	c.scaling.interpolator().Scale(dst, bounds, src, sb, op, nil)
}
