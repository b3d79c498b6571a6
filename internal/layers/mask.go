// Package layers turns segmentation masks into tinted overlays and composites them over
// camera frames. It works on plain image types so that core can depend on it without an
// import cycle.
package layers

import (
	"image"
)

// HairClass is the category index the segmenter assigns to hair pixels.
const HairClass = 1

// RasterizeMask converts a category buffer into a bitmap of width x height. Pixels of the
// hair class become opaque white; every other pixel is fully transparent.
func RasterizeMask(classes []byte, width, height int) *image.RGBA {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	RasterizeInto(dst, classes)
	return dst
}

// RasterizeInto writes the bitmap for classes into dst. Pixels beyond len(classes) are
// left transparent.
func RasterizeInto(dst *image.RGBA, classes []byte) {
	pix := dst.Pix
	n := len(pix) / 4
	if len(classes) < n {
		n = len(classes)
	}

	for i := 0; i < n; i++ {
		o := i * 4
		if classes[i] == HairClass {
			pix[o+0] = 0xff
			pix[o+1] = 0xff
			pix[o+2] = 0xff
			pix[o+3] = 0xff
		} else {
			// Premultiplied storage: a transparent pixel carries no color.
			pix[o+0] = 0
			pix[o+1] = 0
			pix[o+2] = 0
			pix[o+3] = 0
		}
	}
	for i := n * 4; i < len(pix); i++ {
		pix[i] = 0
	}
}
