// Frame, mask and output surface types shared by the render pipeline
package core

import (
	"image"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Default output surface size
const (
	DefaultWidth  = 640
	DefaultHeight = 480
)

// VideoFrame is one camera sample. It belongs to the render cycle that fetched it and
// must not be retained after the cycle ends.
type VideoFrame struct {
	Image      *image.RGBA
	Seq        uint64
	CapturedAt time.Time
}

// Width returns the frame width in pixels.
func (f *VideoFrame) Width() int { return f.Image.Bounds().Dx() }

// Height returns the frame height in pixels.
func (f *VideoFrame) Height() int { return f.Image.Bounds().Dy() }

// SegmentationMask is a per-pixel category buffer, one byte per pixel in row-major
// order. Its size may differ from the frame it was computed for.
type SegmentationMask struct {
	Classes []byte
	Width   int
	Height  int
}

// Validate checks that the buffer covers width x height.
func (m *SegmentationMask) Validate() error {
	if m.Width < 0 || m.Height < 0 {
		return errors.Errorf("invalid mask dimensions: %dx%d", m.Width, m.Height)
	}
	if len(m.Classes) != m.Width*m.Height {
		return errors.Errorf("mask buffer has %d bytes, want %d for %dx%d",
			len(m.Classes), m.Width*m.Height, m.Width, m.Height)
	}
	return nil
}

// SegmentationResult is what the segmenter returns for one frame. CategoryMask is nil
// when the model produced nothing usable.
type SegmentationResult struct {
	CategoryMask *SegmentationMask
}

// Mask returns the category mask if it is present and well formed.
func (r *SegmentationResult) Mask() (*SegmentationMask, bool) {
	if r == nil || r.CategoryMask == nil {
		return nil, false
	}
	if r.CategoryMask.Validate() != nil {
		return nil, false
	}
	return r.CategoryMask, true
}

// Surface is the composed output canvas. The render loop draws into a back buffer and
// swaps it in when the frame is complete, so readers only ever see whole composites.
type Surface struct {
	mu      sync.RWMutex
	front   *image.RGBA
	back    *image.RGBA
	version uint64
}

// NewSurface allocates a cleared width x height surface.
func NewSurface(width, height int) *Surface {
	bounds := image.Rect(0, 0, width, height)
	return &Surface{
		front: image.NewRGBA(bounds),
		back:  image.NewRGBA(bounds),
	}
}

// Bounds returns the surface bounds.
func (s *Surface) Bounds() image.Rectangle {
	return s.front.Bounds()
}

// Draw runs fn on the back buffer and then publishes it. Only one goroutine may draw
// at a time; the render loop is that goroutine.
func (s *Surface) Draw(fn func(dst *image.RGBA)) uint64 {
	fn(s.back)

	s.mu.Lock()
	s.front, s.back = s.back, s.front
	s.version++
	v := s.version
	s.mu.Unlock()
	return v
}

// Snapshot returns a copy of the visible composite and the number of composites
// drawn so far.
func (s *Surface) Snapshot() (*image.RGBA, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	img := image.NewRGBA(s.front.Bounds())
	copy(img.Pix, s.front.Pix)
	return img, s.version
}

// Version returns the number of composites drawn so far.
func (s *Surface) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}
