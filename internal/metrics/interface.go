// Render statistics for the live preview loop
package metrics

import (
	"fmt"
	"time"
)

// RenderStats is a point-in-time copy of the render counters.
type RenderStats struct {
	// Cycles counts every scheduled cycle, including no-op ones
	Cycles uint64
	// FramesNotReady counts cycles skipped because the capture source had no frame
	FramesNotReady uint64
	// MasksMissing counts cycles where the segmenter returned no usable mask
	MasksMissing uint64
	// SegmentErrors counts segmenter calls that failed and were absorbed
	SegmentErrors uint64
	// Presented counts frames drawn to the surface (with or without overlay)
	Presented uint64
	// Tinted counts frames drawn with a hair overlay
	Tinted uint64
	// Restarts counts full session restarts
	Restarts uint64
	// LastCycle is the duration of the most recent presenting cycle
	LastCycle time.Duration
	// FPS is the presented frame rate over the recent window
	FPS float64
}

// String renders the stats for a status line.
func (s RenderStats) String() string {
	return fmt.Sprintf("%.1f fps | %d frames | %d tinted | %d without mask | %d restarts",
		s.FPS, s.Presented, s.Tinted, s.MasksMissing, s.Restarts)
}
