package core

import (
	"context"
)

// Segmenter classifies frames into category masks. Segment may block while inference
// runs; implementations should return early with ctx.Err() once ctx is cancelled.
// Timestamps passed to Segment are milliseconds and strictly increasing.
type Segmenter interface {
	Segment(ctx context.Context, frame *VideoFrame, timestampMs int64) (*SegmentationResult, error)
	Close() error
}

// SegmenterFactory initialises a segmenter. It is the first setup stage.
type SegmenterFactory interface {
	OpenSegmenter(ctx context.Context) (Segmenter, error)
}

// Track is one media track of a capture stream.
type Track interface {
	ID() string
	Kind() string
	// Stop releases the track. Calling it more than once is a no-op.
	Stop() error
}

// CaptureSource is a live video stream.
type CaptureSource interface {
	// Ready reports whether a frame can be read without waiting.
	Ready() bool
	// Frame returns a copy of the most recent frame. It returns ErrFrameNotReady
	// before the first frame has been decoded.
	Frame() (*VideoFrame, error)
	// Tracks returns the stream's tracks.
	Tracks() []Track
}

// CaptureFactory acquires the camera. It is the second setup stage.
type CaptureFactory interface {
	AcquireCapture(ctx context.Context) (CaptureSource, error)
}

// Presenter is notified after every composite with the surface version that was
// published. It is called from the render loop goroutine and must not block.
type Presenter func(surface *Surface, version uint64)

// SegmenterFactoryFunc adapts a function to SegmenterFactory.
type SegmenterFactoryFunc func(ctx context.Context) (Segmenter, error)

func (f SegmenterFactoryFunc) OpenSegmenter(ctx context.Context) (Segmenter, error) { return f(ctx) }

// CaptureFactoryFunc adapts a function to CaptureFactory.
type CaptureFactoryFunc func(ctx context.Context) (CaptureSource, error)

func (f CaptureFactoryFunc) AcquireCapture(ctx context.Context) (CaptureSource, error) { return f(ctx) }
