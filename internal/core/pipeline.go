// internal/core/pipeline.go
// Render loop: frame -> mask -> overlay -> composite -> present, once per tick
package core

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"virtual-hair-salon/internal/layers"
	"virtual-hair-salon/internal/metrics"
)

// DefaultFrameInterval paces the loop at roughly the display refresh rate.
const DefaultFrameInterval = time.Second / 30

// RenderLoopOptions wires a render loop to its collaborators.
type RenderLoopOptions struct {
	Source    CaptureSource
	Segmenter Segmenter
	Surface   *Surface
	Params    *OverlayParameters
	Presenter Presenter
	Stats     *metrics.Recorder
	Clock     clock.Clock
	Logger    logrus.FieldLogger

	FrameInterval time.Duration
	Scaling       layers.Scaling
	// LiveOpacity makes every cycle read the current opacity. Otherwise the opacity
	// seen at Start is used for the loop's whole life.
	LiveOpacity bool
}

// RenderLoop runs one render cycle per tick until stopped. Cycles never overlap: the
// next tick is only taken once the current cycle has finished.
type RenderLoop struct {
	source    CaptureSource
	segmenter Segmenter
	surface   *Surface
	params    *OverlayParameters
	presenter Presenter
	stats     *metrics.Recorder
	clock     clock.Clock
	logger    logrus.FieldLogger

	interval    time.Duration
	liveOpacity bool
	opacity     float64

	overlay    *layers.Overlay
	compositor *layers.Compositor
	bitmap     *image.RGBA

	phase   atomic.Int32
	running atomic.Bool

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}

	epoch         time.Time
	lastTimestamp int64
}

// NewRenderLoop builds a loop. Nothing runs until Start.
func NewRenderLoop(opts RenderLoopOptions) *RenderLoop {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Stats == nil {
		opts.Stats = metrics.NewRecorder(opts.Clock)
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = DefaultFrameInterval
	}

	bounds := opts.Surface.Bounds()
	l := &RenderLoop{
		source:      opts.Source,
		segmenter:   opts.Segmenter,
		surface:     opts.Surface,
		params:      opts.Params,
		presenter:   opts.Presenter,
		stats:       opts.Stats,
		clock:       opts.Clock,
		logger:      opts.Logger.WithField("component", "render_loop"),
		interval:    opts.FrameInterval,
		liveOpacity: opts.LiveOpacity,
		overlay:     layers.NewOverlay(bounds.Dx(), bounds.Dy(), opts.Scaling),
		compositor:  layers.NewCompositor(opts.Scaling),
		done:        make(chan struct{}),
	}
	l.phase.Store(int32(PhaseWaiting))
	return l
}

// Start schedules the first cycle. Calling Start again, or after Stop, does nothing.
func (l *RenderLoop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started || l.stopped {
		return
	}
	l.started = true

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.opacity = l.params.Opacity()
	l.epoch = l.clock.Now()
	l.running.Store(true)

	l.logger.WithFields(logrus.Fields{
		"interval_ms":  l.interval.Milliseconds(),
		"opacity":      l.opacity,
		"live_opacity": l.liveOpacity,
	}).Info("Render loop started")

	// The ticker exists before Start returns, so no tick can be missed.
	go l.run(ctx, l.clock.Ticker(l.interval))
}

// Stop prevents further cycles from running and waits for the loop goroutine to exit.
// A cycle blocked in the segmenter is cancelled through its context. Stop is idempotent.
func (l *RenderLoop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.stopped = true
	l.running.Store(false)
	started := l.started
	if l.cancel != nil {
		l.cancel()
	}
	l.mu.Unlock()

	if !started {
		l.phase.Store(int32(PhaseStopped))
		close(l.done)
		return
	}
	<-l.done
	l.logger.Info("Render loop stopped")
}

// Done is closed once the loop has fully stopped.
func (l *RenderLoop) Done() <-chan struct{} {
	return l.done
}

// Phase returns where the loop currently is within a cycle.
func (l *RenderLoop) Phase() Phase {
	return Phase(l.phase.Load())
}

func (l *RenderLoop) run(ctx context.Context, ticker *clock.Ticker) {
	defer func() {
		ticker.Stop()
		l.phase.Store(int32(PhaseStopped))
		close(l.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// A tick can race with Stop; the flag wins.
		if !l.running.Load() {
			return
		}
		l.cycle(ctx)
	}
}

// cycle renders a single frame. Every failure here is absorbed: the loop keeps going.
func (l *RenderLoop) cycle(ctx context.Context) {
	start := l.clock.Now()
	l.stats.CycleScheduled()

	if !l.source.Ready() {
		l.stats.FrameNotReady()
		return
	}
	frame, err := l.source.Frame()
	if err != nil {
		l.stats.FrameNotReady()
		l.logger.WithError(err).Debug("Frame unavailable, skipping cycle")
		return
	}

	l.phase.Store(int32(PhaseAwaitingMask))
	result, err := l.segmenter.Segment(ctx, frame, l.nextTimestamp())
	if ctx.Err() != nil || !l.running.Load() {
		// Stopped while the segmenter was busy; nothing more may be drawn.
		return
	}
	if err != nil {
		l.stats.SegmentError()
		l.logger.WithError(err).Debug("Segmentation failed, presenting background only")
	}

	l.phase.Store(int32(PhaseCompositing))
	var overlay image.Image
	mask, ok := result.Mask()
	if ok {
		overlay = l.renderOverlay(mask)
	} else {
		l.stats.MaskMissing()
	}

	version := l.surface.Draw(func(dst *image.RGBA) {
		l.compositor.Compose(dst, frame.Image, overlay)
	})
	l.stats.Presented(ok, l.clock.Since(start))
	l.phase.Store(int32(PhaseWaiting))

	if l.presenter != nil {
		l.presenter(l.surface, version)
	}
}

func (l *RenderLoop) renderOverlay(mask *SegmentationMask) image.Image {
	if l.bitmap == nil || l.bitmap.Bounds().Dx() != mask.Width || l.bitmap.Bounds().Dy() != mask.Height {
		l.bitmap = image.NewRGBA(image.Rect(0, 0, mask.Width, mask.Height))
	}
	layers.RasterizeInto(l.bitmap, mask.Classes)

	opacity := l.opacity
	if l.liveOpacity {
		opacity = l.params.Opacity()
	}
	return l.overlay.Render(l.bitmap, l.params.Color().RGBA(), opacity)
}

// nextTimestamp returns milliseconds since Start, bumped when needed so that values
// are strictly increasing.
func (l *RenderLoop) nextTimestamp() int64 {
	ts := l.clock.Since(l.epoch).Milliseconds()
	if ts <= l.lastTimestamp {
		ts = l.lastTimestamp + 1
	}
	l.lastTimestamp = ts
	return ts
}
