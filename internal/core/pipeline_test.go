package core

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"virtual-hair-salon/internal/layers"
	"virtual-hair-salon/internal/metrics"
)

type loopHarness struct {
	mock    *clock.Mock
	source  *fakeSource
	seg     *fakeSegmenter
	rec     *presentRecorder
	surface *Surface
	params  *OverlayParameters
	stats   *metrics.Recorder
	loop    *RenderLoop
}

func newLoopHarness(t *testing.T, tint RGB, opacity float64, live bool) *loopHarness {
	t.Helper()
	h := &loopHarness{
		mock:    clock.NewMock(),
		source:  newFakeSource(nil, "cam-0"),
		seg:     newFakeSegmenter(nil),
		rec:     newPresentRecorder(),
		surface: NewSurface(testWidth, testHeight),
		params:  NewOverlayParameters(tint, opacity),
	}
	h.stats = metrics.NewRecorder(h.mock)
	h.loop = NewRenderLoop(RenderLoopOptions{
		Source:        h.source,
		Segmenter:     h.seg,
		Surface:       h.surface,
		Params:        h.params,
		Presenter:     h.rec.present,
		Stats:         h.stats,
		Clock:         h.mock,
		Logger:        nullLogger(),
		FrameInterval: testInterval,
		Scaling:       layers.ScaleNearest,
		LiveOpacity:   live,
	})
	t.Cleanup(h.loop.Stop)
	return h
}

func (h *loopHarness) snapshot() *image.RGBA {
	img, _ := h.surface.Snapshot()
	return img
}

var red = RGB{R: 255}

func TestRenderLoopFullOpacityPaintsTint(t *testing.T) {
	h := newLoopHarness(t, red, 1, false)
	h.loop.Start(context.Background())

	v := tickAndWait(t, h.mock, h.rec)
	assert.Equal(t, uint64(1), v)
	requireUniform(t, h.snapshot(), red.RGBA())

	stats := h.stats.Snapshot()
	assert.Equal(t, uint64(1), stats.Presented)
	assert.Equal(t, uint64(1), stats.Tinted)
}

func TestRenderLoopBlendsAtPartialOpacity(t *testing.T) {
	h := newLoopHarness(t, red, 0.2, false)
	h.loop.Start(context.Background())
	tickAndWait(t, h.mock, h.rec)

	px := h.snapshot().RGBAAt(3, 2)
	assert.InDelta(t, 0.8*float64(background.R)+0.2*255, float64(px.R), 1)
	assert.InDelta(t, 0.8*float64(background.G), float64(px.G), 1)
	assert.InDelta(t, 0.8*float64(background.B), float64(px.B), 1)
	assert.Equal(t, uint8(255), px.A)
}

func TestRenderLoopWithoutMaskShowsBackground(t *testing.T) {
	h := newLoopHarness(t, red, 1, false)
	h.seg.noMask.Store(true)
	h.loop.Start(context.Background())

	for i := 0; i < 10; i++ {
		tickAndWait(t, h.mock, h.rec)
		requireUniform(t, h.snapshot(), background)
	}

	stats := h.stats.Snapshot()
	assert.Equal(t, uint64(10), stats.MasksMissing)
	assert.Equal(t, uint64(10), stats.Presented)
	assert.Zero(t, stats.Tinted)
	assert.Equal(t, PhaseWaiting, h.loop.Phase())
	select {
	case <-h.loop.Done():
		t.Fatal("loop stopped after mask-less cycles")
	default:
	}
}

func TestRenderLoopSegmentErrorPresentsBackground(t *testing.T) {
	h := newLoopHarness(t, red, 1, false)
	h.seg.err = errors.New("inference failed")
	h.loop.Start(context.Background())

	tickAndWait(t, h.mock, h.rec)
	requireUniform(t, h.snapshot(), background)
	assert.Equal(t, uint64(1), h.stats.Snapshot().SegmentErrors)

	tickAndWait(t, h.mock, h.rec)
	assert.Equal(t, uint64(2), h.stats.Snapshot().SegmentErrors)
}

func TestRenderLoopSkipsUntilFrameReady(t *testing.T) {
	h := newLoopHarness(t, red, 1, false)
	h.source.ready.Store(false)
	h.loop.Start(context.Background())

	for i := uint64(1); i <= 3; i++ {
		h.mock.Add(testInterval)
		require.Eventually(t, func() bool {
			return h.stats.Snapshot().FramesNotReady == i
		}, waitTimeout, time.Millisecond)
	}
	h.rec.none(t)
	assert.Empty(t, h.seg.recorded())
	assert.Zero(t, h.surface.Version())

	h.source.ready.Store(true)
	tickAndWait(t, h.mock, h.rec)
	requireUniform(t, h.snapshot(), red.RGBA())
}

func TestRenderLoopPicksUpColorNextCycle(t *testing.T) {
	h := newLoopHarness(t, red, 1, false)
	h.loop.Start(context.Background())
	tickAndWait(t, h.mock, h.rec)

	blue := RGB{B: 255}
	h.params.SetColor(blue)
	tickAndWait(t, h.mock, h.rec)
	requireUniform(t, h.snapshot(), blue.RGBA())
}

func TestRenderLoopKeepsOpacityFromStart(t *testing.T) {
	h := newLoopHarness(t, red, 1, false)
	h.loop.Start(context.Background())

	h.params.SetOpacity(0)
	tickAndWait(t, h.mock, h.rec)
	requireUniform(t, h.snapshot(), red.RGBA())
}

func TestRenderLoopLiveOpacity(t *testing.T) {
	h := newLoopHarness(t, red, 1, true)
	h.loop.Start(context.Background())
	tickAndWait(t, h.mock, h.rec)
	requireUniform(t, h.snapshot(), red.RGBA())

	h.params.SetOpacity(0)
	tickAndWait(t, h.mock, h.rec)
	requireUniform(t, h.snapshot(), background)
}

func TestRenderLoopTimestampsStrictlyIncrease(t *testing.T) {
	h := newLoopHarness(t, red, 1, false)
	h.loop.Start(context.Background())
	for i := 0; i < 5; i++ {
		tickAndWait(t, h.mock, h.rec)
	}

	ts := h.seg.recorded()
	require.Len(t, ts, 5)
	for i := 1; i < len(ts); i++ {
		assert.Greater(t, ts[i], ts[i-1])
	}
}

func TestNextTimestampBumpsWhenClockStalls(t *testing.T) {
	h := newLoopHarness(t, red, 1, false)
	h.loop.epoch = h.mock.Now()

	assert.Equal(t, int64(1), h.loop.nextTimestamp())
	assert.Equal(t, int64(2), h.loop.nextTimestamp())
	assert.Equal(t, int64(3), h.loop.nextTimestamp())

	h.mock.Add(100 * time.Millisecond)
	assert.Equal(t, int64(100), h.loop.nextTimestamp())
	assert.Equal(t, int64(101), h.loop.nextTimestamp())
}

func TestRenderLoopStopCancelsPendingSegmentation(t *testing.T) {
	h := newLoopHarness(t, red, 1, false)
	h.seg.block = make(chan struct{})
	h.loop.Start(context.Background())

	h.mock.Add(testInterval)
	select {
	case <-h.seg.entered:
	case <-time.After(waitTimeout):
		t.Fatal("segmenter was never called")
	}
	assert.Equal(t, PhaseAwaitingMask, h.loop.Phase())

	h.loop.Stop()
	h.rec.none(t)
	assert.Zero(t, h.surface.Version())
	assert.Equal(t, PhaseStopped, h.loop.Phase())
}

func TestRenderLoopStopIsIdempotent(t *testing.T) {
	h := newLoopHarness(t, red, 1, false)
	h.loop.Start(context.Background())
	tickAndWait(t, h.mock, h.rec)

	h.loop.Stop()
	h.loop.Stop()
	<-h.loop.Done()

	h.mock.Add(testInterval)
	h.rec.none(t)
	assert.Equal(t, uint64(1), h.stats.Snapshot().Cycles)
}

func TestRenderLoopStopBeforeStart(t *testing.T) {
	h := newLoopHarness(t, red, 1, false)
	h.loop.Stop()
	<-h.loop.Done()

	h.loop.Start(context.Background())
	h.mock.Add(testInterval)
	h.rec.none(t)
	assert.Equal(t, PhaseStopped, h.loop.Phase())
}

func TestRenderLoopExitsWhenContextCancelled(t *testing.T) {
	h := newLoopHarness(t, red, 1, false)
	ctx, cancel := context.WithCancel(context.Background())
	h.loop.Start(ctx)
	tickAndWait(t, h.mock, h.rec)

	cancel()
	select {
	case <-h.loop.Done():
	case <-time.After(waitTimeout):
		t.Fatal("loop did not exit after context cancellation")
	}
}
