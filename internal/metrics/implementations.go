package metrics

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"
)

// fpsWindow is the number of recent presents used for the frame rate.
const fpsWindow = 60

// Recorder collects render statistics. Counters are atomic so the render loop never
// blocks on a reader; only the frame-rate window takes a lock.
type Recorder struct {
	clock clock.Clock

	cycles        atomic.Uint64
	notReady      atomic.Uint64
	masksMissing  atomic.Uint64
	segmentErrors atomic.Uint64
	presented     atomic.Uint64
	tinted        atomic.Uint64
	restarts      atomic.Uint64
	lastCycle     atomic.Duration

	mu       sync.Mutex
	presents []time.Time
	next     int
}

// NewRecorder returns a Recorder that timestamps presents with clk.
func NewRecorder(clk clock.Clock) *Recorder {
	if clk == nil {
		clk = clock.New()
	}
	return &Recorder{
		clock:    clk,
		presents: make([]time.Time, 0, fpsWindow),
	}
}

func (r *Recorder) CycleScheduled() { r.cycles.Inc() }
func (r *Recorder) FrameNotReady()  { r.notReady.Inc() }
func (r *Recorder) MaskMissing()    { r.masksMissing.Inc() }
func (r *Recorder) SegmentError()   { r.segmentErrors.Inc() }
func (r *Recorder) Restarted()      { r.restarts.Inc() }

// Presented records a drawn frame and how long its cycle took.
func (r *Recorder) Presented(tinted bool, took time.Duration) {
	r.presented.Inc()
	if tinted {
		r.tinted.Inc()
	}
	r.lastCycle.Store(took)

	now := r.clock.Now()
	r.mu.Lock()
	if len(r.presents) < fpsWindow {
		r.presents = append(r.presents, now)
	} else {
		r.presents[r.next] = now
		r.next = (r.next + 1) % fpsWindow
	}
	r.mu.Unlock()
}

// Snapshot returns the current statistics.
func (r *Recorder) Snapshot() RenderStats {
	return RenderStats{
		Cycles:         r.cycles.Load(),
		FramesNotReady: r.notReady.Load(),
		MasksMissing:   r.masksMissing.Load(),
		SegmentErrors:  r.segmentErrors.Load(),
		Presented:      r.presented.Load(),
		Tinted:         r.tinted.Load(),
		Restarts:       r.restarts.Load(),
		LastCycle:      r.lastCycle.Load(),
		FPS:            r.fps(),
	}
}

func (r *Recorder) fps() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.presents)
	if n < 2 {
		return 0
	}
	// Oldest entry sits at r.next once the ring is full.
	oldest := r.presents[0]
	newest := r.presents[n-1]
	if n == fpsWindow {
		oldest = r.presents[r.next]
		newest = r.presents[(r.next+fpsWindow-1)%fpsWindow]
	}
	span := newest.Sub(oldest)
	if span <= 0 {
		return 0
	}
	return float64(n-1) / span.Seconds()
}
