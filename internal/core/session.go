package core

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"virtual-hair-salon/internal/layers"
	"virtual-hair-salon/internal/metrics"
)

// SessionOptions configures a Session.
type SessionOptions struct {
	Segmenters SegmenterFactory
	Capture    CaptureFactory
	Params     *OverlayParameters
	Presenter  Presenter
	Clock      clock.Clock
	Logger     logrus.FieldLogger

	// Width and Height size the output surface. Zero means 640x480.
	Width  int
	Height int

	FrameInterval time.Duration
	Scaling       layers.Scaling

	// RestartOnOpacityChange re-runs the whole setup when the opacity changes. When
	// false the render loop reads the opacity every cycle instead.
	RestartOnOpacityChange bool
}

// setupStep is one stage of initialisation. Stages run strictly in order and each
// one commits its resource to the session before the next begins.
type setupStep struct {
	stage SetupStage
	run   func(ctx context.Context, gen uint64) error
}

// Session owns the segmenter, the capture stream and the render loop, and brings them
// up and down in a fixed order:
//
//	setup:    segmenter -> capture -> render loop
//	teardown: render loop -> capture tracks -> segmenter
type Session struct {
	opts    SessionOptions
	id      string
	logger  logrus.FieldLogger
	surface *Surface
	stats   *metrics.Recorder

	// restartMu serialises parameter-driven restarts.
	restartMu sync.Mutex

	mu         sync.Mutex
	state      State
	generation uint64
	cancel     context.CancelFunc
	segmenter  Segmenter
	source     CaptureSource
	loop       *RenderLoop
}

// NewSession builds an idle session.
func NewSession(opts SessionOptions) *Session {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = DefaultWidth, DefaultHeight
	}
	if opts.Params == nil {
		opts.Params = NewOverlayParameters(RGB{R: 0x3b, G: 0xb3, B: 0xff}, 0.2)
	}

	id := uuid.NewString()
	return &Session{
		opts:    opts,
		id:      id,
		logger:  opts.Logger.WithFields(logrus.Fields{"component": "session", "session_id": id}),
		surface: NewSurface(opts.Width, opts.Height),
		stats:   metrics.NewRecorder(opts.Clock),
		state:   StateIdle,
	}
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// Surface returns the output surface.
func (s *Session) Surface() *Surface { return s.surface }

// Params returns the overlay parameters the session renders with.
func (s *Session) Params() *OverlayParameters { return s.opts.Params }

// Stats returns the render statistics.
func (s *Session) Stats() metrics.RenderStats { return s.stats.Snapshot() }

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start initialises the segmenter, then acquires the camera, then starts the render
// loop. It blocks until the loop is running or a stage fails. A failed stage leaves the
// session Stopped with everything acquired so far released; the error is a
// *SetupError naming the stage. There is no retry.
//
// The render loop lives until Stop or until ctx is cancelled. A cancelled ctx tears the
// session down in the same order Stop does.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateInitializing || s.state == StateCapturing {
		s.mu.Unlock()
		return ErrSessionRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.generation++
	gen := s.generation
	s.cancel = cancel
	s.setStateLocked(StateInitializing)
	s.mu.Unlock()

	steps := []setupStep{
		{stage: StageSegmenter, run: s.initSegmenter},
		{stage: StageCapture, run: s.acquireCapture},
		{stage: StageLoop, run: s.startLoop},
	}
	for _, step := range steps {
		err := runCtx.Err()
		if err == nil {
			err = step.run(runCtx, gen)
		}
		if err != nil {
			if runCtx.Err() != nil {
				err = errors.Wrap(ErrSetupCancelled, err.Error())
			}
			setupErr := &SetupError{Stage: step.stage, Err: err}
			s.abortSetup(gen, setupErr)
			return setupErr
		}
	}
	return nil
}

func (s *Session) initSegmenter(ctx context.Context, gen uint64) error {
	s.logger.Debug("Initialising segmenter")
	seg, err := s.opts.Segmenters.OpenSegmenter(ctx)
	if err != nil {
		return errors.Wrap(err, "open segmenter")
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		s.closeSegmenter(seg)
		return ErrSetupCancelled
	}
	s.segmenter = seg
	s.mu.Unlock()
	return nil
}

func (s *Session) acquireCapture(ctx context.Context, gen uint64) error {
	s.logger.Debug("Acquiring camera")
	src, err := s.opts.Capture.AcquireCapture(ctx)
	if err != nil {
		return errors.Wrap(err, "acquire camera")
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		if err := stopTracks(src); err != nil {
			s.logger.WithError(err).Warn("Failed to release camera acquired during cancelled setup")
		}
		return ErrSetupCancelled
	}
	s.source = src
	s.mu.Unlock()
	return nil
}

func (s *Session) startLoop(ctx context.Context, gen uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return ErrSetupCancelled
	}
	s.loop = NewRenderLoop(RenderLoopOptions{
		Source:        s.source,
		Segmenter:     s.segmenter,
		Surface:       s.surface,
		Params:        s.opts.Params,
		Presenter:     s.opts.Presenter,
		Stats:         s.stats,
		Clock:         s.opts.Clock,
		Logger:        s.logger,
		FrameInterval: s.opts.FrameInterval,
		Scaling:       s.opts.Scaling,
		LiveOpacity:   !s.opts.RestartOnOpacityChange,
	})
	s.loop.Start(ctx)
	s.setStateLocked(StateCapturing)
	go s.releaseWhenLoopEnds(s.loop, gen)
	return nil
}

// releaseWhenLoopEnds tears the session down when the loop ends on its own, which
// happens when the context given to Start is cancelled. A loop ended by Stop or Restart
// belongs to an older generation and is left alone.
func (s *Session) releaseWhenLoopEnds(loop *RenderLoop, gen uint64) {
	<-loop.Done()

	s.mu.Lock()
	if gen != s.generation || s.loop != loop {
		s.mu.Unlock()
		return
	}
	s.generation++
	cancel, _, src, seg := s.detachLocked()
	s.setStateLocked(StateStopped)
	s.mu.Unlock()

	s.logger.Info("Render loop context ended, releasing session")
	if cancel != nil {
		cancel()
	}
	if err := s.teardown(loop, src, seg); err != nil {
		s.logger.WithError(err).Warn("Errors while releasing after context end")
	}
}

// abortSetup releases whatever a failed setup acquired, unless Stop already did.
func (s *Session) abortSetup(gen uint64, cause error) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		s.logger.WithError(cause).Debug("Setup abandoned after stop")
		return
	}
	s.generation++
	cancel, loop, src, seg := s.detachLocked()
	s.setStateLocked(StateStopped)
	s.mu.Unlock()

	s.logger.WithError(cause).Error("Session setup failed")
	if cancel != nil {
		cancel()
	}
	if err := s.teardown(loop, src, seg); err != nil {
		s.logger.WithError(err).Warn("Errors while releasing after failed setup")
	}
}

// Stop tears the session down: the render loop first, then every capture track, then
// the segmenter. It is safe in any state, including during setup, and calling it again
// is a no-op. Only track release errors are returned; segmenter release is best effort.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.state == StateIdle || s.state == StateStopped {
		s.mu.Unlock()
		return nil
	}
	prev := s.state
	s.generation++
	cancel, loop, src, seg := s.detachLocked()
	s.setStateLocked(StateStopped)
	s.mu.Unlock()

	s.logger.WithField("from_state", prev.String()).Info("Stopping session")
	if cancel != nil {
		cancel()
	}
	return s.teardown(loop, src, seg)
}

// Restart performs one full stop and setup cycle.
func (s *Session) Restart(ctx context.Context) error {
	s.restartMu.Lock()
	defer s.restartMu.Unlock()

	if err := s.Stop(); err != nil {
		s.logger.WithError(err).Warn("Errors while stopping for restart")
	}
	s.stats.Restarted()
	s.logger.Info("Restarting session")
	return s.Start(ctx)
}

// SetColor changes the tint. The next cycle picks it up; nothing restarts.
func (s *Session) SetColor(c RGB) {
	if s.opts.Params.SetColor(c) {
		s.logger.WithField("color", c.Hex()).Debug("Tint color changed")
	}
}

// SetOpacity changes the overlay opacity. With RestartOnOpacityChange set and the
// session active, the change restarts the session through ctx; otherwise it is picked
// up by the next cycle.
func (s *Session) SetOpacity(ctx context.Context, v float64) error {
	if !s.opts.Params.SetOpacity(v) {
		return nil
	}
	s.logger.WithField("opacity", s.opts.Params.Opacity()).Debug("Opacity changed")

	if !s.opts.RestartOnOpacityChange {
		return nil
	}
	switch s.State() {
	case StateInitializing, StateCapturing:
		return s.Restart(ctx)
	default:
		return nil
	}
}

func (s *Session) detachLocked() (context.CancelFunc, *RenderLoop, CaptureSource, Segmenter) {
	cancel, loop, src, seg := s.cancel, s.loop, s.source, s.segmenter
	s.cancel, s.loop, s.source, s.segmenter = nil, nil, nil, nil
	return cancel, loop, src, seg
}

func (s *Session) teardown(loop *RenderLoop, src CaptureSource, seg Segmenter) error {
	if loop != nil {
		loop.Stop()
	}
	var err error
	if src != nil {
		err = stopTracks(src)
	}
	if seg != nil {
		s.closeSegmenter(seg)
	}
	return err
}

func (s *Session) closeSegmenter(seg Segmenter) {
	if err := seg.Close(); err != nil {
		s.logger.WithError(err).Warn("Segmenter release failed")
	}
}

func (s *Session) setStateLocked(state State) {
	if s.state == state {
		return
	}
	s.logger.WithFields(logrus.Fields{
		"from": s.state.String(),
		"to":   state.String(),
	}).Debug("Session state changed")
	s.state = state
}

// stopTracks stops every track of src and combines the failures.
func stopTracks(src CaptureSource) error {
	var err error
	for _, track := range src.Tracks() {
		if stopErr := track.Stop(); stopErr != nil {
			err = multierr.Append(err, errors.Wrapf(stopErr, "stop %s track %s", track.Kind(), track.ID()))
		}
	}
	return err
}
