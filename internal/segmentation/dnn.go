// Hair segmentation on the OpenCV DNN module
package segmentation

import (
	"context"
	"image"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"virtual-hair-salon/internal/algorithms"
	"virtual-hair-salon/internal/core"
)

// ErrSegmenterClosed is returned by Segment after Close.
var ErrSegmenterClosed = errors.New("segmenter is closed")

// RunningMode selects how timestamps are treated.
type RunningMode int

const (
	// RunningModeVideo treats frames as one stream and requires strictly increasing
	// timestamps.
	RunningModeVideo RunningMode = iota
	// RunningModeImage treats every frame on its own.
	RunningModeImage
)

// ParseRunningMode accepts "VIDEO" and "IMAGE" in any case.
func ParseRunningMode(s string) (RunningMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "VIDEO":
		return RunningModeVideo, nil
	case "IMAGE":
		return RunningModeImage, nil
	default:
		return RunningModeVideo, errors.Errorf("unknown running mode %q", s)
	}
}

func (m RunningMode) String() string {
	if m == RunningModeImage {
		return "IMAGE"
	}
	return "VIDEO"
}

// Options configures the DNN segmenter.
type Options struct {
	ModelPath  string
	ConfigPath string
	Backend    string
	Target     string

	InputWidth  int
	InputHeight int
	Scale       float64
	Mean        [3]float64
	SwapRB      bool
	Layout      Layout

	RunningMode RunningMode

	// Refine names mask refiners applied after decoding, in order.
	Refine       []string
	RefineKernel int
}

// DefaultOptions matches the MediaPipe hair segmenter: 512x512 RGB input scaled to
// [0,1], two output classes with hair at index 1.
func DefaultOptions() Options {
	return Options{
		ModelPath:   "models/hair_segmenter.tflite",
		Backend:     "default",
		Target:      "cpu",
		InputWidth:  512,
		InputHeight: 512,
		Scale:       1.0 / 255.0,
		SwapRB:      true,
		Layout:      LayoutAuto,
		RunningMode: RunningModeVideo,
	}
}

// Factory opens DNN segmenters. It is the first setup stage of a session.
type Factory struct {
	opts   Options
	logger logrus.FieldLogger
}

// NewFactory returns a factory for opts.
func NewFactory(opts Options, logger logrus.FieldLogger) *Factory {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Factory{opts: opts, logger: logger.WithField("component", "segmenter")}
}

// OpenSegmenter loads the model and returns a ready segmenter.
func (f *Factory) OpenSegmenter(ctx context.Context) (core.Segmenter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.opts.InputWidth <= 0 || f.opts.InputHeight <= 0 {
		return nil, errors.Errorf("invalid model input size %dx%d", f.opts.InputWidth, f.opts.InputHeight)
	}
	if _, err := os.Stat(f.opts.ModelPath); err != nil {
		return nil, errors.Wrapf(err, "model asset %s", f.opts.ModelPath)
	}
	chain, err := algorithms.NewChain(f.opts.Refine, f.opts.RefineKernel)
	if err != nil {
		return nil, errors.Wrap(err, "mask refinement")
	}

	net := gocv.ReadNet(f.opts.ModelPath, f.opts.ConfigPath)
	if net.Empty() {
		return nil, errors.Errorf("cannot read network from %s", f.opts.ModelPath)
	}
	net.SetPreferableBackend(gocv.ParseNetBackend(f.opts.Backend))
	net.SetPreferableTarget(gocv.ParseNetTarget(f.opts.Target))

	f.logger.WithFields(logrus.Fields{
		"model":        f.opts.ModelPath,
		"input":        image.Pt(f.opts.InputWidth, f.opts.InputHeight).String(),
		"running_mode": f.opts.RunningMode.String(),
		"refine":       f.opts.Refine,
	}).Info("Segmenter ready")

	return &DNNSegmenter{
		opts:   f.opts,
		logger: f.logger,
		refine: chain,
		net:    net,
	}, nil
}

// DNNSegmenter runs a semantic segmentation network on each frame. Inference is
// serialised; a cancelled Segment call returns at once while the running inference
// finishes in the background.
type DNNSegmenter struct {
	opts   Options
	logger logrus.FieldLogger
	refine *algorithms.Chain

	// mu guards net and closed.
	mu     sync.Mutex
	net    gocv.Net
	closed bool

	tsMu          sync.Mutex
	lastTimestamp int64
	seen          bool
}

type inference struct {
	mask *core.SegmentationMask
	err  error
}

// Segment classifies frame. In video mode timestampMs must be strictly greater than
// the previous call's; otherwise core.ErrTimestampNotMonotonic is returned.
func (s *DNNSegmenter) Segment(ctx context.Context, frame *core.VideoFrame, timestampMs int64) (*core.SegmentationResult, error) {
	if err := s.checkTimestamp(timestampMs); err != nil {
		return nil, err
	}
	if frame == nil || frame.Image == nil {
		return nil, errors.New("nil frame")
	}

	rgba, err := frameToMat(frame)
	if err != nil {
		return nil, err
	}

	done := make(chan inference, 1)
	go func() {
		defer rgba.Close()
		mask, err := s.infer(rgba)
		done <- inference{mask: mask, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		return &core.SegmentationResult{CategoryMask: res.mask}, nil
	}
}

// frameToMat returns a Mat holding its own copy of the frame's pixels. NewMatFromBytes
// only wraps the slice, and inference may outlive a cancelled Segment call.
func frameToMat(frame *core.VideoFrame) (gocv.Mat, error) {
	b := frame.Image.Bounds()
	view, err := gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8UC4, frame.Image.Pix)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "frame to mat")
	}
	defer view.Close()
	return view.Clone(), nil
}

func (s *DNNSegmenter) checkTimestamp(ts int64) error {
	if s.opts.RunningMode != RunningModeVideo {
		return nil
	}
	s.tsMu.Lock()
	defer s.tsMu.Unlock()
	if s.seen && ts <= s.lastTimestamp {
		return errors.Wrapf(core.ErrTimestampNotMonotonic, "got %d after %d", ts, s.lastTimestamp)
	}
	s.lastTimestamp, s.seen = ts, true
	return nil
}

func (s *DNNSegmenter) infer(rgba gocv.Mat) (*core.SegmentationMask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSegmenterClosed
	}

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(rgba, &bgr, gocv.ColorRGBAToBGR)

	mean := gocv.NewScalar(s.opts.Mean[0], s.opts.Mean[1], s.opts.Mean[2], 0)
	blob := gocv.BlobFromImage(bgr, s.opts.Scale, image.Pt(s.opts.InputWidth, s.opts.InputHeight), mean, s.opts.SwapRB, false)
	defer blob.Close()

	s.net.SetInput(blob, "")
	out := s.net.Forward("")
	defer out.Close()
	if out.Empty() {
		return nil, errors.New("network produced no output")
	}

	scores, err := out.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "read scores")
	}
	mask, err := CategoryMaskFromScores(scores, out.Size(), s.opts.Layout)
	if err != nil {
		return nil, err
	}
	if s.refine.Len() == 0 {
		return mask, nil
	}
	return refineMask(mask, s.refine)
}

// Close releases the network. It waits for a running inference and is safe to call
// more than once.
func (s *DNNSegmenter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Debug("Releasing segmenter")
	return s.net.Close()
}
