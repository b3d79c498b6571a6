package segmentation

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"virtual-hair-salon/internal/algorithms"
	"virtual-hair-salon/internal/core"
)

func TestCategoryMaskFromScores(t *testing.T) {
	tests := []struct {
		name   string
		scores []float32
		shape  []int
		layout Layout
		want   []byte
		w, h   int
	}{
		{
			name: "nchw two classes",
			// channel 0 (background) then channel 1 (hair), 2x2 pixels
			scores: []float32{0.9, 0.2, 0.6, 0.1, 0.1, 0.8, 0.4, 0.9},
			shape:  []int{1, 2, 2, 2},
			layout: LayoutNCHW,
			want:   []byte{0, 1, 0, 1},
			w:      2, h: 2,
		},
		{
			name:   "nhwc two classes",
			scores: []float32{0.9, 0.1, 0.2, 0.8, 0.6, 0.4, 0.1, 0.9},
			shape:  []int{1, 2, 2, 2},
			layout: LayoutNHWC,
			want:   []byte{0, 1, 0, 1},
			w:      2, h: 2,
		},
		{
			name:   "nhwc three classes without batch",
			scores: []float32{0.1, 0.2, 0.7, 0.5, 0.3, 0.2, 0.2, 0.6, 0.2},
			shape:  []int{1, 3, 3},
			layout: LayoutNHWC,
			want:   []byte{2, 0, 1},
			w:      3, h: 1,
		},
		{
			name:   "single channel probability",
			scores: []float32{0.1, 0.5, 0.99, 0.49, 0.0, 0.7},
			shape:  []int{1, 1, 2, 3},
			layout: LayoutNCHW,
			want:   []byte{0, 1, 1, 0, 0, 1},
			w:      3, h: 2,
		},
		{
			name:   "auto picks nchw for a small leading dimension",
			scores: []float32{0.9, 0.2, 0.6, 0.1, 0.1, 0.8, 0.4, 0.9, 0.5, 0.5, 0.5, 0.5},
			shape:  []int{1, 2, 2, 3},
			layout: LayoutAuto,
			want:   []byte{0, 1, 0, 1, 1, 0},
			w:      3, h: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mask, err := CategoryMaskFromScores(tt.scores, tt.shape, tt.layout)
			require.NoError(t, err)
			require.NoError(t, mask.Validate())
			assert.Equal(t, tt.w, mask.Width)
			assert.Equal(t, tt.h, mask.Height)
			assert.Equal(t, tt.want, mask.Classes)
		})
	}
}

func TestCategoryMaskFromScoresRejectsBadInput(t *testing.T) {
	_, err := CategoryMaskFromScores(make([]float32, 3), []int{1, 2, 2, 2}, LayoutNCHW)
	assert.Error(t, err, "short buffer")

	_, err = CategoryMaskFromScores(make([]float32, 4), []int{4}, LayoutNCHW)
	assert.Error(t, err, "bad rank")

	_, err = CategoryMaskFromScores(nil, []int{1, 0, 2, 2}, LayoutNCHW)
	assert.Error(t, err, "zero channels")
}

func TestParseRunningModeAndLayout(t *testing.T) {
	m, err := ParseRunningMode("video")
	require.NoError(t, err)
	assert.Equal(t, RunningModeVideo, m)
	m, err = ParseRunningMode("IMAGE")
	require.NoError(t, err)
	assert.Equal(t, RunningModeImage, m)
	_, err = ParseRunningMode("LIVE_STREAM")
	assert.Error(t, err)

	l, err := ParseLayout("NHWC")
	require.NoError(t, err)
	assert.Equal(t, LayoutNHWC, l)
	_, err = ParseLayout("chw")
	assert.Error(t, err)
}

func TestVideoModeRequiresIncreasingTimestamps(t *testing.T) {
	s := &DNNSegmenter{opts: Options{RunningMode: RunningModeVideo}}

	require.NoError(t, s.checkTimestamp(5))
	require.NoError(t, s.checkTimestamp(6))
	assert.ErrorIs(t, s.checkTimestamp(6), core.ErrTimestampNotMonotonic)
	assert.ErrorIs(t, s.checkTimestamp(2), core.ErrTimestampNotMonotonic)
	require.NoError(t, s.checkTimestamp(7))
}

func TestImageModeIgnoresTimestamps(t *testing.T) {
	s := &DNNSegmenter{opts: Options{RunningMode: RunningModeImage}}
	require.NoError(t, s.checkTimestamp(5))
	require.NoError(t, s.checkTimestamp(5))
	require.NoError(t, s.checkTimestamp(1))
}

func TestSegmentRejectsStaleTimestampBeforeInference(t *testing.T) {
	s := &DNNSegmenter{opts: Options{RunningMode: RunningModeVideo}}
	require.NoError(t, s.checkTimestamp(10))

	_, err := s.Segment(context.Background(), nil, 10)
	assert.ErrorIs(t, err, core.ErrTimestampNotMonotonic)
}

func TestFactoryFailsWithoutModel(t *testing.T) {
	opts := DefaultOptions()
	opts.ModelPath = t.TempDir() + "/missing.tflite"
	f := NewFactory(opts, logrus.New())

	_, err := f.OpenSegmenter(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.tflite")
}

func TestFactoryHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFactory(DefaultOptions(), nil).OpenSegmenter(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRefineMaskDropsSpeckles(t *testing.T) {
	const w, h = 12, 12
	classes := make([]byte, w*h)
	for y := 3; y < 9; y++ {
		for x := 3; x < 9; x++ {
			classes[y*w+x] = 1
		}
	}
	classes[0] = 1 // lone speckle
	classes[w*h-1] = 2

	chain, err := algorithms.NewChain([]string{"opening"}, 3)
	require.NoError(t, err)
	out, err := refineMask(&core.SegmentationMask{Classes: classes, Width: w, Height: h}, chain)
	require.NoError(t, err)

	assert.Equal(t, byte(0), out.Classes[0])
	assert.Equal(t, byte(1), out.Classes[6*w+6])
	assert.Equal(t, byte(0), out.Classes[w*h-1])
	for _, c := range out.Classes {
		assert.True(t, c == 0 || c == 1)
	}
}

func TestFrameToMatOwnsPixels(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.SetRGBA(1, 1, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	mat, err := frameToMat(&core.VideoFrame{Image: img})
	require.NoError(t, err)
	defer mat.Close()

	// Later writes to the frame must not reach the Mat.
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}

	assert.Equal(t, 2, mat.Rows())
	assert.Equal(t, 3, mat.Cols())
	data := mat.ToBytes()
	require.Len(t, data, 3*2*4)
	offset := (1*3 + 1) * 4
	assert.Equal(t, []byte{10, 20, 30, 255}, data[offset:offset+4])
	assert.Equal(t, []byte{0, 0, 0, 0}, data[0:4])
}
