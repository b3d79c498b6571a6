// Decoding of model output tensors into category masks
package segmentation

import (
	"strings"

	"github.com/pkg/errors"

	"virtual-hair-salon/internal/core"
	"virtual-hair-salon/internal/layers"
)

// Layout is the dimension order of the model's score tensor.
type Layout int

const (
	// LayoutAuto treats the smallest of the last three dimensions as channels.
	LayoutAuto Layout = iota
	LayoutNCHW
	LayoutNHWC
)

// ParseLayout accepts "auto", "nchw" and "nhwc".
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return LayoutAuto, nil
	case "nchw":
		return LayoutNCHW, nil
	case "nhwc":
		return LayoutNHWC, nil
	default:
		return LayoutAuto, errors.Errorf("unknown tensor layout %q", s)
	}
}

func (l Layout) String() string {
	switch l {
	case LayoutNCHW:
		return "nchw"
	case LayoutNHWC:
		return "nhwc"
	default:
		return "auto"
	}
}

// singleChannelThreshold splits a one-channel probability map into hair and background.
const singleChannelThreshold = 0.5

// CategoryMaskFromScores turns a score tensor into a category mask. shape is the tensor
// shape with or without the leading batch dimension; only the first batch item is
// decoded. With several channels each pixel gets the index of its highest score. With
// one channel the score is a hair probability and pixels at or above 0.5 become hair.
func CategoryMaskFromScores(scores []float32, shape []int, layout Layout) (*core.SegmentationMask, error) {
	dims := shape
	if len(dims) == 4 {
		if dims[0] < 1 {
			return nil, errors.Errorf("empty batch in tensor shape %v", shape)
		}
		dims = dims[1:]
	}
	if len(dims) != 3 {
		return nil, errors.Errorf("unsupported tensor shape %v", shape)
	}

	if layout == LayoutAuto {
		layout = LayoutNHWC
		if dims[0] < dims[2] {
			layout = LayoutNCHW
		}
	}

	var channels, height, width int
	switch layout {
	case LayoutNCHW:
		channels, height, width = dims[0], dims[1], dims[2]
	case LayoutNHWC:
		height, width, channels = dims[0], dims[1], dims[2]
	default:
		return nil, errors.Errorf("unknown tensor layout %d", layout)
	}
	if channels < 1 || height < 1 || width < 1 {
		return nil, errors.Errorf("degenerate tensor shape %v", shape)
	}
	if channels > 256 {
		return nil, errors.Errorf("%d classes do not fit a byte mask", channels)
	}

	pixels := height * width
	if len(scores) < pixels*channels {
		return nil, errors.Errorf("tensor has %d scores, want %d for shape %v", len(scores), pixels*channels, shape)
	}

	classes := make([]byte, pixels)
	if channels == 1 {
		for i := range classes {
			if scores[i] >= singleChannelThreshold {
				classes[i] = layers.HairClass
			}
		}
		return &core.SegmentationMask{Classes: classes, Width: width, Height: height}, nil
	}

	for i := 0; i < pixels; i++ {
		best := 0
		bestScore := score(scores, layout, i, 0, pixels, channels)
		for c := 1; c < channels; c++ {
			if s := score(scores, layout, i, c, pixels, channels); s > bestScore {
				best, bestScore = c, s
			}
		}
		classes[i] = byte(best)
	}
	return &core.SegmentationMask{Classes: classes, Width: width, Height: height}, nil
}

func score(scores []float32, layout Layout, pixel, channel, pixels, channels int) float32 {
	if layout == LayoutNCHW {
		return scores[channel*pixels+pixel]
	}
	return scores[pixel*channels+channel]
}
