package segmentation

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"virtual-hair-salon/internal/algorithms"
	"virtual-hair-salon/internal/core"
	"virtual-hair-salon/internal/layers"
)

// refineMask runs chain over the hair pixels of mask. Everything that is not hair
// comes back as class 0.
func refineMask(mask *core.SegmentationMask, chain *algorithms.Chain) (*core.SegmentationMask, error) {
	binary := make([]byte, len(mask.Classes))
	for i, c := range mask.Classes {
		if c == layers.HairClass {
			binary[i] = 255
		}
	}

	in, err := gocv.NewMatFromBytes(mask.Height, mask.Width, gocv.MatTypeCV8U, binary)
	if err != nil {
		return nil, errors.Wrap(err, "mask to mat")
	}
	defer in.Close()

	out, err := chain.Apply(in)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	data := out.ToBytes()
	if len(data) != len(binary) {
		return nil, errors.Errorf("refined mask has %d bytes, want %d", len(data), len(binary))
	}
	classes := make([]byte, len(data))
	for i, v := range data {
		if v >= 128 {
			classes[i] = layers.HairClass
		}
	}
	return &core.SegmentationMask{Classes: classes, Width: mask.Width, Height: mask.Height}, nil
}
