// Smoothing filters for hair masks
package algorithms

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// MedianFilter smooths jagged mask edges. The median of 0/255 pixels is itself 0 or
// 255, so the mask stays binary.
type MedianFilter struct{}

const medianMinKernel = 3

func NewMedianFilter() *MedianFilter {
	return &MedianFilter{}
}

func (f *MedianFilter) Apply(mask gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if mask.Empty() {
		return gocv.NewMat(), errors.New("input mask is empty")
	}

	kernelSize := kernelSizeParam(params, 5)
	if kernelSize%2 == 0 {
		kernelSize++
	}

	output := gocv.NewMat()
	gocv.MedianBlur(mask, &output, kernelSize)
	return output, nil
}

func (f *MedianFilter) GetDefaultParams() map[string]interface{} {
	return map[string]interface{}{
		"kernel_size": 5.0,
	}
}

// MinKernelSize is the smallest aperture MedianBlur accepts.
func (f *MedianFilter) MinKernelSize() int {
	return medianMinKernel
}

func (f *MedianFilter) GetName() string {
	return "Median Filter"
}

func (f *MedianFilter) GetDescription() string {
	return "Smooth jagged mask edges"
}

func (f *MedianFilter) Validate(params map[string]interface{}) error {
	if val, ok := params["kernel_size"]; ok {
		if v, ok := val.(float64); ok {
			if v < medianMinKernel || v > 15 {
				return errors.Errorf("kernel_size must be between %d and 15", medianMinKernel)
			}
		}
	}
	return nil
}
