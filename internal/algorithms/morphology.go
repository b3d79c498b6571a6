// Morphological refinement of hair masks
package algorithms

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Morphology applies one morphological operation with an elliptical kernel. Masks
// are blobs of hair, so an ellipse avoids the blocky edges a square kernel leaves.
type Morphology struct {
	op          gocv.MorphType
	name        string
	description string
}

// NewErosion shrinks hair regions and drops isolated hair pixels.
func NewErosion() *Morphology {
	return &Morphology{op: gocv.MorphErode, name: "Erosion", description: "Shrink hair regions"}
}

// NewDilation grows hair regions.
func NewDilation() *Morphology {
	return &Morphology{op: gocv.MorphDilate, name: "Dilation", description: "Grow hair regions"}
}

// NewOpening removes speckles outside the hair.
func NewOpening() *Morphology {
	return &Morphology{op: gocv.MorphOpen, name: "Opening", description: "Remove small false-positive speckles"}
}

// NewClosing fills small holes inside the hair.
func NewClosing() *Morphology {
	return &Morphology{op: gocv.MorphClose, name: "Closing", description: "Fill small holes inside hair regions"}
}

func (m *Morphology) Apply(mask gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if mask.Empty() {
		return gocv.NewMat(), errors.New("input mask is empty")
	}

	kernelSize := kernelSizeParam(params, 3)
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(kernelSize, kernelSize))
	defer kernel.Close()

	output := gocv.NewMat()
	gocv.MorphologyEx(mask, &output, m.op, kernel)
	return output, nil
}

func (m *Morphology) GetDefaultParams() map[string]interface{} {
	return map[string]interface{}{
		"kernel_size": 3.0,
	}
}

func (m *Morphology) GetName() string {
	return m.name
}

func (m *Morphology) GetDescription() string {
	return m.description
}

func (m *Morphology) Validate(params map[string]interface{}) error {
	return validateKernelSize(params)
}
