// Mask refinement operators applied to 8-bit binary hair masks
package algorithms

import (
	"sort"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Refiner is one operator over a single-channel mask whose pixels are 0 or 255.
// Operators must keep that binary form.
type Refiner interface {
	Apply(mask gocv.Mat, params map[string]interface{}) (gocv.Mat, error)
	GetDefaultParams() map[string]interface{}
	GetName() string
	GetDescription() string
	Validate(params map[string]interface{}) error
}

var refiners = make(map[string]Refiner)

func Register(name string, refiner Refiner) {
	refiners[name] = refiner
}

func Get(name string) (Refiner, bool) {
	refiner, exists := refiners[name]
	return refiner, exists
}

// Names lists the registered operators in sorted order.
func Names() []string {
	names := make([]string, 0, len(refiners))
	for name := range refiners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func Apply(name string, mask gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	refiner, exists := refiners[name]
	if !exists {
		return gocv.NewMat(), errors.Errorf("refiner not found: %s", name)
	}
	return refiner.Apply(mask, params)
}

// minKernel is implemented by operators that need a kernel larger than 1.
type minKernel interface {
	MinKernelSize() int
}

// Step is one operator of a Chain with its parameters.
type Step struct {
	Name   string
	Params map[string]interface{}
}

// Chain runs several operators one after another.
type Chain struct {
	steps []Step
}

// NewChain builds a chain from operator names. A positive kernelSize overrides each
// operator's default kernel_size, raised to the operator's minimum where it has one.
func NewChain(names []string, kernelSize int) (*Chain, error) {
	c := &Chain{}
	for _, name := range names {
		refiner, ok := Get(name)
		if !ok {
			return nil, errors.Errorf("unknown refiner %q (known: %v)", name, Names())
		}
		params := refiner.GetDefaultParams()
		if kernelSize > 0 {
			if _, ok := params["kernel_size"]; ok {
				size := kernelSize
				if m, ok := refiner.(minKernel); ok && size < m.MinKernelSize() {
					size = m.MinKernelSize()
				}
				params["kernel_size"] = float64(size)
			}
		}
		if err := refiner.Validate(params); err != nil {
			return nil, errors.Wrapf(err, "refiner %s", name)
		}
		c.steps = append(c.steps, Step{Name: name, Params: params})
	}
	return c, nil
}

// Len returns the number of steps.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.steps)
}

// Apply runs every step on mask. The caller owns the returned Mat; mask itself is not
// modified or closed.
func (c *Chain) Apply(mask gocv.Mat) (gocv.Mat, error) {
	current := mask.Clone()
	for _, step := range c.Steps() {
		next, err := Apply(step.Name, current, step.Params)
		current.Close()
		if err != nil {
			next.Close()
			return gocv.NewMat(), errors.Wrapf(err, "refine step %s", step.Name)
		}
		current = next
	}
	return current, nil
}

// Steps returns the configured steps.
func (c *Chain) Steps() []Step {
	if c == nil {
		return nil
	}
	return c.steps
}

func kernelSizeParam(params map[string]interface{}, def int) int {
	if val, ok := params["kernel_size"]; ok {
		if v, ok := val.(float64); ok {
			return int(v)
		}
	}
	return def
}

func validateKernelSize(params map[string]interface{}) error {
	if val, ok := params["kernel_size"]; ok {
		if v, ok := val.(float64); ok {
			if v < 1 || v > 15 {
				return errors.New("kernel_size must be between 1 and 15")
			}
		}
	}
	return nil
}

func init() {
	Register("erosion", NewErosion())
	Register("dilation", NewDilation())
	Register("opening", NewOpening())
	Register("closing", NewClosing())
	Register("median", NewMedianFilter())
}
