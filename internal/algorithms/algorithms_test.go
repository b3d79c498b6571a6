package algorithms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func square(size, from, to int) gocv.Mat {
	m := gocv.Zeros(size, size, gocv.MatTypeCV8U)
	for r := from; r < to; r++ {
		for c := from; c < to; c++ {
			m.SetUCharAt(r, c, 255)
		}
	}
	return m
}

func TestNewChainRejectsUnknownRefiner(t *testing.T) {
	_, err := NewChain([]string{"opening", "sharpen"}, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sharpen")
}

func TestNewChainValidatesKernel(t *testing.T) {
	_, err := NewChain([]string{"closing"}, 31)
	assert.Error(t, err)

	c, err := NewChain([]string{"opening", "closing"}, 5)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())
	assert.Equal(t, 5.0, c.Steps()[0].Params["kernel_size"])
}

func TestNewChainRaisesSmallKernelForMedian(t *testing.T) {
	for _, size := range []int{1, 2} {
		c, err := NewChain([]string{"opening", "median"}, size)
		require.NoError(t, err, "kernel %d", size)
		assert.Equal(t, float64(size), c.Steps()[0].Params["kernel_size"])
		assert.Equal(t, 3.0, c.Steps()[1].Params["kernel_size"])
	}

	c, err := NewChain([]string{"median"}, 7)
	require.NoError(t, err)
	assert.Equal(t, 7.0, c.Steps()[0].Params["kernel_size"])
}

func TestMedianRefinesWithSmallestKernel(t *testing.T) {
	c, err := NewChain([]string{"median"}, 1)
	require.NoError(t, err)

	mask := square(20, 5, 15)
	defer mask.Close()
	out, err := c.Apply(mask)
	require.NoError(t, err)
	defer out.Close()
	assert.Equal(t, uint8(255), out.GetUCharAt(10, 10))
	assert.Equal(t, uint8(0), out.GetUCharAt(0, 0))
}

func TestNilChainIsEmpty(t *testing.T) {
	var c *Chain
	assert.Zero(t, c.Len())
	assert.Empty(t, c.Steps())
}

func TestOpeningRemovesSpeckle(t *testing.T) {
	mask := square(20, 5, 15)
	defer mask.Close()
	mask.SetUCharAt(1, 18, 255)

	c, err := NewChain([]string{"opening"}, 3)
	require.NoError(t, err)
	out, err := c.Apply(mask)
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, uint8(0), out.GetUCharAt(1, 18))
	assert.Equal(t, uint8(255), out.GetUCharAt(10, 10))
	assert.Equal(t, uint8(255), mask.GetUCharAt(1, 18), "input left untouched")
}

func TestClosingFillsHole(t *testing.T) {
	mask := square(20, 4, 16)
	defer mask.Close()
	mask.SetUCharAt(10, 10, 0)

	out, err := Apply("closing", mask, map[string]interface{}{"kernel_size": 3.0})
	require.NoError(t, err)
	defer out.Close()
	assert.Equal(t, uint8(255), out.GetUCharAt(10, 10))
}

func TestMedianKeepsMaskBinary(t *testing.T) {
	mask := square(16, 3, 12)
	defer mask.Close()

	out, err := Apply("median", mask, map[string]interface{}{"kernel_size": 4.0})
	require.NoError(t, err)
	defer out.Close()

	for r := 0; r < 16; r++ {
		for c := 0; c < 16; c++ {
			v := out.GetUCharAt(r, c)
			assert.True(t, v == 0 || v == 255, "pixel (%d,%d)=%d", r, c, v)
		}
	}
}

func TestApplyEmptyMask(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()
	_, err := Apply("erosion", empty, nil)
	assert.Error(t, err)
}
