package loss

import (
	"errors"
	"math"

	"github.com/vaynelau/ZS3/tensor"
)

// entropyFloor keeps log2 finite when the softmax saturates to exact zero.
const entropyFloor = 1e-30

// Entropy computes the average per-pixel Shannon entropy of the channel
// softmax, normalized by the maximum log2(channels) so the result lies in
// [0, 1]. The input must be rank 4 (batch, channels, height, width).
func Entropy(v *tensor.Tensor) (*tensor.Tensor, error) {
	shape := v.Shape()
	if len(shape) != 4 {
		return nil, errors.New("Entropy expects rank 4 tensor")
	}
	n, c, h, w := shape[0], shape[1], shape[2], shape[3]
	rows, err := flattenSpatial(v)
	if err != nil {
		return nil, err
	}
	summed, err := entropySum(rows)
	if err != nil {
		return nil, err
	}
	return tensor.MulScalar(summed, -1/(float64(n*h*w)*math.Log2(float64(c)))), nil
}

// EntropyMasked restricts the entropy computation to the positions selected
// by mask (one flag per pixel in batch-row order); the normalizer uses the
// selected-position count instead of the full pixel count.
func EntropyMasked(v *tensor.Tensor, mask []bool) (*tensor.Tensor, error) {
	shape := v.Shape()
	if len(shape) != 4 {
		return nil, errors.New("EntropyMasked expects rank 4 tensor")
	}
	c := shape[1]
	pixels := shape[0] * shape[2] * shape[3]
	if len(mask) != pixels {
		return nil, errors.New("mask length must equal batch*height*width")
	}
	kept := make([]int, 0, pixels)
	for i, keep := range mask {
		if keep {
			kept = append(kept, i)
		}
	}
	if len(kept) == 0 {
		return nil, errors.New("mask selects no positions")
	}
	rows, err := flattenSpatial(v)
	if err != nil {
		return nil, err
	}
	selected, err := tensor.TakeRows(rows, kept)
	if err != nil {
		return nil, err
	}
	summed, err := entropySum(selected)
	if err != nil {
		return nil, err
	}
	return tensor.MulScalar(summed, -1/(float64(len(kept))*math.Log2(float64(c)))), nil
}

// entropySum returns sum(p * log2(p + floor)) over softmaxed rows; callers
// negate and normalize.
func entropySum(rows *tensor.Tensor) (*tensor.Tensor, error) {
	soft, err := tensor.Softmax(rows, 1)
	if err != nil {
		return nil, err
	}
	log2p := tensor.MulScalar(tensor.Log(tensor.AddScalar(soft, entropyFloor)), 1/math.Ln2)
	prod, err := tensor.Mul(soft, log2p)
	if err != nil {
		return nil, err
	}
	return tensor.Sum(prod), nil
}
