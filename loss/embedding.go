package loss

import (
	"errors"

	"github.com/vaynelau/ZS3/tensor"
)

// cosineEps floors the vector norms in the shifted cosine variant so a
// degenerate zero vector does not divide by zero.
const cosineEps = 1e-8

// MaskedMSE is the mean-squared embedding regression loss over pixels whose
// label is not the ignore sentinel: the squared differences are summed over
// every masked (pixel, channel) element and divided by the masked pixel
// count, so the result is channels times the per-element mean. An entirely
// ignored target divides by zero and yields NaN; MaskedMSEMean guards that
// case instead.
func MaskedMSE(prediction *tensor.Tensor, target []int, targetEmbed *tensor.Tensor) (*tensor.Tensor, error) {
	kept, err := embeddingMask(prediction, target, targetEmbed)
	if err != nil {
		return nil, err
	}
	maskSize := float64(len(kept))
	if len(kept) == 0 {
		return tensor.MustNew([]float64{0 / maskSize}, 1), nil
	}
	predRows, embedRows, err := maskedRows(prediction, targetEmbed, kept)
	if err != nil {
		return nil, err
	}
	diff, err := tensor.Sub(predRows, embedRows)
	if err != nil {
		return nil, err
	}
	return tensor.MulScalar(tensor.Sum(tensor.Pow(diff, 2)), 1/maskSize), nil
}

// MaskedMSEMean averages the squared differences over all masked
// (pixel, channel) elements and returns a scalar zero when every pixel is
// ignored.
func MaskedMSEMean(prediction *tensor.Tensor, target []int, targetEmbed *tensor.Tensor) (*tensor.Tensor, error) {
	kept, err := embeddingMask(prediction, target, targetEmbed)
	if err != nil {
		return nil, err
	}
	if len(kept) == 0 {
		return tensor.Zeros(1), nil
	}
	predRows, embedRows, err := maskedRows(prediction, targetEmbed, kept)
	if err != nil {
		return nil, err
	}
	diff, err := tensor.Sub(predRows, embedRows)
	if err != nil {
		return nil, err
	}
	return tensor.Mean(tensor.Pow(diff, 2)), nil
}

// MaskedCosine is the negative-cosine-similarity loss: every pixel vector is
// L2-normalized across channels (no epsilon), then the loss is
// (count - sum(dot)) / count over the masked pixels. Like MaskedMSE, an
// entirely ignored target is unguarded and yields NaN.
func MaskedCosine(prediction *tensor.Tensor, target []int, targetEmbed *tensor.Tensor) (*tensor.Tensor, error) {
	kept, err := embeddingMask(prediction, target, targetEmbed)
	if err != nil {
		return nil, err
	}
	maskSize := float64(len(kept))
	if len(kept) == 0 {
		return tensor.MustNew([]float64{(maskSize - 0) / maskSize}, 1), nil
	}
	predRows, err := flattenSpatial(prediction)
	if err != nil {
		return nil, err
	}
	embedRows, err := flattenSpatial(targetEmbed)
	if err != nil {
		return nil, err
	}
	predNorm, err := normalizeRows(predRows, 0)
	if err != nil {
		return nil, err
	}
	embedNorm, err := normalizeRows(embedRows, 0)
	if err != nil {
		return nil, err
	}
	predKept, err := tensor.TakeRows(predNorm, kept)
	if err != nil {
		return nil, err
	}
	embedKept, err := tensor.TakeRows(embedNorm, kept)
	if err != nil {
		return nil, err
	}
	prod, err := tensor.Mul(predKept, embedKept)
	if err != nil {
		return nil, err
	}
	agreement := tensor.Sum(prod)
	return tensor.MulScalar(tensor.AddScalar(tensor.MulScalar(agreement, -1), maskSize), 1/maskSize), nil
}

// MaskedCosineShifted is the alternate cosine formulation: masked vectors are
// shifted by their per-vector minimum, L2-normalized with an epsilon floor,
// and the loss is the mean of 1 - cosine over masked pixels. An entirely
// ignored target returns a scalar zero.
func MaskedCosineShifted(prediction *tensor.Tensor, target []int, targetEmbed *tensor.Tensor) (*tensor.Tensor, error) {
	kept, err := embeddingMask(prediction, target, targetEmbed)
	if err != nil {
		return nil, err
	}
	if len(kept) == 0 {
		return tensor.Zeros(1), nil
	}
	predRows, embedRows, err := maskedRows(prediction, targetEmbed, kept)
	if err != nil {
		return nil, err
	}
	predShifted, err := minShiftRows(predRows)
	if err != nil {
		return nil, err
	}
	embedShifted, err := minShiftRows(embedRows)
	if err != nil {
		return nil, err
	}
	predNorm, err := normalizeRows(predShifted, cosineEps)
	if err != nil {
		return nil, err
	}
	embedNorm, err := normalizeRows(embedShifted, cosineEps)
	if err != nil {
		return nil, err
	}
	prod, err := tensor.Mul(predNorm, embedNorm)
	if err != nil {
		return nil, err
	}
	cos, err := tensor.SumAxis(prod, 1)
	if err != nil {
		return nil, err
	}
	return tensor.Mean(tensor.AddScalar(tensor.MulScalar(cos, -1), 1)), nil
}

// embeddingMask validates the operand shapes and returns the pixel indices
// whose label is not the ignore sentinel.
func embeddingMask(prediction *tensor.Tensor, target []int, targetEmbed *tensor.Tensor) ([]int, error) {
	predShape := prediction.Shape()
	embedShape := targetEmbed.Shape()
	if len(predShape) != 4 || len(embedShape) != 4 {
		return nil, errors.New("embedding losses expect rank 4 volumes")
	}
	for i, dim := range predShape {
		if dim != embedShape[i] {
			return nil, errors.New("prediction and target embedding shapes must match")
		}
	}
	pixels := predShape[0] * predShape[2] * predShape[3]
	if len(target) != pixels {
		return nil, errors.New("target length must equal batch*height*width")
	}
	kept := make([]int, 0, pixels)
	for i, label := range target {
		if label != DefaultIgnoreIndex {
			kept = append(kept, i)
		}
	}
	return kept, nil
}

func maskedRows(prediction, targetEmbed *tensor.Tensor, kept []int) (*tensor.Tensor, *tensor.Tensor, error) {
	predRows, err := flattenSpatial(prediction)
	if err != nil {
		return nil, nil, err
	}
	embedRows, err := flattenSpatial(targetEmbed)
	if err != nil {
		return nil, nil, err
	}
	predKept, err := tensor.TakeRows(predRows, kept)
	if err != nil {
		return nil, nil, err
	}
	embedKept, err := tensor.TakeRows(embedRows, kept)
	if err != nil {
		return nil, nil, err
	}
	return predKept, embedKept, nil
}

// normalizeRows divides each row by its L2 norm, floored at eps when eps is
// positive.
func normalizeRows(rows *tensor.Tensor, eps float64) (*tensor.Tensor, error) {
	cols := rows.Shape()[1]
	sq, err := tensor.Mul(rows, rows)
	if err != nil {
		return nil, err
	}
	sumSq, err := tensor.SumAxis(sq, 1)
	if err != nil {
		return nil, err
	}
	norm := tensor.Sqrt(sumSq)
	if eps > 0 {
		norm = tensor.ClampMin(norm, eps)
	}
	normCol, err := norm.Reshape(-1, 1)
	if err != nil {
		return nil, err
	}
	broadcast, err := tensor.MatMul(normCol, tensor.Ones(1, cols))
	if err != nil {
		return nil, err
	}
	return tensor.Div(rows, broadcast)
}

// minShiftRows subtracts each row's minimum from the row.
func minShiftRows(rows *tensor.Tensor) (*tensor.Tensor, error) {
	cols := rows.Shape()[1]
	mins, err := tensor.MinAxis(rows, 1)
	if err != nil {
		return nil, err
	}
	minCol, err := mins.Reshape(-1, 1)
	if err != nil {
		return nil, err
	}
	broadcast, err := tensor.MatMul(minCol, tensor.Ones(1, cols))
	if err != nil {
		return nil, err
	}
	return tensor.Sub(rows, broadcast)
}
