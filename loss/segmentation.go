package loss

import (
	"errors"
	"fmt"

	"github.com/vaynelau/ZS3/tensor"
)

// DefaultIgnoreIndex is the label value marking a pixel as unlabeled. Such
// pixels contribute to neither the loss value nor the gradient.
const DefaultIgnoreIndex = 255

// Func evaluates a loss over rank-4 class scores (batch, classes, height,
// width) and per-pixel integer labels of length batch*height*width.
type Func func(logit *tensor.Tensor, target []int) (*tensor.Tensor, error)

// Segmentation bundles the fixed configuration shared by the supervised
// per-pixel classification losses.
type Segmentation struct {
	weight       []float64
	sizeAverage  bool
	batchAverage bool
	ignoreIndex  int
}

// NewSegmentation builds a loss configuration. weight may be nil for
// unweighted classes; sizeAverage selects mean over sum reduction and
// batchAverage divides the result by the batch size.
func NewSegmentation(weight []float64, sizeAverage, batchAverage bool, ignoreIndex int) *Segmentation {
	return &Segmentation{
		weight:       append([]float64(nil), weight...),
		sizeAverage:  sizeAverage,
		batchAverage: batchAverage,
		ignoreIndex:  ignoreIndex,
	}
}

// BuildLoss resolves a mode string to the matching loss function. Focal is
// bound with its customary gamma=2, alpha=0.5.
func (s *Segmentation) BuildLoss(mode string) (Func, error) {
	switch mode {
	case "ce":
		return s.CrossEntropy, nil
	case "focal":
		alpha := 0.5
		return func(logit *tensor.Tensor, target []int) (*tensor.Tensor, error) {
			return s.Focal(logit, target, 2, &alpha)
		}, nil
	case "ce_finetune":
		return s.CrossEntropyFinetune, nil
	default:
		return nil, fmt.Errorf("unsupported loss mode %q", mode)
	}
}

// CrossEntropy is multi-class cross-entropy over the channel dimension with
// optional per-class weights and ignore-index masking. With sizeAverage the
// reduction is sum(w_i * nll_i) / sum(w_i), matching the usual weighted-mean
// convention; otherwise the weighted sum is returned as is.
func (s *Segmentation) CrossEntropy(logit *tensor.Tensor, target []int) (*tensor.Tensor, error) {
	loss, batch, err := s.crossEntropy(logit, target, true)
	if err != nil {
		return nil, err
	}
	if s.batchAverage {
		loss = tensor.MulScalar(loss, 1/float64(batch))
	}
	return loss, nil
}

// CrossEntropyFinetune behaves like CrossEntropy but ignores the configured
// class weights; the batch divisor is read from the logit shape.
func (s *Segmentation) CrossEntropyFinetune(logit *tensor.Tensor, target []int) (*tensor.Tensor, error) {
	loss, batch, err := s.crossEntropy(logit, target, false)
	if err != nil {
		return nil, err
	}
	if s.batchAverage {
		loss = tensor.MulScalar(loss, 1/float64(batch))
	}
	return loss, nil
}

// Focal reweights the reduced cross-entropy by (1-pt)^gamma with
// pt = exp(-CE); alpha, when non-nil, scales the log-probability term. The
// reweighting deliberately applies after the cross-entropy reduction, so
// gamma=0 with nil alpha reproduces CrossEntropy exactly.
func (s *Segmentation) Focal(logit *tensor.Tensor, target []int, gamma float64, alpha *float64) (*tensor.Tensor, error) {
	ce, batch, err := s.crossEntropy(logit, target, true)
	if err != nil {
		return nil, err
	}
	logpt := tensor.MulScalar(ce, -1)
	pt := tensor.Exp(logpt)
	if alpha != nil {
		logpt = tensor.MulScalar(logpt, *alpha)
	}
	modulator := tensor.Pow(tensor.AddScalar(tensor.MulScalar(pt, -1), 1), gamma)
	scaled, err := tensor.Mul(modulator, logpt)
	if err != nil {
		return nil, err
	}
	loss := tensor.MulScalar(scaled, -1)
	if s.batchAverage {
		loss = tensor.MulScalar(loss, 1/float64(batch))
	}
	return loss, nil
}

// crossEntropy computes the reduced cross-entropy without the batch-average
// division, which callers apply once at the end.
func (s *Segmentation) crossEntropy(logit *tensor.Tensor, target []int, useWeight bool) (*tensor.Tensor, int, error) {
	shape := logit.Shape()
	if len(shape) != 4 {
		return nil, 0, errors.New("cross-entropy expects rank 4 logits")
	}
	n, c := shape[0], shape[1]
	pixels := n * shape[2] * shape[3]
	if len(target) != pixels {
		return nil, 0, errors.New("target length must equal batch*height*width")
	}
	weight := s.weight
	if !useWeight {
		weight = nil
	}
	if weight != nil && len(weight) != c {
		return nil, 0, errors.New("class weight length must equal channel count")
	}

	rows, err := flattenSpatial(logit)
	if err != nil {
		return nil, 0, err
	}
	logProb, err := tensor.LogSoftmax(rows, 1)
	if err != nil {
		return nil, 0, err
	}

	kept := make([]int, 0, pixels)
	for i, label := range target {
		if label == s.ignoreIndex {
			continue
		}
		if label < 0 || label >= c {
			return nil, 0, errors.New("target class index out of range")
		}
		kept = append(kept, i)
	}
	if len(kept) == 0 {
		return nil, 0, errors.New("all pixels carry the ignore label")
	}

	keptLog, err := tensor.TakeRows(logProb, kept)
	if err != nil {
		return nil, 0, err
	}
	classIdx := make([]float64, len(kept))
	weights := make([]float64, len(kept))
	weightSum := 0.0
	for i, row := range kept {
		label := target[row]
		classIdx[i] = float64(label)
		w := 1.0
		if weight != nil {
			w = weight[label]
		}
		weights[i] = w
		weightSum += w
	}
	picked, err := tensor.Gather(keptLog, 1, tensor.MustNew(classIdx, len(kept), 1))
	if err != nil {
		return nil, 0, err
	}
	weighted, err := tensor.Mul(picked, tensor.MustNew(weights, len(kept), 1))
	if err != nil {
		return nil, 0, err
	}
	loss := tensor.MulScalar(tensor.Sum(weighted), -1)
	if s.sizeAverage {
		loss = tensor.MulScalar(loss, 1/weightSum)
	}
	return loss, n, nil
}

// flattenSpatial reorders a rank-4 (n, c, h, w) tensor to channels-last and
// flattens it to (n*h*w, c) rows, one row per pixel.
func flattenSpatial(t *tensor.Tensor) (*tensor.Tensor, error) {
	cl, err := tensor.ChannelsLast(t)
	if err != nil {
		return nil, err
	}
	return cl.Reshape(-1, t.Shape()[1])
}
