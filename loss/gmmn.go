package loss

import (
	"errors"

	"github.com/vaynelau/ZS3/tensor"
)

// defaultSigma is the Gaussian kernel bandwidth set used when none is given.
var defaultSigma = []float64{2, 5, 10, 20, 40, 80}

// GMMN is an unbiased estimator of squared maximum mean discrepancy between
// two empirical samples, summed across a fixed set of Gaussian kernel
// bandwidths. Used as a differentiable distribution-matching loss.
type GMMN struct {
	sigma []float64
}

func NewGMMN(sigma []float64) *GMMN {
	if len(sigma) == 0 {
		sigma = defaultSigma
	}
	return &GMMN{sigma: append([]float64(nil), sigma...)}
}

// MomentLoss computes the MMD between generated and real sample matrices,
// both rank 2 with shape (samples, features). Pairwise squared distances come
// from the Gram-matrix identity ||a-b||^2 = ||a||^2 + ||b||^2 - 2ab, so the
// per-pair kernel score is XX - 0.5*X2 - 0.5*X2'. The accumulated sum is
// clamped at zero before the square root: floating-point cancellation can
// push a matched pair slightly negative, which must not reach sqrt.
func (g *GMMN) MomentLoss(generated, real *tensor.Tensor) (*tensor.Tensor, error) {
	genShape := generated.Shape()
	realShape := real.Shape()
	if len(genShape) != 2 || len(realShape) != 2 {
		return nil, errors.New("MomentLoss expects rank 2 sample matrices")
	}
	if genShape[1] != realShape[1] {
		return nil, errors.New("sample feature dimensions must match")
	}
	m, n := genShape[0], realShape[0]
	rows := m + n

	x, err := tensor.VStack(generated, real)
	if err != nil {
		return nil, err
	}
	xt, err := tensor.Transpose(x)
	if err != nil {
		return nil, err
	}
	gram, err := tensor.MatMul(x, xt)
	if err != nil {
		return nil, err
	}
	sq, err := tensor.Mul(x, x)
	if err != nil {
		return nil, err
	}
	norms, err := tensor.SumAxis(sq, 1)
	if err != nil {
		return nil, err
	}
	normCol, err := norms.Reshape(-1, 1)
	if err != nil {
		return nil, err
	}
	// Broadcast the row-norm column down and across via ones products.
	downCast, err := tensor.MatMul(normCol, tensor.Ones(1, rows))
	if err != nil {
		return nil, err
	}
	normRow, err := tensor.Transpose(normCol)
	if err != nil {
		return nil, err
	}
	acrossCast, err := tensor.MatMul(tensor.Ones(rows, 1), normRow)
	if err != nil {
		return nil, err
	}
	score, err := tensor.Sub(gram, tensor.MulScalar(downCast, 0.5))
	if err != nil {
		return nil, err
	}
	score, err = tensor.Sub(score, tensor.MulScalar(acrossCast, 0.5))
	if err != nil {
		return nil, err
	}

	scale := scaleMatrix(m, n)
	total := tensor.Zeros(1)
	for _, v := range g.sigma {
		kernel := tensor.Exp(tensor.MulScalar(score, 1/v))
		term, err := tensor.Mul(scale, kernel)
		if err != nil {
			return nil, err
		}
		total, err = tensor.Add(total, tensor.Sum(term))
		if err != nil {
			return nil, err
		}
	}
	return tensor.Sqrt(tensor.ClampMin(total, 0)), nil
}

// scaleMatrix forms S = s*s' for the signed scale vector holding +1/N for
// the N real samples and -1/M for the M generated ones, in the combined
// sample order.
func scaleMatrix(m, n int) *tensor.Tensor {
	data := make([]float64, m+n)
	for i := 0; i < n; i++ {
		data[i] = 1.0 / float64(n)
	}
	for i := n; i < n+m; i++ {
		data[i] = -1.0 / float64(m)
	}
	s := tensor.MustNew(data, m+n, 1)
	out, err := tensor.MatMul(s, s.MustTranspose())
	if err != nil {
		panic(err)
	}
	return out
}
