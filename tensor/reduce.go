package tensor

import (
	"errors"

	"github.com/vaynelau/ZS3/internal/parallel"
)

// MaxAxis reduces along axis keeping the maxima; the axis is removed from the
// output shape. Gradient is routed to the winning element of each slice.
func MaxAxis(a *Tensor, axis int) (*Tensor, error) {
	return reduceExtremum(a, axis, true)
}

// MinAxis mirrors MaxAxis for minima.
func MinAxis(a *Tensor, axis int) (*Tensor, error) {
	return reduceExtremum(a, axis, false)
}

type axisSpan struct {
	outer, inner, size int
	outShape           []int
}

func resolveAxis(a *Tensor, axis int) (axisSpan, error) {
	var span axisSpan
	rank := len(a.shape)
	if rank == 0 {
		return span, errors.New("reduction requires rank >= 1 tensor")
	}
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		return span, errors.New("axis out of range")
	}
	span.outer = 1
	for i := 0; i < axis; i++ {
		span.outer *= a.shape[i]
	}
	span.inner = 1
	for i := axis + 1; i < rank; i++ {
		span.inner *= a.shape[i]
	}
	span.size = a.shape[axis]
	if span.size == 0 {
		return span, errors.New("cannot reduce over zero-sized axis")
	}
	span.outShape = make([]int, 0, rank-1)
	for i, dim := range a.shape {
		if i == axis {
			continue
		}
		span.outShape = append(span.outShape, dim)
	}
	if len(span.outShape) == 0 {
		span.outShape = []int{1}
	}
	return span, nil
}

func reduceExtremum(a *Tensor, axis int, isMax bool) (*Tensor, error) {
	span, err := resolveAxis(a, axis)
	if err != nil {
		return nil, err
	}
	out := Zeros(span.outShape...)
	winners := make([]int, len(out.data))
	parallel.For(span.outer, func(start, end int) {
		for o := start; o < end; o++ {
			dstBase := o * span.inner
			srcBase := o * span.size * span.inner
			for in := 0; in < span.inner; in++ {
				bestIdx := 0
				bestVal := a.data[srcBase+in]
				for k := 1; k < span.size; k++ {
					candidate := a.data[srcBase+k*span.inner+in]
					if (isMax && candidate > bestVal) || (!isMax && candidate < bestVal) {
						bestVal = candidate
						bestIdx = k
					}
				}
				out.data[dstBase+in] = bestVal
				winners[dstBase+in] = bestIdx
			}
		}
	})
	attachUnaryGrad(out, a, func(grad *Tensor, grads map[*Tensor]*Tensor) {
		g := Zeros(a.shape...)
		for idx, winner := range winners {
			outerIdx := idx / span.inner
			innerIdx := idx % span.inner
			g.data[outerIdx*span.size*span.inner+winner*span.inner+innerIdx] += grad.data[idx]
		}
		accumulate(grads, a, g)
	})
	return out, nil
}

// SumAxis sums elements along the given axis and returns a tensor with that
// axis removed.
func SumAxis(a *Tensor, axis int) (*Tensor, error) {
	span, err := resolveAxis(a, axis)
	if err != nil {
		return nil, err
	}
	out := Zeros(span.outShape...)
	parallel.For(span.outer, func(start, end int) {
		for o := start; o < end; o++ {
			dstBase := o * span.inner
			srcBase := o * span.size * span.inner
			for in := 0; in < span.inner; in++ {
				s := 0.0
				for k := 0; k < span.size; k++ {
					s += a.data[srcBase+k*span.inner+in]
				}
				out.data[dstBase+in] = s
			}
		}
	})
	attachUnaryGrad(out, a, func(grad *Tensor, grads map[*Tensor]*Tensor) {
		g := Zeros(a.shape...)
		for idx := 0; idx < span.outer*span.inner; idx++ {
			outerIdx := idx / span.inner
			innerIdx := idx % span.inner
			base := outerIdx*span.size*span.inner + innerIdx
			for k := 0; k < span.size; k++ {
				g.data[base+k*span.inner] += grad.data[idx]
			}
		}
		accumulate(grads, a, g)
	})
	return out, nil
}

// MeanAxis computes the mean along the given axis via SumAxis.
func MeanAxis(a *Tensor, axis int) (*Tensor, error) {
	rank := len(a.shape)
	resolved := axis
	if resolved < 0 {
		resolved += rank
	}
	s, err := SumAxis(a, axis)
	if err != nil {
		return nil, err
	}
	return MulScalar(s, 1.0/float64(a.shape[resolved])), nil
}
