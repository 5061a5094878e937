package tensor

import (
	"errors"

	"github.com/vaynelau/ZS3/internal/parallel"
)

// VStack concatenates two rank-2 matrices along the row axis. The moment
// matching loss pools generated and real sample matrices this way; no
// other concatenation shape is needed.
func VStack(a, b *Tensor) (*Tensor, error) {
	if len(a.shape) != 2 || len(b.shape) != 2 {
		return nil, errors.New("VStack expects rank 2 tensors")
	}
	if a.shape[1] != b.shape[1] {
		return nil, errors.New("column count mismatch")
	}
	aRows, bRows, cols := a.shape[0], b.shape[0], a.shape[1]
	out := Zeros(aRows+bRows, cols)
	split := aRows * cols
	parallel.For(split, func(start, end int) {
		copy(out.data[start:end], a.data[start:end])
	})
	parallel.For(len(b.data), func(start, end int) {
		copy(out.data[split+start:split+end], b.data[start:end])
	})
	attachBinaryGrad(out, a, b, func(grad *Tensor, grads map[*Tensor]*Tensor, left, right *Tensor) {
		if left.requiresGrad {
			g := Zeros(left.shape...)
			copy(g.data, grad.data[:split])
			accumulate(grads, left, g)
		}
		if right.requiresGrad {
			g := Zeros(right.shape...)
			copy(g.data, grad.data[split:])
			accumulate(grads, right, g)
		}
	})
	return out, nil
}
