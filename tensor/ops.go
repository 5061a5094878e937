package tensor

import (
	"errors"
	"math"

	"github.com/vaynelau/ZS3/internal/parallel"
)

func Add(a, b *Tensor) (*Tensor, error) {
	if err := ensureSameShape(a, b); err != nil {
		return nil, err
	}
	out := Zeros(a.shape...)
	parallel.For(len(out.data), func(start, end int) {
		for i := start; i < end; i++ {
			out.data[i] = a.data[i] + b.data[i]
		}
	})
	attachBinaryGrad(out, a, b, func(grad *Tensor, grads map[*Tensor]*Tensor, left, right *Tensor) {
		if left.requiresGrad {
			accumulate(grads, left, grad)
		}
		if right.requiresGrad {
			accumulate(grads, right, grad)
		}
	})
	return out, nil
}

func Sub(a, b *Tensor) (*Tensor, error) {
	if err := ensureSameShape(a, b); err != nil {
		return nil, err
	}
	out := Zeros(a.shape...)
	parallel.For(len(out.data), func(start, end int) {
		for i := start; i < end; i++ {
			out.data[i] = a.data[i] - b.data[i]
		}
	})
	attachBinaryGrad(out, a, b, func(grad *Tensor, grads map[*Tensor]*Tensor, left, right *Tensor) {
		if left.requiresGrad {
			accumulate(grads, left, grad)
		}
		if right.requiresGrad {
			flipped := grad.Clone()
			flipped.Scale(-1)
			accumulate(grads, right, flipped)
		}
	})
	return out, nil
}

func Mul(a, b *Tensor) (*Tensor, error) {
	if err := ensureSameShape(a, b); err != nil {
		return nil, err
	}
	out := Zeros(a.shape...)
	parallel.For(len(out.data), func(start, end int) {
		for i := start; i < end; i++ {
			out.data[i] = a.data[i] * b.data[i]
		}
	})
	attachBinaryGrad(out, a, b, func(grad *Tensor, grads map[*Tensor]*Tensor, left, right *Tensor) {
		if left.requiresGrad {
			accumulate(grads, left, hadamard(grad, right.Detach()))
		}
		if right.requiresGrad {
			accumulate(grads, right, hadamard(grad, left.Detach()))
		}
	})
	return out, nil
}

func Div(a, b *Tensor) (*Tensor, error) {
	if err := ensureSameShape(a, b); err != nil {
		return nil, err
	}
	out := Zeros(a.shape...)
	parallel.For(len(out.data), func(start, end int) {
		for i := start; i < end; i++ {
			out.data[i] = a.data[i] / b.data[i]
		}
	})
	attachBinaryGrad(out, a, b, func(grad *Tensor, grads map[*Tensor]*Tensor, left, right *Tensor) {
		if left.requiresGrad {
			accumulate(grads, left, hadamard(grad, reciprocal(right.Detach())))
		}
		if right.requiresGrad {
			numerator := hadamard(grad, left.Detach())
			parallel.For(len(numerator.data), func(start, end int) {
				for i := start; i < end; i++ {
					numerator.data[i] = -numerator.data[i] / (b.data[i] * b.data[i])
				}
			})
			accumulate(grads, right, numerator)
		}
	})
	return out, nil
}

func Pow(a *Tensor, value float64) *Tensor {
	out := Zeros(a.shape...)
	parallel.For(len(out.data), func(start, end int) {
		for i := start; i < end; i++ {
			out.data[i] = math.Pow(a.data[i], value)
		}
	})
	attachUnaryGrad(out, a, func(grad *Tensor, grads map[*Tensor]*Tensor) {
		coef := Zeros(a.shape...)
		parallel.For(len(coef.data), func(start, end int) {
			for i := start; i < end; i++ {
				coef.data[i] = value * math.Pow(a.data[i], value-1)
			}
		})
		accumulate(grads, a, hadamard(grad, coef))
	})
	return out
}

func Exp(a *Tensor) *Tensor {
	out := Zeros(a.shape...)
	parallel.For(len(out.data), func(start, end int) {
		for i := start; i < end; i++ {
			out.data[i] = math.Exp(a.data[i])
		}
	})
	attachUnaryGrad(out, a, func(grad *Tensor, grads map[*Tensor]*Tensor) {
		accumulate(grads, a, hadamard(grad, out.Detach()))
	})
	return out
}

func Log(a *Tensor) *Tensor {
	out := Zeros(a.shape...)
	parallel.For(len(out.data), func(start, end int) {
		for i := start; i < end; i++ {
			out.data[i] = math.Log(a.data[i])
		}
	})
	attachUnaryGrad(out, a, func(grad *Tensor, grads map[*Tensor]*Tensor) {
		accumulate(grads, a, hadamard(grad, reciprocal(a.Detach())))
	})
	return out
}

func Sqrt(a *Tensor) *Tensor {
	out := Zeros(a.shape...)
	parallel.For(len(out.data), func(start, end int) {
		for i := start; i < end; i++ {
			out.data[i] = math.Sqrt(a.data[i])
		}
	})
	attachUnaryGrad(out, a, func(grad *Tensor, grads map[*Tensor]*Tensor) {
		coef := Zeros(a.shape...)
		parallel.For(len(coef.data), func(start, end int) {
			for i := start; i < end; i++ {
				coef.data[i] = 0.5 / out.data[i]
			}
		})
		accumulate(grads, a, hadamard(grad, coef))
	})
	return out
}

// ClampMin replaces elements below floor with floor. Gradient flows only
// through elements at or above the floor.
func ClampMin(a *Tensor, floor float64) *Tensor {
	out := Zeros(a.shape...)
	parallel.For(len(out.data), func(start, end int) {
		for i := start; i < end; i++ {
			v := a.data[i]
			if v < floor {
				v = floor
			}
			out.data[i] = v
		}
	})
	attachUnaryGrad(out, a, func(grad *Tensor, grads map[*Tensor]*Tensor) {
		gated := Zeros(a.shape...)
		parallel.For(len(gated.data), func(start, end int) {
			for i := start; i < end; i++ {
				if a.data[i] >= floor {
					gated.data[i] = grad.data[i]
				}
			}
		})
		accumulate(grads, a, gated)
	})
	return out
}

func Sum(a *Tensor) *Tensor {
	val := 0.0
	for _, v := range a.data {
		val += v
	}
	out := MustNew([]float64{val}, 1)
	attachUnaryGrad(out, a, func(grad *Tensor, grads map[*Tensor]*Tensor) {
		accumulate(grads, a, Full(grad.data[0], a.shape...))
	})
	return out
}

func Mean(a *Tensor) *Tensor {
	scale := 1.0 / float64(a.Numel())
	s := Sum(a.Detach())
	s.data[0] *= scale
	attachUnaryGrad(s, a, func(grad *Tensor, grads map[*Tensor]*Tensor) {
		accumulate(grads, a, Full(grad.data[0]*scale, a.shape...))
	})
	return s
}

func hadamard(a, b *Tensor) *Tensor {
	if err := ensureSameShape(a, b); err != nil {
		panic(err)
	}
	out := Zeros(a.shape...)
	parallel.For(len(out.data), func(start, end int) {
		for i := start; i < end; i++ {
			out.data[i] = a.data[i] * b.data[i]
		}
	})
	return out
}

func reciprocal(a *Tensor) *Tensor {
	out := Zeros(a.shape...)
	parallel.For(len(out.data), func(start, end int) {
		for i := start; i < end; i++ {
			out.data[i] = 1.0 / a.data[i]
		}
	})
	return out
}

func attachUnaryGrad(out, a *Tensor, backward func(grad *Tensor, grads map[*Tensor]*Tensor)) {
	if !a.requiresGrad {
		return
	}
	out.requiresGrad = true
	out.parents = []*Tensor{a}
	out.node = &node{backward: backward}
}

func attachBinaryGrad(out, a, b *Tensor, backward func(grad *Tensor, grads map[*Tensor]*Tensor, left, right *Tensor)) {
	if !(a.requiresGrad || b.requiresGrad) {
		return
	}
	out.requiresGrad = true
	parents := make([]*Tensor, 0, 2)
	if a.requiresGrad {
		parents = append(parents, a)
	}
	if b.requiresGrad {
		parents = append(parents, b)
	}
	out.parents = parents
	out.node = &node{
		backward: func(grad *Tensor, grads map[*Tensor]*Tensor) {
			backward(grad, grads, a, b)
		},
	}
}

func ensureSameShape(a, b *Tensor) error {
	if len(a.shape) != len(b.shape) {
		return errors.New("shape mismatch")
	}
	for i, dim := range a.shape {
		if dim != b.shape[i] {
			return errors.New("shape mismatch")
		}
	}
	return nil
}
