package tensor

import (
	"errors"

	"github.com/vaynelau/ZS3/internal/parallel"
)

// ChannelsLast rearranges a rank-4 (batch, channels, height, width) tensor
// into (batch, height, width, channels) layout.
func ChannelsLast(a *Tensor) (*Tensor, error) {
	if len(a.shape) != 4 {
		return nil, errors.New("ChannelsLast expects rank 4 tensor")
	}
	n, c, h, w := a.shape[0], a.shape[1], a.shape[2], a.shape[3]
	out := Zeros(n, h, w, c)
	plane := h * w
	parallel.For(n*c, func(start, end int) {
		for nc := start; nc < end; nc++ {
			b := nc / c
			ch := nc % c
			srcBase := nc * plane
			for p := 0; p < plane; p++ {
				out.data[(b*plane+p)*c+ch] = a.data[srcBase+p]
			}
		}
	})
	attachUnaryGrad(out, a, func(grad *Tensor, grads map[*Tensor]*Tensor) {
		g := Zeros(a.shape...)
		parallel.For(n*c, func(start, end int) {
			for nc := start; nc < end; nc++ {
				b := nc / c
				ch := nc % c
				dstBase := nc * plane
				for p := 0; p < plane; p++ {
					g.data[dstBase+p] = grad.data[(b*plane+p)*c+ch]
				}
			}
		})
		accumulate(grads, a, g)
	})
	return out, nil
}

// TakeRows selects the given rows of a rank-2 tensor, in order. Gradient is
// scattered back to the source rows; rows may repeat.
func TakeRows(a *Tensor, rows []int) (*Tensor, error) {
	if len(a.shape) != 2 {
		return nil, errors.New("TakeRows expects rank 2 tensor")
	}
	if len(rows) == 0 {
		return nil, errors.New("TakeRows requires at least one row")
	}
	srcRows, cols := a.shape[0], a.shape[1]
	for _, r := range rows {
		if r < 0 || r >= srcRows {
			return nil, errors.New("row index out of range")
		}
	}
	out := Zeros(len(rows), cols)
	parallel.For(len(rows), func(start, end int) {
		for i := start; i < end; i++ {
			copy(out.data[i*cols:(i+1)*cols], a.data[rows[i]*cols:(rows[i]+1)*cols])
		}
	})
	attachUnaryGrad(out, a, func(grad *Tensor, grads map[*Tensor]*Tensor) {
		g := Zeros(a.shape...)
		for i, r := range rows {
			dst := g.data[r*cols : (r+1)*cols]
			src := grad.data[i*cols : (i+1)*cols]
			for j := range dst {
				dst[j] += src[j]
			}
		}
		accumulate(grads, a, g)
	})
	return out, nil
}
