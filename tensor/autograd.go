package tensor

import (
	"errors"

	"github.com/vaynelau/ZS3/internal/parallel"
)

// Backward runs reverse-mode accumulation from t, seeding with ones.
// Gradients land on every reachable tensor that requires grad; repeated
// calls keep accumulating into Grad.
func (t *Tensor) Backward() error {
	if t == nil {
		return errors.New("nil tensor")
	}
	if !t.requiresGrad {
		return errors.New("tensor does not require grad")
	}
	order := topoOrder(t)
	grads := map[*Tensor]*Tensor{t: Full(1, t.shape...)}
	for i := len(order) - 1; i >= 0; i-- {
		cur := order[i]
		grad, ok := grads[cur]
		if !ok {
			continue
		}
		if cur.grad == nil {
			cur.grad = grad.Clone()
		} else {
			addInPlace(cur.grad, grad)
		}
		if cur.node != nil {
			cur.node.backward(grad, grads)
		}
	}
	return nil
}

// topoOrder lists the graph parents-first. Loss graphs chain one op per
// pixel reduction step and can get long, so the walk is iterative rather
// than recursive.
func topoOrder(root *Tensor) []*Tensor {
	type frame struct {
		t       *Tensor
		emitted bool
	}
	seen := map[*Tensor]bool{root: true}
	stack := []frame{{t: root}}
	var order []*Tensor
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.emitted {
			order = append(order, top.t)
			stack = stack[:len(stack)-1]
			continue
		}
		top.emitted = true
		for _, parent := range top.t.parents {
			if parent == nil || seen[parent] {
				continue
			}
			seen[parent] = true
			stack = append(stack, frame{t: parent})
		}
	}
	return order
}

func accumulate(grads map[*Tensor]*Tensor, target *Tensor, value *Tensor) {
	if target == nil || value == nil {
		return
	}
	if existing, ok := grads[target]; ok {
		addInPlace(existing, value)
		return
	}
	grads[target] = value.Clone()
}

func addInPlace(dst, src *Tensor) {
	if err := ensureSameShape(dst, src); err != nil {
		panic(err)
	}
	parallel.For(len(dst.data), func(start, end int) {
		for i := start; i < end; i++ {
			dst.data[i] += src.data[i]
		}
	})
}
