package tensor

import (
	"math"
	"testing"
)

func TestElementwiseValues(t *testing.T) {
	a := MustNew([]float64{1, 2, 3, 4}, 2, 2)
	b := MustNew([]float64{4, 3, 2, 1}, 2, 2)

	sum, err := Add(a, b)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if !AlmostEqualSlices(sum.Data(), []float64{5, 5, 5, 5}, 1e-12) {
		t.Fatalf("unexpected add result: %v", sum.Data())
	}

	prod, err := Mul(a, b)
	if err != nil {
		t.Fatalf("mul failed: %v", err)
	}
	if !AlmostEqualSlices(prod.Data(), []float64{4, 6, 6, 4}, 1e-12) {
		t.Fatalf("unexpected mul result: %v", prod.Data())
	}

	quot, err := Div(a, b)
	if err != nil {
		t.Fatalf("div failed: %v", err)
	}
	if !AlmostEqualSlices(quot.Data(), []float64{0.25, 2.0 / 3.0, 1.5, 4}, 1e-12) {
		t.Fatalf("unexpected div result: %v", quot.Data())
	}

	if _, err := Add(a, MustNew([]float64{1, 2}, 2, 1)); err == nil {
		t.Fatalf("expected shape mismatch error")
	}
}

func TestSqrtValueAndGradient(t *testing.T) {
	a := MustNew([]float64{4, 9}, 2, 1)
	a.SetRequiresGrad(true)

	r := Sqrt(a)
	if !AlmostEqualSlices(r.Data(), []float64{2, 3}, 1e-12) {
		t.Fatalf("unexpected sqrt result: %v", r.Data())
	}
	if err := Sum(r).Backward(); err != nil {
		t.Fatalf("backward failed: %v", err)
	}
	// d sqrt(x)/dx = 0.5/sqrt(x)
	if !AlmostEqualSlices(a.Grad().Data(), []float64{0.25, 1.0 / 6.0}, 1e-12) {
		t.Fatalf("unexpected sqrt gradient: %v", a.Grad().Data())
	}
}

func TestClampMinGatesGradient(t *testing.T) {
	a := MustNew([]float64{-2, -0.5, 0.5, 3}, 4, 1)
	a.SetRequiresGrad(true)

	c := ClampMin(a, 0)
	if !AlmostEqualSlices(c.Data(), []float64{0, 0, 0.5, 3}, 1e-12) {
		t.Fatalf("unexpected clamp result: %v", c.Data())
	}
	if err := Sum(c).Backward(); err != nil {
		t.Fatalf("backward failed: %v", err)
	}
	if !AlmostEqualSlices(a.Grad().Data(), []float64{0, 0, 1, 1}, 1e-12) {
		t.Fatalf("expected gradient gated below floor: %v", a.Grad().Data())
	}
}

func TestSumMeanGradients(t *testing.T) {
	a := MustNew([]float64{1, 2, 3, 4}, 4, 1)
	a.SetRequiresGrad(true)

	m := Mean(a)
	if v, _ := m.Item(); math.Abs(v-2.5) > 1e-12 {
		t.Fatalf("unexpected mean: %v", v)
	}
	if err := m.Backward(); err != nil {
		t.Fatalf("backward failed: %v", err)
	}
	if !AlmostEqualSlices(a.Grad().Data(), []float64{0.25, 0.25, 0.25, 0.25}, 1e-12) {
		t.Fatalf("unexpected mean gradient: %v", a.Grad().Data())
	}

	a.ZeroGrad()
	s := Sum(a)
	if v, _ := s.Item(); math.Abs(v-10) > 1e-12 {
		t.Fatalf("unexpected sum: %v", v)
	}
	if err := s.Backward(); err != nil {
		t.Fatalf("backward failed: %v", err)
	}
	if !AlmostEqualSlices(a.Grad().Data(), []float64{1, 1, 1, 1}, 1e-12) {
		t.Fatalf("unexpected sum gradient: %v", a.Grad().Data())
	}
}

func TestExpLogPowGradients(t *testing.T) {
	a := MustNew([]float64{0.5, 2}, 2, 1)
	a.SetRequiresGrad(true)

	e := Exp(a)
	if err := Sum(e).Backward(); err != nil {
		t.Fatalf("backward failed: %v", err)
	}
	if !AlmostEqualSlices(a.Grad().Data(), []float64{math.Exp(0.5), math.Exp(2)}, 1e-12) {
		t.Fatalf("unexpected exp gradient: %v", a.Grad().Data())
	}

	a.ZeroGrad()
	l := Log(a)
	if err := Sum(l).Backward(); err != nil {
		t.Fatalf("backward failed: %v", err)
	}
	if !AlmostEqualSlices(a.Grad().Data(), []float64{2, 0.5}, 1e-12) {
		t.Fatalf("unexpected log gradient: %v", a.Grad().Data())
	}

	a.ZeroGrad()
	p := Pow(a, 2)
	if err := Sum(p).Backward(); err != nil {
		t.Fatalf("backward failed: %v", err)
	}
	if !AlmostEqualSlices(a.Grad().Data(), []float64{1, 4}, 1e-12) {
		t.Fatalf("unexpected pow gradient: %v", a.Grad().Data())
	}
}
