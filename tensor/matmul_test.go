package tensor

import "testing"

func TestMatMulValueAndGradient(t *testing.T) {
	a := MustNew([]float64{1, 2, 3, 4}, 2, 2)
	b := MustNew([]float64{5, 6, 7, 8}, 2, 2)
	a.SetRequiresGrad(true)
	b.SetRequiresGrad(true)

	out, err := MatMul(a, b)
	if err != nil {
		t.Fatalf("matmul failed: %v", err)
	}
	if !AlmostEqualSlices(out.Data(), []float64{19, 22, 43, 50}, 1e-12) {
		t.Fatalf("unexpected matmul result: %v", out.Data())
	}

	if err := Sum(out).Backward(); err != nil {
		t.Fatalf("backward failed: %v", err)
	}
	// dL/dA = ones * B', dL/dB = A' * ones for L = sum(AB).
	if !AlmostEqualSlices(a.Grad().Data(), []float64{11, 15, 11, 15}, 1e-12) {
		t.Fatalf("unexpected grad A: %v", a.Grad().Data())
	}
	if !AlmostEqualSlices(b.Grad().Data(), []float64{4, 4, 6, 6}, 1e-12) {
		t.Fatalf("unexpected grad B: %v", b.Grad().Data())
	}
}

func TestTransposeRoundTrip(t *testing.T) {
	a := MustNew([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	a.SetRequiresGrad(true)

	tr, err := Transpose(a)
	if err != nil {
		t.Fatalf("transpose failed: %v", err)
	}
	if !AlmostEqualSlices(tr.Data(), []float64{1, 4, 2, 5, 3, 6}, 1e-12) {
		t.Fatalf("unexpected transpose: %v", tr.Data())
	}
	shape := tr.Shape()
	if shape[0] != 3 || shape[1] != 2 {
		t.Fatalf("unexpected transpose shape: %v", shape)
	}

	if err := Sum(tr).Backward(); err != nil {
		t.Fatalf("backward failed: %v", err)
	}
	if !AlmostEqualSlices(a.Grad().Data(), []float64{1, 1, 1, 1, 1, 1}, 1e-12) {
		t.Fatalf("unexpected transpose gradient: %v", a.Grad().Data())
	}
}

func TestMatMulErrors(t *testing.T) {
	a := MustNew([]float64{1, 2, 3, 4}, 2, 2)
	b := MustNew([]float64{1, 2, 3}, 3, 1)
	if _, err := MatMul(a, b); err == nil {
		t.Fatalf("expected incompatible shapes error")
	}
	if _, err := Transpose(MustNew([]float64{1, 2}, 2)); err == nil {
		t.Fatalf("expected rank error")
	}
}
