package loss

import (
	"math"
	"testing"

	"github.com/vaynelau/ZS3/tensor"
)

func TestMaskedMSEKnownValue(t *testing.T) {
	prediction := tensor.MustNew([]float64{1, 2}, 1, 2, 1, 1)
	targetEmbed := tensor.MustNew([]float64{3, 1}, 1, 2, 1, 1)

	strict, err := MaskedMSE(prediction, []int{0}, targetEmbed)
	if err != nil {
		t.Fatalf("masked mse failed: %v", err)
	}
	// (1-3)^2 + (2-1)^2 = 5, divided by one masked pixel.
	if got := itemOf(t, strict); math.Abs(got-5) > 1e-12 {
		t.Fatalf("got %v want 5", got)
	}

	mean, err := MaskedMSEMean(prediction, []int{0}, targetEmbed)
	if err != nil {
		t.Fatalf("masked mse mean failed: %v", err)
	}
	if got := itemOf(t, mean); math.Abs(got-2.5) > 1e-12 {
		t.Fatalf("got %v want 2.5", got)
	}
}

func TestMaskedMSEStrictIsChannelsTimesMean(t *testing.T) {
	c := 4
	prediction := tensor.Randn(2, c, 3, 3)
	targetEmbed := tensor.Randn(2, c, 3, 3)
	target := make([]int, 2*3*3)

	strict, err := MaskedMSE(prediction, target, targetEmbed)
	if err != nil {
		t.Fatalf("masked mse failed: %v", err)
	}
	mean, err := MaskedMSEMean(prediction, target, targetEmbed)
	if err != nil {
		t.Fatalf("masked mse mean failed: %v", err)
	}
	s, m := itemOf(t, strict), itemOf(t, mean)
	if math.Abs(s-float64(c)*m) > 1e-9 {
		t.Fatalf("strict variant should equal channels*mean: %v vs %v", s, float64(c)*m)
	}
}

func TestMaskedVariantsOnFullyIgnoredTarget(t *testing.T) {
	prediction := tensor.Randn(1, 3, 2, 2)
	targetEmbed := tensor.Randn(1, 3, 2, 2)
	ignored := []int{DefaultIgnoreIndex, DefaultIgnoreIndex, DefaultIgnoreIndex, DefaultIgnoreIndex}

	mseMean, err := MaskedMSEMean(prediction, ignored, targetEmbed)
	if err != nil {
		t.Fatalf("masked mse mean failed: %v", err)
	}
	if got := itemOf(t, mseMean); got != 0 {
		t.Fatalf("mean variant must return exactly 0, got %v", got)
	}
	cosShifted, err := MaskedCosineShifted(prediction, ignored, targetEmbed)
	if err != nil {
		t.Fatalf("shifted cosine failed: %v", err)
	}
	if got := itemOf(t, cosShifted); got != 0 {
		t.Fatalf("shifted variant must return exactly 0, got %v", got)
	}

	// The strict variants keep the original unguarded division by the zero
	// masked-pixel count.
	mse, err := MaskedMSE(prediction, ignored, targetEmbed)
	if err != nil {
		t.Fatalf("masked mse failed: %v", err)
	}
	if got := itemOf(t, mse); !math.IsNaN(got) {
		t.Fatalf("strict mse should be NaN on an empty mask, got %v", got)
	}
	cos, err := MaskedCosine(prediction, ignored, targetEmbed)
	if err != nil {
		t.Fatalf("masked cosine failed: %v", err)
	}
	if got := itemOf(t, cos); !math.IsNaN(got) {
		t.Fatalf("strict cosine should be NaN on an empty mask, got %v", got)
	}
}

func TestMaskedCosineAlignedEmbeddingsNearZero(t *testing.T) {
	prediction := tensor.Randn(1, 4, 3, 3)
	aligned := tensor.MustNew(prediction.Data(), 1, 4, 3, 3)
	target := make([]int, 9)

	strict, err := MaskedCosine(prediction, target, aligned)
	if err != nil {
		t.Fatalf("masked cosine failed: %v", err)
	}
	if got := itemOf(t, strict); math.Abs(got) > 1e-9 {
		t.Fatalf("cosine of identical vectors should be ~0, got %v", got)
	}

	shifted, err := MaskedCosineShifted(prediction, target, aligned)
	if err != nil {
		t.Fatalf("shifted cosine failed: %v", err)
	}
	if got := itemOf(t, shifted); math.Abs(got) > 1e-9 {
		t.Fatalf("shifted cosine of identical vectors should be ~0, got %v", got)
	}
}

func TestMaskedCosineOrthogonalVectors(t *testing.T) {
	prediction := tensor.MustNew([]float64{1, 0}, 1, 2, 1, 1)
	targetEmbed := tensor.MustNew([]float64{0, 1}, 1, 2, 1, 1)

	strict, err := MaskedCosine(prediction, []int{0}, targetEmbed)
	if err != nil {
		t.Fatalf("masked cosine failed: %v", err)
	}
	if got := itemOf(t, strict); math.Abs(got-1) > 1e-9 {
		t.Fatalf("orthogonal vectors should give loss 1, got %v", got)
	}
}

func TestMaskedLossGradientSkipsIgnoredPixels(t *testing.T) {
	prediction := tensor.MustNew([]float64{1, 2, 3, 4}, 1, 2, 1, 2)
	prediction.SetRequiresGrad(true)
	targetEmbed := tensor.MustNew([]float64{0, 0, 0, 0}, 1, 2, 1, 2)

	loss, err := MaskedMSEMean(prediction, []int{0, DefaultIgnoreIndex}, targetEmbed)
	if err != nil {
		t.Fatalf("masked mse mean failed: %v", err)
	}
	if err := loss.Backward(); err != nil {
		t.Fatalf("backward failed: %v", err)
	}
	grad := prediction.Grad().Data()
	// Pixel 1 occupies offsets 1 and 3 in (1,2,1,2) layout.
	if grad[1] != 0 || grad[3] != 0 {
		t.Fatalf("expected zero gradient at ignored pixel: %v", grad)
	}
	if grad[0] == 0 || grad[2] == 0 {
		t.Fatalf("expected gradient at masked-in pixel: %v", grad)
	}
}

func TestMaskedLossesAreFinite(t *testing.T) {
	prediction := tensor.Randn(2, 3, 4, 4)
	targetEmbed := tensor.Randn(2, 3, 4, 4)
	target := make([]int, 2*4*4)
	for i := range target {
		if i%5 == 0 {
			target[i] = DefaultIgnoreIndex
		}
	}

	checks := []struct {
		name string
		fn   func(*tensor.Tensor, []int, *tensor.Tensor) (*tensor.Tensor, error)
	}{
		{"mse", MaskedMSE},
		{"mse_mean", MaskedMSEMean},
		{"cosine", MaskedCosine},
		{"cosine_shifted", MaskedCosineShifted},
	}
	for _, check := range checks {
		loss, err := check.fn(prediction, target, targetEmbed)
		if err != nil {
			t.Fatalf("%s failed: %v", check.name, err)
		}
		if got := itemOf(t, loss); math.IsNaN(got) || math.IsInf(got, 0) {
			t.Fatalf("%s produced non-finite loss: %v", check.name, got)
		}
	}
}

func TestMaskedLossValidation(t *testing.T) {
	if _, err := MaskedMSE(tensor.Randn(1, 2, 2), []int{0}, tensor.Randn(1, 2, 2, 2)); err == nil {
		t.Fatalf("expected rank error")
	}
	if _, err := MaskedMSE(tensor.Randn(1, 2, 2, 2), make([]int, 4), tensor.Randn(1, 3, 2, 2)); err == nil {
		t.Fatalf("expected shape mismatch error")
	}
	if _, err := MaskedCosine(tensor.Randn(1, 2, 2, 2), []int{0}, tensor.Randn(1, 2, 2, 2)); err == nil {
		t.Fatalf("expected target length error")
	}
}
