package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/vaynelau/ZS3/loss"
	"github.com/vaynelau/ZS3/tensor"
)

func main() {
	rand.Seed(time.Now().UnixNano())
	n, c, h, w := 1, 3, 7, 7

	logits := tensor.Rand(n, c, h, w)
	logits.SetRequiresGrad(true)
	labels := make([]int, n*h*w)
	for i := range labels {
		labels[i] = rand.Intn(c)
	}

	seg := loss.NewSegmentation(nil, true, true, loss.DefaultIgnoreIndex)
	ce, err := seg.CrossEntropy(logits, labels)
	if err != nil {
		panic(err)
	}
	fmt.Printf("cross entropy      %.6f\n", mustItem(ce))

	plain, err := seg.Focal(logits, labels, 0, nil)
	if err != nil {
		panic(err)
	}
	fmt.Printf("focal gamma=0      %.6f\n", mustItem(plain))

	alpha := 0.5
	focal, err := seg.Focal(logits, labels, 2, &alpha)
	if err != nil {
		panic(err)
	}
	fmt.Printf("focal gamma=2      %.6f\n", mustItem(focal))

	entropy, err := loss.Entropy(logits)
	if err != nil {
		panic(err)
	}
	fmt.Printf("entropy            %.6f\n", mustItem(entropy))

	gen := tensor.Randn(8, 16)
	gmmn := loss.NewGMMN(nil)
	mmd, err := gmmn.MomentLoss(gen, gen)
	if err != nil {
		panic(err)
	}
	fmt.Printf("mmd(self)          %.6f\n", mustItem(mmd))

	embed := tensor.Randn(n, c, h, w)
	mse, err := loss.MaskedMSEMean(logits, labels, embed)
	if err != nil {
		panic(err)
	}
	fmt.Printf("masked mse mean    %.6f\n", mustItem(mse))

	cos, err := loss.MaskedCosineShifted(logits, labels, embed)
	if err != nil {
		panic(err)
	}
	fmt.Printf("masked cosine      %.6f\n", mustItem(cos))

	if err := ce.Backward(); err != nil {
		panic(err)
	}
	grad := logits.Grad()
	fmt.Printf("grad elements      %d\n", grad.Numel())
}

func mustItem(t *tensor.Tensor) float64 {
	v, err := t.Item()
	if err != nil {
		panic(err)
	}
	return v
}
