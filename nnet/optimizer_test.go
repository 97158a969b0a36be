package nnet

import (
	"math"
	"testing"
)

func TestSGDStep(t *testing.T) {
	p := newParam(1, 2)
	p.W.Set(0, 0, 1)
	p.W.Set(0, 1, -1)
	p.Grad.Set(0, 0, 0.5)
	p.Grad.Set(0, 1, 0.25)
	SGD{LearningRate: 0.1}.Step([]*Param{p})
	if w := p.W.At(0, 0); math.Abs(w-0.95) > 1e-12 {
		t.Errorf("w[0] = %v, want 0.95", w)
	}
	if w := p.W.At(0, 1); math.Abs(w+1.025) > 1e-12 {
		t.Errorf("w[1] = %v, want -1.025", w)
	}
}

func TestSGDWeightDecay(t *testing.T) {
	p := newParam(1, 1)
	p.W.Set(0, 0, 2)
	SGD{LearningRate: 0.1, WeightDecay: 0.5}.Step([]*Param{p})
	// grad is zero so only the decay term applies
	if w := p.W.At(0, 0); math.Abs(w-1.9) > 1e-12 {
		t.Errorf("w = %v, want 1.9", w)
	}
}

func TestAdamFirstStep(t *testing.T) {
	p := newParam(1, 3)
	p.Grad.SetRow(0, []float64{0.5, -2, 1e-12})
	a := NewAdam(DefaultAdamConfig())
	a.Step([]*Param{p})
	// after bias correction the first update is lr * sign(grad) for any
	// gradient much larger than epsilon
	want := []float64{-0.001, 0.001, 0}
	for i, v := range p.W.RawMatrix().Data {
		if math.Abs(v-want[i]) > 1e-4 {
			t.Errorf("w[%d] = %v, want %v", i, v, want[i])
		}
	}
}

func TestAdamConverges(t *testing.T) {
	// minimise (w-3)^2 with gradient 2(w-3)
	p := newParam(1, 1)
	a := NewAdam(AdamConfig{LearningRate: 0.1, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8})
	for i := 0; i < 500; i++ {
		w := p.W.At(0, 0)
		p.Grad.Set(0, 0, 2*(w-3))
		a.Step([]*Param{p})
	}
	if w := p.W.At(0, 0); math.Abs(w-3) > 0.01 {
		t.Errorf("w = %v, want 3", w)
	}
}

func TestNewOptimizer(t *testing.T) {
	if _, err := NewOptimizer(Config{Optimizer: "sgd", LearningRate: 0.1}); err != nil {
		t.Error(err)
	}
	if _, err := NewOptimizer(Config{Optimizer: "adam", LearningRate: 0.1}); err != nil {
		t.Error(err)
	}
	if _, err := NewOptimizer(Config{Optimizer: "bogus"}); err == nil {
		t.Error("expected error for unknown optimizer")
	}
}
