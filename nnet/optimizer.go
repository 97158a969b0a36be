package nnet

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Optimizer applies one parameter update from the accumulated gradients.
type Optimizer interface {
	Step(params []*Param)
}

// NewOptimizer constructs the optimizer named in the config.
func NewOptimizer(conf Config) (Optimizer, error) {
	switch conf.Optimizer {
	case "", "sgd":
		return SGD{LearningRate: conf.LearningRate, WeightDecay: conf.WeightDecay}, nil
	case "adam":
		cfg := DefaultAdamConfig()
		cfg.LearningRate = conf.LearningRate
		cfg.WeightDecay = conf.WeightDecay
		return NewAdam(cfg), nil
	default:
		return nil, fmt.Errorf("unknown optimizer: %s", conf.Optimizer)
	}
}

// SGD is plain gradient descent with optional L2 weight decay.
type SGD struct {
	LearningRate float64
	WeightDecay  float64
}

func (s SGD) Step(params []*Param) {
	for _, p := range params {
		w := p.W.RawMatrix().Data
		g := p.Grad.RawMatrix().Data
		for i := range w {
			grad := g[i]
			if s.WeightDecay != 0 {
				grad += s.WeightDecay * w[i]
			}
			w[i] -= s.LearningRate * grad
		}
	}
}

// AdamConfig holds the Adam optimizer hyperparameters.
type AdamConfig struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	WeightDecay  float64
}

// DefaultAdamConfig returns the standard Adam settings.
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		LearningRate: 0.001,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
	}
}

// Adam optimizer with bias corrected first and second moment estimates.
type Adam struct {
	AdamConfig
	step int
	m, v []*mat.Dense
}

func NewAdam(cfg AdamConfig) *Adam {
	return &Adam{AdamConfig: cfg}
}

func (a *Adam) Step(params []*Param) {
	if a.m == nil {
		a.m = make([]*mat.Dense, len(params))
		a.v = make([]*mat.Dense, len(params))
		for i, p := range params {
			r, c := p.W.Dims()
			a.m[i] = mat.NewDense(r, c, nil)
			a.v[i] = mat.NewDense(r, c, nil)
		}
	}
	a.step++
	c1 := 1 - math.Pow(a.Beta1, float64(a.step))
	c2 := 1 - math.Pow(a.Beta2, float64(a.step))
	for i, p := range params {
		w := p.W.RawMatrix().Data
		g := p.Grad.RawMatrix().Data
		m := a.m[i].RawMatrix().Data
		v := a.v[i].RawMatrix().Data
		for j := range w {
			grad := g[j]
			if a.WeightDecay != 0 {
				grad += a.WeightDecay * w[j]
			}
			m[j] = a.Beta1*m[j] + (1-a.Beta1)*grad
			v[j] = a.Beta2*v[j] + (1-a.Beta2)*grad*grad
			mHat := m[j] / c1
			vHat := v[j] / c2
			w[j] -= a.LearningRate * mHat / (math.Sqrt(vHat) + a.Epsilon)
		}
	}
}
