package neural_network

import (
	"fmt"
	"math"
	"strings"

	fireErrors "github.com/ezoic/firearea/pkg/errors"
)

// Optimizer names accepted by MLPRegressor.
const (
	OptimizerAdam    = "adam"
	OptimizerSGD     = "sgd"
	OptimizerRMSprop = "rmsprop"
)

// DefaultLearningRate returns the learning rate used when none is configured.
func DefaultLearningRate(optimizer string) (float64, error) {
	switch strings.ToLower(optimizer) {
	case OptimizerAdam:
		return 1e-3, nil
	case OptimizerSGD:
		return 1e-2, nil
	case OptimizerRMSprop:
		return 1e-3, nil
	}
	return 0, fireErrors.NewValueError("DefaultLearningRate", fmt.Sprintf("unknown optimizer %q", optimizer))
}

// Optimizer updates parameter slices in place from their gradients. Slot i of
// params and grads always refers to the same tensor across calls.
type Optimizer interface {
	Name() string
	Update(params, grads [][]float64)
}

// NewOptimizer builds the named optimizer. lr <= 0 selects the default rate.
func NewOptimizer(name string, lr float64) (Optimizer, error) {
	if lr <= 0 {
		d, err := DefaultLearningRate(name)
		if err != nil {
			return nil, err
		}
		lr = d
	}
	switch strings.ToLower(name) {
	case OptimizerAdam:
		return &adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-7}, nil
	case OptimizerSGD:
		return &sgd{lr: lr}, nil
	case OptimizerRMSprop:
		return &rmsprop{lr: lr, rho: 0.9, eps: 1e-7}, nil
	}
	return nil, fireErrors.NewValueError("NewOptimizer", fmt.Sprintf("unknown optimizer %q", name))
}

type sgd struct {
	lr float64
}

func (o *sgd) Name() string { return OptimizerSGD }

func (o *sgd) Update(params, grads [][]float64) {
	for s := range params {
		p, g := params[s], grads[s]
		for i := range p {
			p[i] -= o.lr * g[i]
		}
	}
}

type adam struct {
	lr, beta1, beta2, eps float64

	t    int
	m, v [][]float64
}

func (o *adam) Name() string { return OptimizerAdam }

func (o *adam) Update(params, grads [][]float64) {
	if o.m == nil {
		o.m = zerosLike(params)
		o.v = zerosLike(params)
	}
	o.t++
	lrT := o.lr * math.Sqrt(1-math.Pow(o.beta2, float64(o.t))) / (1 - math.Pow(o.beta1, float64(o.t)))
	for s := range params {
		p, g, m, v := params[s], grads[s], o.m[s], o.v[s]
		for i := range p {
			m[i] = o.beta1*m[i] + (1-o.beta1)*g[i]
			v[i] = o.beta2*v[i] + (1-o.beta2)*g[i]*g[i]
			p[i] -= lrT * m[i] / (math.Sqrt(v[i]) + o.eps)
		}
	}
}

type rmsprop struct {
	lr, rho, eps float64
	v            [][]float64
}

func (o *rmsprop) Name() string { return OptimizerRMSprop }

func (o *rmsprop) Update(params, grads [][]float64) {
	if o.v == nil {
		o.v = zerosLike(params)
	}
	for s := range params {
		p, g, v := params[s], grads[s], o.v[s]
		for i := range p {
			v[i] = o.rho*v[i] + (1-o.rho)*g[i]*g[i]
			p[i] -= o.lr * g[i] / (math.Sqrt(v[i]) + o.eps)
		}
	}
}

func zerosLike(params [][]float64) [][]float64 {
	out := make([][]float64, len(params))
	for i, p := range params {
		out[i] = make([]float64, len(p))
	}
	return out
}
