package neural_network

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Dense is a fully connected layer computing act(X·W + B).
// W has shape in×out. Only ReLU and identity activations are used.
type Dense struct {
	W    *mat.Dense
	B    *mat.VecDense
	ReLU bool
}

// newDense creates a layer with Glorot-uniform kernel and zero bias.
func newDense(in, out int, relu bool, rng *rand.Rand) *Dense {
	limit := math.Sqrt(6.0 / float64(in+out))
	w := make([]float64, in*out)
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * limit
	}
	return &Dense{
		W:    mat.NewDense(in, out, w),
		B:    mat.NewVecDense(out, nil),
		ReLU: relu,
	}
}

func (l *Dense) dims() (in, out int) {
	return l.W.Dims()
}

// forward returns the pre-activation z and the activation a for input x.
func (l *Dense) forward(x mat.Matrix) (z, a *mat.Dense) {
	z = &mat.Dense{}
	z.Mul(x, l.W)
	z.Apply(func(_, j int, v float64) float64 { return v + l.B.AtVec(j) }, z)
	if !l.ReLU {
		return z, z
	}
	a = &mat.Dense{}
	a.Apply(func(_, _ int, v float64) float64 { return math.Max(0, v) }, z)
	return z, a
}

// backward turns the gradient w.r.t. this layer's output into gradients for
// W, B and the layer input. input and z are the values from forward.
func (l *Dense) backward(input, z, dA *mat.Dense, needInput bool) (dW *mat.Dense, dB *mat.VecDense, dIn *mat.Dense) {
	dZ := dA
	if l.ReLU {
		dZ = &mat.Dense{}
		dZ.Apply(func(i, j int, v float64) float64 {
			if z.At(i, j) > 0 {
				return v
			}
			return 0
		}, dA)
	}

	in, out := l.dims()
	dW = mat.NewDense(in, out, nil)
	dW.Mul(input.T(), dZ)

	rows, _ := dZ.Dims()
	dB = mat.NewVecDense(out, nil)
	for j := 0; j < out; j++ {
		s := 0.0
		for i := 0; i < rows; i++ {
			s += dZ.At(i, j)
		}
		dB.SetVec(j, s)
	}

	if needInput {
		dIn = &mat.Dense{}
		dIn.Mul(dZ, l.W.T())
	}
	return dW, dB, dIn
}
