/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package ddqn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Topology fixes the network shape given K live/padded nodes:
// input 9K -> dense(4, ReLU) -> dense(8, ReLU) -> dense(K, linear).
const (
	hidden1Size = 4
	hidden2Size = 8

	learningRate = 1e-3
	adamBeta1    = 0.9
	adamBeta2    = 0.999
	adamEpsilon  = 1e-8
)

// layer is one dense layer with its own Adam moment state. Weights are
// in x out, consistent with row-major batch inputs (rows = samples).
type layer struct {
	w, b   *mat.Dense
	mW, vW *mat.Dense
	mB, vB *mat.Dense
	relu   bool

	// cache from the most recent forward pass, consumed by backward.
	input   *mat.Dense
	preact  *mat.Dense
	postact *mat.Dense
}

func newLayer(in, out int, relu bool, rng *rand.Rand) *layer {
	w := mat.NewDense(in, out, nil)
	scale := math.Sqrt(2.0 / float64(in))
	for i := 0; i < in; i++ {
		for j := 0; j < out; j++ {
			w.Set(i, j, rng.NormFloat64()*scale)
		}
	}
	return &layer{
		w:    w,
		b:    mat.NewDense(1, out, nil),
		mW:   mat.NewDense(in, out, nil),
		vW:   mat.NewDense(in, out, nil),
		mB:   mat.NewDense(1, out, nil),
		vB:   mat.NewDense(1, out, nil),
		relu: relu,
	}
}

func (l *layer) forward(x *mat.Dense) *mat.Dense {
	rows, _ := x.Dims()
	_, out := l.w.Dims()

	z := mat.NewDense(rows, out, nil)
	z.Mul(x, l.w)
	z.Apply(func(i, j int, v float64) float64 { return v + l.b.At(0, j) }, z)

	a := mat.NewDense(rows, out, nil)
	if l.relu {
		a.Apply(func(_, _ int, v float64) float64 {
			if v < 0 {
				return 0
			}
			return v
		}, z)
	} else {
		a.Copy(z)
	}

	l.input = x
	l.preact = z
	l.postact = a
	return a
}

// backward consumes dOut (gradient of loss wrt this layer's output),
// applies the Adam update in place, and returns the gradient wrt this
// layer's input for the previous layer to consume.
func (l *layer) backward(dOut *mat.Dense, step int) *mat.Dense {
	rows, _ := dOut.Dims()

	dz := dOut
	if l.relu {
		_, preCols := l.preact.Dims()
		masked := mat.NewDense(rows, preCols, nil)
		masked.Apply(func(i, j int, v float64) float64 {
			if l.preact.At(i, j) <= 0 {
				return 0
			}
			return v
		}, dOut)
		dz = masked
	}

	in, out := l.w.Dims()
	dW := mat.NewDense(in, out, nil)
	dW.Mul(l.input.T(), dz)

	dB := mat.NewDense(1, out, nil)
	for j := 0; j < out; j++ {
		var sum float64
		for i := 0; i < rows; i++ {
			sum += dz.At(i, j)
		}
		dB.Set(0, j, sum)
	}

	dIn := mat.NewDense(rows, in, nil)
	dIn.Mul(dz, l.w.T())

	l.adamStep(l.w, l.mW, l.vW, dW, step)
	l.adamStep(l.b, l.mB, l.vB, dB, step)

	return dIn
}

func (l *layer) adamStep(param, m, v, grad *mat.Dense, step int) {
	rows, cols := param.Dims()
	t := float64(step)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			g := grad.At(i, j)
			mv := adamBeta1*m.At(i, j) + (1-adamBeta1)*g
			vv := adamBeta2*v.At(i, j) + (1-adamBeta2)*g*g
			m.Set(i, j, mv)
			v.Set(i, j, vv)
			mHat := mv / (1 - math.Pow(adamBeta1, t))
			vHat := vv / (1 - math.Pow(adamBeta2, t))
			param.Set(i, j, param.At(i, j)-learningRate*mHat/(math.Sqrt(vHat)+adamEpsilon))
		}
	}
}

func (l *layer) cloneFrom(o *layer) {
	l.w.Copy(o.w)
	l.b.Copy(o.b)
}

// DenseNet is the three-layer Q-network: input 9K -> 4 (ReLU)
// -> 8 (ReLU) -> K (linear).
type DenseNet struct {
	inputSize  int
	k          int
	l1, l2, l3 *layer
	step       int
}

// NewDenseNet builds a freshly initialized network for k actions, with
// input width 9*k.
func NewDenseNet(k int, rng *rand.Rand) *DenseNet {
	inputSize := 9 * k
	return &DenseNet{
		inputSize: inputSize,
		k:         k,
		l1:        newLayer(inputSize, hidden1Size, true, rng),
		l2:        newLayer(hidden1Size, hidden2Size, true, rng),
		l3:        newLayer(hidden2Size, k, false, rng),
	}
}

// K returns the action-space width this network was built for.
func (n *DenseNet) K() int { return n.k }

// Forward returns Q(s, ·) for each row of state (batch x inputSize).
func (n *DenseNet) Forward(state *mat.Dense) *mat.Dense {
	h1 := n.l1.forward(state)
	h2 := n.l2.forward(h1)
	return n.l3.forward(h2)
}

// Backward runs MSE backprop given the forward pass's output and the
// target values. It applies no mask of its own: a caller that trains only
// on the action actually taken sets every other target column equal to
// output (replay does), which gives those columns zero gradient.
func (n *DenseNet) Backward(output, target *mat.Dense) {
	rows, cols := output.Dims()
	dOut := mat.NewDense(rows, cols, nil)
	dOut.Sub(output, target)
	dOut.Scale(2.0/float64(rows), dOut)

	n.step++
	dh2 := n.l3.backward(dOut, n.step)
	dh1 := n.l2.backward(dh2, n.step)
	n.l1.backward(dh1, n.step)
}

// CloneWeightsFrom hard-copies o's weights into n, used for the
// target-network sync every 10 replay updates.
func (n *DenseNet) CloneWeightsFrom(o *DenseNet) {
	n.l1.cloneFrom(o.l1)
	n.l2.cloneFrom(o.l2)
	n.l3.cloneFrom(o.l3)
}
