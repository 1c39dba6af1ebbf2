package network

import (
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// StdOffset is added to the standard deviation predicted by an
// ActorCritic so that it is always bounded away from 0
const StdOffset float64 = 1e-3

// ActorCritic implements a Gaussian policy and a state value function
// on a single computational graph. The policy and value function have
// separate hidden layers:
//
//	Input ─┬─→ Policy Trunk ─┬─→ Mean Head  ─→ μ
//	       │                 ╰─→ Std Head   ─→ σ = softplus(·) + StdOffset
//	       ╰─→ Value Trunk  ───→ Value Head ─→ v
//
// An ActorCritic operates on a fixed batch size. Networks of different
// batch sizes share weights by copying them with SetWeights.
type ActorCritic struct {
	g     *G.ExprGraph
	input *G.Node

	features int
	hidden   int
	actions  int
	batch    int

	// piTrunk, vTrunk, mean, std, value
	layers     []*fcLayer
	learnables G.Nodes

	mean, std, value          *G.Node
	meanVal, stdVal, valueVal G.Value
}

// NewActorCritic returns a new ActorCritic on a new graph. The trunks
// use the argument activation, and all weights are initialized with
// init. Biases are initialized to 0.
func NewActorCritic(features, hidden, actions, batch int, act *Activation,
	init G.InitWFn) (*ActorCritic, error) {
	if features <= 0 || hidden <= 0 || actions <= 0 || batch <= 0 {
		return nil, errors.Errorf("newActorCritic: sizes must be "+
			"positive, have features=%d hidden=%d actions=%d batch=%d",
			features, hidden, actions, batch)
	}

	g := G.NewGraph()
	input := G.NewMatrix(g, tensor.Float64, G.WithShape(batch, features),
		G.WithName("input"), G.WithInit(G.Zeroes()))

	piTrunk := newFCLayer(g, features, hidden, "Pi1", act, init)
	vTrunk := newFCLayer(g, features, hidden, "V1", act, init)
	meanHead := newFCLayer(g, hidden, actions, "Mu", nil, init)
	stdHead := newFCLayer(g, hidden, actions, "Std", SoftPlus(), init)
	valueHead := newFCLayer(g, hidden, 1, "V", nil, init)

	net := &ActorCritic{
		g:        g,
		input:    input,
		features: features,
		hidden:   hidden,
		actions:  actions,
		batch:    batch,
		layers:   []*fcLayer{piTrunk, vTrunk, meanHead, stdHead, valueHead},
	}
	for _, layer := range net.layers {
		net.learnables = append(net.learnables, layer.learnables()...)
	}

	pi, err := piTrunk.fwd(input)
	if err != nil {
		return nil, errors.Wrap(err, "newActorCritic: policy trunk")
	}
	v, err := vTrunk.fwd(input)
	if err != nil {
		return nil, errors.Wrap(err, "newActorCritic: value trunk")
	}

	if net.mean, err = meanHead.fwd(pi); err != nil {
		return nil, errors.Wrap(err, "newActorCritic: mean head")
	}
	std, err := stdHead.fwd(pi)
	if err != nil {
		return nil, errors.Wrap(err, "newActorCritic: std head")
	}
	if net.std, err = G.Add(std, G.NewConstant(StdOffset)); err != nil {
		return nil, errors.Wrap(err, "newActorCritic: std offset")
	}
	if net.value, err = valueHead.fwd(v); err != nil {
		return nil, errors.Wrap(err, "newActorCritic: value head")
	}

	// Record values of Gorgonia nodes
	G.Read(net.mean, &net.meanVal)
	G.Read(net.std, &net.stdVal)
	G.Read(net.value, &net.valueVal)

	return net, nil
}

// Graph returns the computational graph of the network
func (a *ActorCritic) Graph() *G.ExprGraph { return a.g }

// BatchSize returns the number of samples in each forward pass
func (a *ActorCritic) BatchSize() int { return a.batch }

// Features returns the number of input features
func (a *ActorCritic) Features() int { return a.features }

// Actions returns the number of action dimensions
func (a *ActorCritic) Actions() int { return a.actions }

// Hidden returns the width of the hidden layers
func (a *ActorCritic) Hidden() int { return a.hidden }

// Mean returns the node holding the mean of the policy
func (a *ActorCritic) Mean() *G.Node { return a.mean }

// Std returns the node holding the standard deviation of the policy
func (a *ActorCritic) Std() *G.Node { return a.std }

// Value returns the node holding the state value
func (a *ActorCritic) Value() *G.Node { return a.value }

// Learnables returns the learnable nodes in the order pi1 weights and
// bias, v1 weights and bias, mean, std, then value head weights and
// bias.
func (a *ActorCritic) Learnables() G.Nodes {
	return a.learnables
}

// Shapes returns the shape of each learnable node
func (a *ActorCritic) Shapes() [][]int {
	shapes := make([][]int, len(a.learnables))
	for i, node := range a.learnables {
		shapes[i] = append([]int(nil), node.Shape()...)
	}
	return shapes
}

// SetInput sets the value of the input node before running the forward
// pass.
func (a *ActorCritic) SetInput(input []float64) error {
	if len(input) != a.features*a.batch {
		return errors.Errorf("setInput: invalid number of inputs \n\t"+
			"want(%v) \n\thave(%v)", a.features*a.batch, len(input))
	}
	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(a.input.Shape()...),
	)
	return G.Let(a.input, inputTensor)
}

// Weights returns a copy of the value of each learnable node
func (a *ActorCritic) Weights() ([][]float64, error) {
	weights := make([][]float64, len(a.learnables))
	for i, node := range a.learnables {
		data, err := Float64s(node.Value())
		if err != nil {
			return nil, errors.Wrapf(err, "weights: %v", node.Name())
		}
		weights[i] = data
	}
	return weights, nil
}

// SetWeights copies the argument weights into the learnable nodes.
// The weights are ordered as returned by Learnables.
func (a *ActorCritic) SetWeights(weights [][]float64) error {
	if len(weights) != len(a.learnables) {
		return errors.Errorf("setWeights: invalid number of parameters "+
			"\n\twant(%v) \n\thave(%v)", len(a.learnables), len(weights))
	}
	for i, node := range a.learnables {
		if err := CopyInto(node.Value(), weights[i]); err != nil {
			return errors.Wrapf(err, "setWeights: %v", node.Name())
		}
	}
	return nil
}

// Output returns the mean, standard deviation, and value computed in
// the last forward pass
func (a *ActorCritic) Output() (mean, std, value []float64, err error) {
	if mean, err = Float64s(a.meanVal); err != nil {
		return nil, nil, nil, errors.Wrap(err, "output: mean")
	}
	if std, err = Float64s(a.stdVal); err != nil {
		return nil, nil, nil, errors.Wrap(err, "output: std")
	}
	if value, err = Float64s(a.valueVal); err != nil {
		return nil, nil, nil, errors.Wrap(err, "output: value")
	}
	return mean, std, value, nil
}

// Float64s returns a copy of the data held by a Gorgonia Value
func Float64s(v G.Value) ([]float64, error) {
	if v == nil {
		return nil, errors.New("float64s: nil value")
	}
	switch data := v.Data().(type) {
	case []float64:
		return append([]float64(nil), data...), nil
	case float64:
		return []float64{data}, nil
	default:
		return nil, errors.Errorf("float64s: unsupported data type %T", data)
	}
}

// CopyInto copies data into the backing of a Gorgonia Value in place
func CopyInto(v G.Value, data []float64) error {
	dense, ok := v.(*tensor.Dense)
	if !ok {
		return errors.Errorf("copyInto: unsupported value type %T", v)
	}
	if dense.Shape().TotalSize() != len(data) {
		return errors.Errorf("copyInto: invalid size \n\twant(%v) "+
			"\n\thave(%v)", dense.Shape().TotalSize(), len(data))
	}

	if backing, ok := dense.Data().([]float64); ok {
		copy(backing, data)
		return nil
	}
	// Single element tensors may report their data as a scalar
	return dense.Memset(data[0])
}

// ZeroGrad zeroes the gradient accumulated in a learnable node
func ZeroGrad(node *G.Node) error {
	grad, err := node.Grad()
	if err != nil {
		return err
	}
	if dense, ok := grad.(*tensor.Dense); ok {
		dense.Zero()
		return nil
	}
	return errors.Errorf("zeroGrad: unsupported gradient type %T", grad)
}
