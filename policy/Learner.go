package policy

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/portfolioa2c/a2c"
	"github.com/samuelfneumann/portfolioa2c/initwfn"
	"github.com/samuelfneumann/portfolioa2c/network"
	"github.com/samuelfneumann/portfolioa2c/solver"
)

// param is a learnable parameter of the Learner together with the
// gradient the solver steps it with
type param struct {
	value *tensor.Dense
	grad  *tensor.Dense
}

// Value implements the gorgonia.Valuer interface
func (p *param) Value() G.Value { return p.value }

// Grad implements the gorgonia.ValueGrad interface
func (p *param) Grad() (G.Value, error) { return p.grad, nil }

// lossGraph computes the actor-critic loss and its gradient for
// segments of one length
type lossGraph struct {
	net        *network.ActorCritic
	actions    *G.Node
	returns    *G.Node
	advantages *G.Node
	loss       *G.Node
	lossVal    G.Value
	vm         G.VM
}

// Learner implements the authoritative Gaussian actor-critic owned by
// a Coordinator. Its parameters are only changed by Step and
// SetParams.
//
// The Learner computes gradients with one Gorgonia graph per segment
// length, built the first time a segment of that length is seen. All
// graphs read their weights from the Learner's parameters before they
// are run. A Learner is not safe for concurrent use.
type Learner struct {
	cfg      Config
	features int
	actions  int
	act      *network.Activation

	params []*param
	model  []G.ValueGrad
	shapes [][]int
	solver G.Solver

	forwards map[int]*forward
	graphs   map[int]*lossGraph
}

// NewLearner returns a new Learner for observations with the given
// number of features and actions with the given number of dimensions.
// Weights are initialized with init and updated with s. The Learner
// gets its own copy of the solver's state.
func NewLearner(features, actions int, c Config, s *solver.Solver,
	init *initwfn.InitWFn) (*Learner, error) {
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "newLearner")
	}
	if s == nil || init == nil {
		return nil, errors.New("newLearner: solver and initializer " +
			"must be given")
	}
	act, err := network.ParseActivation(c.Activation)
	if err != nil {
		return nil, errors.Wrap(err, "newLearner")
	}

	// The batch 1 network holds the initial weights
	fwd, err := newForward(features, c.Hidden, actions, 1, act,
		init.InitWFn())
	if err != nil {
		return nil, errors.Wrap(err, "newLearner")
	}
	weights, err := fwd.net.Weights()
	if err != nil {
		return nil, errors.Wrap(err, "newLearner")
	}

	l := &Learner{
		cfg:      c,
		features: features,
		actions:  actions,
		act:      act,
		shapes:   fwd.net.Shapes(),
		solver:   s.Fresh().Solver,
		forwards: map[int]*forward{1: fwd},
		graphs:   make(map[int]*lossGraph),
	}

	for i, w := range weights {
		shape := l.shapes[i]
		p := &param{
			value: tensor.New(tensor.WithShape(shape...),
				tensor.WithBacking(w)),
			grad: tensor.New(tensor.WithShape(shape...),
				tensor.WithBacking(make([]float64, len(w)))),
		}
		l.params = append(l.params, p)
		l.model = append(l.model, p)
	}

	return l, nil
}

// Features returns the length of observations
func (l *Learner) Features() int { return l.features }

// Actions returns the length of actions
func (l *Learner) Actions() int { return l.actions }

// Config returns the Learner's configuration
func (l *Learner) Config() Config { return l.cfg }

// Params returns a copy of the current parameters. The a2c.Learner
// interface has no error return, so Params panics if the parameters
// cannot be read.
func (l *Learner) Params() a2c.Params {
	params, err := l.params64()
	if err != nil {
		panic(fmt.Sprintf("params: %v", err))
	}
	return params
}

// params64 returns a copy of the current parameters
func (l *Learner) params64() (a2c.Params, error) {
	params := make(a2c.Params, len(l.params))
	for i, p := range l.params {
		data, err := network.Float64s(p.value)
		if err != nil {
			return nil, errors.Wrapf(err, "parameter %d", i)
		}
		params[i] = data
	}
	return params, nil
}

// SetParams replaces the current parameters with a copy of the
// argument parameters
func (l *Learner) SetParams(params a2c.Params) error {
	if err := l.checkLayout(params); err != nil {
		return errors.Wrap(err, "setParams")
	}
	for i, p := range l.params {
		if err := network.CopyInto(p.value, params[i]); err != nil {
			return errors.Wrap(err, "setParams")
		}
	}
	return nil
}

// checkLayout returns ErrShapeMismatch if the argument parameters or
// gradient do not have one entry of the right size per parameter
func (l *Learner) checkLayout(values [][]float64) error {
	if len(values) != len(l.params) {
		return errors.Wrapf(a2c.ErrShapeMismatch, "have %d parameters, "+
			"expected %d", len(values), len(l.params))
	}
	for i, p := range l.params {
		if size := p.value.Shape().TotalSize(); len(values[i]) != size {
			return errors.Wrapf(a2c.ErrShapeMismatch, "parameter %d has "+
				"size %d, expected %d", i, len(values[i]), size)
		}
	}
	return nil
}

// Forward returns the mean and standard deviation of the policy and
// the state value in a single observation at the current parameters
func (l *Learner) Forward(obs []float64) (mean, std []float64,
	value float64, err error) {
	if len(obs) != l.features {
		return nil, nil, 0, errors.Wrapf(ErrInvalidObservation, "forward: "+
			"observation has length %d, expected %d", len(obs), l.features)
	}

	values, err := l.forwardBatch([][]float64{obs}, &mean, &std)
	if err != nil {
		return nil, nil, 0, errors.Wrap(err, "forward")
	}
	return mean, std, values[0], nil
}

// forwardBatch computes the values of a batch of observations. If
// mean and std are not nil they are set to the policy's outputs.
func (l *Learner) forwardBatch(obs [][]float64, mean,
	std *[]float64) ([]float64, error) {
	flat, err := flatten(obs, l.features)
	if err != nil {
		return nil, err
	}

	fwd, err := l.forwardOf(len(obs))
	if err != nil {
		return nil, err
	}
	params, err := l.params64()
	if err != nil {
		return nil, err
	}
	if err := fwd.net.SetWeights(params); err != nil {
		return nil, err
	}

	m, s, v, err := fwd.run(flat)
	if err != nil {
		return nil, err
	}
	if mean != nil {
		*mean = m
	}
	if std != nil {
		*std = s
	}
	return v, nil
}

func (l *Learner) forwardOf(batch int) (*forward, error) {
	if fwd, ok := l.forwards[batch]; ok {
		return fwd, nil
	}
	fwd, err := newForward(l.features, l.cfg.Hidden, l.actions, batch, l.act,
		G.Zeroes())
	if err != nil {
		return nil, err
	}
	l.forwards[batch] = fwd
	return fwd, nil
}

// Returns computes the returns of a segment, bootstrapping the value
// of non-terminal segments from the value of seg.Next at the current
// parameters
func (l *Learner) Returns(seg *a2c.Segment) ([]float64, error) {
	var bootstrap float64
	if !seg.Terminal {
		_, _, v, err := l.Forward(seg.Next)
		if err != nil {
			return nil, errors.Wrap(err, "returns: could not compute "+
				"bootstrap value")
		}
		bootstrap = v
	}
	return ComputeReturns(seg.Rewards, l.cfg.Gamma, bootstrap,
		seg.Terminal), nil
}

// Loss returns the actor-critic loss of a segment with the argument
// returns at the current parameters: the mean squared error of the
// value function, plus the mean of -log π(a|s) (G - v(s)), minus the
// entropy coefficient times the mean entropy of the policy.
func (l *Learner) Loss(seg *a2c.Segment, returns []float64) (float64,
	error) {
	loss, _, err := l.evaluate(seg, returns, false)
	if err != nil {
		return 0, errors.Wrap(err, "loss")
	}
	return loss, nil
}

// Gradient computes the returns of a segment and the gradient of the
// loss with respect to each parameter at the current parameters
func (l *Learner) Gradient(seg *a2c.Segment) (a2c.Gradient, float64,
	error) {
	if err := seg.Validate(); err != nil {
		return nil, 0, errors.Wrap(err, "gradient")
	}
	returns, err := l.Returns(seg)
	if err != nil {
		return nil, 0, errors.Wrap(err, "gradient")
	}

	loss, grad, err := l.evaluate(seg, returns, true)
	if err != nil {
		return nil, 0, errors.Wrap(err, "gradient")
	}
	return grad, loss, nil
}

// Step takes one solver step in the direction of the argument gradient
func (l *Learner) Step(grad a2c.Gradient) error {
	if err := l.checkLayout(grad); err != nil {
		return errors.Wrap(err, "step")
	}
	for i, p := range l.params {
		if err := network.CopyInto(p.grad, grad[i]); err != nil {
			return errors.Wrap(err, "step")
		}
	}

	if err := l.solver.Step(l.model); err != nil {
		return errors.Wrap(err, "step: could not step solver")
	}
	for _, p := range l.params {
		p.grad.Zero()
	}
	return nil
}

// evaluate runs the loss graph for the segment's length and returns
// the loss and, if grads is true, the gradient of each parameter
func (l *Learner) evaluate(seg *a2c.Segment, returns []float64,
	grads bool) (float64, a2c.Gradient, error) {
	n := seg.Len()
	if len(returns) != n {
		return 0, nil, errors.Errorf("have %d returns for %d steps",
			len(returns), n)
	}
	actions, err := flatten(seg.Actions, l.actions)
	if err != nil {
		return 0, nil, err
	}

	// Advantages are computed outside the graph, so that the policy
	// loss does not move the value function
	values, err := l.forwardBatch(seg.Observations, nil, nil)
	if err != nil {
		return 0, nil, err
	}
	advantages := make([]float64, 0, n*l.actions)
	for i := range returns {
		adv := returns[i] - values[i]
		for j := 0; j < l.actions; j++ {
			advantages = append(advantages, adv)
		}
	}

	graph, err := l.lossGraphOf(n)
	if err != nil {
		return 0, nil, err
	}
	obs, _ := flatten(seg.Observations, l.features)
	if err := graph.net.SetInput(obs); err != nil {
		return 0, nil, err
	}
	params, err := l.params64()
	if err != nil {
		return 0, nil, err
	}
	if err := graph.net.SetWeights(params); err != nil {
		return 0, nil, err
	}
	lets := []struct {
		node *G.Node
		data []float64
	}{
		{graph.actions, actions},
		{graph.returns, append([]float64(nil), returns...)},
		{graph.advantages, advantages},
	}
	for _, let := range lets {
		t := tensor.New(tensor.WithShape(let.node.Shape()...),
			tensor.WithBacking(let.data))
		if err := G.Let(let.node, t); err != nil {
			return 0, nil, errors.Wrapf(err, "could not set %v",
				let.node.Name())
		}
	}

	if err := graph.vm.RunAll(); err != nil {
		return 0, nil, errors.Wrap(err, "could not run loss VM")
	}
	defer graph.vm.Reset()

	lossData, err := network.Float64s(graph.lossVal)
	if err != nil {
		return 0, nil, err
	}
	loss := lossData[0]

	var gradient a2c.Gradient
	for _, node := range graph.net.Learnables() {
		if grads {
			g, err := node.Grad()
			if err != nil {
				return 0, nil, errors.Wrapf(err, "could not read gradient "+
					"of %v", node.Name())
			}
			data, err := network.Float64s(g)
			if err != nil {
				return 0, nil, err
			}
			gradient = append(gradient, data)
		}
		if err := network.ZeroGrad(node); err != nil {
			return 0, nil, err
		}
	}

	return loss, gradient, nil
}

func (l *Learner) lossGraphOf(batch int) (*lossGraph, error) {
	if graph, ok := l.graphs[batch]; ok {
		return graph, nil
	}

	net, err := network.NewActorCritic(l.features, l.cfg.Hidden, l.actions,
		batch, l.act, G.Zeroes())
	if err != nil {
		return nil, err
	}
	g := net.Graph()

	actions := G.NewMatrix(g, tensor.Float64, G.WithShape(batch, l.actions),
		G.WithName("actions"), G.WithInit(G.Zeroes()))
	returns := G.NewMatrix(g, tensor.Float64, G.WithShape(batch, 1),
		G.WithName("returns"), G.WithInit(G.Zeroes()))
	advantages := G.NewMatrix(g, tensor.Float64,
		G.WithShape(batch, l.actions), G.WithName("advantages"),
		G.WithInit(G.Zeroes()))

	// Value function loss
	valueLoss := G.Must(G.Sub(returns, net.Value()))
	valueLoss = G.Must(G.Square(valueLoss))
	valueLoss = G.Must(G.Mean(valueLoss))

	// Policy loss
	logProb := logPdf(net.Mean(), net.Std(), actions)
	policyLoss := G.Must(G.HadamardProd(logProb, advantages))
	policyLoss = G.Must(G.Mean(policyLoss))
	policyLoss = G.Must(G.Neg(policyLoss))

	loss := G.Must(G.Add(valueLoss, policyLoss))
	if l.cfg.EntropyCoef != 0 {
		// Entropy of a Gaussian: log σ + ½ log(2πe)
		entropy := G.Must(G.Log(net.Std()))
		entropy = G.Must(G.Mean(entropy))
		entropy = G.Must(G.Add(entropy,
			G.NewConstant(0.5*math.Log(2*math.Pi*math.E))))
		entropy = G.Must(G.HadamardProd(G.NewConstant(l.cfg.EntropyCoef),
			entropy))
		loss = G.Must(G.Sub(loss, entropy))
	}

	graph := &lossGraph{
		net:        net,
		actions:    actions,
		returns:    returns,
		advantages: advantages,
		loss:       loss,
	}
	G.Read(loss, &graph.lossVal)

	if _, err := G.Grad(loss, net.Learnables()...); err != nil {
		return nil, errors.Wrap(err, "could not compute loss gradient")
	}
	graph.vm = G.NewTapeMachine(g, G.BindDualValues(net.Learnables()...))

	l.graphs[batch] = graph
	return graph, nil
}

// logPdf adds nodes to the computational graph of mean, std, and
// actions which compute the log density of each action dimension
// under a Gaussian with the given mean and standard deviation
func logPdf(mean, std, actions *G.Node) *G.Node {
	negativeHalf := G.NewConstant(-0.5)

	exponent := G.Must(G.Sub(actions, mean))
	exponent = G.Must(G.HadamardDiv(exponent, std))
	exponent = G.Must(G.Square(exponent))
	exponent = G.Must(G.HadamardProd(negativeHalf, exponent))

	logStd := G.Must(G.Log(std))
	logNorm := G.NewConstant(0.5 * math.Log(2*math.Pi))

	terms := G.Must(G.Add(logStd, logNorm))
	return G.Must(G.Sub(exponent, terms))
}
