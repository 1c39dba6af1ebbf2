package network

import (
	"strings"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
)

type activationType string

const (
	relu     activationType = "relu"
	identity activationType = "identity"
	tanh     activationType = "tanh"
	softplus activationType = "softplus"
)

// Activation represents an activation function type
type Activation struct {
	activationType
	f func(x *G.Node) (*G.Node, error)
}

// fwd performs the forward pass of an Activation
func (a *Activation) fwd(x *G.Node) (*G.Node, error) {
	return a.f(x)
}

// String implements the Stringer interface
func (a *Activation) String() string {
	return string(a.activationType)
}

// IsIdentity returns whether or not the Activation is the identity
// function.
func (a *Activation) IsIdentity() bool {
	return a.activationType == identity
}

// ParseActivation returns the Activation with the argument name. The
// empty string names ReLU.
func ParseActivation(name string) (*Activation, error) {
	switch activationType(strings.ToLower(name)) {
	case relu, "":
		return ReLU(), nil
	case identity:
		return Identity(), nil
	case tanh:
		return TanH(), nil
	case softplus:
		return SoftPlus(), nil
	default:
		return nil, errors.Errorf("parseActivation: unknown activation %q",
			name)
	}
}

// Identity returns an identity *Activation
func Identity() *Activation {
	return &Activation{
		activationType: identity,
		f: func(x *G.Node) (*G.Node, error) {
			return x, nil
		},
	}
}

// ReLU returns a ReLU *Activation
func ReLU() *Activation {
	return &Activation{
		activationType: relu,
		f:              G.Rectify,
	}
}

// TanH returns a tanh *Activation
func TanH() *Activation {
	return &Activation{
		activationType: tanh,
		f:              G.Tanh,
	}
}

// SoftPlus returns an *Activation computing log(1 + exp(x)) as
// max(x, 0) + log(1 + exp(-|x|)), which does not overflow for large x
func SoftPlus() *Activation {
	return &Activation{
		activationType: softplus,
		f: func(x *G.Node) (*G.Node, error) {
			abs, err := G.Abs(x)
			if err != nil {
				return nil, err
			}
			neg, err := G.Neg(abs)
			if err != nil {
				return nil, err
			}
			exp, err := G.Exp(neg)
			if err != nil {
				return nil, err
			}
			tail, err := G.Log1p(exp)
			if err != nil {
				return nil, err
			}
			pos, err := G.Rectify(x)
			if err != nil {
				return nil, err
			}
			return G.Add(pos, tail)
		},
	}
}
