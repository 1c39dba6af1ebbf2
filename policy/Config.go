package policy

import (
	"github.com/pkg/errors"
)

// Config describes the architecture and loss of an actor-critic
type Config struct {
	// Hidden is the width of the policy and value trunks
	Hidden int `yaml:"hidden" json:"hidden"`

	// Activation of both trunks, one of relu, tanh, softplus, identity
	Activation string `yaml:"activation" json:"activation"`

	// Gamma is the discount factor
	Gamma float64 `yaml:"gamma" json:"gamma"`

	// EntropyCoef scales the entropy bonus subtracted from the loss
	EntropyCoef float64 `yaml:"entropy_coef" json:"entropy_coef"`
}

// DefaultConfig returns a network with 128 hidden ReLU units, a
// discount factor of 0.99, and no entropy bonus
func DefaultConfig() Config {
	return Config{
		Hidden:     128,
		Activation: "relu",
		Gamma:      0.99,
	}
}

// Validate returns an error if the Config is illegal
func (c Config) Validate() error {
	if c.Hidden <= 0 {
		return errors.Errorf("validate: hidden must be positive, have %d",
			c.Hidden)
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		return errors.Errorf("validate: gamma must be in [0, 1], have %v",
			c.Gamma)
	}
	if c.EntropyCoef < 0 {
		return errors.Errorf("validate: entropy coefficient must be "+
			"non-negative, have %v", c.EntropyCoef)
	}
	return nil
}
