// Package solver implements functionality to wrap Gorgonia Solvers
// so that they can be serialized into configuration files.
package solver

import (
	"encoding/json"
	"reflect"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gopkg.in/yaml.v3"
)

// Type describes different types of solvers that are available
type Type string

// Available solver types
const (
	Adam    Type = "Adam"
	RMSProp Type = "RMSProp"
	Vanilla Type = "Vanilla"
)

// configTypes maps each solver type to its concrete configuration
var configTypes = map[Type]reflect.Type{
	Adam:    reflect.TypeOf(AdamConfig{}),
	RMSProp: reflect.TypeOf(RMSPropConfig{}),
	Vanilla: reflect.TypeOf(VanillaConfig{}),
}

// Solver wraps Gorgonia Solvers so that they can be marshalled and
// unmarshalled as JSON or YAML.
type Solver struct {
	G.Solver `json:"-" yaml:"-"`
	Type
	Config
}

// newSolver returns a new solver with the given type and configuration.
func newSolver(t Type, c Config) (*Solver, error) {
	if !c.ValidType(t) {
		return nil, errors.Errorf("newSolver: invalid solver type %v for "+
			"configuration %T", t, c)
	}
	solver := Solver{Type: t, Config: c}
	solver.Solver = solver.Config.Create()

	return &solver, nil
}

// Fresh returns a new Solver with the same configuration and no
// accumulated state, such as Adam's moment estimates
func (s *Solver) Fresh() *Solver {
	return &Solver{Solver: s.Config.Create(), Type: s.Type, Config: s.Config}
}

// UnmarshalJSON implements the json.Unmarshaller interface
func (s *Solver) UnmarshalJSON(data []byte) error {
	m := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	var typeName Type
	if err := json.Unmarshal(m["Type"], &typeName); err != nil {
		return errors.Wrap(err, "unmarshalJSON: could not decode type")
	}
	value, err := newConfig(typeName)
	if err != nil {
		return errors.Wrap(err, "unmarshalJSON")
	}
	if raw, ok := m["Config"]; ok {
		if err := json.Unmarshal(raw, value.Interface()); err != nil {
			return errors.Wrap(err, "unmarshalJSON: could not decode config")
		}
	}

	return s.set(typeName, value)
}

// UnmarshalYAML implements the yaml.Unmarshaler interface
func (s *Solver) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Type   Type      `yaml:"type"`
		Config yaml.Node `yaml:"config"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	value, err := newConfig(raw.Type)
	if err != nil {
		return errors.Wrap(err, "unmarshalYAML")
	}
	if !raw.Config.IsZero() {
		if err := raw.Config.Decode(value.Interface()); err != nil {
			return errors.Wrap(err, "unmarshalYAML: could not decode config")
		}
	}

	return s.set(raw.Type, value)
}

// MarshalYAML implements the yaml.Marshaler interface
func (s Solver) MarshalYAML() (interface{}, error) {
	return struct {
		Type   Type   `yaml:"type"`
		Config Config `yaml:"config"`
	}{s.Type, s.Config}, nil
}

func (s *Solver) set(t Type, value reflect.Value) error {
	config := value.Elem().Interface().(Config)
	if !config.ValidType(t) {
		return errors.Errorf("invalid solver type %v for configuration %T",
			t, config)
	}
	s.Type = t
	s.Config = config
	s.Solver = s.Config.Create()
	return nil
}

// newConfig returns a pointer to a new zero configuration of the
// argument solver type
func newConfig(t Type) (reflect.Value, error) {
	ty, ok := configTypes[t]
	if !ok {
		return reflect.Value{}, errors.Errorf("unknown solver type %q", t)
	}
	return reflect.New(ty), nil
}

// Config implements a Gorgonia Solver configuration and can be used to
// create Gorgonia Solvers they describe.
type Config interface {
	Create() G.Solver

	// ValidType returns whether a specific Solver type can be created
	// with the Config
	ValidType(Type) bool
}
