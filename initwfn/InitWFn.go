// Package initwfn implements functionality to wrap Gorgonia InitWFn
// so that they can be serialized into configuration files.
package initwfn

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gopkg.in/yaml.v3"
)

// Type describes different types of InitWFn that are available.
// Type is used to implement a basic type system of InitWFn's.
type Type string

// Available InitWFn types
const (
	GlorotU  Type = "GlorotU"
	GlorotN  Type = "GlorotN"
	HeU      Type = "HeU"
	HeN      Type = "HeN"
	Zeroes   Type = "Zeroes"
	Ones     Type = "Ones"
	Constant Type = "Constant"
	Uniform  Type = "Uniform"
	Gaussian Type = "Gaussian"
)

var configTypes = map[Type]reflect.Type{
	GlorotU:  reflect.TypeOf(GlorotUConfig{}),
	GlorotN:  reflect.TypeOf(GlorotNConfig{}),
	HeU:      reflect.TypeOf(HeUConfig{}),
	HeN:      reflect.TypeOf(HeNConfig{}),
	Zeroes:   reflect.TypeOf(ZeroesConfig{}),
	Ones:     reflect.TypeOf(OnesConfig{}),
	Constant: reflect.TypeOf(ConstantConfig{}),
	Uniform:  reflect.TypeOf(UniformConfig{}),
	Gaussian: reflect.TypeOf(GaussianConfig{}),
}

// InitWFn wraps Gorgonia InitWFn so that they can be marshalled and
// unmarshalled as JSON or YAML.
type InitWFn struct {
	initWFn G.InitWFn
	Type
	Config
}

// newInitWFn returns a new InitWFn
func newInitWFn(c Config) (*InitWFn, error) {
	init := InitWFn{Type: c.Type(), Config: c}
	init.initWFn = init.Config.Create()

	return &init, nil
}

// InitWFn returns the wrapped Gorgonia InitWFn
func (i *InitWFn) InitWFn() G.InitWFn {
	return i.initWFn
}

// String implements the fmt.Stringer interface
func (i *InitWFn) String() string {
	return fmt.Sprintf("{%v InitWFn: %v}", i.Type, i.Config)
}

// UnmarshalJSON implements the json.Unmarshaller interface
func (i *InitWFn) UnmarshalJSON(data []byte) error {
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

	i.set(typeName, value)
	return nil
}

// UnmarshalYAML implements the yaml.Unmarshaler interface
func (i *InitWFn) UnmarshalYAML(node *yaml.Node) error {
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

	i.set(raw.Type, value)
	return nil
}

// MarshalYAML implements the yaml.Marshaler interface
func (i InitWFn) MarshalYAML() (interface{}, error) {
	return struct {
		Type   Type   `yaml:"type"`
		Config Config `yaml:"config"`
	}{i.Type, i.Config}, nil
}

func (i *InitWFn) set(t Type, value reflect.Value) {
	i.Type = t
	i.Config = value.Elem().Interface().(Config)
	i.initWFn = i.Config.Create()
}

func newConfig(t Type) (reflect.Value, error) {
	ty, ok := configTypes[t]
	if !ok {
		return reflect.Value{}, errors.Errorf("unknown initializer type %q",
			t)
	}
	return reflect.New(ty), nil
}

// Config implements a Gorgonia InitWFn configuration and can be used to
// create the described Gorgonia InitWFn's.
type Config interface {
	// Create returns the Gorgonia InitWFn that the Config describes
	Create() G.InitWFn

	// Type returns the type of Gorgonia InitWFn that is returned
	Type() Type
}
