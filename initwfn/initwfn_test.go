package initwfn

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"gorgonia.org/tensor"
)

func allInitWFns(t *testing.T) []*InitWFn {
	constructors := []func() (*InitWFn, error){
		func() (*InitWFn, error) { return NewGlorotU(1.0) },
		func() (*InitWFn, error) { return NewGlorotN(0.5) },
		func() (*InitWFn, error) { return NewHeU(2.0) },
		func() (*InitWFn, error) { return NewHeN(1.5) },
		NewZeroes,
		NewOnes,
		func() (*InitWFn, error) { return NewConstant(0.25) },
		func() (*InitWFn, error) { return NewUniform(-0.003, 0.003) },
		func() (*InitWFn, error) { return NewGaussian(0.1, 0.01) },
	}

	inits := make([]*InitWFn, len(constructors))
	for i, create := range constructors {
		init, err := create()
		require.NoError(t, err)
		inits[i] = init
	}
	return inits
}

func TestRegistryCoversAllTypes(t *testing.T) {
	seen := make(map[Type]bool)
	for _, init := range allInitWFns(t) {
		assert.Equal(t, init.Type, init.Config.Type())
		seen[init.Type] = true
	}
	assert.Len(t, seen, len(configTypes))
	for ty := range configTypes {
		assert.True(t, seen[ty], "no constructor for %v", ty)
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	for _, init := range allInitWFns(t) {
		t.Run(string(init.Type), func(t *testing.T) {
			data, err := yaml.Marshal(init)
			require.NoError(t, err)

			var loaded InitWFn
			require.NoError(t, yaml.Unmarshal(data, &loaded))
			assert.Equal(t, init.Type, loaded.Type)
			assert.Equal(t, init.Config, loaded.Config)
			assert.NotNil(t, loaded.InitWFn())
		})
	}
}

func TestJSONRoundTrip(t *testing.T) {
	for _, init := range allInitWFns(t) {
		t.Run(string(init.Type), func(t *testing.T) {
			data, err := json.Marshal(init)
			require.NoError(t, err)

			var loaded InitWFn
			require.NoError(t, json.Unmarshal(data, &loaded))
			assert.Equal(t, init.Type, loaded.Type)
			assert.Equal(t, init.Config, loaded.Config)
		})
	}
}

func TestYAMLConfig(t *testing.T) {
	data := []byte("type: Uniform\nconfig:\n  low: -0.003\n  high: 0.003\n")
	var init InitWFn
	require.NoError(t, yaml.Unmarshal(data, &init))
	assert.Equal(t, Uniform, init.Type)
	assert.Equal(t, UniformConfig{Low: -0.003, High: 0.003}, init.Config)

	// A missing config keeps the zero configuration
	require.NoError(t, yaml.Unmarshal([]byte("type: Ones\n"), &init))
	assert.Equal(t, OnesConfig{}, init.Config)

	err := yaml.Unmarshal([]byte("type: Orthogonal\n"), &init)
	assert.Error(t, err)
}

func TestCreatedWeights(t *testing.T) {
	weights := func(init *InitWFn) []float64 {
		w, ok := init.InitWFn()(tensor.Float64, 4, 3).([]float64)
		require.True(t, ok)
		require.Len(t, w, 12)
		return w
	}

	zeroes, err := NewZeroes()
	require.NoError(t, err)
	for _, w := range weights(zeroes) {
		assert.Equal(t, 0.0, w)
	}

	ones, err := NewOnes()
	require.NoError(t, err)
	for _, w := range weights(ones) {
		assert.Equal(t, 1.0, w)
	}

	constant, err := NewConstant(0.25)
	require.NoError(t, err)
	for _, w := range weights(constant) {
		assert.Equal(t, 0.25, w)
	}

	uniform, err := NewUniform(-0.003, 0.003)
	require.NoError(t, err)
	for _, w := range weights(uniform) {
		assert.GreaterOrEqual(t, w, -0.003)
		assert.LessOrEqual(t, w, 0.003)
	}
}
