package optim_test

import (
	"errors"
	"testing"

	"github.com/born-ml/gplace/optim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bowl is f(x) = ½‖x − 3‖².
func bowl(x []float64) (float64, []float64, error) {
	var f float64
	g := make([]float64, len(x))
	for i, v := range x {
		g[i] = v - 3
		f += 0.5 * g[i] * g[i]
	}
	return f, g, nil
}

func TestNesterovMinimizes(t *testing.T) {
	x := []float64{0, 10}
	p := optim.NewParameter("x", x)
	_, g, _ := bowl(x)
	p.SetGrad(g)

	opt, err := optim.NewNesterov([]optim.ParamGroup[float64]{{Params: []*optim.Parameter[float64]{p}, LR: 0.1}},
		optim.NesterovConfig[float64]{Objective: bowl})
	require.NoError(t, err)
	// On an isotropic bowl the secant step size is exact, so one step lands
	// on the minimum.
	require.NoError(t, opt.Step())
	assert.InDeltaSlice(t, []float64{3, 3}, x, 1e-9)
	assert.Equal(t, 1, opt.Stats().Iteration)
}

func TestConjugateGradientWithLineSearch(t *testing.T) {
	x := []float64{0, 10}
	p := optim.NewParameter("x", x)
	ls := &optim.BacktrackingLineSearch[float64]{Objective: bowl}
	opt, err := optim.NewConjugateGradient([]optim.ParamGroup[float64]{{Params: []*optim.Parameter[float64]{p}, LR: 1}},
		optim.ConjugateGradientConfig[float64]{LineSearch: ls.Search})
	require.NoError(t, err)

	_, g, _ := bowl(x)
	p.SetGrad(g)
	require.NoError(t, opt.Step())
	f, _, _ := bowl(x)
	assert.Less(t, f, 0.5*(9+49))
}

func TestConfigErrors(t *testing.T) {
	p := optim.NewParameter("x", []float64{1})
	_, err := optim.NewNesterov([]optim.ParamGroup[float64]{{Params: []*optim.Parameter[float64]{p}, LR: -1}},
		optim.NesterovConfig[float64]{Objective: bowl})
	assert.True(t, errors.Is(err, optim.ErrConfig))

	groups := []optim.ParamGroup[float64]{{LR: 1}, {LR: 1}}
	_, err = optim.NewConjugateGradient(groups, optim.ConjugateGradientConfig[float64]{})
	assert.True(t, errors.Is(err, optim.ErrConfig))
}
