package optim_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/srgan/internal/autodiff"
	"github.com/born-ml/srgan/internal/backend/cpu"
	"github.com/born-ml/srgan/internal/nn"
	"github.com/born-ml/srgan/internal/optim"
	"github.com/born-ml/srgan/internal/tensor"
	"github.com/born-ml/srgan/internal/types"
)

func newParam(t *testing.T, eng *autodiff.Engine, name string, values ...float32) *nn.Parameter {
	t.Helper()
	raw, err := tensor.FromSlice(values, tensor.Shape{len(values)})
	require.NoError(t, err)
	return nn.NewParameter(eng, name, raw)
}

// backwardScaled leaves grad = s for every element of p.
func backwardScaled(t *testing.T, p *nn.Parameter, s float32) {
	t.Helper()
	require.NoError(t, p.Variable().Scale(s).Sum().Backward())
}

func TestAdam_FirstStep(t *testing.T) {
	eng := autodiff.New(cpu.New())
	p := newParam(t, eng, "x", 1)
	opt := optim.NewAdam([]*nn.Parameter{p}, optim.AdamConfig{LR: 0.1, Betas: [2]float64{0.9, 0.999}})

	backwardScaled(t, p, 0.5)
	opt.Step()

	// The bias-corrected first step moves by lr in the direction of -grad.
	assert.InDelta(t, 0.9, p.Value().Data()[0], 1e-5)
}

func TestAdam_WeightDecay(t *testing.T) {
	eng := autodiff.New(cpu.New())
	p := newParam(t, eng, "x", 1)
	opt := optim.NewAdam([]*nn.Parameter{p}, optim.AdamConfig{LR: 0.1, Betas: [2]float64{0.9, 0.999}, WeightDecay: 0.1})

	backwardScaled(t, p, 0)
	opt.Step()

	assert.InDelta(t, 0.9, p.Value().Data()[0], 1e-5)
}

func TestAdam_SkipsParametersWithoutGradient(t *testing.T) {
	eng := autodiff.New(cpu.New())
	used := newParam(t, eng, "used", 1)
	unused := newParam(t, eng, "unused", 5)
	opt := optim.NewAdam([]*nn.Parameter{used, unused}, optim.AdamConfig{LR: 0.1, Betas: [2]float64{0.9, 0.999}})

	backwardScaled(t, used, 1)
	opt.Step()

	assert.Equal(t, float32(5), unused.Value().Data()[0])
	st := opt.State()
	assert.Equal(t, []int{1, 0}, st.Steps)
	assert.Nil(t, st.ExpAvg[1])
}

func TestAdam_Converges(t *testing.T) {
	eng := autodiff.New(cpu.New())
	p := newParam(t, eng, "x", 0, 10)
	opt := optim.NewAdam([]*nn.Parameter{p}, optim.AdamConfig{LR: 0.1, Betas: [2]float64{0.9, 0.999}})

	for i := 0; i < 500; i++ {
		opt.ZeroGrad()
		require.Nil(t, p.Grad())
		// (x - 3)²
		require.NoError(t, p.Variable().AddScalar(-3).Square().Sum().Backward())
		opt.Step()
	}
	assert.InDelta(t, 3, p.Value().Data()[0], 5e-2)
	assert.InDelta(t, 3, p.Value().Data()[1], 5e-2)
}

func TestAdam_LR(t *testing.T) {
	opt := optim.NewAdam(nil, optim.AdamConfig{LR: 2e-4})
	assert.Equal(t, 2e-4, opt.LR())
	opt.SetLR(1e-4)
	assert.Equal(t, 1e-4, opt.LR())
	assert.Equal(t, 2e-4, opt.InitialLR())

	assert.Equal(t, 0.001, optim.NewAdam(nil, optim.AdamConfig{}).LR())
}

func TestAdam_StateRoundTrip(t *testing.T) {
	eng := autodiff.New(cpu.New())
	a := newParam(t, eng, "x", 1, 2)
	optA := optim.NewAdam([]*nn.Parameter{a}, optim.AdamConfig{LR: 0.05, Betas: [2]float64{0.5, 0.999}})
	for i := 0; i < 3; i++ {
		optA.ZeroGrad()
		backwardScaled(t, a, float32(i+1))
		optA.Step()
	}
	optA.SetLR(0.01)

	b := newParam(t, eng, "x", a.Value().Data()...)
	optB := optim.NewAdam([]*nn.Parameter{b}, optim.AdamConfig{LR: 1})
	require.NoError(t, optB.LoadState(optA.State()))
	assert.Equal(t, 0.01, optB.LR())
	assert.Equal(t, 0.05, optB.InitialLR())

	optA.ZeroGrad()
	backwardScaled(t, a, -2)
	optA.Step()
	backwardScaled(t, b, -2)
	optB.Step()
	assert.Equal(t, a.Value().Data(), b.Value().Data())
}

func TestAdam_LoadStateMismatch(t *testing.T) {
	eng := autodiff.New(cpu.New())
	x := newParam(t, eng, "x", 1, 2)
	y := newParam(t, eng, "y", 1, 2, 3)

	src := optim.NewAdam([]*nn.Parameter{x}, optim.AdamConfig{})
	backwardScaled(t, x, 1)
	src.Step()

	twoParams := optim.NewAdam([]*nn.Parameter{x, y}, optim.AdamConfig{})
	err := twoParams.LoadState(src.State())
	assert.True(t, errors.Is(err, types.ErrStateMismatch))

	otherShape := optim.NewAdam([]*nn.Parameter{y}, optim.AdamConfig{LR: 0.3})
	err = otherShape.LoadState(src.State())
	assert.True(t, errors.Is(err, types.ErrShapeMismatch))
	assert.Equal(t, 0.3, otherShape.LR())
}

func TestMultiStepLR(t *testing.T) {
	opt := optim.NewAdam(nil, optim.AdamConfig{LR: 1})
	sched, err := optim.NewScheduler(optim.SchemeMultiStepLR, opt, []int{4, 2, 4}, 0.5)
	require.NoError(t, err)

	want := []float64{1, 1, 0.5, 0.5, 0.125, 0.125}
	for epoch, lr := range want {
		if epoch > 0 {
			sched.Step()
		}
		assert.InDelta(t, lr, sched.LR(), 1e-12, "epoch %d", epoch)
		assert.InDelta(t, lr, opt.LR(), 1e-12, "epoch %d", epoch)
	}
}

func TestMultiStepLR_State(t *testing.T) {
	opt := optim.NewAdam(nil, optim.AdamConfig{LR: 0.1})
	sched := optim.NewMultiStepLR(opt, []int{3}, 0.1)
	for i := 0; i < 5; i++ {
		sched.Step()
	}
	st := sched.State()
	assert.Equal(t, 5, st.LastEpoch)
	assert.Equal(t, []float64{0.1}, st.BaseLRs)

	other := optim.NewMultiStepLR(optim.NewAdam(nil, optim.AdamConfig{LR: 0.1}), nil, 1)
	require.NoError(t, other.LoadState(st))
	assert.Equal(t, 5, other.LastEpoch())
	assert.InDelta(t, 0.01, other.LR(), 1e-12)

	st.BaseLRs = nil
	assert.True(t, errors.Is(other.LoadState(st), types.ErrStateMismatch))
}

func TestNewScheduler_Unsupported(t *testing.T) {
	opt := optim.NewAdam(nil, optim.AdamConfig{})
	_, err := optim.NewScheduler("CosineAnnealingLR", opt, nil, 0.5)
	assert.True(t, errors.Is(err, types.ErrNotImplemented))
}
