package model_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/srgan/internal/config"
	"github.com/born-ml/srgan/internal/data"
	"github.com/born-ml/srgan/internal/model"
	"github.com/born-ml/srgan/internal/networks"
	"github.com/born-ml/srgan/internal/nn"
	"github.com/born-ml/srgan/internal/tensor"
	"github.com/born-ml/srgan/internal/types"
)

// tinyYaml trains a 4x SRResNet with nf=4 against a 96px discriminator with
// nf=2, small enough to run a few steps on CPU.
const tinyYaml = `
name: tiny
is_train: true
scale: 4
manual_seed: 11
network_G:
  which_model_G: sr_resnet
  nf: 4
  nb: 1
  in_nc: 3
  out_nc: 3
network_D:
  which_model_D: discriminator_vgg_96
  nf: 2
  in_nc: 3
path:
  root: %s
train:
  lr_G: 0.0001
  beta1_G: 0.9
  lr_D: 0.0001
  beta1_D: 0.9
  lr_scheme: MultiStepLR
  lr_steps: [2, 4]
  lr_gamma: 0.5
  pixel_criterion: l1
  pixel_weight: 0.01
  feature_weight: 0
  gan_type: %s
  gan_weight: 0.005
  D_update_ratio: %d
  D_init_iters: %d
datasets:
  train:
    batch_size: 2
    HR_size: 96
`

type tinyOpts struct {
	ganType   string
	ratio     int
	initIters int
}

func loadOptions(t *testing.T, o tinyOpts) *config.Options {
	t.Helper()
	if o.ganType == "" {
		o.ganType = "gan"
	}
	if o.ratio == 0 {
		o.ratio = 1
	}
	yml := fmt.Sprintf(tinyYaml, t.TempDir(), o.ganType, o.ratio, o.initIters)
	opt, err := config.Load(rawbytes.Provider([]byte(yml)))
	require.NoError(t, err)
	return opt
}

func newModel(t *testing.T, opt *config.Options) *model.SRGANModel {
	t.Helper()
	m, err := model.NewSRGANModel(opt)
	require.NoError(t, err)
	return m
}

func feed(t *testing.T, m *model.SRGANModel, seed int64) {
	t.Helper()
	src, err := data.NewSyntheticSource(data.SyntheticConfig{BatchSize: 2, HRSize: 96, Scale: 4, Seed: seed})
	require.NoError(t, err)
	b, err := src.Next(context.Background())
	require.NoError(t, err)
	m.FeedData(b, true)
}

func TestNewSRGANModel(t *testing.T) {
	m := newModel(t, loadOptions(t, tinyOpts{}))

	assert.True(t, m.IsTrain())
	assert.NotNil(t, m.NetG())
	assert.NotNil(t, m.NetD())
	assert.Nil(t, m.NetF(), "feature network is only built for a positive feature weight")
	assert.Len(t, m.Optimizers(), 2)
	assert.Len(t, m.Schedulers(), 2)
	assert.Equal(t, "cpu", m.Device().Name())
	assert.InDelta(t, 1e-4, m.CurrentLearningRate(), 1e-12)

	desc, n := m.NetworkDescription(m.NetG())
	assert.Contains(t, desc, "SRResNet(")
	assert.Equal(t, nn.CountParameters(m.NetG()), n)
}

func TestNewSRGANModelForTesting(t *testing.T) {
	opt := loadOptions(t, tinyOpts{})
	opt.IsTrain = false
	m := newModel(t, opt)

	assert.Nil(t, m.NetD())
	assert.Empty(t, m.Optimizers())
	assert.Zero(t, m.CurrentLearningRate())
	assert.True(t, errors.Is(m.OptimizeParameters(1), types.ErrInvalidConfig))
}

func TestNewSRGANModelRejectsUnknownTypes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *config.Options)
	}{
		{"pixel criterion", func(o *config.Options) { o.Train.PixelCriterion = "l3" }},
		{"feature criterion", func(o *config.Options) { o.Train.FeatureWeight = 1; o.Train.FeatureCriterion = "cosine" }},
		{"gan type", func(o *config.Options) { o.Train.GANType = "hinge" }},
		{"lr scheme", func(o *config.Options) { o.Train.LRScheme = "CosineAnnealingLR" }},
		{"generator", func(o *config.Options) { o.NetworkG.WhichModel = "edsr" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt := loadOptions(t, tinyOpts{})
			tt.mutate(opt)
			_, err := model.NewSRGANModel(opt)
			assert.True(t, errors.Is(err, types.ErrNotImplemented), "got %v", err)
		})
	}
}

func TestNewSRGANModelRequiresGPU(t *testing.T) {
	opt := loadOptions(t, tinyOpts{})
	opt.GPUIDs = []int{3}
	_, err := model.NewSRGANModel(opt)
	assert.True(t, errors.Is(err, types.ErrDeviceUnavailable))
}

func TestOptimizeParametersUpdateRatio(t *testing.T) {
	m := newModel(t, loadOptions(t, tinyOpts{ratio: 2}))
	feed(t, m, 1)

	g0 := nn.State(m.NetG())
	d0 := nn.State(m.NetD())

	require.NoError(t, m.OptimizeParameters(1))
	assert.Equal(t, []string{"l_d_real", "l_d_fake", "D_real", "D_fake"}, m.CurrentLog().Keys())
	assert.Equal(t, g0, nn.State(m.NetG()), "generator must not move on a skipped step")
	assert.NotEqual(t, d0, nn.State(m.NetD()))

	require.NoError(t, m.OptimizeParameters(2))
	assert.Equal(t, []string{"l_d_real", "l_d_fake", "D_real", "D_fake", "l_g_pix", "l_g_gan"}, m.CurrentLog().Keys())
	assert.NotEqual(t, g0, nn.State(m.NetG()))

	pix, ok := m.CurrentLog().Get("l_g_pix")
	require.True(t, ok)
	assert.Greater(t, pix, 0.0)
}

func TestOptimizeParametersInitIters(t *testing.T) {
	m := newModel(t, loadOptions(t, tinyOpts{initIters: 2}))
	feed(t, m, 2)
	g0 := nn.State(m.NetG())

	for step := 1; step <= 2; step++ {
		require.NoError(t, m.OptimizeParameters(step))
	}
	assert.Equal(t, g0, nn.State(m.NetG()))
	_, ok := m.CurrentLog().Get("l_g_gan")
	assert.False(t, ok)

	require.NoError(t, m.OptimizeParameters(3))
	assert.NotEqual(t, g0, nn.State(m.NetG()))
	_, ok = m.CurrentLog().Get("l_g_gan")
	assert.True(t, ok)
}

func TestOptimizeParametersWGANGP(t *testing.T) {
	m := newModel(t, loadOptions(t, tinyOpts{ganType: "wgan-gp"}))
	feed(t, m, 3)

	require.NoError(t, m.OptimizeParameters(1))
	log := m.CurrentLog()
	assert.Equal(t, []string{"l_g_pix", "l_g_gan", "l_d_real", "l_d_fake", "l_d_gp", "D_real", "D_fake"}, log.Keys())

	gp, _ := log.Get("l_d_gp")
	assert.GreaterOrEqual(t, gp, 0.0)
	lDReal, _ := log.Get("l_d_real")
	dReal, _ := log.Get("D_real")
	assert.InDelta(t, -dReal, lDReal, 1e-5, "wgan-gp real loss is the negated mean critic score")

	for _, p := range m.NetD().Parameters() {
		require.NotNil(t, p.Grad(), p.Name())
	}
}

func TestOptimizeParametersRequiresData(t *testing.T) {
	m := newModel(t, loadOptions(t, tinyOpts{}))
	assert.True(t, errors.Is(m.OptimizeParameters(1), types.ErrInvalidConfig))
}

func TestUpdateLearningRate(t *testing.T) {
	m := newModel(t, loadOptions(t, tinyOpts{}))
	want := []float64{1e-4, 1e-4, 5e-5, 5e-5, 2.5e-5}
	for epoch, lr := range want {
		assert.InDelta(t, lr, m.CurrentLearningRate(), 1e-12, "epoch %d", epoch)
		for _, o := range m.Optimizers() {
			assert.InDelta(t, lr, o.LR(), 1e-12)
		}
		m.UpdateLearningRate()
	}
}

func TestTestAndVisuals(t *testing.T) {
	m := newModel(t, loadOptions(t, tinyOpts{}))
	src, err := data.NewSyntheticSource(data.SyntheticConfig{BatchSize: 2, HRSize: 96, Scale: 4, Seed: 4})
	require.NoError(t, err)
	b, err := src.Next(context.Background())
	require.NoError(t, err)
	m.FeedData(data.Batch{LR: b.LR}, false)

	before := m.Engine().Recorded()
	m.Test()
	assert.Equal(t, before, m.Engine().Recorded(), "test must not record operations")

	v := m.CurrentVisuals(false)
	assert.Equal(t, tensor.Shape{3, 24, 24}, v.LR.Shape())
	assert.Equal(t, tensor.Shape{3, 96, 96}, v.SR.Shape())
	assert.Nil(t, v.HR)
	assert.Equal(t, b.LR.Sample(0).Data(), v.LR.Data())

	m.FeedData(b, true)
	v = m.CurrentVisuals(true)
	require.NotNil(t, v.HR)
	assert.Equal(t, tensor.Shape{3, 96, 96}, v.HR.Shape())
}

func TestSaveAndLoadNetworks(t *testing.T) {
	opt := loadOptions(t, tinyOpts{})
	m := newModel(t, opt)
	require.NoError(t, m.Save(10))

	pathG := filepath.Join(opt.Path.Models, "10_G.pth")
	pathD := filepath.Join(opt.Path.Models, "10_D.pth")
	require.FileExists(t, pathG)
	require.FileExists(t, pathD)
	assert.Equal(t, pathG, m.NetworkFile(model.LabelG, 10))

	opt2 := opt.Clone()
	opt2.ManualSeed = 99
	opt2.Path.PretrainModelG = pathG
	opt2.Path.PretrainModelD = pathD
	m2 := newModel(t, opt2)
	assert.Equal(t, nn.State(m.NetG()), nn.State(m2.NetG()))
	assert.Equal(t, nn.State(m.NetD()), nn.State(m2.NetD()))

	// Strict loading rejects a file written by another architecture.
	opt3 := opt.Clone()
	opt3.Path.PretrainModelG = pathD
	_, err := model.NewSRGANModel(opt3)
	assert.True(t, errors.Is(err, types.ErrMissingKey), "got %v", err)

	// A training state is not a network file.
	statePath, err := m.SaveTrainingState(0, 10)
	require.NoError(t, err)
	assert.True(t, errors.Is(m.LoadNetwork(statePath, m.NetG(), false), types.ErrInvalidCheckpoint))
}

func TestTrainingStateRoundTrip(t *testing.T) {
	opt := loadOptions(t, tinyOpts{ratio: 2})
	m := newModel(t, opt)
	feed(t, m, 5)
	for step := 1; step <= 3; step++ {
		m.UpdateLearningRate()
		require.NoError(t, m.OptimizeParameters(step))
	}

	path, err := m.SaveTrainingState(1, 3)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(opt.Path.TrainingState, "3.state"), path)

	state, err := m.LoadTrainingState(path)
	require.NoError(t, err)
	assert.Equal(t, 1, state.Epoch)
	assert.Equal(t, 3, state.Iter)
	require.Len(t, state.Optimizers, 2)
	require.Len(t, state.Schedulers, 2)
	assert.Equal(t, 3, state.Schedulers[0].LastEpoch)

	fresh := newModel(t, opt)
	require.NoError(t, fresh.ResumeTraining(state))
	assert.InDelta(t, m.CurrentLearningRate(), fresh.CurrentLearningRate(), 1e-12)
	for i, o := range m.Optimizers() {
		want, got := o.State(), fresh.Optimizers()[i].State()
		assert.Equal(t, want.Steps, got.Steps, "optimizer %d", i)
		assert.Equal(t, want.LR, got.LR)
		for j := range want.Steps {
			if want.ExpAvg[j] == nil {
				assert.Nil(t, got.ExpAvg[j])
				continue
			}
			assert.Equal(t, want.ExpAvg[j].Data(), got.ExpAvg[j].Data())
			assert.Equal(t, want.ExpAvgSq[j].Data(), got.ExpAvgSq[j].Data())
		}
	}
	// The generator was updated once (step 2), the discriminator three times.
	assert.Equal(t, 1, m.Optimizers()[0].State().Steps[0])
	assert.Equal(t, 3, m.Optimizers()[1].State().Steps[0])

	m.UpdateLearningRate()
	fresh.UpdateLearningRate()
	assert.InDelta(t, m.CurrentLearningRate(), fresh.CurrentLearningRate(), 1e-12)
}

func TestResumeTrainingMismatch(t *testing.T) {
	m := newModel(t, loadOptions(t, tinyOpts{}))
	path, err := m.SaveTrainingState(0, 1)
	require.NoError(t, err)
	state, err := model.ReadTrainingState(path)
	require.NoError(t, err)

	short := *state
	short.Optimizers = short.Optimizers[:1]
	assert.True(t, errors.Is(m.ResumeTraining(&short), types.ErrStateMismatch))

	short = *state
	short.Schedulers = append(short.Schedulers, short.Schedulers[0])
	assert.True(t, errors.Is(m.ResumeTraining(&short), types.ErrStateMismatch))

	require.NoError(t, m.ResumeTraining(state))
}

func TestReadTrainingStateErrors(t *testing.T) {
	opt := loadOptions(t, tinyOpts{})
	m := newModel(t, opt)
	require.NoError(t, m.Save(1))
	_, err := model.ReadTrainingState(m.NetworkFile(model.LabelG, 1))
	assert.True(t, errors.Is(err, types.ErrInvalidCheckpoint))

	_, err = model.ReadTrainingState(filepath.Join(opt.Path.TrainingState, "missing.state"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLog(t *testing.T) {
	l := model.NewLog()
	l.Set("l_d_real", 0.5)
	l.Set("D_real", 1)
	l.Set("l_d_real", 0.25)

	assert.Equal(t, []string{"l_d_real", "D_real"}, l.Keys())
	assert.Equal(t, 2, l.Len())
	v, ok := l.Get("l_d_real")
	assert.True(t, ok)
	assert.Equal(t, 0.25, v)
	assert.Equal(t, []any{"l_d_real", 0.25, "D_real", 1.0}, l.KeyVals())
	assert.Equal(t, "l_d_real: 2.5000e-01 D_real: 1.0000e+00", l.String())
}

func TestOptimizeParametersFeatureLoss(t *testing.T) {
	opt := loadOptions(t, tinyOpts{})
	opt.Train.FeatureCriterion = "l1"
	opt.Train.FeatureWeight = 1
	opt.NetworkF.Cfg = []int{4, networks.MaxPool, 8}
	opt.NetworkF.FeatureLayer = 4
	m := newModel(t, opt)
	require.NotNil(t, m.NetF())
	feed(t, m, 4)

	f0 := nn.State(m.NetF())
	g0 := nn.State(m.NetG())
	require.NoError(t, m.OptimizeParameters(1))

	assert.Equal(t, []string{"l_g_pix", "l_g_fea", "l_g_gan", "l_d_real", "l_d_fake", "D_real", "D_fake"},
		m.CurrentLog().Keys())
	fea, ok := m.CurrentLog().Get("l_g_fea")
	require.True(t, ok)
	assert.Greater(t, fea, 0.0)

	for name, v := range nn.State(m.NetF()) {
		assert.Equal(t, f0[name].Data(), v.Data(), name)
	}
	for _, p := range m.NetF().Parameters() {
		assert.False(t, p.Trainable(), p.Name())
		assert.Nil(t, p.Grad(), p.Name())
	}
	assert.NotEqual(t, g0["model.0.weight"].Data(), nn.State(m.NetG())["model.0.weight"].Data())
}
