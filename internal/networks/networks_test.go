package networks_test

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/srgan/internal/autodiff"
	"github.com/born-ml/srgan/internal/backend/cpu"
	"github.com/born-ml/srgan/internal/config"
	"github.com/born-ml/srgan/internal/networks"
	"github.com/born-ml/srgan/internal/nn"
	"github.com/born-ml/srgan/internal/tensor"
	"github.com/born-ml/srgan/internal/types"
)

func setup() (*autodiff.Engine, *rand.Rand) {
	return autodiff.New(cpu.New()), rand.New(rand.NewSource(3))
}

func smallGenerator(scale int) networks.GeneratorConfig {
	return networks.GeneratorConfig{InNC: 3, OutNC: 3, NF: 4, NB: 1, GC: 2, Scale: scale, Mode: networks.ModeCNA}
}

func names(m nn.Module) map[string]bool {
	out := make(map[string]bool)
	for k := range nn.State(m) {
		out[k] = true
	}
	return out
}

func TestSRResNet(t *testing.T) {
	eng, rng := setup()
	for _, scale := range []int{2, 3, 4} {
		g, err := networks.NewSRResNet(eng, smallGenerator(scale), rng)
		require.NoError(t, err)

		x := eng.Constant(tensor.Randn(tensor.Shape{2, 3, 5, 6}, 0, 1, rng))
		out := g.Forward(x)
		assert.Equal(t, tensor.Shape{2, 3, 5 * scale, 6 * scale}, out.Shape(), "scale %d", scale)
	}

	g, err := networks.NewSRResNet(eng, smallGenerator(4), rng)
	require.NoError(t, err)
	keys := names(g)
	for _, k := range []string{
		"model.0.weight",
		"model.1.sub.0.res.0.weight",
		"model.1.sub.0.res.2.bias",
		"model.1.sub.1.weight",
		"model.2.weight",
		"model.5.weight",
		"model.8.weight",
		"model.10.weight",
	} {
		assert.True(t, keys[k], "missing %s", k)
	}
	assert.Equal(t, "SRResNet", g.Class())
	assert.True(t, strings.HasPrefix(g.String(), "SRResNet(\n  (model): Sequential("))
}

func TestRRDBNet(t *testing.T) {
	eng, rng := setup()
	g, err := networks.NewRRDBNet(eng, smallGenerator(4), rng)
	require.NoError(t, err)

	x := eng.Constant(tensor.Randn(tensor.Shape{1, 3, 4, 4}, 0, 1, rng))
	assert.Equal(t, tensor.Shape{1, 3, 16, 16}, g.Forward(x).Shape())

	keys := names(g)
	for _, k := range []string{
		"model.0.weight",
		"model.1.sub.0.RDB1.conv1.0.weight",
		"model.1.sub.0.RDB3.conv5.0.bias",
		"model.1.sub.1.weight",
		"model.3.weight",
		"model.6.weight",
		"model.8.weight",
		"model.10.weight",
	} {
		assert.True(t, keys[k], "missing %s", k)
	}

	// conv3 of a dense block sees nf + 2·gc channels.
	sd := nn.State(g)
	assert.Equal(t, tensor.Shape{2, 8, 3, 3}, sd["model.1.sub.0.RDB1.conv3.0.weight"].Shape())
	assert.Equal(t, tensor.Shape{4, 12, 3, 3}, sd["model.1.sub.0.RDB1.conv5.0.weight"].Shape())
}

func TestGeneratorWithBatchNorm(t *testing.T) {
	eng, rng := setup()
	cfg := smallGenerator(2)
	cfg.NormType = networks.NormBatch
	g, err := networks.NewSRResNet(eng, cfg, rng)
	require.NoError(t, err)

	assert.True(t, names(g)["model.1.sub.0.res.1.running_mean"])
	x := eng.Constant(tensor.Randn(tensor.Shape{2, 3, 4, 4}, 0, 1, rng))
	assert.Equal(t, tensor.Shape{2, 3, 8, 8}, g.Forward(x).Shape())
}

func TestGeneratorRejectsUnknownBlocks(t *testing.T) {
	eng, rng := setup()
	cfg := smallGenerator(2)
	cfg.NormType = "instance"
	_, err := networks.NewSRResNet(eng, cfg, rng)
	assert.True(t, errors.Is(err, types.ErrNotImplemented))

	cfg = smallGenerator(2)
	cfg.Mode = "NAC"
	_, err = networks.NewRRDBNet(eng, cfg, rng)
	assert.True(t, errors.Is(err, types.ErrNotImplemented))
}

func TestDiscriminatorVGG(t *testing.T) {
	eng, rng := setup()
	d, err := networks.NewDiscriminatorVGG(eng, 96, networks.DiscriminatorConfig{
		InNC: 3, NF: 4, NormType: networks.NormBatch, ActType: networks.ActLeakyReLU, Mode: networks.ModeCNA,
	}, rng)
	require.NoError(t, err)
	assert.Equal(t, 96, d.InputSize())
	assert.Equal(t, "Discriminator_VGG_96", d.Class())

	x := eng.Constant(tensor.Randn(tensor.Shape{2, 3, 96, 96}, 0, 1, rng))
	assert.Equal(t, tensor.Shape{2, 1}, d.Forward(x).Shape())

	sd := nn.State(d)
	assert.Equal(t, tensor.Shape{100, 32 * 3 * 3}, sd["classifier.0.weight"].Shape())
	assert.Equal(t, tensor.Shape{1, 100}, sd["classifier.2.weight"].Shape())
	// conv0 has no norm layer; the first stride-2 block does.
	assert.Contains(t, sd, "features.0.weight")
	assert.Contains(t, sd, "features.2.weight")
	assert.Contains(t, sd, "features.3.running_var")
	assert.NotContains(t, sd, "features.1.running_var")

	assert.Panics(t, func() {
		d.Forward(eng.Constant(tensor.Zeros(tensor.Shape{1, 3, 128, 128})))
	})

	_, err = networks.NewDiscriminatorVGG(eng, 64, networks.DiscriminatorConfig{InNC: 3, NF: 4, Mode: networks.ModeCNA}, rng)
	assert.True(t, errors.Is(err, types.ErrNotImplemented))
}

func TestVGGFeatureExtractor(t *testing.T) {
	eng, rng := setup()
	cfg := []int{4, networks.MaxPool, 8, 8}
	f := networks.NewVGGFeatureExtractor(eng, cfg, 3, false, true, rng)

	for _, p := range f.Parameters() {
		assert.False(t, p.Trainable(), p.Name())
	}
	sd := nn.State(f)
	assert.Equal(t, []string{"features.0.bias", "features.0.weight", "features.3.bias", "features.3.weight", "mean", "std"}, sd.Keys())

	x := eng.Leaf(tensor.Uniform(tensor.Shape{1, 3, 6, 6}, 0, 1, rng), true)
	out := f.Forward(x)
	assert.Equal(t, tensor.Shape{1, 8, 3, 3}, out.Shape())

	// Frozen weights still pass gradients back to the input.
	require.NoError(t, out.Sum().Backward())
	assert.NotNil(t, x.Grad())
	for _, p := range f.Parameters() {
		assert.Nil(t, p.Grad())
	}

	withBN := networks.NewVGGFeatureExtractor(eng, cfg, 4, true, false, rng)
	withBN.SetTraining(true)
	nn.Walk(withBN, func(m nn.Module) {
		if bn, ok := m.(*nn.BatchNorm2D); ok {
			assert.False(t, bn.Training())
		}
	})

	assert.Panics(t, func() { networks.NewVGGFeatureExtractor(eng, cfg, 9, false, false, rng) })
}

func trainOptions() *config.Options {
	return &config.Options{
		IsTrain: true,
		NetworkG: config.NetworkGOptions{
			WhichModel: networks.KindRRDBNet, Mode: networks.ModeCNA,
			NF: 4, NB: 1, GC: 2, InNC: 3, OutNC: 3, Scale: 4,
		},
		NetworkD: config.NetworkDOptions{
			WhichModel: networks.KindDiscriminatorVGG128, NormType: networks.NormBatch,
			ActType: networks.ActLeakyReLU, Mode: networks.ModeCNA, NF: 4, InNC: 3,
		},
	}
}

func TestDefineG(t *testing.T) {
	eng, rng := setup()
	opt := trainOptions()

	g, err := networks.DefineG(eng, opt, rng)
	require.NoError(t, err)
	assert.Equal(t, "RRDBNet", g.(*networks.Generator).Class())

	opt.NetworkG.WhichModel = networks.KindSRResNet
	g, err = networks.DefineG(eng, opt, rng)
	require.NoError(t, err)
	assert.Equal(t, "SRResNet", g.(*networks.Generator).Class())

	opt.NetworkG.WhichModel = "edsr"
	_, err = networks.DefineG(eng, opt, rng)
	assert.True(t, errors.Is(err, types.ErrNotImplemented))
}

func TestDefineGScaledInit(t *testing.T) {
	eng, rng := setup()
	opt := trainOptions()
	opt.NetworkG.NF = 16
	g, err := networks.DefineG(eng, opt, rng)
	require.NoError(t, err)

	// kaiming std for the 3×3 16→16 HR conv is sqrt(2/144); scaled by 0.1.
	w := nn.State(g)["model.8.weight"].Data()
	var ss float64
	for _, v := range w {
		ss += float64(v) * float64(v)
	}
	variance := ss / float64(len(w))
	assert.InDelta(t, 0.01*2.0/144, variance, 0.004*2.0/144)
	assert.Equal(t, float32(0), nn.State(g)["model.8.bias"].Data()[0])
}

func TestDefineD(t *testing.T) {
	eng, rng := setup()
	opt := trainOptions()

	d, err := networks.DefineD(eng, opt, rng)
	require.NoError(t, err)
	assert.Equal(t, 128, d.(*networks.Discriminator).InputSize())

	opt.NetworkD.WhichModel = networks.KindDiscriminatorVGG128SN
	_, err = networks.DefineD(eng, opt, rng)
	assert.True(t, errors.Is(err, types.ErrNotImplemented))

	opt.NetworkD.WhichModel = "patchgan"
	_, err = networks.DefineD(eng, opt, rng)
	assert.True(t, errors.Is(err, types.ErrNotImplemented))
}

func TestDefineF(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the full VGG19")
	}
	eng, rng := setup()
	opt := trainOptions()

	f, err := networks.DefineF(eng, opt, rng)
	require.NoError(t, err)
	sd := nn.State(f)
	assert.Contains(t, sd, "features.34.weight")
	assert.NotContains(t, sd, "features.35.weight")

	opt.Path.PretrainModelF = t.TempDir() + "/missing.pth"
	_, err = networks.DefineF(eng, opt, rng)
	assert.Error(t, err)
}

func TestDefineFReduced(t *testing.T) {
	eng, rng := setup()
	opt := trainOptions()
	opt.NetworkF.Cfg = []int{4, networks.MaxPool, 8}
	opt.NetworkF.FeatureLayer = 3

	f, err := networks.DefineF(eng, opt, rng)
	require.NoError(t, err)
	assert.Equal(t, []string{"features.0.bias", "features.0.weight", "features.3.bias", "features.3.weight", "mean", "std"},
		nn.State(f).Keys())
	for _, p := range f.Parameters() {
		assert.False(t, p.Trainable(), p.Name())
	}

	opt.NetworkF.FeatureLayer = 5
	_, err = networks.DefineF(eng, opt, rng)
	assert.True(t, errors.Is(err, types.ErrInvalidConfig))
}
