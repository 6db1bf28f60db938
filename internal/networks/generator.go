package networks

import (
	"math/rand"

	"github.com/born-ml/srgan/internal/autodiff"
	"github.com/born-ml/srgan/internal/nn"
)

// GeneratorConfig sizes a generator.
type GeneratorConfig struct {
	InNC     int    // input channels
	OutNC    int    // output channels
	NF       int    // feature channels
	NB       int    // residual blocks
	GC       int    // growth channels of the dense blocks (RRDBNet only)
	Scale    int    // upscaling factor: 3 or a power of two
	NormType string // "" or "batch"
	Mode     string // "CNA"
}

// Generator maps an LR image [N, in_nc, h, w] to SR [N, out_nc, h·scale, w·scale].
//
// Layout of model:
//
//	fea_conv → Shortcut(blocks… → LR_conv) → upsampler… → HR_conv0 → HR_conv1
type Generator struct {
	composite
	model *nn.Sequential
}

func (g *Generator) Forward(x *autodiff.Variable) *autodiff.Variable {
	return g.model.Forward(x)
}

func newGenerator(class string, b builder, cfg GeneratorConfig, body []nn.Module, upsampler []nn.Module, act string) *Generator {
	layers := b.convBlock(cfg.InNC, cfg.NF, 3, 1, NormNone, ActNone)
	body = append(body, b.convBlock(cfg.NF, cfg.NF, 3, 1, cfg.NormType, ActNone)...)
	layers = append(layers, nn.NewShortcut(nn.NewSequential(body...)))
	layers = append(layers, upsampler...)
	layers = append(layers, b.convBlock(cfg.NF, cfg.NF, 3, 1, NormNone, act)...)
	layers = append(layers, b.convBlock(cfg.NF, cfg.OutNC, 3, 1, NormNone, ActNone)...)

	g := &Generator{composite: composite{class: class}, model: nn.NewSequential(layers...)}
	g.register("model", g.model)
	return g
}

// NewSRResNet builds the SRResNet generator: ReLU residual blocks and
// pixel-shuffle upsampling.
func NewSRResNet(eng *autodiff.Engine, cfg GeneratorConfig, rng *rand.Rand) (*Generator, error) {
	if err := checkBlockTypes(cfg.NormType, ActReLU, cfg.Mode); err != nil {
		return nil, err
	}
	b := builder{eng: eng, rng: rng}
	body := make([]nn.Module, 0, cfg.NB+1)
	for i := 0; i < cfg.NB; i++ {
		body = append(body, b.resNetBlock(cfg.NF, cfg.NormType, ActReLU, 1))
	}
	stages, factor := upsampleStages(cfg.Scale)
	var up []nn.Module
	for i := 0; i < stages; i++ {
		up = append(up, b.pixelShuffleBlock(cfg.NF, cfg.NF, factor, ActReLU)...)
	}
	return newGenerator("SRResNet", b, cfg, body, up, ActReLU), nil
}

// NewRRDBNet builds the ESRGAN generator: residual-in-residual dense blocks
// with LeakyReLU(0.2) and nearest-neighbour upsample + conv stages.
func NewRRDBNet(eng *autodiff.Engine, cfg GeneratorConfig, rng *rand.Rand) (*Generator, error) {
	if err := checkBlockTypes(cfg.NormType, ActLeakyReLU, cfg.Mode); err != nil {
		return nil, err
	}
	if cfg.GC <= 0 {
		cfg.GC = 32
	}
	b := builder{eng: eng, rng: rng}
	body := make([]nn.Module, 0, cfg.NB+1)
	for i := 0; i < cfg.NB; i++ {
		body = append(body, b.rrdb(cfg.NF, cfg.GC, cfg.NormType, ActLeakyReLU))
	}
	stages, factor := upsampleStages(cfg.Scale)
	var up []nn.Module
	for i := 0; i < stages; i++ {
		up = append(up, b.upconvBlock(cfg.NF, cfg.NF, factor, ActLeakyReLU)...)
	}
	return newGenerator("RRDBNet", b, cfg, body, up, ActLeakyReLU), nil
}
