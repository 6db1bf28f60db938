package networks

import (
	"fmt"
	"math/rand"

	errorsmod "cosmossdk.io/errors"

	"github.com/born-ml/srgan/internal/autodiff"
	"github.com/born-ml/srgan/internal/nn"
	"github.com/born-ml/srgan/internal/types"
)

// DiscriminatorConfig sizes a VGG-style discriminator.
type DiscriminatorConfig struct {
	InNC     int
	NF       int
	NormType string
	ActType  string
	Mode     string
}

// Discriminator scores [N, in_nc, S, S] images with one logit per sample.
//
// features alternates 3×3 stride-1 and 4×4 stride-2 conv blocks, doubling
// the width every other block up to 8·nf, until the map is 4×4 (S=128) or
// 3×3 (S=96, 192). classifier is Linear(8·nf·k·k, 100) → LeakyReLU(0.2) →
// Linear(100, 1).
type Discriminator struct {
	composite
	inputSize  int
	features   *nn.Sequential
	classifier *nn.Sequential
}

// vggInputSizes maps the discriminator kinds to the patch size they accept.
var vggInputSizes = map[string]int{
	"discriminator_vgg_96":  96,
	"discriminator_vgg_128": 128,
	"discriminator_vgg_192": 192,
}

// NewDiscriminatorVGG builds a discriminator for inputSize×inputSize patches.
func NewDiscriminatorVGG(eng *autodiff.Engine, inputSize int, cfg DiscriminatorConfig, rng *rand.Rand) (*Discriminator, error) {
	if err := checkBlockTypes(cfg.NormType, cfg.ActType, cfg.Mode); err != nil {
		return nil, err
	}
	var stages, final int
	switch inputSize {
	case 96:
		stages, final = 5, 3
	case 128:
		stages, final = 5, 4
	case 192:
		stages, final = 6, 3
	default:
		return nil, errorsmod.Wrapf(types.ErrNotImplemented, "discriminator input size %d", inputSize)
	}

	b := builder{eng: eng, rng: rng}
	widths := []int{cfg.NF, cfg.NF * 2, cfg.NF * 4, cfg.NF * 8, cfg.NF * 8, cfg.NF * 8}
	layers := b.convBlock(cfg.InNC, cfg.NF, 3, 1, NormNone, cfg.ActType)
	in := cfg.NF
	for s := 0; s < stages; s++ {
		// 4×4 stride-2 keeps the width; the following 3×3 widens.
		layers = append(layers, b.convBlock(in, in, 4, 2, cfg.NormType, cfg.ActType)...)
		if s == stages-1 {
			break
		}
		out := widths[s+1]
		layers = append(layers, b.convBlock(in, out, 3, 1, cfg.NormType, cfg.ActType)...)
		in = out
	}

	d := &Discriminator{
		composite: composite{class: fmt.Sprintf("Discriminator_VGG_%d", inputSize)},
		inputSize: inputSize,
		features:  nn.NewSequential(layers...),
		classifier: nn.NewSequential(
			nn.NewLinear(eng, in*final*final, 100, true, rng),
			nn.NewLeakyReLU(leakySlope),
			nn.NewLinear(eng, 100, 1, true, rng),
		),
	}
	d.register("features", d.features)
	d.register("classifier", d.classifier)
	return d, nil
}

// InputSize returns the patch size the classifier head expects.
func (d *Discriminator) InputSize() int {
	return d.inputSize
}

// Forward returns logits of shape [N, 1].
func (d *Discriminator) Forward(x *autodiff.Variable) *autodiff.Variable {
	s := x.Shape()
	if len(s) != 4 || s[2] != d.inputSize || s[3] != d.inputSize {
		panic(fmt.Sprintf("%s: expected [N, C, %d, %d] input, got %s", d.class, d.inputSize, d.inputSize, s))
	}
	return d.classifier.Forward(d.features.Forward(x).Flatten())
}
