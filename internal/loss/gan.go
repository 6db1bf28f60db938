package loss

import (
	errorsmod "cosmossdk.io/errors"

	"github.com/born-ml/srgan/internal/autodiff"
	"github.com/born-ml/srgan/internal/tensor"
	"github.com/born-ml/srgan/internal/types"
)

// Adversarial loss kinds.
const (
	GANVanilla    = "gan"
	GANRelativist = "ragan"
	GANLeastSq    = "lsgan"
	GANWGANGP     = "wgan-gp"
)

// GANLoss scores discriminator outputs against the real or fake label.
//
//   - gan, ragan: binary cross entropy on logits
//   - lsgan: mean squared error to the label
//   - wgan-gp: -mean(x) for real targets, mean(x) for fake ones
type GANLoss struct {
	kind      string
	realLabel float32
	fakeLabel float32
}

// NewGANLoss returns the adversarial loss for kind.
func NewGANLoss(kind string, realLabel, fakeLabel float32) (*GANLoss, error) {
	switch kind {
	case GANVanilla, GANRelativist, GANLeastSq, GANWGANGP:
	default:
		return nil, errorsmod.Wrapf(types.ErrNotImplemented, "GAN type [%s] is not found", kind)
	}
	return &GANLoss{kind: kind, realLabel: realLabel, fakeLabel: fakeLabel}, nil
}

// Kind returns the adversarial loss kind.
func (l *GANLoss) Kind() string {
	return l.kind
}

// Forward returns the loss of the discriminator output x for the given target.
func (l *GANLoss) Forward(x *autodiff.Variable, targetIsReal bool) *autodiff.Variable {
	if l.kind == GANWGANGP {
		if targetIsReal {
			return x.Mean().Neg()
		}
		return x.Mean()
	}

	label := l.fakeLabel
	if targetIsReal {
		label = l.realLabel
	}
	target := x.Engine().Constant(tensor.Full(x.Shape(), label))
	if l.kind == GANLeastSq {
		return MSELoss{}.Forward(x, target)
	}
	return bceWithLogits(x, target)
}

// bceWithLogits is mean(softplus(x) - x·t), the stable form of
// -[t·log σ(x) + (1-t)·log(1-σ(x))].
func bceWithLogits(x, target *autodiff.Variable) *autodiff.Variable {
	return x.Softplus().Sub(x.Mul(target)).Mean()
}

// gpEpsilon keeps the norm differentiable when a gradient vanishes.
const gpEpsilon = 1e-12

// GradientPenalty returns mean over the batch of (‖∂critic/∂interp‖₂ - 1)².
//
// interp must require grad and critic must be computed from it. The gradient
// is taken with createGraph, so the penalty back-propagates into the
// parameters that produced critic.
func GradientPenalty(interp, critic *autodiff.Variable) (*autodiff.Variable, error) {
	eng := interp.Engine()
	ones := eng.Constant(tensor.Ones(critic.Shape()))
	grads, err := eng.Grad([]*autodiff.Variable{critic}, []*autodiff.Variable{ones}, []*autodiff.Variable{interp}, true)
	if err != nil {
		return nil, errorsmod.Wrap(err, "gradient penalty")
	}
	norm := grads[0].Flatten().Square().SumPerSample().AddScalar(gpEpsilon).Sqrt()
	return norm.AddScalar(-1).Square().Mean(), nil
}
