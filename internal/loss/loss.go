// Package loss implements the SRGAN training criteria: pixel and feature
// distances, the adversarial losses and the WGAN gradient penalty.
//
// Every loss returns a scalar Variable of shape [1] that can be scaled,
// summed and back-propagated.
package loss

import (
	errorsmod "cosmossdk.io/errors"

	"github.com/born-ml/srgan/internal/autodiff"
	"github.com/born-ml/srgan/internal/types"
)

// Criterion compares a prediction with a target of the same shape.
type Criterion interface {
	Forward(pred, target *autodiff.Variable) *autodiff.Variable
}

// Pixel and feature criterion names.
const (
	CriterionL1 = "l1"
	CriterionL2 = "l2"
)

// L1Loss is mean(|pred - target|).
type L1Loss struct{}

func (L1Loss) Forward(pred, target *autodiff.Variable) *autodiff.Variable {
	mustSameShape("L1Loss", pred, target)
	return pred.Sub(target).Abs().Mean()
}

// MSELoss is mean((pred - target)²).
type MSELoss struct{}

func (MSELoss) Forward(pred, target *autodiff.Variable) *autodiff.Variable {
	mustSameShape("MSELoss", pred, target)
	return pred.Sub(target).Square().Mean()
}

// NewPixelCriterion returns the criterion for kind, used for both the pixel
// and the feature loss.
func NewPixelCriterion(kind string) (Criterion, error) {
	switch kind {
	case CriterionL1:
		return L1Loss{}, nil
	case CriterionL2:
		return MSELoss{}, nil
	default:
		return nil, errorsmod.Wrapf(types.ErrNotImplemented, "loss type [%s] is not recognized", kind)
	}
}

func mustSameShape(op string, a, b *autodiff.Variable) {
	if !a.Shape().Equal(b.Shape()) {
		panic(op + ": prediction " + a.Shape().String() + " and target " + b.Shape().String() + " differ")
	}
}
