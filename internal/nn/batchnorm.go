package nn

import (
	"fmt"

	"github.com/born-ml/srgan/internal/autodiff"
	"github.com/born-ml/srgan/internal/tensor"
)

// BatchNorm2D normalises each channel of [N, C, H, W] input.
//
// In training mode the batch statistics are used and the running estimates
// are updated with momentum; in evaluation mode the running estimates are
// used. The normalisation is composed from differentiable ops, so gradient
// penalties through a batch-normalised discriminator are exact.
//
// Parameters: weight (gamma) and bias (beta), shape [C].
// Buffers: running_mean and running_var, shape [C].
type BatchNorm2D struct {
	channels int
	eps      float32
	momentum float32
	training bool

	weight      *Parameter
	bias        *Parameter
	runningMean *Buffer
	runningVar  *Buffer
}

// NewBatchNorm2D creates a batch norm layer with eps 1e-5 and momentum 0.1.
func NewBatchNorm2D(eng *autodiff.Engine, channels int) *BatchNorm2D {
	if channels <= 0 {
		panic(fmt.Sprintf("batchnorm2d: invalid channels %d", channels))
	}
	shape := tensor.Shape{channels}
	return &BatchNorm2D{
		channels:    channels,
		eps:         1e-5,
		momentum:    0.1,
		training:    true,
		weight:      NewParameter(eng, "weight", tensor.Ones(shape)),
		bias:        NewParameter(eng, "bias", tensor.Zeros(shape)),
		runningMean: NewBuffer("running_mean", tensor.Zeros(shape)),
		runningVar:  NewBuffer("running_var", tensor.Ones(shape)),
	}
}

// Forward normalises x.
func (bn *BatchNorm2D) Forward(x *autodiff.Variable) *autodiff.Variable {
	s := x.Shape()
	if len(s) < 2 || s[1] != bn.channels {
		panic(fmt.Sprintf("batchnorm2d: expected %d channels, got shape %s", bn.channels, s))
	}
	eng := x.Engine()

	var centered, invStd *autodiff.Variable
	if bn.training {
		mean := x.MeanChannels()
		centered = x.Sub(mean.ExpandChannels(s))
		variance := centered.Square().MeanChannels()
		invStd = variance.AddScalar(bn.eps).Sqrt().Reciprocal()
		bn.updateRunning(mean.Value(), variance.Value(), s.NumElements()/s[1])
	} else {
		mean := eng.Constant(bn.runningMean.Value())
		centered = x.Sub(mean.ExpandChannels(s))
		invStd = eng.Constant(bn.runningVar.Value()).AddScalar(bn.eps).Sqrt().Reciprocal()
	}
	normalised := centered.MulChannels(invStd)
	return normalised.MulChannels(bn.weight.Variable()).AddChannels(bn.bias.Variable())
}

// updateRunning folds batch statistics into the running estimates. The
// running variance uses the unbiased estimate.
func (bn *BatchNorm2D) updateRunning(mean, variance *tensor.RawTensor, count int) {
	unbias := float32(1)
	if count > 1 {
		unbias = float32(count) / float32(count-1)
	}
	m := bn.momentum
	rm, rv := bn.runningMean.Value().Data(), bn.runningVar.Value().Data()
	for c := range rm {
		rm[c] = (1-m)*rm[c] + m*mean.Data()[c]
		rv[c] = (1-m)*rv[c] + m*variance.Data()[c]*unbias
	}
}

func (bn *BatchNorm2D) Parameters() []*Parameter {
	return []*Parameter{bn.weight, bn.bias}
}

func (bn *BatchNorm2D) Buffers() []*Buffer {
	return []*Buffer{bn.runningMean, bn.runningVar}
}

func (bn *BatchNorm2D) SetTraining(training bool) {
	bn.training = training
}

// Training reports whether batch statistics are in use.
func (bn *BatchNorm2D) Training() bool {
	return bn.training
}

func (bn *BatchNorm2D) String() string {
	return fmt.Sprintf("BatchNorm2d(%d, eps=%g, momentum=%g, affine=True, track_running_stats=True)",
		bn.channels, bn.eps, bn.momentum)
}
