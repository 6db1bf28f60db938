package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/born-ml/srgan/internal/autodiff"
	"github.com/born-ml/srgan/internal/tensor"
)

// Conv2D is a 2D convolutional layer.
//
// Performs convolution: output = Conv2D(input, weight) + bias
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [out_channels, in_channels, kernel, kernel]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Where:
//
//	out_h = (height + 2*padding - kernel) / stride + 1
//	out_w = (width + 2*padding - kernel) / stride + 1
//
// Example:
//
//	conv := nn.NewConv2D(eng, 3, 64, 3, 1, 1, true, rng)
//	out := conv.Forward(x) // [N, 64, H, W]
type Conv2D struct {
	inChannels  int
	outChannels int
	kernel      int
	stride      int
	padding     int

	weight *Parameter // [out_channels, in_channels, kernel, kernel]
	bias   *Parameter // [out_channels] or nil
}

// NewConv2D creates a square-kernel convolution.
//
// Weights start from PyTorch's default: uniform in ±1/sqrt(fan_in) (kaiming
// uniform with a=sqrt(5)); bias uses the same bound. The network factories
// re-initialise with InitWeights.
func NewConv2D(eng *autodiff.Engine, inChannels, outChannels, kernel, stride, padding int, useBias bool, rng *rand.Rand) *Conv2D {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernel <= 0 || stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel=%d stride=%d padding=%d", kernel, stride, padding))
	}

	fanIn := inChannels * kernel * kernel
	bound := 1 / math.Sqrt(float64(fanIn))
	c := &Conv2D{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernel:      kernel,
		stride:      stride,
		padding:     padding,
		weight: NewParameter(eng, "weight",
			tensor.Uniform(tensor.Shape{outChannels, inChannels, kernel, kernel}, -bound, bound, rng)),
	}
	if useBias {
		c.bias = NewParameter(eng, "bias", tensor.Uniform(tensor.Shape{outChannels}, -bound, bound, rng))
	}
	return c
}

// Forward performs the forward pass.
func (c *Conv2D) Forward(x *autodiff.Variable) *autodiff.Variable {
	s := x.Shape()
	if len(s) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,C,H,W], got %dD", len(s)))
	}
	if s[1] != c.inChannels {
		panic(fmt.Sprintf("conv2d: input channels %d != expected %d", s[1], c.inChannels))
	}
	out := x.Conv2D(c.weight.Variable(), c.stride, c.padding)
	if c.bias != nil {
		out = out.AddChannels(c.bias.Variable())
	}
	return out
}

// Weight returns the kernel parameter.
func (c *Conv2D) Weight() *Parameter { return c.weight }

// Bias returns the bias parameter, or nil.
func (c *Conv2D) Bias() *Parameter { return c.bias }

// Parameters returns the weight and, when present, the bias.
func (c *Conv2D) Parameters() []*Parameter {
	if c.bias == nil {
		return []*Parameter{c.weight}
	}
	return []*Parameter{c.weight, c.bias}
}

func (c *Conv2D) Buffers() []*Buffer { return nil }
func (c *Conv2D) SetTraining(bool)   {}

func (c *Conv2D) String() string {
	s := fmt.Sprintf("Conv2d(%d, %d, kernel_size=(%d, %d), stride=(%d, %d), padding=(%d, %d)",
		c.inChannels, c.outChannels, c.kernel, c.kernel, c.stride, c.stride, c.padding, c.padding)
	if c.bias == nil {
		s += ", bias=False"
	}
	return s + ")"
}

// fanIn returns in_channels * kernel * kernel.
func (c *Conv2D) fanIn() int {
	return c.inChannels * c.kernel * c.kernel
}

// Linear is a fully connected layer: y = x @ W^T + b.
//
// Input shape:  [batch, in_features]
// Weight shape: [out_features, in_features]
// Output shape: [batch, out_features]
type Linear struct {
	inFeatures  int
	outFeatures int

	weight *Parameter
	bias   *Parameter
}

// NewLinear creates a fully connected layer with PyTorch's default bounds.
func NewLinear(eng *autodiff.Engine, inFeatures, outFeatures int, useBias bool, rng *rand.Rand) *Linear {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("linear: invalid features in=%d, out=%d", inFeatures, outFeatures))
	}
	bound := 1 / math.Sqrt(float64(inFeatures))
	l := &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter(eng, "weight", tensor.Uniform(tensor.Shape{outFeatures, inFeatures}, -bound, bound, rng)),
	}
	if useBias {
		l.bias = NewParameter(eng, "bias", tensor.Uniform(tensor.Shape{outFeatures}, -bound, bound, rng))
	}
	return l
}

// Forward performs the forward pass.
func (l *Linear) Forward(x *autodiff.Variable) *autodiff.Variable {
	s := x.Shape()
	if len(s) != 2 || s[1] != l.inFeatures {
		panic(fmt.Sprintf("linear: expected [N, %d] input, got %s", l.inFeatures, s))
	}
	out := x.MatMul(l.weight.Variable().T())
	if l.bias != nil {
		out = out.AddChannels(l.bias.Variable())
	}
	return out
}

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter { return l.weight }

// Bias returns the bias parameter, or nil.
func (l *Linear) Bias() *Parameter { return l.bias }

func (l *Linear) Parameters() []*Parameter {
	if l.bias == nil {
		return []*Parameter{l.weight}
	}
	return []*Parameter{l.weight, l.bias}
}

func (l *Linear) Buffers() []*Buffer { return nil }
func (l *Linear) SetTraining(bool)   {}

func (l *Linear) String() string {
	return fmt.Sprintf("Linear(in_features=%d, out_features=%d, bias=%t)", l.inFeatures, l.outFeatures, l.bias != nil)
}
