package nn

import (
	"fmt"

	"github.com/born-ml/srgan/internal/autodiff"
)

// ReLU applies max(x, 0) element-wise.
type ReLU struct{ leaf }

// NewReLU creates a ReLU activation.
func NewReLU() *ReLU { return &ReLU{} }

func (*ReLU) Forward(x *autodiff.Variable) *autodiff.Variable { return x.ReLU() }
func (*ReLU) String() string                                  { return "ReLU(inplace=True)" }

// LeakyReLU applies x for x > 0 and slope*x elsewhere.
type LeakyReLU struct {
	leaf
	slope float32
}

// NewLeakyReLU creates a leaky ReLU with the given negative slope.
func NewLeakyReLU(slope float32) *LeakyReLU { return &LeakyReLU{slope: slope} }

func (l *LeakyReLU) Forward(x *autodiff.Variable) *autodiff.Variable { return x.LeakyReLU(l.slope) }
func (l *LeakyReLU) String() string {
	return fmt.Sprintf("LeakyReLU(negative_slope=%g, inplace=True)", l.slope)
}

// PixelShuffle rearranges [N, C*r*r, H, W] into [N, C, H*r, W*r].
type PixelShuffle struct {
	leaf
	factor int
}

// NewPixelShuffle creates a sub-pixel upsampler.
func NewPixelShuffle(factor int) *PixelShuffle { return &PixelShuffle{factor: factor} }

func (p *PixelShuffle) Forward(x *autodiff.Variable) *autodiff.Variable { return x.PixelShuffle(p.factor) }
func (p *PixelShuffle) String() string {
	return fmt.Sprintf("PixelShuffle(upscale_factor=%d)", p.factor)
}

// Upsample repeats pixels with nearest-neighbour interpolation.
type Upsample struct {
	leaf
	factor int
}

// NewUpsample creates a nearest-neighbour upsampler.
func NewUpsample(factor int) *Upsample { return &Upsample{factor: factor} }

func (u *Upsample) Forward(x *autodiff.Variable) *autodiff.Variable { return x.UpsampleNearest(u.factor) }
func (u *Upsample) String() string {
	return fmt.Sprintf("Upsample(scale_factor=%d.0, mode=nearest)", u.factor)
}

// MaxPool2D takes the maximum of each kernel×kernel window.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, (height-kernel)/stride+1, (width-kernel)/stride+1]
type MaxPool2D struct {
	leaf
	kernel, stride int
}

// NewMaxPool2D creates a max pooling layer.
func NewMaxPool2D(kernel, stride int) *MaxPool2D {
	return &MaxPool2D{kernel: kernel, stride: stride}
}

func (m *MaxPool2D) Forward(x *autodiff.Variable) *autodiff.Variable {
	return x.MaxPool2D(m.kernel, m.stride)
}

func (m *MaxPool2D) String() string {
	return fmt.Sprintf("MaxPool2d(kernel_size=%d, stride=%d, padding=0, dilation=1, ceil_mode=False)", m.kernel, m.stride)
}

// Flatten reshapes [N, ...] to [N, rest].
type Flatten struct{ leaf }

// NewFlatten creates a flatten layer.
func NewFlatten() *Flatten { return &Flatten{} }

func (*Flatten) Forward(x *autodiff.Variable) *autodiff.Variable { return x.Flatten() }
func (*Flatten) String() string                                  { return "Flatten()" }
