package cpu

import (
	"fmt"

	"github.com/born-ml/srgan/internal/parallel"
	"github.com/born-ml/srgan/internal/tensor"
)

// ScalarShape is the shape of reduced scalars.
var ScalarShape = tensor.Shape{1}

// Sum reduces all elements to a [1] tensor.
func (cpu *CPUBackend) Sum(a *tensor.RawTensor) *tensor.RawTensor {
	var sum float64
	for _, v := range a.Data() {
		sum += float64(v)
	}
	out := tensor.Zeros(ScalarShape)
	out.Data()[0] = float32(sum)
	return out
}

// ExpandScalar broadcasts a one-element tensor to shape.
func (cpu *CPUBackend) ExpandScalar(s *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	return tensor.Full(shape, s.Item())
}

// channelDims splits [N, C, rest...] into (N, C, inner).
func channelDims(op string, shape tensor.Shape) (n, c, inner int) {
	if len(shape) < 2 {
		panic(fmt.Sprintf("%s: expected at least 2D [N,C,...], got %s", op, shape))
	}
	return shape[0], shape[1], shape.Inner()
}

// SumChannels reduces [N, C, ...] to [C] by summing over every axis but 1.
func (cpu *CPUBackend) SumChannels(a *tensor.RawTensor) *tensor.RawTensor {
	n, c, inner := channelDims("sum_channels", a.Shape())
	out := tensor.Zeros(tensor.Shape{c})
	ad, od := a.Data(), out.Data()
	parallel.For(c, func(ch int) {
		var sum float64
		for b := 0; b < n; b++ {
			base := (b*c + ch) * inner
			for k := 0; k < inner; k++ {
				sum += float64(ad[base+k])
			}
		}
		od[ch] = float32(sum)
	}, cpu.cfg.Coarse())
	return out
}

// ExpandChannels broadcasts a [C] vector along axis 1 of shape.
func (cpu *CPUBackend) ExpandChannels(v *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	n, c, inner := channelDims("expand_channels", shape)
	if v.NumElements() != c {
		panic(fmt.Sprintf("expand_channels: vector of %d for %d channels", v.NumElements(), c))
	}
	out := tensor.Zeros(shape)
	vd, od := v.Data(), out.Data()
	parallel.ForBatch(n, c, func(b, ch int) {
		base := (b*c + ch) * inner
		val := vd[ch]
		for k := 0; k < inner; k++ {
			od[base+k] = val
		}
	}, cpu.cfg.Coarse())
	return out
}

// SumPerSample reduces [N, ...] to [N].
func (cpu *CPUBackend) SumPerSample(a *tensor.RawTensor) *tensor.RawTensor {
	shape := a.Shape()
	n := shape[0]
	per := a.NumElements() / n
	out := tensor.Zeros(tensor.Shape{n})
	ad, od := a.Data(), out.Data()
	parallel.For(n, func(b int) {
		var sum float64
		for _, x := range ad[b*per : (b+1)*per] {
			sum += float64(x)
		}
		od[b] = float32(sum)
	}, cpu.cfg.Coarse())
	return out
}

// ExpandPerSample broadcasts an [N] vector over the trailing axes of shape.
func (cpu *CPUBackend) ExpandPerSample(v *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	n := shape[0]
	if v.NumElements() != n {
		panic(fmt.Sprintf("expand_per_sample: vector of %d for batch %d", v.NumElements(), n))
	}
	out := tensor.Zeros(shape)
	per := out.NumElements() / n
	vd, od := v.Data(), out.Data()
	parallel.For(n, func(b int) {
		row := od[b*per : (b+1)*per]
		for k := range row {
			row[k] = vd[b]
		}
	}, cpu.cfg.Coarse())
	return out
}
