package cpu

import (
	"fmt"

	"github.com/born-ml/srgan/internal/tensor"
)

// ConcatChannels joins tensors along axis 1. All other axes must agree.
func (cpu *CPUBackend) ConcatChannels(xs []*tensor.RawTensor) *tensor.RawTensor {
	if len(xs) == 0 {
		panic("concat_channels: no inputs")
	}
	first := xs[0].Shape()
	n, _, inner := channelDims("concat_channels", first)
	total := 0
	for _, x := range xs {
		s := x.Shape()
		if len(s) != len(first) || s[0] != n || s.Inner() != inner {
			panic(fmt.Sprintf("concat_channels: %s incompatible with %s", s, first))
		}
		total += s[1]
	}
	shape := first.Clone()
	shape[1] = total
	out := tensor.Zeros(shape)
	od := out.Data()
	for b := 0; b < n; b++ {
		offset := b * total * inner
		for _, x := range xs {
			c := x.Shape()[1]
			copy(od[offset:offset+c*inner], x.Data()[b*c*inner:(b+1)*c*inner])
			offset += c * inner
		}
	}
	return out
}

// NarrowChannels returns channels [start, start+length) of x.
func (cpu *CPUBackend) NarrowChannels(x *tensor.RawTensor, start, length int) *tensor.RawTensor {
	n, c, inner := channelDims("narrow_channels", x.Shape())
	if start < 0 || length <= 0 || start+length > c {
		panic(fmt.Sprintf("narrow_channels: [%d, %d) out of %d channels", start, start+length, c))
	}
	shape := x.Shape().Clone()
	shape[1] = length
	out := tensor.Zeros(shape)
	xd, od := x.Data(), out.Data()
	for b := 0; b < n; b++ {
		copy(od[b*length*inner:(b+1)*length*inner], xd[(b*c+start)*inner:(b*c+start+length)*inner])
	}
	return out
}

// PadChannels places x at channel offset start of a zero tensor with total channels.
// It is the adjoint of NarrowChannels.
func (cpu *CPUBackend) PadChannels(x *tensor.RawTensor, start, total int) *tensor.RawTensor {
	n, c, inner := channelDims("pad_channels", x.Shape())
	if start < 0 || start+c > total {
		panic(fmt.Sprintf("pad_channels: [%d, %d) out of %d channels", start, start+c, total))
	}
	shape := x.Shape().Clone()
	shape[1] = total
	out := tensor.Zeros(shape)
	xd, od := x.Data(), out.Data()
	for b := 0; b < n; b++ {
		copy(od[(b*total+start)*inner:(b*total+start+c)*inner], xd[b*c*inner:(b+1)*c*inner])
	}
	return out
}
