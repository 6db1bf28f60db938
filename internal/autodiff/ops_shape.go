package autodiff

import (
	"github.com/born-ml/srgan/internal/tensor"
)

// Reshape returns v viewed with a new shape of the same size.
func (v *Variable) Reshape(shape tensor.Shape) *Variable {
	from := v.Shape().Clone()
	return v.eng.record("reshape", v.value.MustReshape(shape), []*Variable{v}, func(g *Variable) []*Variable {
		return []*Variable{g.Reshape(from)}
	})
}

// Flatten reshapes [N, ...] to [N, rest].
func (v *Variable) Flatten() *Variable {
	s := v.Shape()
	return v.Reshape(tensor.Shape{s[0], s.NumElements() / s[0]})
}

// PixelShuffle rearranges [N, C*r*r, H, W] into [N, C, H*r, W*r].
func (v *Variable) PixelShuffle(r int) *Variable {
	b := v.eng.backend
	return v.eng.record("pixel_shuffle", b.PixelShuffle(v.value, r), []*Variable{v}, func(g *Variable) []*Variable {
		return []*Variable{g.PixelUnshuffle(r)}
	})
}

// PixelUnshuffle is the inverse of PixelShuffle.
func (v *Variable) PixelUnshuffle(r int) *Variable {
	b := v.eng.backend
	return v.eng.record("pixel_unshuffle", b.PixelUnshuffle(v.value, r), []*Variable{v}, func(g *Variable) []*Variable {
		return []*Variable{g.PixelShuffle(r)}
	})
}

// UpsampleNearest repeats every pixel s times along both spatial axes.
func (v *Variable) UpsampleNearest(s int) *Variable {
	b := v.eng.backend
	return v.eng.record("upsample_nearest", b.UpsampleNearest(v.value, s), []*Variable{v}, func(g *Variable) []*Variable {
		return []*Variable{g.SumPool(s)}
	})
}

// SumPool sums non-overlapping s×s windows.
func (v *Variable) SumPool(s int) *Variable {
	b := v.eng.backend
	return v.eng.record("sum_pool", b.SumPool(v.value, s), []*Variable{v}, func(g *Variable) []*Variable {
		return []*Variable{g.UpsampleNearest(s)}
	})
}

// MaxPool2D takes the maximum of k×k windows moved by stride.
func (v *Variable) MaxPool2D(k, stride int) *Variable {
	b := v.eng.backend
	value, idx := b.MaxPool2D(v.value, k, stride)
	inShape := v.Shape().Clone()
	return v.eng.record("max_pool2d", value, []*Variable{v}, func(g *Variable) []*Variable {
		return []*Variable{g.maxUnpool(idx, inShape)}
	})
}

func (v *Variable) maxUnpool(idx []int, inputShape tensor.Shape) *Variable {
	b := v.eng.backend
	shape := v.Shape().Clone()
	return v.eng.record("max_unpool", b.MaxUnpool(v.value, idx, inputShape), []*Variable{v}, func(g *Variable) []*Variable {
		return []*Variable{g.gather(idx, shape)}
	})
}

func (v *Variable) gather(idx []int, shape tensor.Shape) *Variable {
	b := v.eng.backend
	xShape := v.Shape().Clone()
	return v.eng.record("gather", b.Gather(v.value, idx, shape), []*Variable{v}, func(g *Variable) []*Variable {
		return []*Variable{g.maxUnpool(idx, xShape)}
	})
}

// Concat joins variables along the channel axis.
func (e *Engine) Concat(xs ...*Variable) *Variable {
	raws := make([]*tensor.RawTensor, len(xs))
	for i, x := range xs {
		raws[i] = x.value
	}
	return e.record("concat", e.backend.ConcatChannels(raws), xs, func(g *Variable) []*Variable {
		grads := make([]*Variable, len(xs))
		start := 0
		for i, x := range xs {
			c := x.Shape()[1]
			grads[i] = g.NarrowChannels(start, c)
			start += c
		}
		return grads
	})
}

// NarrowChannels returns channels [start, start+length).
func (v *Variable) NarrowChannels(start, length int) *Variable {
	b := v.eng.backend
	total := v.Shape()[1]
	return v.eng.record("narrow_channels", b.NarrowChannels(v.value, start, length), []*Variable{v}, func(g *Variable) []*Variable {
		return []*Variable{g.padChannels(start, total)}
	})
}

func (v *Variable) padChannels(start, total int) *Variable {
	b := v.eng.backend
	length := v.Shape()[1]
	return v.eng.record("pad_channels", b.PadChannels(v.value, start, total), []*Variable{v}, func(g *Variable) []*Variable {
		return []*Variable{g.NarrowChannels(start, length)}
	})
}
