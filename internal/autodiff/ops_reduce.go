package autodiff

import (
	"github.com/born-ml/srgan/internal/tensor"
)

// Sum reduces every element to a [1] variable.
func (v *Variable) Sum() *Variable {
	b := v.eng.backend
	shape := v.Shape().Clone()
	return v.eng.record("sum", b.Sum(v.value), []*Variable{v}, func(g *Variable) []*Variable {
		return []*Variable{g.ExpandScalar(shape)}
	})
}

// Mean returns the average of all elements as a [1] variable.
func (v *Variable) Mean() *Variable {
	return v.Sum().Scale(1 / float32(v.value.NumElements()))
}

// ExpandScalar broadcasts a one-element variable to shape.
func (v *Variable) ExpandScalar(shape tensor.Shape) *Variable {
	b := v.eng.backend
	return v.eng.record("expand_scalar", b.ExpandScalar(v.value, shape), []*Variable{v}, func(g *Variable) []*Variable {
		return []*Variable{g.Sum().Reshape(v.Shape())}
	})
}

// SumChannels reduces [N, C, ...] to [C].
func (v *Variable) SumChannels() *Variable {
	b := v.eng.backend
	shape := v.Shape().Clone()
	return v.eng.record("sum_channels", b.SumChannels(v.value), []*Variable{v}, func(g *Variable) []*Variable {
		return []*Variable{g.ExpandChannels(shape)}
	})
}

// ExpandChannels broadcasts a [C] variable over [N, C, ...].
func (v *Variable) ExpandChannels(shape tensor.Shape) *Variable {
	b := v.eng.backend
	return v.eng.record("expand_channels", b.ExpandChannels(v.value, shape), []*Variable{v}, func(g *Variable) []*Variable {
		return []*Variable{g.SumChannels()}
	})
}

// SumPerSample reduces [N, ...] to [N].
func (v *Variable) SumPerSample() *Variable {
	b := v.eng.backend
	shape := v.Shape().Clone()
	return v.eng.record("sum_per_sample", b.SumPerSample(v.value), []*Variable{v}, func(g *Variable) []*Variable {
		return []*Variable{g.ExpandPerSample(shape)}
	})
}

// ExpandPerSample broadcasts an [N] variable over the trailing axes of shape.
func (v *Variable) ExpandPerSample(shape tensor.Shape) *Variable {
	b := v.eng.backend
	return v.eng.record("expand_per_sample", b.ExpandPerSample(v.value, shape), []*Variable{v}, func(g *Variable) []*Variable {
		return []*Variable{g.SumPerSample().Reshape(v.Shape())}
	})
}

// AddChannels adds a per-channel [C] variable to [N, C, ...].
func (v *Variable) AddChannels(c *Variable) *Variable {
	return v.Add(c.ExpandChannels(v.Shape()))
}

// MulChannels scales [N, C, ...] by a per-channel [C] variable.
func (v *Variable) MulChannels(c *Variable) *Variable {
	return v.Mul(c.ExpandChannels(v.Shape()))
}

// MeanChannels averages [N, C, ...] over every axis but 1.
func (v *Variable) MeanChannels() *Variable {
	s := v.Shape()
	return v.SumChannels().Scale(float32(s[1]) / float32(s.NumElements()))
}
