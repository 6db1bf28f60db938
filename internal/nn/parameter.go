package nn

import (
	"github.com/born-ml/srgan/internal/autodiff"
	"github.com/born-ml/srgan/internal/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// Parameters wrap a leaf variable. Backward accumulates into the leaf and the
// optimizer updates the value in place, so the variable identity never
// changes during a run.
//
// Example:
//
//	weight := nn.NewParameter(eng, "weight", raw)
//	y := x.Conv2D(weight.Variable(), 1, 1)
//	_ = loss.Backward()
//	g := weight.Grad()
type Parameter struct {
	name string
	v    *autodiff.Variable
}

// NewParameter creates a trainable parameter holding raw.
func NewParameter(eng *autodiff.Engine, name string, raw *tensor.RawTensor) *Parameter {
	return &Parameter{name: name, v: eng.Leaf(raw, true)}
}

// Name returns the fully qualified parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Variable returns the leaf variable to use in forward passes.
func (p *Parameter) Variable() *autodiff.Variable {
	return p.v
}

// Value returns the parameter tensor.
func (p *Parameter) Value() *tensor.RawTensor {
	return p.v.Value()
}

// Grad returns the accumulated gradient, or nil before the first backward pass.
func (p *Parameter) Grad() *tensor.RawTensor {
	return p.v.Grad()
}

// ZeroGrad clears the gradient.
func (p *Parameter) ZeroGrad() {
	p.v.ZeroGrad()
}

// Trainable reports whether the parameter receives gradients.
func (p *Parameter) Trainable() bool {
	return p.v.RequiresGrad()
}

// SetTrainable toggles gradient tracking.
func (p *Parameter) SetTrainable(trainable bool) {
	p.v.SetRequiresGrad(trainable)
}

// Buffer is named module state that is saved but never optimised.
type Buffer struct {
	name  string
	value *tensor.RawTensor
}

// NewBuffer creates a buffer holding raw.
func NewBuffer(name string, raw *tensor.RawTensor) *Buffer {
	return &Buffer{name: name, value: raw}
}

// Name returns the fully qualified buffer name.
func (b *Buffer) Name() string {
	return b.name
}

// Value returns the buffer tensor.
func (b *Buffer) Value() *tensor.RawTensor {
	return b.value
}
