package autodiff

import (
	"github.com/born-ml/srgan/internal/tensor"
)

// Operation represents a differentiable operation in the computation graph.
type Operation interface {
	// Name identifies the operation in error messages and graph dumps.
	Name() string

	// Inputs returns the variables the operation consumed.
	Inputs() []*Variable

	// Backward maps the gradient of the output to one gradient per input.
	// Entries may be nil for inputs that receive no gradient.
	Backward(outputGrad *Variable) []*Variable
}

// funcOp is an Operation whose backward pass is a closure.
type funcOp struct {
	name     string
	inputs   []*Variable
	backward func(g *Variable) []*Variable
}

func (op *funcOp) Name() string                     { return op.name }
func (op *funcOp) Inputs() []*Variable              { return op.inputs }
func (op *funcOp) Backward(g *Variable) []*Variable { return op.backward(g) }

// Variable is a tensor value that participates in differentiation.
type Variable struct {
	eng          *Engine
	value        *tensor.RawTensor
	requiresGrad bool
	grad         *tensor.RawTensor // accumulated by Backward on leaves
	creator      Operation         // nil for leaves
}

// Engine returns the engine that created v.
func (v *Variable) Engine() *Engine {
	return v.eng
}

// Value returns the underlying tensor.
func (v *Variable) Value() *tensor.RawTensor {
	return v.value
}

// Shape returns the shape of the value.
func (v *Variable) Shape() tensor.Shape {
	return v.value.Shape()
}

// Item returns the value of a one-element variable.
func (v *Variable) Item() float32 {
	return v.value.Item()
}

// RequiresGrad reports whether gradients flow to or through v.
func (v *Variable) RequiresGrad() bool {
	return v.requiresGrad
}

// SetRequiresGrad toggles gradient tracking on a leaf.
func (v *Variable) SetRequiresGrad(requires bool) {
	if v.creator != nil {
		panic("autodiff: SetRequiresGrad on a non-leaf variable")
	}
	v.requiresGrad = requires
}

// IsLeaf reports whether v was created directly rather than by an operation.
func (v *Variable) IsLeaf() bool {
	return v.creator == nil
}

// Creator returns the operation that produced v, or nil for leaves.
func (v *Variable) Creator() Operation {
	return v.creator
}

// Grad returns the gradient accumulated by Backward, or nil.
func (v *Variable) Grad() *tensor.RawTensor {
	return v.grad
}

// ZeroGrad drops the accumulated gradient.
func (v *Variable) ZeroGrad() {
	v.grad = nil
}

// Detach returns a leaf sharing v's value that is cut from the graph.
func (v *Variable) Detach() *Variable {
	return &Variable{eng: v.eng, value: v.value}
}

// record builds the result of an operation. The operation is attached only
// when recording is enabled and some input requires gradients.
func (e *Engine) record(name string, value *tensor.RawTensor, inputs []*Variable, backward func(g *Variable) []*Variable) *Variable {
	out := &Variable{eng: e, value: value}
	if !e.GradEnabled() {
		return out
	}
	for _, in := range inputs {
		if in != nil && in.requiresGrad {
			out.requiresGrad = true
			break
		}
	}
	if out.requiresGrad {
		out.creator = &funcOp{name: name, inputs: inputs, backward: backward}
		e.recorded++
	}
	return out
}
