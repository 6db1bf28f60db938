// Package autodiff implements reverse-mode automatic differentiation over the
// cpu kernels.
//
// Architecture:
//   - Engine: wraps a Backend and owns the grad-mode switch (NoGrad)
//   - Variable: a value plus the Operation that produced it
//   - Operation: records inputs and knows how to map an output gradient to
//     input gradients
//
// Every Operation's backward pass is itself written with Variable ops. When
// gradients are requested with createGraph, those ops are recorded like any
// forward op, so a gradient can be differentiated again. The gradient
// penalty of WGAN-GP depends on this.
//
// Usage:
//
//	eng := autodiff.New(cpu.New())
//	x := eng.Leaf(raw, true)
//	y := x.Mul(x).Sum() // y = Σx²
//	if err := y.Backward(); err != nil { ... }
//	fmt.Println(x.Grad()) // dy/dx = 2x
package autodiff

import (
	"github.com/born-ml/srgan/internal/tensor"
)

// Backend is the kernel set the engine differentiates through.
// cpu.CPUBackend implements it.
type Backend interface {
	Name() string

	Add(a, b *tensor.RawTensor) *tensor.RawTensor
	Sub(a, b *tensor.RawTensor) *tensor.RawTensor
	Mul(a, b *tensor.RawTensor) *tensor.RawTensor
	Scale(a *tensor.RawTensor, s float32) *tensor.RawTensor
	AddScalar(a *tensor.RawTensor, s float32) *tensor.RawTensor
	Sqrt(a *tensor.RawTensor) *tensor.RawTensor
	Reciprocal(a *tensor.RawTensor) *tensor.RawTensor
	Sigmoid(a *tensor.RawTensor) *tensor.RawTensor
	Softplus(a *tensor.RawTensor) *tensor.RawTensor
	LeakyMask(a *tensor.RawTensor, slope float32) *tensor.RawTensor
	SignMask(a *tensor.RawTensor) *tensor.RawTensor

	Sum(a *tensor.RawTensor) *tensor.RawTensor
	ExpandScalar(s *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor
	SumChannels(a *tensor.RawTensor) *tensor.RawTensor
	ExpandChannels(v *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor
	SumPerSample(a *tensor.RawTensor) *tensor.RawTensor
	ExpandPerSample(v *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor

	MatMul(a, b *tensor.RawTensor) *tensor.RawTensor
	Transpose(a *tensor.RawTensor) *tensor.RawTensor

	Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor
	Conv2DInputGrad(grad, kernel *tensor.RawTensor, inputShape tensor.Shape, stride, padding int) *tensor.RawTensor
	Conv2DWeightGrad(input, grad *tensor.RawTensor, kernelShape tensor.Shape, stride, padding int) *tensor.RawTensor

	PixelShuffle(x *tensor.RawTensor, r int) *tensor.RawTensor
	PixelUnshuffle(x *tensor.RawTensor, r int) *tensor.RawTensor
	UpsampleNearest(x *tensor.RawTensor, s int) *tensor.RawTensor
	SumPool(x *tensor.RawTensor, s int) *tensor.RawTensor
	MaxPool2D(x *tensor.RawTensor, k, stride int) (*tensor.RawTensor, []int)
	MaxUnpool(grad *tensor.RawTensor, idx []int, inputShape tensor.Shape) *tensor.RawTensor
	Gather(x *tensor.RawTensor, idx []int, shape tensor.Shape) *tensor.RawTensor

	ConcatChannels(xs []*tensor.RawTensor) *tensor.RawTensor
	NarrowChannels(x *tensor.RawTensor, start, length int) *tensor.RawTensor
	PadChannels(x *tensor.RawTensor, start, total int) *tensor.RawTensor
}

// Engine creates variables and records the operations applied to them.
//
// An Engine is not safe for concurrent use; a training process drives one
// engine from a single goroutine while the backend parallelises kernels.
type Engine struct {
	backend  Backend
	noGrad   int
	recorded int64
}

// New creates an Engine over backend.
func New(backend Backend) *Engine {
	return &Engine{backend: backend}
}

// Backend returns the wrapped backend.
func (e *Engine) Backend() Backend {
	return e.backend
}

// Name returns the engine name.
func (e *Engine) Name() string {
	return "Autodiff(" + e.backend.Name() + ")"
}

// GradEnabled reports whether new operations are recorded.
func (e *Engine) GradEnabled() bool {
	return e.noGrad == 0
}

// NoGrad runs fn with recording disabled. Calls nest.
func (e *Engine) NoGrad(fn func()) {
	e.noGrad++
	defer func() { e.noGrad-- }()
	fn()
}

// Recorded returns the number of operations recorded since the engine was created.
func (e *Engine) Recorded() int64 {
	return e.recorded
}

// Leaf wraps raw as a graph input. Gradients accumulate into leaves that require them.
func (e *Engine) Leaf(raw *tensor.RawTensor, requiresGrad bool) *Variable {
	return &Variable{eng: e, value: raw, requiresGrad: requiresGrad}
}

// Constant wraps raw as a leaf that never requires gradients.
func (e *Engine) Constant(raw *tensor.RawTensor) *Variable {
	return e.Leaf(raw, false)
}
