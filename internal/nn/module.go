// Package nn implements the neural network building blocks of the SRGAN
// generators, discriminators and feature extractor.
//
// This package provides:
//   - Module interface: Base interface for all NN components
//   - Parameter / Buffer: named trainable and non-trainable state
//   - Layers: Conv2D, Linear, BatchNorm2D, activations, resampling
//   - Containers: Sequential and Shortcut
//   - State dicts: host copies of every named tensor, strict or lenient loading
//   - Initialisation: normal, kaiming and orthogonal schemes
//
// Names follow the PyTorch convention: a container prefixes the names of its
// children, so the second layer of a Sequential stored under "model" owns
// "model.1.weight".
package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/srgan/internal/autodiff"
)

// Module is the base interface for all neural network components.
type Module interface {
	// Forward computes the output of the module given an input variable.
	Forward(x *autodiff.Variable) *autodiff.Variable

	// Parameters returns all parameters of this module and its children,
	// in registration order.
	Parameters() []*Parameter

	// Buffers returns the non-trainable state tensors (e.g. running statistics).
	Buffers() []*Buffer

	// SetTraining switches between training and evaluation behaviour.
	SetTraining(training bool)

	// String describes the module structure.
	String() string
}

// Container is implemented by modules that hold other modules.
type Container interface {
	Module
	Children() []Module
}

// Walk visits m and every module beneath it, parents first.
func Walk(m Module, fn func(Module)) {
	fn(m)
	if c, ok := m.(Container); ok {
		for _, child := range c.Children() {
			Walk(child, fn)
		}
	}
}

// Prefix prepends prefix to the names of every parameter and buffer of m.
// Containers call it once per child when the child is registered.
func Prefix(prefix string, m Module) {
	for _, p := range m.Parameters() {
		p.name = join(prefix, p.name)
	}
	for _, b := range m.Buffers() {
		b.name = join(prefix, b.name)
	}
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	if name == "" {
		return prefix
	}
	return prefix + "." + name
}

// CountParameters returns the total number of parameter elements in m.
func CountParameters(m Module) int {
	n := 0
	for _, p := range m.Parameters() {
		n += p.Value().NumElements()
	}
	return n
}

// SetTrainable toggles gradient tracking on every parameter of m.
func SetTrainable(m Module, trainable bool) {
	for _, p := range m.Parameters() {
		p.SetTrainable(trainable)
	}
}

// ZeroGrad clears the accumulated gradients of every parameter of m.
func ZeroGrad(m Module) {
	for _, p := range m.Parameters() {
		p.ZeroGrad()
	}
}

// leaf provides the no-op parts of Module for parameterless layers.
type leaf struct{}

func (leaf) Parameters() []*Parameter { return nil }
func (leaf) Buffers() []*Buffer       { return nil }
func (leaf) SetTraining(bool)         {}

// indent shifts every line after the first by two spaces, the way nested
// modules are printed.
func indent(s string) string {
	return strings.ReplaceAll(s, "\n", "\n  ")
}

func describeChildren(name string, labels []string, children []Module) string {
	var b strings.Builder
	b.WriteString(name + "(")
	for i, child := range children {
		fmt.Fprintf(&b, "\n  (%s): %s", labels[i], indent(child.String()))
	}
	if len(children) > 0 {
		b.WriteString("\n")
	}
	b.WriteString(")")
	return b.String()
}
