// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff exposes the reverse-mode automatic differentiation engine.
//
// Every operation on a Variable is recorded while gradients are enabled.
// Backward accumulates gradients into the leaves; Engine.Grad returns them
// instead and, with createGraph set, records the backward pass so it can be
// differentiated again (used by the WGAN-GP penalty).
//
// Example:
//
//	eng := autodiff.New(cpu.New())
//	x := eng.Leaf(tensor.Ones(tensor.Shape{2}), true)
//	y := x.Square().Sum()
//	_ = y.Backward() // x.Grad() == [2, 2]
package autodiff

import (
	"github.com/born-ml/srgan/internal/autodiff"
)

// Engine records operations and computes gradients.
type Engine = autodiff.Engine

// Variable is a tensor tracked by an Engine.
type Variable = autodiff.Variable

// Backend is the set of kernels an Engine computes with.
type Backend = autodiff.Backend

// New returns an engine computing on backend.
func New(backend Backend) *Engine {
	return autodiff.New(backend)
}
