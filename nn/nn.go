// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the layers, containers and state dictionaries of the
// SRGAN networks.
//
// Modules own named Parameters. State and LoadState convert a module to and
// from a StateDict keyed by the dotted parameter names written to
// checkpoints.
package nn

import (
	"math/rand"

	"github.com/born-ml/srgan/internal/autodiff"
	"github.com/born-ml/srgan/internal/nn"
)

// Module is implemented by every layer and container.
type Module = nn.Module

// Parameter is a trainable tensor of a module.
type Parameter = nn.Parameter

// Buffer is a non-trainable tensor saved with a module.
type Buffer = nn.Buffer

// StateDict maps parameter and buffer names to tensors.
type StateDict = nn.StateDict

// Layers.
type (
	Conv2D       = nn.Conv2D
	Linear       = nn.Linear
	BatchNorm2D  = nn.BatchNorm2D
	ReLU         = nn.ReLU
	LeakyReLU    = nn.LeakyReLU
	PixelShuffle = nn.PixelShuffle
	Upsample     = nn.Upsample
	Flatten      = nn.Flatten
	Sequential   = nn.Sequential
	Shortcut     = nn.Shortcut
)

// NewConv2D creates a square-kernel convolution with Kaiming-uniform weights.
func NewConv2D(eng *autodiff.Engine, in, out, kernel, stride, padding int, bias bool, rng *rand.Rand) *Conv2D {
	return nn.NewConv2D(eng, in, out, kernel, stride, padding, bias, rng)
}

// NewLinear creates a fully connected layer.
func NewLinear(eng *autodiff.Engine, in, out int, bias bool, rng *rand.Rand) *Linear {
	return nn.NewLinear(eng, in, out, bias, rng)
}

// NewBatchNorm2D creates a batch normalisation over channels.
func NewBatchNorm2D(eng *autodiff.Engine, channels int) *BatchNorm2D {
	return nn.NewBatchNorm2D(eng, channels)
}

// NewReLU creates a ReLU activation.
func NewReLU() *ReLU { return nn.NewReLU() }

// NewLeakyReLU creates a leaky ReLU with the given negative slope.
func NewLeakyReLU(slope float32) *LeakyReLU { return nn.NewLeakyReLU(slope) }

// NewPixelShuffle creates a sub-pixel upsampler.
func NewPixelShuffle(factor int) *PixelShuffle { return nn.NewPixelShuffle(factor) }

// NewUpsample creates a nearest-neighbour upsampler.
func NewUpsample(factor int) *Upsample { return nn.NewUpsample(factor) }

// NewFlatten creates a layer flattening everything but the batch dimension.
func NewFlatten() *Flatten { return nn.NewFlatten() }

// NewSequential chains modules; parameters are named by position.
func NewSequential(modules ...Module) *Sequential {
	return nn.NewSequential(modules...)
}

// NewShortcut adds the input of sub to its output.
func NewShortcut(sub Module) *Shortcut { return nn.NewShortcut(sub) }

// InitWeights initialises every convolution and linear layer of m with
// method ("normal", "kaiming" or "orthogonal").
func InitWeights(m Module, method string, scale, std float64, rng *rand.Rand) error {
	return nn.InitWeights(m, method, scale, std, rng)
}

// State returns copies of every parameter and buffer of m.
func State(m Module) StateDict { return nn.State(m) }

// LoadState copies sd into m. Strict loading fails on missing or unexpected
// names.
func LoadState(m Module, sd StateDict, strict bool) error {
	return nn.LoadState(m, sd, strict)
}

// CountParameters returns the number of parameter elements of m.
func CountParameters(m Module) int { return nn.CountParameters(m) }
