// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for the dense float32 tensors the
// SRGAN networks are built from.
//
// Tensors are stored row-major. Image batches use the NCHW layout.
//
// Example:
//
//	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2})
//	y := tensor.Ones(tensor.Shape{1, 1, 2, 2})
package tensor

import (
	"math/rand"

	"github.com/born-ml/srgan/internal/tensor"
)

// Shape is the size of every dimension of a tensor.
type Shape = tensor.Shape

// RawTensor is a contiguous float32 tensor.
type RawTensor = tensor.RawTensor

// New allocates a zeroed tensor, rejecting invalid shapes.
func New(shape Shape) (*RawTensor, error) {
	return tensor.New(shape)
}

// Zeros returns a zero-filled tensor.
func Zeros(shape Shape) *RawTensor {
	return tensor.Zeros(shape)
}

// Ones returns a tensor filled with ones.
func Ones(shape Shape) *RawTensor {
	return tensor.Ones(shape)
}

// Full returns a tensor filled with value.
func Full(shape Shape, value float32) *RawTensor {
	return tensor.Full(shape, value)
}

// FromSlice wraps a copy of data in a tensor of the given shape.
func FromSlice(data []float32, shape Shape) (*RawTensor, error) {
	return tensor.FromSlice(data, shape)
}

// Randn samples a tensor from N(mean, std²).
func Randn(shape Shape, mean, std float64, rng *rand.Rand) *RawTensor {
	return tensor.Randn(shape, mean, std, rng)
}

// Uniform samples a tensor from U(low, high).
func Uniform(shape Shape, low, high float64, rng *rand.Rand) *RawTensor {
	return tensor.Uniform(shape, low, high, rng)
}
