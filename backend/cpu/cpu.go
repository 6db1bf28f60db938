// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go backend the autodiff engine computes on.
//
// Convolutions use im2col followed by a matrix multiply. Work over the batch
// and channel dimensions is split across a bounded pool of goroutines.
//
// Example:
//
//	backend := cpu.New()
//	eng := autodiff.New(backend)
package cpu

import (
	internalcpu "github.com/born-ml/srgan/internal/backend/cpu"
	"github.com/born-ml/srgan/internal/parallel"
)

// Backend is the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Config bounds the goroutines a Backend uses.
type Config = parallel.Config

// DefaultConfig uses one worker per core.
func DefaultConfig() Config {
	return parallel.DefaultConfig()
}

// New creates a CPU backend using every available core.
func New() *Backend {
	return internalcpu.New()
}

// NewWithConfig creates a CPU backend with an explicit worker configuration.
func NewWithConfig(cfg Config) *Backend {
	return internalcpu.NewWithConfig(cfg)
}
