// Package cpu implements the host-memory kernels behind every autodiff op.
//
// Kernels are pure functions of their RawTensor arguments: they never mutate
// inputs and always allocate their result. Work is split across goroutines
// with internal/parallel; heavy kernels (convolution, matmul) split per
// output plane or row, element-wise kernels split in contiguous chunks.
package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/srgan/internal/parallel"
	"github.com/born-ml/srgan/internal/tensor"
)

// CPUBackend implements tensor kernels on host memory.
type CPUBackend struct {
	cfg parallel.Config
}

// New creates a CPU backend using all available cores.
func New() *CPUBackend {
	return NewWithConfig(parallel.DefaultConfig())
}

// NewWithConfig creates a CPU backend with an explicit parallel configuration.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{cfg: cfg}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Workers returns the configured number of worker goroutines.
func (cpu *CPUBackend) Workers() int {
	if !cpu.cfg.Enabled {
		return 1
	}
	return cpu.cfg.NumWorkers
}

func mustSameShape(op string, a, b *tensor.RawTensor) {
	if !a.Shape().Equal(b.Shape()) {
		panic(fmt.Sprintf("%s: shape mismatch %s vs %s", op, a.Shape(), b.Shape()))
	}
}

// binary applies f element-wise over two same-shaped tensors.
func (cpu *CPUBackend) binary(op string, a, b *tensor.RawTensor, f func(x, y float32) float32) *tensor.RawTensor {
	mustSameShape(op, a, b)
	out := tensor.ZerosLike(a)
	ad, bd, od := a.Data(), b.Data(), out.Data()
	parallel.For(len(od), func(i int) {
		od[i] = f(ad[i], bd[i])
	}, cpu.cfg)
	return out
}

// unary applies f element-wise.
func (cpu *CPUBackend) unary(a *tensor.RawTensor, f func(x float32) float32) *tensor.RawTensor {
	out := tensor.ZerosLike(a)
	ad, od := a.Data(), out.Data()
	parallel.For(len(od), func(i int) {
		od[i] = f(ad[i])
	}, cpu.cfg)
	return out
}

// Add returns a + b.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, func(x, y float32) float32 { return x + y })
}

// Sub returns a - b.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", a, b, func(x, y float32) float32 { return x - y })
}

// Mul returns the element-wise product a * b.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, func(x, y float32) float32 { return x * y })
}

// Scale returns a * s.
func (cpu *CPUBackend) Scale(a *tensor.RawTensor, s float32) *tensor.RawTensor {
	return cpu.unary(a, func(x float32) float32 { return x * s })
}

// AddScalar returns a + s.
func (cpu *CPUBackend) AddScalar(a *tensor.RawTensor, s float32) *tensor.RawTensor {
	return cpu.unary(a, func(x float32) float32 { return x + s })
}

// Sqrt returns the element-wise square root.
func (cpu *CPUBackend) Sqrt(a *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary(a, func(x float32) float32 { return float32(math.Sqrt(float64(x))) })
}

// Reciprocal returns 1 / a.
func (cpu *CPUBackend) Reciprocal(a *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary(a, func(x float32) float32 { return 1 / x })
}

// Sigmoid returns 1 / (1 + exp(-a)).
func (cpu *CPUBackend) Sigmoid(a *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary(a, sigmoid)
}

// Softplus returns log(1 + exp(a)) computed without overflow.
func (cpu *CPUBackend) Softplus(a *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary(a, func(x float32) float32 {
		v := float64(x)
		return float32(math.Max(v, 0) + math.Log1p(math.Exp(-math.Abs(v))))
	})
}

// LeakyMask returns 1 where a > 0 and slope elsewhere.
// Multiplying by the mask is both the leaky ReLU and its derivative.
func (cpu *CPUBackend) LeakyMask(a *tensor.RawTensor, slope float32) *tensor.RawTensor {
	return cpu.unary(a, func(x float32) float32 {
		if x > 0 {
			return 1
		}
		return slope
	})
}

// SignMask returns the sign of a (0 at 0).
func (cpu *CPUBackend) SignMask(a *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary(a, func(x float32) float32 {
		switch {
		case x > 0:
			return 1
		case x < 0:
			return -1
		default:
			return 0
		}
	})
}

func sigmoid(x float32) float32 {
	v := float64(x)
	if v >= 0 {
		return float32(1 / (1 + math.Exp(-v)))
	}
	e := math.Exp(v)
	return float32(e / (1 + e))
}
