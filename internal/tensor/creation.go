package tensor

import (
	"fmt"
	"math/rand"
)

// Zeros creates a tensor filled with zeros.
func Zeros(shape Shape) *RawTensor {
	return MustNew(shape)
}

// ZerosLike creates a zero tensor with the shape of t.
func ZerosLike(t *RawTensor) *RawTensor {
	return MustNew(t.shape)
}

// Full creates a tensor filled with a specific value.
func Full(shape Shape, value float32) *RawTensor {
	t := MustNew(shape)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape) *RawTensor {
	return Full(shape, 1)
}

// FromSlice creates a tensor from a slice. The slice is copied.
func FromSlice(data []float32, shape Shape) (*RawTensor, error) {
	t, err := New(shape)
	if err != nil {
		return nil, err
	}
	if len(data) != len(t.data) {
		return nil, fmt.Errorf("from slice: %d values for shape %s", len(data), shape)
	}
	copy(t.data, data)
	return t, nil
}

// Randn fills a new tensor with N(mean, std²) samples drawn from rng.
func Randn(shape Shape, mean, std float64, rng *rand.Rand) *RawTensor {
	t := MustNew(shape)
	for i := range t.data {
		t.data[i] = float32(rng.NormFloat64()*std + mean)
	}
	return t
}

// Uniform fills a new tensor with U(low, high) samples drawn from rng.
func Uniform(shape Shape, low, high float64, rng *rand.Rand) *RawTensor {
	t := MustNew(shape)
	for i := range t.data {
		t.data[i] = float32(low + rng.Float64()*(high-low))
	}
	return t
}
