// Package tensor provides the dense float32 storage used by the trainer.
//
// RawTensor is deliberately minimal: a shape and a contiguous row-major
// []float32. All math lives in the cpu backend and all differentiation in
// the autodiff package; this package only creates, copies and encodes data.
package tensor

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DTypeFloat32 is the only element type stored by RawTensor.
const DTypeFloat32 = "float32"

// RawTensor is the low-level tensor representation.
type RawTensor struct {
	shape Shape
	data  []float32
}

// New allocates a zero-filled tensor of the given shape.
func New(shape Shape) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return &RawTensor{
		shape: shape.Clone(),
		data:  make([]float32, shape.NumElements()),
	}, nil
}

// MustNew is New for shapes computed by kernels, where an invalid shape is a bug.
func MustNew(shape Shape) *RawTensor {
	t, err := New(shape)
	if err != nil {
		panic(err)
	}
	return t
}

// Shape returns the tensor dimensions. Callers must not modify it.
func (t *RawTensor) Shape() Shape {
	return t.shape
}

// NumElements returns the number of stored values.
func (t *RawTensor) NumElements() int {
	return len(t.data)
}

// Data returns the backing slice. Writes are visible to every holder of t.
func (t *RawTensor) Data() []float32 {
	return t.data
}

// Clone returns a deep copy.
func (t *RawTensor) Clone() *RawTensor {
	data := make([]float32, len(t.data))
	copy(data, t.data)
	return &RawTensor{shape: t.shape.Clone(), data: data}
}

// CopyFrom overwrites t with the values of src. Shapes must match.
func (t *RawTensor) CopyFrom(src *RawTensor) error {
	if !t.shape.Equal(src.shape) {
		return fmt.Errorf("copy: shape mismatch %s vs %s", t.shape, src.shape)
	}
	copy(t.data, src.data)
	return nil
}

// Reshape returns a view sharing storage with t.
func (t *RawTensor) Reshape(shape Shape) (*RawTensor, error) {
	if shape.NumElements() != len(t.data) {
		return nil, fmt.Errorf("reshape: cannot view %s as %s", t.shape, shape)
	}
	return &RawTensor{shape: shape.Clone(), data: t.data}, nil
}

// MustReshape panics where Reshape would fail.
func (t *RawTensor) MustReshape(shape Shape) *RawTensor {
	v, err := t.Reshape(shape)
	if err != nil {
		panic(err)
	}
	return v
}

// Item returns the single value of a one-element tensor.
func (t *RawTensor) Item() float32 {
	if len(t.data) != 1 {
		panic(fmt.Sprintf("item: tensor has %d elements", len(t.data)))
	}
	return t.data[0]
}

// Mean returns the arithmetic mean of all elements, accumulated in float64.
func (t *RawTensor) Mean() float64 {
	var sum float64
	for _, v := range t.data {
		sum += float64(v)
	}
	return sum / float64(len(t.data))
}

// Sample returns a copy of the i-th entry along the first dimension,
// keeping a leading dimension of 1.
func (t *RawTensor) Sample(i int) *RawTensor {
	if len(t.shape) == 0 || i < 0 || i >= t.shape[0] {
		panic(fmt.Sprintf("sample: index %d out of range for %s", i, t.shape))
	}
	per := len(t.data) / t.shape[0]
	shape := t.shape.Clone()
	shape[0] = 1
	out := MustNew(shape)
	copy(out.data, t.data[i*per:(i+1)*per])
	return out
}

// Bytes encodes the values as little-endian float32.
func (t *RawTensor) Bytes() []byte {
	buf := make([]byte, 4*len(t.data))
	for i, v := range t.data {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// FromBytes decodes little-endian float32 values into a tensor of the given shape.
func FromBytes(buf []byte, shape Shape) (*RawTensor, error) {
	t, err := New(shape)
	if err != nil {
		return nil, err
	}
	if len(buf) != 4*len(t.data) {
		return nil, fmt.Errorf("from bytes: got %d bytes, shape %s needs %d", len(buf), shape, 4*len(t.data))
	}
	for i := range t.data {
		t.data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return t, nil
}

// String returns a short description (shape only).
func (t *RawTensor) String() string {
	return "RawTensor" + t.shape.String()
}
