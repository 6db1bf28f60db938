package cpu_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/srgan/internal/backend/cpu"
	"github.com/born-ml/srgan/internal/parallel"
	"github.com/born-ml/srgan/internal/tensor"
)

func dot(a, b *tensor.RawTensor) float64 {
	var s float64
	for i, v := range a.Data() {
		s += float64(v) * float64(b.Data()[i])
	}
	return s
}

func mustSlice(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	x, err := tensor.FromSlice(data, shape)
	require.NoError(t, err)
	return x
}

func TestElementwise(t *testing.T) {
	b := cpu.New()
	x := mustSlice(t, []float32{-2, -0.5, 0, 3}, tensor.Shape{4})
	y := mustSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{4})

	assert.Equal(t, []float32{-1, 1.5, 3, 7}, b.Add(x, y).Data())
	assert.Equal(t, []float32{-3, -2.5, -3, -1}, b.Sub(x, y).Data())
	assert.Equal(t, []float32{-2, -1, 0, 12}, b.Mul(x, y).Data())
	assert.Equal(t, []float32{-4, -1, 0, 6}, b.Scale(x, 2).Data())
	assert.Equal(t, []float32{0.2, 0.2, 0.2, 1}, b.LeakyMask(x, 0.2).Data())
	assert.Equal(t, []float32{-1, -1, 0, 1}, b.SignMask(x).Data())
	assert.InDelta(t, 0.5, b.Sigmoid(x).Data()[2], 1e-6)
	assert.InDelta(t, 0.6931472, b.Softplus(x).Data()[2], 1e-6)
	assert.Panics(t, func() { b.Add(x, tensor.Zeros(tensor.Shape{2, 2})) })
}

func TestReductions(t *testing.T) {
	b := cpu.New()
	// [N=2, C=2, 2]
	x := mustSlice(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{2, 2, 2})

	assert.Equal(t, float32(36), b.Sum(x).Item())
	assert.Equal(t, []float32{1 + 2 + 5 + 6, 3 + 4 + 7 + 8}, b.SumChannels(x).Data())
	assert.Equal(t, []float32{10, 26}, b.SumPerSample(x).Data())

	v := mustSlice(t, []float32{1, -1}, tensor.Shape{2})
	assert.Equal(t, []float32{1, 1, -1, -1, 1, 1, -1, -1}, b.ExpandChannels(v, x.Shape()).Data())
	assert.Equal(t, []float32{1, 1, 1, 1, -1, -1, -1, -1}, b.ExpandPerSample(v, x.Shape()).Data())
}

func TestMatMul(t *testing.T) {
	b := cpu.New()
	a := mustSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	c := mustSlice(t, []float32{7, 8, 9, 10, 11, 12}, tensor.Shape{3, 2})

	out := b.MatMul(a, c)
	require.Equal(t, tensor.Shape{2, 2}, out.Shape())
	assert.Equal(t, []float32{58, 64, 139, 154}, out.Data())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, b.Transpose(a).Data())
}

func TestConv2D_Known(t *testing.T) {
	b := cpu.New()
	x := mustSlice(t, []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}, tensor.Shape{1, 1, 3, 3})
	w := mustSlice(t, []float32{1, 0, 0, -1}, tensor.Shape{1, 1, 2, 2})

	out := b.Conv2D(x, w, 1, 0)
	require.Equal(t, tensor.Shape{1, 1, 2, 2}, out.Shape())
	assert.Equal(t, []float32{-4, -4, -4, -4}, out.Data())

	// Padding 1 with a 3x3 identity kernel reproduces the input.
	id := tensor.Zeros(tensor.Shape{1, 1, 3, 3})
	id.Data()[4] = 1
	assert.Equal(t, x.Data(), b.Conv2D(x, id, 1, 1).Data())

	// Stride 2, kernel 4, padding 1 halves the spatial size.
	big := tensor.Zeros(tensor.Shape{2, 3, 8, 8})
	k := tensor.Zeros(tensor.Shape{5, 3, 4, 4})
	assert.Equal(t, tensor.Shape{2, 5, 4, 4}, b.Conv2D(big, k, 2, 1).Shape())
}

// The input and weight gradients must be the adjoints of the forward convolution:
// <conv(x,w), g> == <x, inputGrad(g,w)> == <w, weightGrad(x,g)>.
func TestConv2D_Adjoint(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, tc := range []struct {
		name            string
		kernel, stride  int
		padding, hw, ch int
	}{
		{"k3s1p1", 3, 1, 1, 6, 3},
		{"k4s2p1", 4, 2, 1, 8, 2},
		{"k1s1p0", 1, 1, 0, 5, 4},
	} {
		t.Run(tc.name, func(t *testing.T) {
			for _, b := range []*cpu.CPUBackend{
				cpu.New(),
				cpu.NewWithConfig(parallel.Config{Enabled: false}),
			} {
				x := tensor.Randn(tensor.Shape{2, tc.ch, tc.hw, tc.hw}, 0, 1, rng)
				w := tensor.Randn(tensor.Shape{3, tc.ch, tc.kernel, tc.kernel}, 0, 1, rng)
				y := b.Conv2D(x, w, tc.stride, tc.padding)
				g := tensor.Randn(y.Shape(), 0, 1, rng)

				lhs := dot(y, g)
				dx := b.Conv2DInputGrad(g, w, x.Shape(), tc.stride, tc.padding)
				dw := b.Conv2DWeightGrad(x, g, w.Shape(), tc.stride, tc.padding)

				assert.InDelta(t, lhs, dot(x, dx), 1e-3)
				assert.InDelta(t, lhs, dot(w, dw), 1e-3)
			}
		})
	}
}

func TestPixelShuffleRoundTrip(t *testing.T) {
	b := cpu.New()
	rng := rand.New(rand.NewSource(2))
	x := tensor.Randn(tensor.Shape{2, 8, 3, 3}, 0, 1, rng)

	y := b.PixelShuffle(x, 2)
	require.Equal(t, tensor.Shape{2, 2, 6, 6}, y.Shape())
	assert.Equal(t, x.Data(), b.PixelUnshuffle(y, 2).Data())

	// Channel c*r*r + i*r + j lands at spatial offset (i, j).
	one := tensor.Zeros(tensor.Shape{1, 4, 1, 1})
	copy(one.Data(), []float32{1, 2, 3, 4})
	assert.Equal(t, []float32{1, 2, 3, 4}, b.PixelShuffle(one, 2).Data())
}

func TestUpsampleSumPoolAdjoint(t *testing.T) {
	b := cpu.New()
	rng := rand.New(rand.NewSource(3))
	x := tensor.Randn(tensor.Shape{1, 2, 3, 4}, 0, 1, rng)
	up := b.UpsampleNearest(x, 2)
	require.Equal(t, tensor.Shape{1, 2, 6, 8}, up.Shape())
	assert.Equal(t, x.Data()[0], up.Data()[1])

	g := tensor.Randn(up.Shape(), 0, 1, rng)
	assert.InDelta(t, dot(up, g), dot(x, b.SumPool(g, 2)), 1e-4)
}

func TestMaxPool(t *testing.T) {
	b := cpu.New()
	x := mustSlice(t, []float32{
		1, 5, 2, 0,
		3, 4, 8, 1,
		0, 0, 1, 1,
		9, 0, 1, 2,
	}, tensor.Shape{1, 1, 4, 4})

	out, idx := b.MaxPool2D(x, 2, 2)
	assert.Equal(t, []float32{5, 8, 9, 2}, out.Data())
	assert.Equal(t, []int{1, 6, 12, 15}, idx)

	g := mustSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2})
	un := b.MaxUnpool(g, idx, x.Shape())
	assert.Equal(t, float32(2), un.Data()[6])
	assert.Equal(t, float32(0), un.Data()[0])
	assert.Equal(t, out.Data(), b.Gather(x, idx, out.Shape()).Data())
}

func TestChannels(t *testing.T) {
	b := cpu.New()
	rng := rand.New(rand.NewSource(4))
	x := tensor.Randn(tensor.Shape{2, 3, 2, 2}, 0, 1, rng)
	y := tensor.Randn(tensor.Shape{2, 1, 2, 2}, 0, 1, rng)

	cat := b.ConcatChannels([]*tensor.RawTensor{x, y})
	require.Equal(t, tensor.Shape{2, 4, 2, 2}, cat.Shape())
	assert.Equal(t, x.Data(), b.NarrowChannels(cat, 0, 3).Data())
	assert.Equal(t, y.Data(), b.NarrowChannels(cat, 3, 1).Data())

	padded := b.PadChannels(y, 3, 4)
	assert.InDelta(t, dot(cat, padded), dot(y, y), 1e-5)
}
