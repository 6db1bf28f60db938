package autodiff

import (
	"github.com/born-ml/srgan/internal/tensor"
)

// Conv2D convolves v [N, Cin, H, W] with w [Cout, Cin, kH, kW].
//
// The three convolution kernels form a closed set under differentiation:
// each one's gradients are expressed with the other two, so second-order
// gradients through a convolution are exact.
func (v *Variable) Conv2D(w *Variable, stride, padding int) *Variable {
	b := v.eng.backend
	xShape, wShape := v.Shape().Clone(), w.Shape().Clone()
	return v.eng.record("conv2d", b.Conv2D(v.value, w.value, stride, padding), []*Variable{v, w}, func(g *Variable) []*Variable {
		return []*Variable{
			g.conv2DInputGrad(w, xShape, stride, padding),
			v.conv2DWeightGrad(g, wShape, stride, padding),
		}
	})
}

// conv2DInputGrad is the transposed convolution of the output gradient v with w.
func (v *Variable) conv2DInputGrad(w *Variable, inputShape tensor.Shape, stride, padding int) *Variable {
	b := v.eng.backend
	wShape := w.Shape().Clone()
	value := b.Conv2DInputGrad(v.value, w.value, inputShape, stride, padding)
	return v.eng.record("conv2d_input_grad", value, []*Variable{v, w}, func(g *Variable) []*Variable {
		return []*Variable{
			g.Conv2D(w, stride, padding),
			g.conv2DWeightGrad(v, wShape, stride, padding),
		}
	})
}

// conv2DWeightGrad correlates the input v with the output gradient dy.
func (v *Variable) conv2DWeightGrad(dy *Variable, kernelShape tensor.Shape, stride, padding int) *Variable {
	b := v.eng.backend
	xShape := v.Shape().Clone()
	value := b.Conv2DWeightGrad(v.value, dy.value, kernelShape, stride, padding)
	return v.eng.record("conv2d_weight_grad", value, []*Variable{v, dy}, func(g *Variable) []*Variable {
		return []*Variable{
			dy.conv2DInputGrad(g, xShape, stride, padding),
			v.Conv2D(g, stride, padding),
		}
	})
}

// MatMul returns the matrix product of v [M, K] and o [K, N].
func (v *Variable) MatMul(o *Variable) *Variable {
	b := v.eng.backend
	return v.eng.record("matmul", b.MatMul(v.value, o.value), []*Variable{v, o}, func(g *Variable) []*Variable {
		return []*Variable{g.MatMul(o.T()), v.T().MatMul(g)}
	})
}

// T transposes a 2D variable.
func (v *Variable) T() *Variable {
	b := v.eng.backend
	return v.eng.record("transpose", b.Transpose(v.value), []*Variable{v}, func(g *Variable) []*Variable {
		return []*Variable{g.T()}
	})
}
