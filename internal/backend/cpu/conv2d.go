package cpu

import (
	"fmt"

	"github.com/born-ml/srgan/internal/parallel"
	"github.com/born-ml/srgan/internal/tensor"
)

// ConvOutputSize returns the spatial output size of a convolution.
func ConvOutputSize(in, kernel, stride, padding int) int {
	return (in+2*padding-kernel)/stride + 1
}

type convDims struct {
	n, cin, h, w    int
	cout, kh, kw    int
	hout, wout      int
	stride, padding int
}

func newConvDims(op string, xShape, wShape tensor.Shape, stride, padding int) convDims {
	if len(xShape) != 4 {
		panic(fmt.Sprintf("%s: input must be 4D [N,C,H,W], got %s", op, xShape))
	}
	if len(wShape) != 4 {
		panic(fmt.Sprintf("%s: kernel must be 4D [C_out,C_in,K_h,K_w], got %s", op, wShape))
	}
	if xShape[1] != wShape[1] {
		panic(fmt.Sprintf("%s: input channels %d != kernel channels %d", op, xShape[1], wShape[1]))
	}
	d := convDims{
		n: xShape[0], cin: xShape[1], h: xShape[2], w: xShape[3],
		cout: wShape[0], kh: wShape[2], kw: wShape[3],
		stride: stride, padding: padding,
	}
	d.hout = ConvOutputSize(d.h, d.kh, stride, padding)
	d.wout = ConvOutputSize(d.w, d.kw, stride, padding)
	if d.hout <= 0 || d.wout <= 0 {
		panic(fmt.Sprintf("%s: invalid output dimensions %dx%d (check stride/padding)", op, d.hout, d.wout))
	}
	return d
}

// Conv2D performs a direct 2D cross-correlation.
//
// Input shape:  [N, C_in, H, W]
// Kernel shape: [C_out, C_in, K_h, K_w]
// Output shape: [N, C_out, H_out, W_out]
//
// Each (sample, output channel) plane is computed by one worker.
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	d := newConvDims("conv2d", input.Shape(), kernel.Shape(), stride, padding)
	out := tensor.Zeros(tensor.Shape{d.n, d.cout, d.hout, d.wout})
	xd, wd, od := input.Data(), kernel.Data(), out.Data()
	plane := d.hout * d.wout

	parallel.ForBatch(d.n, d.cout, func(b, co int) {
		dst := od[(b*d.cout+co)*plane : (b*d.cout+co+1)*plane]
		for ci := 0; ci < d.cin; ci++ {
			src := xd[(b*d.cin+ci)*d.h*d.w : (b*d.cin+ci+1)*d.h*d.w]
			kbase := ((co*d.cin + ci) * d.kh) * d.kw
			for ky := 0; ky < d.kh; ky++ {
				for kx := 0; kx < d.kw; kx++ {
					wv := wd[kbase+ky*d.kw+kx]
					if wv == 0 {
						continue
					}
					for oy := 0; oy < d.hout; oy++ {
						iy := oy*stride - padding + ky
						if iy < 0 || iy >= d.h {
							continue
						}
						srow := src[iy*d.w : (iy+1)*d.w]
						drow := dst[oy*d.wout : (oy+1)*d.wout]
						for ox := range drow {
							ix := ox*stride - padding + kx
							if ix < 0 || ix >= d.w {
								continue
							}
							drow[ox] += wv * srow[ix]
						}
					}
				}
			}
		}
	}, cpu.cfg.Coarse())
	return out
}

// Conv2DInputGrad computes the gradient of Conv2D with respect to its input,
// i.e. the transposed convolution of grad with kernel back to inputShape.
func (cpu *CPUBackend) Conv2DInputGrad(grad, kernel *tensor.RawTensor, inputShape tensor.Shape, stride, padding int) *tensor.RawTensor {
	d := newConvDims("conv2d_input_grad", inputShape, kernel.Shape(), stride, padding)
	gs := grad.Shape()
	if len(gs) != 4 || gs[0] != d.n || gs[1] != d.cout || gs[2] != d.hout || gs[3] != d.wout {
		panic(fmt.Sprintf("conv2d_input_grad: grad %s does not match output of %s", gs, inputShape))
	}
	out := tensor.Zeros(inputShape)
	gd, wd, od := grad.Data(), kernel.Data(), out.Data()
	plane := d.hout * d.wout

	parallel.ForBatch(d.n, d.cin, func(b, ci int) {
		dst := od[(b*d.cin+ci)*d.h*d.w : (b*d.cin+ci+1)*d.h*d.w]
		for co := 0; co < d.cout; co++ {
			src := gd[(b*d.cout+co)*plane : (b*d.cout+co+1)*plane]
			kbase := ((co*d.cin + ci) * d.kh) * d.kw
			for ky := 0; ky < d.kh; ky++ {
				for kx := 0; kx < d.kw; kx++ {
					wv := wd[kbase+ky*d.kw+kx]
					if wv == 0 {
						continue
					}
					for oy := 0; oy < d.hout; oy++ {
						iy := oy*stride - padding + ky
						if iy < 0 || iy >= d.h {
							continue
						}
						grow := src[oy*d.wout : (oy+1)*d.wout]
						drow := dst[iy*d.w : (iy+1)*d.w]
						for ox, gv := range grow {
							ix := ox*stride - padding + kx
							if ix < 0 || ix >= d.w {
								continue
							}
							drow[ix] += wv * gv
						}
					}
				}
			}
		}
	}, cpu.cfg.Coarse())
	return out
}

// Conv2DWeightGrad computes the gradient of Conv2D with respect to its kernel
// of shape kernelShape, given the forward input and the output gradient.
func (cpu *CPUBackend) Conv2DWeightGrad(input, grad *tensor.RawTensor, kernelShape tensor.Shape, stride, padding int) *tensor.RawTensor {
	d := newConvDims("conv2d_weight_grad", input.Shape(), kernelShape, stride, padding)
	gs := grad.Shape()
	if len(gs) != 4 || gs[0] != d.n || gs[1] != d.cout || gs[2] != d.hout || gs[3] != d.wout {
		panic(fmt.Sprintf("conv2d_weight_grad: grad %s does not match kernel %s", gs, kernelShape))
	}
	out := tensor.Zeros(kernelShape)
	xd, gd, od := input.Data(), grad.Data(), out.Data()
	plane := d.hout * d.wout

	parallel.ForBatch(d.cout, d.cin, func(co, ci int) {
		kbase := ((co*d.cin + ci) * d.kh) * d.kw
		for ky := 0; ky < d.kh; ky++ {
			for kx := 0; kx < d.kw; kx++ {
				var acc float64
				for b := 0; b < d.n; b++ {
					src := xd[(b*d.cin+ci)*d.h*d.w : (b*d.cin+ci+1)*d.h*d.w]
					gsrc := gd[(b*d.cout+co)*plane : (b*d.cout+co+1)*plane]
					for oy := 0; oy < d.hout; oy++ {
						iy := oy*stride - padding + ky
						if iy < 0 || iy >= d.h {
							continue
						}
						srow := src[iy*d.w : (iy+1)*d.w]
						grow := gsrc[oy*d.wout : (oy+1)*d.wout]
						var rowAcc float32
						for ox, gv := range grow {
							ix := ox*stride - padding + kx
							if ix < 0 || ix >= d.w {
								continue
							}
							rowAcc += gv * srow[ix]
						}
						acc += float64(rowAcc)
					}
				}
				od[kbase+ky*d.kw+kx] = float32(acc)
			}
		}
	}, cpu.cfg.Coarse())
	return out
}
