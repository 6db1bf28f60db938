package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/srgan/internal/parallel"
	"github.com/born-ml/srgan/internal/tensor"
)

func mustNCHW(op string, s tensor.Shape) (n, c, h, w int) {
	if len(s) != 4 {
		panic(fmt.Sprintf("%s: expected 4D [N,C,H,W], got %s", op, s))
	}
	return s[0], s[1], s[2], s[3]
}

// PixelShuffle rearranges [N, C*r*r, H, W] into [N, C, H*r, W*r].
func (cpu *CPUBackend) PixelShuffle(x *tensor.RawTensor, r int) *tensor.RawTensor {
	n, cin, h, w := mustNCHW("pixel_shuffle", x.Shape())
	if cin%(r*r) != 0 {
		panic(fmt.Sprintf("pixel_shuffle: %d channels not divisible by %d", cin, r*r))
	}
	c := cin / (r * r)
	out := tensor.Zeros(tensor.Shape{n, c, h * r, w * r})
	xd, od := x.Data(), out.Data()
	ho, wo := h*r, w*r
	parallel.ForBatch(n, c, func(b, ch int) {
		for i := 0; i < r; i++ {
			for j := 0; j < r; j++ {
				src := xd[((b*cin)+ch*r*r+i*r+j)*h*w:]
				dst := od[(b*c+ch)*ho*wo:]
				for y := 0; y < h; y++ {
					for xx := 0; xx < w; xx++ {
						dst[(y*r+i)*wo+xx*r+j] = src[y*w+xx]
					}
				}
			}
		}
	}, cpu.cfg.Coarse())
	return out
}

// PixelUnshuffle is the inverse of PixelShuffle: [N, C, H*r, W*r] to [N, C*r*r, H, W].
func (cpu *CPUBackend) PixelUnshuffle(x *tensor.RawTensor, r int) *tensor.RawTensor {
	n, c, ho, wo := mustNCHW("pixel_unshuffle", x.Shape())
	if ho%r != 0 || wo%r != 0 {
		panic(fmt.Sprintf("pixel_unshuffle: %dx%d not divisible by %d", ho, wo, r))
	}
	h, w := ho/r, wo/r
	cout := c * r * r
	out := tensor.Zeros(tensor.Shape{n, cout, h, w})
	xd, od := x.Data(), out.Data()
	parallel.ForBatch(n, c, func(b, ch int) {
		src := xd[(b*c+ch)*ho*wo:]
		for i := 0; i < r; i++ {
			for j := 0; j < r; j++ {
				dst := od[((b*cout)+ch*r*r+i*r+j)*h*w:]
				for y := 0; y < h; y++ {
					for xx := 0; xx < w; xx++ {
						dst[y*w+xx] = src[(y*r+i)*wo+xx*r+j]
					}
				}
			}
		}
	}, cpu.cfg.Coarse())
	return out
}

// UpsampleNearest repeats every pixel s times along both spatial axes.
func (cpu *CPUBackend) UpsampleNearest(x *tensor.RawTensor, s int) *tensor.RawTensor {
	n, c, h, w := mustNCHW("upsample_nearest", x.Shape())
	ho, wo := h*s, w*s
	out := tensor.Zeros(tensor.Shape{n, c, ho, wo})
	xd, od := x.Data(), out.Data()
	parallel.For(n*c, func(p int) {
		src := xd[p*h*w : (p+1)*h*w]
		dst := od[p*ho*wo : (p+1)*ho*wo]
		for y := 0; y < ho; y++ {
			srow := src[(y/s)*w : (y/s+1)*w]
			drow := dst[y*wo : (y+1)*wo]
			for xx := range drow {
				drow[xx] = srow[xx/s]
			}
		}
	}, cpu.cfg.Coarse())
	return out
}

// SumPool adds every non-overlapping s×s window. It is the adjoint of UpsampleNearest.
func (cpu *CPUBackend) SumPool(x *tensor.RawTensor, s int) *tensor.RawTensor {
	n, c, ho, wo := mustNCHW("sum_pool", x.Shape())
	if ho%s != 0 || wo%s != 0 {
		panic(fmt.Sprintf("sum_pool: %dx%d not divisible by %d", ho, wo, s))
	}
	h, w := ho/s, wo/s
	out := tensor.Zeros(tensor.Shape{n, c, h, w})
	xd, od := x.Data(), out.Data()
	parallel.For(n*c, func(p int) {
		src := xd[p*ho*wo : (p+1)*ho*wo]
		dst := od[p*h*w : (p+1)*h*w]
		for y := 0; y < ho; y++ {
			srow := src[y*wo : (y+1)*wo]
			drow := dst[(y/s)*w : (y/s+1)*w]
			for xx, v := range srow {
				drow[xx/s] += v
			}
		}
	}, cpu.cfg.Coarse())
	return out
}

// MaxPool2D takes the maximum over k×k windows with the given stride and no padding.
// It also returns, for every output element, the flat index of the chosen input element.
func (cpu *CPUBackend) MaxPool2D(x *tensor.RawTensor, k, stride int) (*tensor.RawTensor, []int) {
	n, c, h, w := mustNCHW("maxpool2d", x.Shape())
	ho := ConvOutputSize(h, k, stride, 0)
	wo := ConvOutputSize(w, k, stride, 0)
	if ho <= 0 || wo <= 0 {
		panic(fmt.Sprintf("maxpool2d: input %dx%d too small for kernel %d", h, w, k))
	}
	out := tensor.Zeros(tensor.Shape{n, c, ho, wo})
	idx := make([]int, out.NumElements())
	xd, od := x.Data(), out.Data()
	parallel.For(n*c, func(p int) {
		base := p * h * w
		for oy := 0; oy < ho; oy++ {
			for ox := 0; ox < wo; ox++ {
				best := float32(math.Inf(-1))
				bestIdx := -1
				for ky := 0; ky < k; ky++ {
					for kx := 0; kx < k; kx++ {
						i := base + (oy*stride+ky)*w + ox*stride + kx
						if bestIdx < 0 || xd[i] > best {
							best, bestIdx = xd[i], i
						}
					}
				}
				o := p*ho*wo + oy*wo + ox
				od[o] = best
				idx[o] = bestIdx
			}
		}
	}, cpu.cfg.Coarse())
	return out, idx
}

// MaxUnpool scatters grad back to the positions recorded by MaxPool2D.
func (cpu *CPUBackend) MaxUnpool(grad *tensor.RawTensor, idx []int, inputShape tensor.Shape) *tensor.RawTensor {
	if len(idx) != grad.NumElements() {
		panic(fmt.Sprintf("max_unpool: %d indices for %d gradients", len(idx), grad.NumElements()))
	}
	out := tensor.Zeros(inputShape)
	n, c, _, _ := mustNCHW("max_unpool", grad.Shape())
	per := grad.NumElements() / (n * c)
	gd, od := grad.Data(), out.Data()
	// Indices never leave their (sample, channel) plane, so planes are independent.
	parallel.For(n*c, func(p int) {
		for o := p * per; o < (p+1)*per; o++ {
			od[idx[o]] += gd[o]
		}
	}, cpu.cfg.Coarse())
	return out
}

// Gather reads x at the flat indices idx into a tensor of the given shape.
func (cpu *CPUBackend) Gather(x *tensor.RawTensor, idx []int, shape tensor.Shape) *tensor.RawTensor {
	out := tensor.Zeros(shape)
	if len(idx) != out.NumElements() {
		panic(fmt.Sprintf("gather: %d indices for shape %s", len(idx), shape))
	}
	xd, od := x.Data(), out.Data()
	parallel.For(len(od), func(i int) {
		od[i] = xd[idx[i]]
	}, cpu.cfg)
	return out
}
