package cpu

import (
	"fmt"

	"github.com/born-ml/srgan/internal/parallel"
	"github.com/born-ml/srgan/internal/tensor"
)

// MatMul multiplies a [M, K] by b [K, N].
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	as, bs := a.Shape(), b.Shape()
	if len(as) != 2 || len(bs) != 2 || as[1] != bs[0] {
		panic(fmt.Sprintf("matmul: incompatible shapes %s and %s", as, bs))
	}
	m, k, n := as[0], as[1], bs[1]
	out := tensor.Zeros(tensor.Shape{m, n})
	ad, bd, od := a.Data(), b.Data(), out.Data()

	// i-k-j loop order keeps the inner loop contiguous in b and out.
	parallel.For(m, func(i int) {
		row := od[i*n : (i+1)*n]
		for p := 0; p < k; p++ {
			av := ad[i*k+p]
			if av == 0 {
				continue
			}
			brow := bd[p*n : (p+1)*n]
			for j, bv := range brow {
				row[j] += av * bv
			}
		}
	}, cpu.cfg.Coarse())
	return out
}

// Transpose swaps the two axes of a 2D tensor.
func (cpu *CPUBackend) Transpose(a *tensor.RawTensor) *tensor.RawTensor {
	s := a.Shape()
	if len(s) != 2 {
		panic(fmt.Sprintf("transpose: expected 2D, got %s", s))
	}
	m, n := s[0], s[1]
	out := tensor.Zeros(tensor.Shape{n, m})
	ad, od := a.Data(), out.Data()
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			od[j*m+i] = ad[i*n+j]
		}
	}
	return out
}
