package nn

import (
	"math"
	"math/rand"

	errorsmod "cosmossdk.io/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/srgan/internal/logging"
	"github.com/born-ml/srgan/internal/tensor"
	"github.com/born-ml/srgan/internal/types"
)

// Initialisation methods accepted by InitWeights.
const (
	InitNormal     = "normal"
	InitKaiming    = "kaiming"
	InitOrthogonal = "orthogonal"
)

// InitWeights re-initialises every Conv2D, Linear and BatchNorm2D in m.
//
//   - normal: weights ~ N(0, std), BatchNorm gamma ~ N(1, std)
//   - kaiming: weights ~ N(0, 2/fan_in) multiplied by scale
//   - orthogonal: weights reshaped to [out, fan_in] are (semi-)orthogonal
//
// Biases and BatchNorm beta are zeroed; gamma is 1 except for normal.
func InitWeights(m Module, method string, scale, std float64, rng *rand.Rand) error {
	var initWeight func(w *tensor.RawTensor, fanIn int)
	switch method {
	case InitNormal:
		initWeight = func(w *tensor.RawTensor, _ int) { fillNormal(w, 0, std, rng) }
	case InitKaiming:
		initWeight = func(w *tensor.RawTensor, fanIn int) {
			fillNormal(w, 0, math.Sqrt(2/float64(fanIn)), rng)
			scaleInPlace(w, float32(scale))
		}
	case InitOrthogonal:
		initWeight = func(w *tensor.RawTensor, fanIn int) { fillOrthogonal(w, fanIn, rng) }
	default:
		return errorsmod.Wrapf(types.ErrNotImplemented, "initialization method [%s] not implemented", method)
	}
	logging.Info("Initialization method ["+method+"]", types.Network)

	Walk(m, func(mod Module) {
		switch l := mod.(type) {
		case *Conv2D:
			initWeight(l.weight.Value(), l.fanIn())
			if l.bias != nil {
				fill(l.bias.Value(), 0)
			}
		case *Linear:
			initWeight(l.weight.Value(), l.inFeatures)
			if l.bias != nil {
				fill(l.bias.Value(), 0)
			}
		case *BatchNorm2D:
			if method == InitNormal {
				fillNormal(l.weight.Value(), 1, std, rng)
			} else {
				fill(l.weight.Value(), 1)
			}
			fill(l.bias.Value(), 0)
		}
	})
	return nil
}

func fill(t *tensor.RawTensor, v float32) {
	d := t.Data()
	for i := range d {
		d[i] = v
	}
}

func fillNormal(t *tensor.RawTensor, mean, std float64, rng *rand.Rand) {
	d := t.Data()
	for i := range d {
		d[i] = float32(rng.NormFloat64()*std + mean)
	}
}

func scaleInPlace(t *tensor.RawTensor, s float32) {
	d := t.Data()
	for i := range d {
		d[i] *= s
	}
}

// fillOrthogonal writes a matrix with orthonormal rows or columns (whichever
// is fewer) into t viewed as [rows, cols], using the QR decomposition of a
// Gaussian matrix with the sign of R's diagonal folded into Q.
func fillOrthogonal(t *tensor.RawTensor, cols int, rng *rand.Rand) {
	rows := t.NumElements() / cols
	m, n := rows, cols
	transposed := rows < cols
	if transposed {
		m, n = cols, rows
	}

	gauss := make([]float64, m*n)
	for i := range gauss {
		gauss[i] = rng.NormFloat64()
	}
	var qr mat.QR
	qr.Factorize(mat.NewDense(m, n, gauss))
	var q, r mat.Dense
	qr.QTo(&q)
	qr.RTo(&r)

	d := t.Data()
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			v := q.At(i, j)
			if r.At(j, j) < 0 {
				v = -v
			}
			if transposed {
				d[j*cols+i] = float32(v)
			} else {
				d[i*cols+j] = float32(v)
			}
		}
	}
}
