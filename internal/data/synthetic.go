package data

import (
	"context"
	"math"
	"math/rand"

	"github.com/born-ml/srgan/internal/tensor"
)

// SyntheticConfig sizes a SyntheticSource.
type SyntheticConfig struct {
	BatchSize int
	HRSize    int
	Scale     int
	Channels  int
	Seed      int64
}

// SyntheticSource generates smooth random HR patches: a sum of a few random
// plane waves per channel, mapped to [0, 1].
type SyntheticSource struct {
	cfg SyntheticConfig
	rng *rand.Rand
}

// NewSyntheticSource validates cfg and returns the source.
func NewSyntheticSource(cfg SyntheticConfig) (*SyntheticSource, error) {
	if cfg.Channels == 0 {
		cfg.Channels = 3
	}
	if err := checkPatch(cfg.BatchSize, cfg.HRSize, cfg.Scale); err != nil {
		return nil, err
	}
	return &SyntheticSource{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}, nil
}

const syntheticWaves = 3

// Next returns a new batch.
func (s *SyntheticSource) Next(ctx context.Context) (Batch, error) {
	if err := ctx.Err(); err != nil {
		return Batch{}, err
	}
	n, c, size := s.cfg.BatchSize, s.cfg.Channels, s.cfg.HRSize
	hr := tensor.Zeros(tensor.Shape{n, c, size, size})
	d := hr.Data()
	plane := size * size
	for p := 0; p < n*c; p++ {
		var fx, fy, phase [syntheticWaves]float64
		for k := range fx {
			fx[k] = s.rng.Float64() * 4 * math.Pi / float64(size)
			fy[k] = s.rng.Float64() * 4 * math.Pi / float64(size)
			phase[k] = s.rng.Float64() * 2 * math.Pi
		}
		out := d[p*plane : (p+1)*plane]
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				var v float64
				for k := range fx {
					v += math.Sin(fx[k]*float64(x) + fy[k]*float64(y) + phase[k])
				}
				out[y*size+x] = float32(0.5 + 0.5*v/syntheticWaves)
			}
		}
	}
	return Batch{LR: Downsample(hr, s.cfg.Scale), HR: hr}, nil
}

// Close is a no-op.
func (s *SyntheticSource) Close() error {
	return nil
}
