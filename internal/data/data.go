// Package data produces the LR/HR training batches.
//
// A Source yields batches of HR patches of datasets.train.HR_size together
// with their LR counterparts, box-downsampled by the model scale. Two sources
// exist: a synthetic one that needs no files, and one that crops images from
// a directory and prefetches batches in worker goroutines.
package data

import (
	"context"

	errorsmod "cosmossdk.io/errors"

	"github.com/born-ml/srgan/internal/backend/cpu"
	"github.com/born-ml/srgan/internal/config"
	"github.com/born-ml/srgan/internal/tensor"
	"github.com/born-ml/srgan/internal/types"
)

// Dataset modes accepted by NewSource.
const (
	ModeSynthetic = "synthetic"
	ModeFolder    = "folder"
)

// Batch is one training step of input. Tensors are [N, C, H, W] with values
// in [0, 1]. Ref is the discriminator reference; nil means HR.
type Batch struct {
	LR  *tensor.RawTensor
	HR  *tensor.RawTensor
	Ref *tensor.RawTensor
}

// Size returns the number of samples in b.
func (b Batch) Size() int {
	if b.LR == nil {
		return 0
	}
	return b.LR.Shape()[0]
}

// Source yields training batches until the context is cancelled.
type Source interface {
	Next(ctx context.Context) (Batch, error)
	Close() error
}

// NewSource returns the source named by opt.datasets.train.mode.
func NewSource(ctx context.Context, opt *config.Options) (Source, error) {
	ds := opt.Datasets.Train
	seed := opt.ManualSeed
	switch ds.Mode {
	case ModeSynthetic:
		return NewSyntheticSource(SyntheticConfig{
			BatchSize: ds.BatchSize,
			HRSize:    ds.HRSize,
			Scale:     opt.NetworkG.Scale,
			Channels:  opt.NetworkG.OutNC,
			Seed:      seed,
		})
	case ModeFolder:
		return NewFolderSource(ctx, FolderConfig{
			Root:      ds.DataRootHR,
			BatchSize: ds.BatchSize,
			HRSize:    ds.HRSize,
			Scale:     opt.NetworkG.Scale,
			Workers:   ds.NWorkers,
			UseFlip:   ds.UseFlip,
			UseRot:    ds.UseRot,
			Seed:      seed,
		})
	default:
		return nil, errorsmod.Wrapf(types.ErrNotImplemented, "dataset mode [%s] is not recognized", ds.Mode)
	}
}

// Downsample box-filters x [N, C, H, W] by scale.
func Downsample(x *tensor.RawTensor, scale int) *tensor.RawTensor {
	if scale == 1 {
		return x.Clone()
	}
	b := cpu.New()
	return b.Scale(b.SumPool(x, scale), 1/float32(scale*scale))
}

func checkPatch(batchSize, hrSize, scale int) error {
	if batchSize <= 0 || hrSize <= 0 {
		return errorsmod.Wrapf(types.ErrInvalidConfig, "batch_size %d and HR_size %d must be positive", batchSize, hrSize)
	}
	if scale <= 0 || hrSize%scale != 0 {
		return errorsmod.Wrapf(types.ErrInvalidConfig, "HR_size %d is not divisible by scale %d", hrSize, scale)
	}
	return nil
}
