// Package train drives an SRGANModel through a full run: resume, the
// iteration loop, periodic logging and checkpoints.
package train

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	errorsmod "cosmossdk.io/errors"
	"github.com/google/uuid"

	"github.com/born-ml/srgan/internal/config"
	"github.com/born-ml/srgan/internal/data"
	"github.com/born-ml/srgan/internal/logging"
	"github.com/born-ml/srgan/internal/model"
	"github.com/born-ml/srgan/internal/types"
)

// Result summarises a finished or interrupted run.
type Result struct {
	RunID string
	Epoch int
	Iter  int
	Log   *model.Log
}

// sized is implemented by sources with a fixed number of images.
type sized interface {
	Len() int
}

// Run trains the model described by opt for train.niter iterations. When src
// is nil the source named by datasets.train.mode is opened and closed by Run.
//
// With path.resume_state set, the optimizers, schedulers and position are
// restored from that file, and the networks from the G and D checkpoints of
// the same iteration unless pretrained paths are given.
//
// Cancelling ctx stops the run between iterations; the last completed
// iteration is checkpointed and ctx.Err() returned.
func Run(ctx context.Context, opt *config.Options, src data.Source) (*Result, error) {
	if !opt.IsTrain {
		return nil, errorsmod.Wrap(types.ErrInvalidConfig, "is_train must be set to train")
	}
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	opt = opt.Clone()
	res := &Result{RunID: uuid.New().String()}

	var resume *model.TrainingState
	if path := opt.Path.ResumeState; path != "" {
		state, err := model.ReadTrainingState(path)
		if err != nil {
			return nil, errorsmod.Wrap(err, "resume state")
		}
		resume = state
		resumeNetworks(opt, state.Iter)
	}

	m, err := model.NewSRGANModel(opt)
	if err != nil {
		return nil, err
	}
	m.SetMetadata("run_id", res.RunID)
	m.SetMetadata("name", opt.Name)

	if resume != nil {
		if err := m.ResumeTraining(resume); err != nil {
			return nil, err
		}
		res.Epoch, res.Iter = resume.Epoch, resume.Iter
	}

	if src == nil {
		src, err = data.NewSource(ctx, opt)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := src.Close(); err != nil && !errors.Is(err, context.Canceled) {
				logging.Warn("Closing data source", types.Data, "error", err)
			}
		}()
	}

	itersPerEpoch := opt.Train.NIter
	if s, ok := src.(sized); ok && opt.Datasets.Train.BatchSize > 0 {
		itersPerEpoch = max((s.Len()+opt.Datasets.Train.BatchSize-1)/opt.Datasets.Train.BatchSize, 1)
	}

	logging.Info(fmt.Sprintf("Start training from epoch: %d, iter: %d", res.Epoch, res.Iter), types.Train,
		"run_id", res.RunID, "niter", opt.Train.NIter)

	saved := res.Iter
	for res.Iter < opt.Train.NIter {
		if err := ctx.Err(); err != nil {
			return res, interrupted(m, res, saved, err)
		}
		step := res.Iter + 1

		batch, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return res, interrupted(m, res, saved, ctx.Err())
			}
			return res, errorsmod.Wrapf(err, "iter %d: next batch", step)
		}
		m.UpdateLearningRate()
		m.FeedData(batch, true)
		if err := m.OptimizeParameters(step); err != nil {
			return res, errorsmod.Wrapf(err, "iter %d", step)
		}
		res.Iter = step
		res.Log = m.CurrentLog()
		if step%itersPerEpoch == 0 {
			res.Epoch++
		}

		if step%opt.Logger.PrintFreq == 0 {
			kv := append([]any{"epoch", res.Epoch, "iter", step, "lr", m.CurrentLearningRate()}, res.Log.KeyVals()...)
			logging.Info("Training", types.Train, kv...)
		}
		if step%opt.Logger.SaveCheckpointFreq == 0 {
			logging.Info("Saving models and training states.", types.Train, "iter", step)
			if err := checkpoint(m, res); err != nil {
				return res, err
			}
			saved = step
		}
	}

	if saved != res.Iter {
		logging.Info("Saving the final model.", types.Train, "iter", res.Iter)
		if err := checkpoint(m, res); err != nil {
			return res, err
		}
	}
	logging.Info("End of training.", types.Train, "run_id", res.RunID)
	return res, nil
}

func checkpoint(m *model.SRGANModel, res *Result) error {
	if err := m.Save(res.Iter); err != nil {
		return err
	}
	_, err := m.SaveTrainingState(res.Epoch, res.Iter)
	return err
}

func interrupted(m *model.SRGANModel, res *Result, saved int, cause error) error {
	logging.Warn("Training interrupted", types.Train, "iter", res.Iter, "cause", cause)
	if res.Iter > saved {
		if err := checkpoint(m, res); err != nil {
			return errors.Join(cause, err)
		}
	}
	return cause
}

// resumeNetworks points the pretrained G and D paths at the checkpoints of
// iter when they exist and no path was configured.
func resumeNetworks(opt *config.Options, iter int) {
	paths := []struct {
		label string
		dst   *string
	}{
		{model.LabelG, &opt.Path.PretrainModelG},
		{model.LabelD, &opt.Path.PretrainModelD},
	}
	for _, p := range paths {
		if *p.dst != "" {
			continue
		}
		path := filepath.Join(opt.Path.Models, fmt.Sprintf("%d_%s.pth", iter, p.label))
		if _, err := os.Stat(path); err == nil {
			*p.dst = path
			logging.Info("Set pretrained model from resume state", types.Train, "label", p.label, "path", path)
		}
	}
}
