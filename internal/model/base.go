// Package model implements the SRGAN training model: the generator,
// discriminator and optional feature network together with their losses,
// optimizers, schedules and checkpoints.
//
// BaseModel carries what every model needs (device, optimizer and scheduler
// lists, network and training-state files). SRGANModel embeds it and adds the
// adversarial training step.
package model

import (
	"fmt"
	"path/filepath"
	"strconv"

	errorsmod "cosmossdk.io/errors"

	"github.com/born-ml/srgan/internal/autodiff"
	"github.com/born-ml/srgan/internal/config"
	"github.com/born-ml/srgan/internal/device"
	"github.com/born-ml/srgan/internal/logging"
	"github.com/born-ml/srgan/internal/nn"
	"github.com/born-ml/srgan/internal/optim"
	"github.com/born-ml/srgan/internal/serialization"
	"github.com/born-ml/srgan/internal/tensor"
	"github.com/born-ml/srgan/internal/types"
)

// TrainingState is everything needed to resume a run besides the network
// weights.
type TrainingState struct {
	Epoch      int                     `json:"epoch"`
	Iter       int                     `json:"iter"`
	Optimizers []*optim.AdamState      `json:"optimizers"`
	Schedulers []*optim.SchedulerState `json:"schedulers"`
}

// BaseModel holds the device and the optimizer/scheduler bookkeeping shared
// by models.
type BaseModel struct {
	opt      *config.Options
	device   *device.Device
	eng      *autodiff.Engine
	isTrain  bool
	metadata map[string]string

	optimizers []*optim.Adam
	schedulers []optim.Scheduler
}

// NewBaseModel selects the device named by opt.gpu_ids. The model keeps its
// own copy of opt.
func NewBaseModel(opt *config.Options) (*BaseModel, error) {
	dev, err := device.Select(opt.GPUIDs)
	if err != nil {
		return nil, err
	}
	return &BaseModel{
		opt:      opt.Clone(),
		device:   dev,
		eng:      dev.Engine(),
		isTrain:  opt.IsTrain,
		metadata: map[string]string{},
	}, nil
}

// Options returns the options of the run.
func (m *BaseModel) Options() *config.Options {
	return m.opt
}

// Device returns the execution device.
func (m *BaseModel) Device() *device.Device {
	return m.device
}

// Engine returns the autodiff engine the networks are built on.
func (m *BaseModel) Engine() *autodiff.Engine {
	return m.eng
}

// IsTrain reports whether the model was built for training.
func (m *BaseModel) IsTrain() bool {
	return m.isTrain
}

// SetMetadata adds key=value to the metadata of every file the model writes.
func (m *BaseModel) SetMetadata(key, value string) {
	m.metadata[key] = value
}

// Optimizers returns the optimizers in registration order.
func (m *BaseModel) Optimizers() []*optim.Adam {
	return m.optimizers
}

// Schedulers returns the schedulers in registration order.
func (m *BaseModel) Schedulers() []optim.Scheduler {
	return m.schedulers
}

// UpdateLearningRate steps every scheduler once.
func (m *BaseModel) UpdateLearningRate() {
	for _, s := range m.schedulers {
		s.Step()
	}
}

// CurrentLearningRate returns the learning rate of the first scheduler, or 0
// when the model has none.
func (m *BaseModel) CurrentLearningRate() float64 {
	if len(m.schedulers) == 0 {
		return 0
	}
	return m.schedulers[0].LR()
}

// NetworkDescription returns the printed structure of net and its number of
// parameter elements.
func (m *BaseModel) NetworkDescription(net nn.Module) (string, int) {
	return net.String(), nn.CountParameters(net)
}

// NetworkFile returns the path SaveNetwork writes for label at iter.
func (m *BaseModel) NetworkFile(label string, iter int) string {
	return filepath.Join(m.opt.Path.Models, fmt.Sprintf("%d_%s.pth", iter, label))
}

// TrainingStateFile returns the path SaveTrainingState writes at iter.
func (m *BaseModel) TrainingStateFile(iter int) string {
	return filepath.Join(m.opt.Path.TrainingState, fmt.Sprintf("%d.state", iter))
}

// SaveNetwork writes host copies of every parameter and buffer of net to
// <models>/<iter>_<label>.pth.
func (m *BaseModel) SaveNetwork(net nn.Module, label string, iter int) (string, error) {
	sd := nn.State(net)
	for name, raw := range sd {
		sd[name] = m.device.ToHost(raw)
	}
	path := m.NetworkFile(label, iter)
	err := serialization.WriteFile(path, sd, serialization.WriteOptions{
		Kind:      serialization.KindNetwork,
		ModelType: className(net),
		Metadata:  m.fileMetadata("label", label, "iter", strconv.Itoa(iter)),
	})
	if err != nil {
		return "", errorsmod.Wrapf(err, "save network %s", label)
	}
	logging.Debug("Saved network", types.Checkpoint, "label", label, "path", path)
	return path, nil
}

// LoadNetwork loads the weights at path into net. Strict loading requires the
// file and the network to have exactly the same names.
func (m *BaseModel) LoadNetwork(path string, net nn.Module, strict bool) error {
	f, err := serialization.ReadFile(path)
	if err != nil {
		return err
	}
	if f.Header.Kind != serialization.KindNetwork {
		return errorsmod.Wrapf(types.ErrInvalidCheckpoint, "%s holds %s, not network weights", path, f.Header.Kind)
	}
	if err := nn.LoadState(net, f.Tensors, strict); err != nil {
		return errorsmod.Wrapf(err, "load %s", path)
	}
	return nil
}

// SaveTrainingState writes epoch, iter and the state of every optimizer and
// scheduler to <training_state>/<iter>.state.
//
// Scalars go to the JSON block of the file; the Adam moments are stored as
// tensors named optimizers.<i>.exp_avg.<j> and optimizers.<i>.exp_avg_sq.<j>.
func (m *BaseModel) SaveTrainingState(epoch, iter int) (string, error) {
	state := TrainingState{Epoch: epoch, Iter: iter}
	tensors := make(map[string]*tensor.RawTensor)
	for i, o := range m.optimizers {
		s := o.State()
		for j := range s.Steps {
			if s.ExpAvg[j] == nil {
				continue
			}
			tensors[momentName(i, "exp_avg", j)] = m.device.ToHost(s.ExpAvg[j])
			tensors[momentName(i, "exp_avg_sq", j)] = m.device.ToHost(s.ExpAvgSq[j])
		}
		state.Optimizers = append(state.Optimizers, s)
	}
	for _, s := range m.schedulers {
		state.Schedulers = append(state.Schedulers, s.State())
	}

	path := m.TrainingStateFile(iter)
	err := serialization.WriteFile(path, tensors, serialization.WriteOptions{
		Kind:          serialization.KindTrainingState,
		Metadata:      m.fileMetadata("iter", strconv.Itoa(iter)),
		TrainingState: state,
	})
	if err != nil {
		return "", errorsmod.Wrap(err, "save training state")
	}
	logging.Debug("Saved training state", types.Checkpoint, "epoch", epoch, "iter", iter, "path", path)
	return path, nil
}

// LoadTrainingState reads a file written by SaveTrainingState.
func (m *BaseModel) LoadTrainingState(path string) (*TrainingState, error) {
	return ReadTrainingState(path)
}

// ReadTrainingState reads a file written by SaveTrainingState and reattaches
// the Adam moments to their optimizer states.
func ReadTrainingState(path string) (*TrainingState, error) {
	f, err := serialization.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if f.Header.Kind != serialization.KindTrainingState {
		return nil, errorsmod.Wrapf(types.ErrInvalidCheckpoint, "%s holds %s, not a training state", path, f.Header.Kind)
	}
	var state TrainingState
	if err := f.DecodeTrainingState(&state); err != nil {
		return nil, err
	}

	used := 0
	for i, s := range state.Optimizers {
		if s == nil {
			return nil, errorsmod.Wrapf(types.ErrInvalidCheckpoint, "optimizer %d has no state", i)
		}
		s.ExpAvg = make([]*tensor.RawTensor, len(s.Steps))
		s.ExpAvgSq = make([]*tensor.RawTensor, len(s.Steps))
		for j, step := range s.Steps {
			if step == 0 {
				continue
			}
			m, v := f.Tensors[momentName(i, "exp_avg", j)], f.Tensors[momentName(i, "exp_avg_sq", j)]
			if m == nil || v == nil {
				return nil, errorsmod.Wrapf(types.ErrInvalidCheckpoint,
					"optimizer %d parameter %d: moments missing from %s", i, j, path)
			}
			s.ExpAvg[j], s.ExpAvgSq[j] = m, v
			used += 2
		}
	}
	if used != len(f.Tensors) {
		return nil, errorsmod.Wrapf(types.ErrInvalidCheckpoint,
			"%s holds %d tensors, optimizer states reference %d", path, len(f.Tensors), used)
	}
	return &state, nil
}

// ResumeTraining restores the optimizers and schedulers from state. The
// state must hold exactly one entry per optimizer and per scheduler.
func (m *BaseModel) ResumeTraining(state *TrainingState) error {
	if len(state.Optimizers) != len(m.optimizers) {
		return errorsmod.Wrapf(types.ErrStateMismatch,
			"Wrong lengths of optimizers: state has %d, model has %d", len(state.Optimizers), len(m.optimizers))
	}
	if len(state.Schedulers) != len(m.schedulers) {
		return errorsmod.Wrapf(types.ErrStateMismatch,
			"Wrong lengths of schedulers: state has %d, model has %d", len(state.Schedulers), len(m.schedulers))
	}
	for i, s := range state.Optimizers {
		if err := m.optimizers[i].LoadState(s); err != nil {
			return errorsmod.Wrapf(err, "optimizer %d", i)
		}
	}
	for i, s := range state.Schedulers {
		if err := m.schedulers[i].LoadState(s); err != nil {
			return errorsmod.Wrapf(err, "scheduler %d", i)
		}
	}
	logging.Info("Resumed training state", types.Checkpoint, "epoch", state.Epoch, "iter", state.Iter)
	return nil
}

func (m *BaseModel) fileMetadata(kv ...string) map[string]string {
	md := make(map[string]string, len(m.metadata)+len(kv)/2)
	for k, v := range m.metadata {
		md[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		md[kv[i]] = kv[i+1]
	}
	return md
}

func momentName(opt int, kind string, param int) string {
	return fmt.Sprintf("optimizers.%d.%s.%d", opt, kind, param)
}

// className returns the architecture name of net.
func className(net nn.Module) string {
	if c, ok := net.(interface{ Class() string }); ok {
		return c.Class()
	}
	return fmt.Sprintf("%T", net)
}
