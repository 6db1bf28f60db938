package optim

import (
	"math"
	"sort"

	errorsmod "cosmossdk.io/errors"

	"github.com/born-ml/srgan/internal/types"
)

// SchemeMultiStepLR is the only supported learning-rate scheme.
const SchemeMultiStepLR = "MultiStepLR"

// Scheduler adjusts the learning rate of one optimizer once per iteration.
type Scheduler interface {
	// Step advances the schedule by one iteration and updates the optimizer.
	Step()

	// LR returns the learning rate of the current iteration.
	LR() float64

	// State returns a copy of the schedule position.
	State() *SchedulerState

	// LoadState restores a position returned by State.
	LoadState(s *SchedulerState) error
}

// NewScheduler returns the schedule named scheme for opt.
func NewScheduler(scheme string, opt Optimizer, milestones []int, gamma float64) (Scheduler, error) {
	if scheme != SchemeMultiStepLR {
		return nil, errorsmod.Wrapf(types.ErrNotImplemented,
			"learning rate scheme [%s]: MultiStepLR learning rate scheme is enough", scheme)
	}
	return NewMultiStepLR(opt, milestones, gamma), nil
}

// MultiStepLR multiplies the initial learning rate by gamma once for every
// milestone reached:
//
//	lr(epoch) = base_lr * gamma^|{m in milestones : m <= epoch}|
//
// A milestone listed twice decays twice.
type MultiStepLR struct {
	opt        Optimizer
	milestones []int
	gamma      float64
	baseLR     float64
	lastEpoch  int
}

// NewMultiStepLR creates the schedule and applies epoch 0 to opt.
func NewMultiStepLR(opt Optimizer, milestones []int, gamma float64) *MultiStepLR {
	ms := append([]int(nil), milestones...)
	sort.Ints(ms)
	s := &MultiStepLR{
		opt:        opt,
		milestones: ms,
		gamma:      gamma,
		baseLR:     opt.InitialLR(),
		lastEpoch:  -1,
	}
	s.Step()
	return s
}

// Step moves to the next epoch and sets the optimizer learning rate.
func (s *MultiStepLR) Step() {
	s.lastEpoch++
	s.opt.SetLR(s.lr())
}

func (s *MultiStepLR) lr() float64 {
	passed := sort.Search(len(s.milestones), func(i int) bool { return s.milestones[i] > s.lastEpoch })
	return s.baseLR * math.Pow(s.gamma, float64(passed))
}

// LR returns the learning rate of the current epoch.
func (s *MultiStepLR) LR() float64 {
	return s.lr()
}

// LastEpoch returns the number of Step calls after the initial one.
func (s *MultiStepLR) LastEpoch() int {
	return s.lastEpoch
}

// SchedulerState is the JSON-serialisable position of a schedule.
type SchedulerState struct {
	Milestones []int     `json:"milestones"`
	Gamma      float64   `json:"gamma"`
	BaseLRs    []float64 `json:"base_lrs"`
	LastEpoch  int       `json:"last_epoch"`
}

// State returns a copy of the schedule position.
func (s *MultiStepLR) State() *SchedulerState {
	return &SchedulerState{
		Milestones: append([]int(nil), s.milestones...),
		Gamma:      s.gamma,
		BaseLRs:    []float64{s.baseLR},
		LastEpoch:  s.lastEpoch,
	}
}

// LoadState restores a schedule position. The optimizer learning rate is
// restored by the optimizer state, not here.
func (s *MultiStepLR) LoadState(st *SchedulerState) error {
	if len(st.BaseLRs) != 1 {
		return errorsmod.Wrapf(types.ErrStateMismatch, "scheduler state has %d base learning rates, want 1", len(st.BaseLRs))
	}
	ms := append([]int(nil), st.Milestones...)
	sort.Ints(ms)
	s.milestones = ms
	s.gamma = st.Gamma
	s.baseLR = st.BaseLRs[0]
	s.lastEpoch = st.LastEpoch
	return nil
}
