package optim

import (
	"math"

	errorsmod "cosmossdk.io/errors"

	"github.com/born-ml/srgan/internal/nn"
	"github.com/born-ml/srgan/internal/tensor"
	"github.com/born-ml/srgan/internal/types"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule for a parameter p with gradient g at its step t:
//
//	g   = g + weight_decay * p                        // L2 penalty
//	m_t = beta1 * m_{t-1} + (1-beta1) * g             // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * g²            // Second moment
//	p   = p - lr/(1-beta1^t) * m_t / (sqrt(v_t)/sqrt(1-beta2^t) + eps)
//
// The step count is kept per parameter: a parameter that receives no
// gradient in an iteration is neither updated nor advanced.
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam struct {
	params      []*nn.Parameter
	lr          float64
	initialLR   float64
	beta1       float64
	beta2       float64
	eps         float64
	weightDecay float64
	state       []adamParamState
}

type adamParamState struct {
	step     int
	expAvg   *tensor.RawTensor
	expAvgSq *tensor.RawTensor
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR          float64    // Learning rate (default: 0.001)
	Betas       [2]float64 // Coefficients for the running averages (default: [0.9, 0.999])
	Eps         float64    // Term for numerical stability (default: 1e-8)
	WeightDecay float64    // L2 penalty added to the gradient
}

// NewAdam creates a new Adam optimizer over params.
//
// A zero LR, beta2 or Eps takes the default; beta1 is used as given, so 0
// disables momentum.
func NewAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam{
		params:      params,
		lr:          config.LR,
		initialLR:   config.LR,
		beta1:       config.Betas[0],
		beta2:       config.Betas[1],
		eps:         config.Eps,
		weightDecay: config.WeightDecay,
		state:       make([]adamParamState, len(params)),
	}
}

// Parameters returns the optimised parameters.
func (a *Adam) Parameters() []*nn.Parameter {
	return a.params
}

// Step performs a single optimization step.
// Parameters without a gradient are skipped.
func (a *Adam) Step() {
	forEachParam(len(a.params), func(i int) {
		p := a.params[i]
		grad := p.Grad()
		if grad == nil {
			return
		}
		st := &a.state[i]
		if st.expAvg == nil {
			st.expAvg = tensor.ZerosLike(p.Value())
			st.expAvgSq = tensor.ZerosLike(p.Value())
		}
		st.step++
		a.update(p.Value().Data(), grad.Data(), st)
	})
}

func (a *Adam) update(param, grad []float32, st *adamParamState) {
	beta1, beta2 := float32(a.beta1), float32(a.beta2)
	wd, eps := float32(a.weightDecay), float32(a.eps)
	biasCorrection1 := 1 - math.Pow(a.beta1, float64(st.step))
	biasCorrection2 := 1 - math.Pow(a.beta2, float64(st.step))
	stepSize := float32(a.lr / biasCorrection1)
	invSqrtBC2 := float32(1 / math.Sqrt(biasCorrection2))

	m, v := st.expAvg.Data(), st.expAvgSq.Data()
	for j, g := range grad {
		if wd != 0 {
			g += wd * param[j]
		}
		m[j] = beta1*m[j] + (1-beta1)*g
		v[j] = beta2*v[j] + (1-beta2)*g*g
		denom := float32(math.Sqrt(float64(v[j])))*invSqrtBC2 + eps
		param[j] -= stepSize * m[j] / denom
	}
}

// ZeroGrad clears all parameter gradients.
func (a *Adam) ZeroGrad() {
	zeroGrad(a.params)
}

// LR returns the current learning rate.
func (a *Adam) LR() float64 {
	return a.lr
}

// SetLR sets the learning rate used by the next Step.
func (a *Adam) SetLR(lr float64) {
	a.lr = lr
}

// InitialLR returns the learning rate the optimizer was created with.
func (a *Adam) InitialLR() float64 {
	return a.initialLR
}

// AdamState is a snapshot of an Adam optimizer.
//
// The scalar fields serialise to JSON; ExpAvg and ExpAvgSq are stored as
// tensors next to it. Steps[i] == 0 means parameter i has no moments yet and
// its tensors are nil.
type AdamState struct {
	LR          float64    `json:"lr"`
	InitialLR   float64    `json:"initial_lr"`
	Betas       [2]float64 `json:"betas"`
	Eps         float64    `json:"eps"`
	WeightDecay float64    `json:"weight_decay"`
	Steps       []int      `json:"steps"`

	ExpAvg   []*tensor.RawTensor `json:"-"`
	ExpAvgSq []*tensor.RawTensor `json:"-"`
}

// State returns a deep copy of the optimizer state.
func (a *Adam) State() *AdamState {
	s := &AdamState{
		LR:          a.lr,
		InitialLR:   a.initialLR,
		Betas:       [2]float64{a.beta1, a.beta2},
		Eps:         a.eps,
		WeightDecay: a.weightDecay,
		Steps:       make([]int, len(a.params)),
		ExpAvg:      make([]*tensor.RawTensor, len(a.params)),
		ExpAvgSq:    make([]*tensor.RawTensor, len(a.params)),
	}
	for i, st := range a.state {
		s.Steps[i] = st.step
		if st.expAvg != nil {
			s.ExpAvg[i] = st.expAvg.Clone()
			s.ExpAvgSq[i] = st.expAvgSq.Clone()
		}
	}
	return s
}

// LoadState restores a snapshot taken by State on an optimizer over the same
// parameters. Nothing changes when the snapshot does not fit.
func (a *Adam) LoadState(s *AdamState) error {
	n := len(a.params)
	if len(s.Steps) != n || len(s.ExpAvg) != n || len(s.ExpAvgSq) != n {
		return errorsmod.Wrapf(types.ErrStateMismatch,
			"loaded state has %d parameters, optimizer has %d", len(s.Steps), n)
	}
	state := make([]adamParamState, n)
	for i, p := range a.params {
		if s.Steps[i] == 0 {
			continue
		}
		m, v := s.ExpAvg[i], s.ExpAvgSq[i]
		if m == nil || v == nil {
			return errorsmod.Wrapf(types.ErrStateMismatch, "parameter %d (%s) has step %d but no moments", i, p.Name(), s.Steps[i])
		}
		if !m.Shape().Equal(p.Value().Shape()) || !v.Shape().Equal(p.Value().Shape()) {
			return errorsmod.Wrapf(types.ErrShapeMismatch,
				"moments of %s have shape %s, parameter has %s", p.Name(), m.Shape(), p.Value().Shape())
		}
		state[i] = adamParamState{step: s.Steps[i], expAvg: m.Clone(), expAvgSq: v.Clone()}
	}

	a.state = state
	a.lr = s.LR
	a.initialLR = s.InitialLR
	a.beta1, a.beta2 = s.Betas[0], s.Betas[1]
	a.eps = s.Eps
	a.weightDecay = s.WeightDecay
	return nil
}
