// Package optim implements the optimizers and learning-rate schedules used to
// train the SRGAN networks.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - Adam: Adaptive Moment Estimation with L2 weight decay
//   - MultiStepLR: step decay of the learning rate at fixed milestones
//
// Design follows torch.optim: gradients are read from the parameters after
// Backward, Step updates the values in place and ZeroGrad clears the
// gradients.
//
// Example usage:
//
//	opt := optim.NewAdam(netG.Parameters(), optim.AdamConfig{LR: 1e-4, Betas: [2]float64{0.9, 0.999}})
//	sched, _ := optim.NewScheduler(optim.SchemeMultiStepLR, opt, []int{50000, 100000}, 0.5)
//
//	for step := 1; step <= niter; step++ {
//	    sched.Step()
//	    opt.ZeroGrad()
//	    loss := criterion.Forward(netG.Forward(lr), hr)
//	    _ = loss.Backward()
//	    opt.Step()
//	}
package optim

import (
	"github.com/born-ml/srgan/internal/nn"
	"github.com/born-ml/srgan/internal/parallel"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies one update to every parameter that has a gradient.
	Step()

	// ZeroGrad clears all parameter gradients.
	//
	// This should be called before each backward pass to prevent
	// gradient accumulation from previous iterations.
	ZeroGrad()

	// LR returns the current learning rate.
	LR() float64

	// SetLR overrides the learning rate, e.g. from a scheduler.
	SetLR(lr float64)

	// InitialLR returns the learning rate the optimizer was created with.
	InitialLR() float64
}

// zeroGrad clears the gradients of params.
func zeroGrad(params []*nn.Parameter) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// forEachParam runs f once per parameter index. Updates of distinct
// parameters touch disjoint memory, so they run in parallel.
func forEachParam(n int, f func(i int)) {
	parallel.For(n, f, parallel.DefaultConfig().Coarse())
}
