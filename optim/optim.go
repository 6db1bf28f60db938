// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the Adam optimizer and the MultiStepLR schedule.
//
// Example:
//
//	opt := optim.NewAdam(net.Parameters(), optim.AdamConfig{LR: 1e-4, Betas: [2]float64{0.9, 0.999}})
//	sched := optim.NewMultiStepLR(opt, []int{50000, 100000}, 0.5)
//	for step := 1; step <= n; step++ {
//	    sched.Step()
//	    opt.ZeroGrad()
//	    // forward, loss.Backward()
//	    opt.Step()
//	}
package optim

import (
	"github.com/born-ml/srgan/internal/nn"
	"github.com/born-ml/srgan/internal/optim"
)

// Optimizer is implemented by optimizers a Scheduler can drive.
type Optimizer = optim.Optimizer

// Adam (Adaptive Moment Estimation)

// Adam is the Adam optimizer with L2 weight decay.
type Adam = optim.Adam

// AdamConfig contains the hyperparameters of Adam.
type AdamConfig = optim.AdamConfig

// AdamState is the resumable state of Adam.
type AdamState = optim.AdamState

// NewAdam creates an Adam optimizer over params.
func NewAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	return optim.NewAdam(params, config)
}

// Schedules

// Scheduler adjusts the learning rate of an optimizer once per step.
type Scheduler = optim.Scheduler

// SchedulerState is the resumable state of a Scheduler.
type SchedulerState = optim.SchedulerState

// MultiStepLR multiplies the learning rate by gamma at every milestone.
type MultiStepLR = optim.MultiStepLR

// NewMultiStepLR creates a MultiStepLR schedule for opt.
func NewMultiStepLR(opt Optimizer, milestones []int, gamma float64) *MultiStepLR {
	return optim.NewMultiStepLR(opt, milestones, gamma)
}

// NewScheduler creates the schedule named by scheme.
func NewScheduler(scheme string, opt Optimizer, milestones []int, gamma float64) (Scheduler, error) {
	return optim.NewScheduler(scheme, opt, milestones, gamma)
}
