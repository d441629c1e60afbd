// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the optimizers that drive global placement.
//
// # Overview
//
// This package contains:
//   - Nesterov: accelerated projected gradient with a Barzilai–Borwein step
//     size and at most MaxBacktracks refinement passes per step
//   - ConjugateGradient: Polak–Ribière nonlinear conjugate gradient with an
//     optional line search
//   - BacktrackingLineSearch: Armijo line search for ConjugateGradient
//   - Optimizer interface shared by both
//
// # Basic Usage
//
//	pos := optim.NewParameter("pos", positions)
//	pos.SetGrad(initialGradient)
//
//	opt, err := optim.NewNesterov([]optim.ParamGroup[float64]{
//	    {Params: []*optim.Parameter[float64]{pos}, LR: 0.01},
//	}, optim.NesterovConfig[float64]{
//	    Objective:  objective,
//	    Constraint: project,
//	})
//	if err != nil {
//	    return err
//	}
//	for range 100 {
//	    if err := opt.Step(); err != nil {
//	        return err
//	    }
//	}
//
// # Errors
//
// Construction rejects more than one parameter group and negative learning
// rates with errors matching ErrConfig. Degenerate numbers during a step
// (zero secant denominators, non-finite values) match ErrNumerical and leave
// the parameters and optimizer state as they were before the step.
package optim
