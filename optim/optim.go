// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/madgrad/internal/optim"
	"github.com/born-ml/madgrad/nn"
)

// Optimizer interface defines the common interface for all optimizers.
type Optimizer = optim.Optimizer

// Closure re-evaluates the objective and returns the loss.
type Closure = optim.Closure

// Loss is the optional scalar returned by Step.
type Loss = optim.Loss

// MADGRAD (Momentumized, Adaptive, Dual averaged GRADient)

// MADGRAD represents the MADGRAD optimizer.
type MADGRAD = optim.MADGRAD

// MADGRADConfig contains configuration for the MADGRAD optimizer.
type MADGRADConfig = optim.MADGRADConfig

// ParamGroup is a set of parameters sharing one MADGRADConfig.
type ParamGroup = optim.ParamGroup

// StateDict is a snapshot of optimizer state.
type StateDict = optim.StateDict

// DefaultMADGRADConfig returns the default hyperparameters
// (LR 1e-3, Momentum 0.9, WeightDecay 0, Eps 1e-6).
func DefaultMADGRADConfig() MADGRADConfig {
	return optim.DefaultMADGRADConfig()
}

// NewMADGRAD creates a new MADGRAD optimizer with one parameter group.
//
// Example:
//
//	w, _ := tensor.FromSlice(initial, tensor.Shape{784, 10})
//	weight := nn.NewParameter("weight", w)
//	optimizer, err := optim.NewMADGRAD(
//	    []*nn.Parameter{weight},
//	    optim.MADGRADConfig{
//	        LR:       0.01,
//	        Momentum: 0.9,
//	        Eps:      1e-6,
//	    },
//	)
func NewMADGRAD(params []*nn.Parameter, config MADGRADConfig) (*MADGRAD, error) {
	return optim.NewMADGRAD(params, config)
}

// NewMADGRADGroups creates a new MADGRAD optimizer with per-group configuration.
//
// Example:
//
//	optimizer, err := optim.NewMADGRADGroups([]optim.ParamGroup{
//	    {Params: dense, Config: optim.MADGRADConfig{LR: 0.01, Momentum: 0.9, Eps: 1e-6}},
//	    {Params: embeddings, Config: optim.MADGRADConfig{LR: 0.01, Eps: 1e-6}},
//	})
func NewMADGRADGroups(groups []ParamGroup) (*MADGRAD, error) {
	return optim.NewMADGRADGroups(groups)
}

// Errors

// ConfigError reports a hyperparameter outside its valid range.
type ConfigError = optim.ConfigError

// SparseUnsupportedError reports a sparse gradient used with momentum or
// coupled weight decay.
type SparseUnsupportedError = optim.SparseUnsupportedError

// Sentinel errors for errors.Is.
var (
	ErrInvalidConfiguration = optim.ErrInvalidConfiguration
	ErrSparseUnsupported    = optim.ErrSparseUnsupported
	ErrShapeMismatch        = optim.ErrShapeMismatch
	ErrIncompleteState      = optim.ErrIncompleteState
	ErrOptimizerMismatch    = optim.ErrOptimizerMismatch
)
