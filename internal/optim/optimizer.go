// Package optim implements the MADGRAD optimization algorithm.
//
// This package provides:
//   - Optimizer interface: Base interface for optimizers
//   - MADGRAD: Momentumized, adaptive, dual averaged gradient method
//   - MADGRADConfig / ParamGroup: Validated per-group hyperparameters
//   - StateDict and checkpoint helpers for resuming training
//
// Design inspired by PyTorch's torch.optim but adapted for Go with explicit
// configuration values and error returns.
//
// Example usage:
//
//	optimizer, err := optim.NewMADGRAD(params, optim.MADGRADConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	    Eps:      1e-6,
//	})
//	if err != nil {
//	    return err
//	}
//
//	// Training loop
//	for step := range steps {
//	    grads := computeGradients(params)
//
//	    // Update parameters
//	    if _, err := optimizer.Step(grads, nil); err != nil {
//	        return err
//	    }
//	    optimizer.ZeroGrad()
//	}
package optim

import (
	"github.com/born-ml/madgrad/internal/nn"
	"github.com/born-ml/madgrad/internal/tensor"
)

// Optimizer is the base interface for optimization algorithms.
//
// All optimizers must implement:
//   - Step: Apply gradient updates to parameters
//   - ZeroGrad: Clear attached gradients before next iteration
//   - GetLR: Get current learning rate (for monitoring)
type Optimizer interface {
	// Step applies gradient updates to all parameters.
	//
	// Gradients are looked up in grads by parameter tensor first, then
	// taken from the parameter itself (Parameter.Grad). Parameters with no
	// gradient are skipped. If closure is non-nil it is evaluated before any
	// parameter changes and its value is returned.
	Step(grads map[*tensor.RawTensor]tensor.Gradient, closure Closure) (Loss, error)

	// ZeroGrad clears all attached parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32
}

// Closure re-evaluates the objective and returns the loss.
type Closure func() (float32, error)

// Loss is the optional scalar returned by Step.
//
// Valid is false when Step was called without a closure.
type Loss struct {
	Value float32
	Valid bool
}

// getGradient retrieves the gradient for a parameter.
//
// Returns nil if no gradient is found (parameter wasn't part of computation graph).
func getGradient(param *nn.Parameter, grads map[*tensor.RawTensor]tensor.Gradient) tensor.Gradient {
	if param == nil {
		return nil
	}
	if g, ok := grads[param.Tensor()]; ok && !tensor.IsNil(g) {
		return g
	}
	if g := param.Grad(); !tensor.IsNil(g) {
		return g
	}
	return nil
}
