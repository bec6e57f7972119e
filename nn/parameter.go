// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/madgrad/internal/nn"
	"github.com/born-ml/madgrad/tensor"
)

// Parameter represents a trainable parameter.
//
// Example:
//
//	// Create a weight parameter
//	weight := nn.NewParameter("weight", weightTensor)
//
//	// Access the tensor
//	w := weight.Tensor()
//
//	// Attach a gradient computed by the caller
//	weight.SetGrad(grad)
//
// Methods:
//
//	Name() string
//	    Returns the parameter name (e.g., "weight", "bias").
//
//	Tensor() *tensor.RawTensor
//	    Returns the parameter tensor.
//
//	Grad() tensor.Gradient
//	    Returns the attached gradient (nil if none).
//
//	SetGrad(grad tensor.Gradient)
//	    Attaches a dense or sparse gradient.
//
//	ZeroGrad()
//	    Clears the attached gradient.
type Parameter = nn.Parameter

// NewParameter creates a new trainable parameter.
func NewParameter(name string, t *tensor.RawTensor) *Parameter {
	return nn.NewParameter(name, t)
}
