package nn

import (
	"github.com/born-ml/madgrad/internal/tensor"
)

// Parameter represents a trainable parameter.
//
// The optimizer keys its per-parameter state by *Parameter, so a Parameter
// must not be copied once it has been handed to an optimizer.
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
//	weight.SetGrad(gradTensor)
type Parameter struct {
	name   string            // Parameter name (e.g., "weight", "bias")
	tensor *tensor.RawTensor // The parameter tensor, updated in place by optimizers
	grad   tensor.Gradient   // Dense or sparse gradient, nil when absent
}

// NewParameter creates a new trainable parameter.
//
// Parameters:
//   - name: Descriptive name for this parameter (e.g., "linear1.weight")
//   - t: The initialized parameter tensor
func NewParameter(name string, t *tensor.RawTensor) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.RawTensor {
	return p.tensor
}

// Grad returns the attached gradient.
//
// Returns nil if no gradient has been attached.
func (p *Parameter) Grad() tensor.Gradient {
	return p.grad
}

// SetGrad attaches a dense or sparse gradient.
func (p *Parameter) SetGrad(grad tensor.Gradient) {
	p.grad = grad
}

// ZeroGrad clears the attached gradient.
func (p *Parameter) ZeroGrad() {
	p.grad = nil
}
