package optim

import (
	"fmt"
	"slices"

	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/madgrad/internal/nn"
	"github.com/born-ml/madgrad/internal/tensor"
)

// MADGRAD implements the MADGRAD optimizer (a momentumized, adaptive, dual
// averaged gradient method).
//
// Each parameter keeps two accumulators, the weighted sum of squared
// gradients and the weighted sum of gradients, both weighted by
//
//	lambda_k = (lr + eps) * sqrt(k + 1)
//
// where k is a step counter shared by every parameter. The dual averaged
// iterate is computed from an anchor x0:
//
//	gradSumSq += lambda_k * g²
//	s         += lambda_k * g
//	z          = x0 - s / (cbrt(gradSumSq) + eps)
//	param      = momentum * param + (1 - momentum) * z
//
// With momentum > 0 the anchor is a snapshot of the parameter taken when its
// state was created. With momentum == 0 the anchor is not stored: param == z
// after every step, so x0 is recovered as param + s/rms from the state as it
// stood before the step's accumulation.
//
// Sparse gradients are supported only when momentum == 0 and weight decay is
// zero or decoupled. Only the touched entries of the parameter change.
//
// Reference: "Adaptivity without Compromise: A Momentumized, Adaptive, Dual
// Averaged Gradient Method for Stochastic Optimization" (Defazio & Jelassi, 2021)
//
// Example:
//
//	optimizer, err := optim.NewMADGRAD(params, optim.MADGRADConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	    Eps:      1e-6,
//	})
//
//	for step := range steps {
//	    grads := computeGradients(params)
//	    if _, err := optimizer.Step(grads, nil); err != nil {
//	        return err
//	    }
//	}
//
// MADGRAD is not safe for concurrent use.
type MADGRAD struct {
	groups []ParamGroup
	state  map[*nn.Parameter]*madgradState
	k      int64 // Steps taken, shared by all parameters
}

// madgradState is the per-parameter accumulator record.
type madgradState struct {
	gradSumSq []float32
	s         []float32
	x0        []float32 // nil when momentum == 0
}

// NewMADGRAD creates a MADGRAD optimizer with a single parameter group.
//
// Returns a *ConfigError if the configuration is invalid or params is empty.
func NewMADGRAD(params []*nn.Parameter, config MADGRADConfig) (*MADGRAD, error) {
	return NewMADGRADGroups([]ParamGroup{{Params: params, Config: config}})
}

// NewMADGRADGroups creates a MADGRAD optimizer over several parameter groups.
//
// Every group's configuration is validated. A parameter tensor may appear
// only once across all groups, even behind different Parameters, and at
// least one parameter is required.
func NewMADGRADGroups(groups []ParamGroup) (*MADGRAD, error) {
	seen := make(map[*tensor.RawTensor]struct{})
	owned := make([]ParamGroup, 0, len(groups))

	for gi, g := range groups {
		if err := g.Config.Validate(); err != nil {
			return nil, fmt.Errorf("param group %d: %w", gi, err)
		}
		for _, p := range g.Params {
			if p == nil || p.Tensor() == nil {
				return nil, &ConfigError{Field: fmt.Sprintf("param group %d", gi), Reason: "contains a nil parameter"}
			}
			if _, dup := seen[p.Tensor()]; dup {
				return nil, &ConfigError{Field: "parameter", Value: p.Name(), Reason: "tensor appears more than once"}
			}
			seen[p.Tensor()] = struct{}{}
		}
		owned = append(owned, ParamGroup{Params: slices.Clone(g.Params), Config: g.Config})
	}

	if len(seen) == 0 {
		return nil, &ConfigError{Field: "parameters", Reason: "optimizer got an empty parameter list"}
	}

	return &MADGRAD{
		groups: owned,
		state:  make(map[*nn.Parameter]*madgradState),
	}, nil
}

// String returns the optimizer name.
func (m *MADGRAD) String() string {
	return "MADGRAD"
}

// Step performs a single optimization step.
//
// The closure, if any, runs first and sees the parameters before the update.
// All gradients are then checked; a shape mismatch or an unsupported sparse
// gradient fails the whole call before any parameter or accumulator is
// touched and without advancing the step counter. Coupled weight decay adds
// wd * param to dense gradients in place.
//
// Parameters with no gradient are skipped. The step counter advances once
// per successful call.
func (m *MADGRAD) Step(grads map[*tensor.RawTensor]tensor.Gradient, closure Closure) (Loss, error) {
	var loss Loss
	if closure != nil {
		v, err := closure()
		if err != nil {
			return Loss{}, fmt.Errorf("%s: closure: %w", m, err)
		}
		loss = Loss{Value: v, Valid: true}
	}

	if err := m.checkGradients(grads); err != nil {
		return Loss{}, err
	}

	for _, group := range m.groups {
		cfg := group.Config
		lr := cfg.LR + cfg.Eps
		lambda := lr * math32.Sqrt(float32(m.k+1))

		for _, param := range group.Params {
			grad := getGradient(param, grads)
			if grad == nil {
				// Parameter didn't participate in forward pass, skip
				continue
			}

			st := m.stateFor(param, cfg)

			switch g := grad.(type) {
			case *tensor.RawTensor:
				updateDense(param, g, st, cfg, lr, lambda)
			case *tensor.SparseTensor:
				updateSparse(param, g.Coalesce(), st, cfg.Eps, lambda)
			}
		}
	}

	m.k++
	return loss, nil
}

// checkGradients rejects the step before anything is mutated.
func (m *MADGRAD) checkGradients(grads map[*tensor.RawTensor]tensor.Gradient) error {
	for _, group := range m.groups {
		cfg := group.Config
		for _, param := range group.Params {
			grad := getGradient(param, grads)
			if grad == nil {
				continue
			}

			if !grad.Shape().Equal(param.Tensor().Shape()) {
				return fmt.Errorf("%s: parameter %q: gradient shape %v, parameter shape %v: %w",
					m, param.Name(), grad.Shape(), param.Tensor().Shape(), ErrShapeMismatch)
			}

			if !grad.IsSparse() {
				continue
			}
			if cfg.WeightDecay > 0 && !cfg.DecoupleDecay {
				return &SparseUnsupportedError{Optimizer: m.String(), Param: param.Name(), Note: "weight_decay"}
			}
			if cfg.Momentum > 0 {
				return &SparseUnsupportedError{Optimizer: m.String(), Param: param.Name(), Note: "momentum > 0.0"}
			}
		}
	}
	return nil
}

// stateFor returns the state of param, creating it on first use.
func (m *MADGRAD) stateFor(param *nn.Parameter, cfg MADGRADConfig) *madgradState {
	if st, ok := m.state[param]; ok {
		return st
	}
	st := newMADGRADState(param, cfg.Momentum)
	m.state[param] = st
	return st
}

func newMADGRADState(param *nn.Parameter, momentum float32) *madgradState {
	n := param.Tensor().NumElements()
	st := &madgradState{
		gradSumSq: make([]float32, n),
		s:         make([]float32, n),
	}
	if momentum > 0 {
		st.x0 = slices.Clone(param.Tensor().AsFloat32())
	}
	return st
}

// updateDense applies one step with a dense gradient.
func updateDense(param *nn.Parameter, grad *tensor.RawTensor, st *madgradState, cfg MADGRADConfig, lr, lambda float32) {
	p := vector(param.Tensor().AsFloat32())
	g := vector(grad.AsFloat32())
	s := vector(st.s)

	if cfg.WeightDecay > 0 && !cfg.DecoupleDecay {
		// grad += wd * param
		blas32.Axpy(cfg.WeightDecay, p, g)
	}

	x0 := st.x0
	if cfg.Momentum == 0 {
		// Recover x0 before the accumulators move.
		x0 = make([]float32, p.N)
		for i := range x0 {
			x0[i] = p.Data[i] + st.s[i]/denom(st.gradSumSq[i], cfg.Eps)
		}
	}

	for i, gi := range g.Data {
		st.gradSumSq[i] += lambda * gi * gi
	}
	blas32.Axpy(lambda, g, s)

	decouple := cfg.WeightDecay > 0 && cfg.DecoupleDecay
	var pOld blas32.Vector
	if decouple {
		pOld = vector(make([]float32, p.N))
		blas32.Copy(p, pOld)
	}

	if cfg.Momentum == 0 {
		for i := range p.Data {
			p.Data[i] = x0[i] - st.s[i]/denom(st.gradSumSq[i], cfg.Eps)
		}
	} else {
		z := vector(make([]float32, p.N))
		for i := range z.Data {
			z.Data[i] = x0[i] - st.s[i]/denom(st.gradSumSq[i], cfg.Eps)
		}
		// param = momentum * param + (1 - momentum) * z
		blas32.Scal(cfg.Momentum, p)
		blas32.Axpy(1-cfg.Momentum, z, p)
	}

	if decouple {
		// param -= lr * wd * param_old
		blas32.Axpy(-lr*cfg.WeightDecay, pOld, p)
	}
}

// updateSparse applies one step with a coalesced sparse gradient.
//
// Only momentum == 0 without coupled weight decay reaches here.
func updateSparse(param *nn.Parameter, grad *tensor.SparseTensor, st *madgradState, eps, lambda float32) {
	p := param.Tensor().AsFloat32()
	values := grad.Values()

	for j, idx := range grad.Indices() {
		gi := values[j]

		x0 := p[idx] + st.s[idx]/denom(st.gradSumSq[idx], eps)

		st.gradSumSq[idx] += lambda * gi * gi
		st.s[idx] += lambda * gi

		next := x0 - st.s[idx]/denom(st.gradSumSq[idx], eps)
		p[idx] -= p[idx] - next
	}
}

// denom returns cbrt(sumSq) + eps, or +Inf where that is zero.
//
// A zero denominator only occurs with eps == 0 and an empty accumulator; the
// Inf turns s/denom into 0 so the entry does not move.
func denom(sumSq, eps float32) float32 {
	d := math32.Cbrt(sumSq) + eps
	if d == 0 {
		return math32.Inf(1)
	}
	return d
}

func vector(data []float32) blas32.Vector {
	return blas32.Vector{N: len(data), Inc: 1, Data: data}
}

// Reset discards all state and sets the step counter to 0.
//
// Fresh zero accumulators are created for every parameter, and parameters
// in groups with momentum > 0 get a new anchor equal to their current value.
func (m *MADGRAD) Reset() {
	m.k = 0
	m.state = make(map[*nn.Parameter]*madgradState)
	for _, group := range m.groups {
		for _, param := range group.Params {
			m.state[param] = newMADGRADState(param, group.Config.Momentum)
		}
	}
}

// ZeroGrad clears attached gradients for all parameters.
func (m *MADGRAD) ZeroGrad() {
	for _, group := range m.groups {
		for _, param := range group.Params {
			param.ZeroGrad()
		}
	}
}

// GetLR returns the learning rate of the first parameter group.
func (m *MADGRAD) GetLR() float32 {
	return m.groups[0].Config.LR
}

// GetStep returns the number of steps taken since creation or the last Reset.
func (m *MADGRAD) GetStep() int64 {
	return m.k
}

// Groups returns the parameter groups.
//
// The returned slice is a copy; the configs it holds are values.
func (m *MADGRAD) Groups() []ParamGroup {
	out := make([]ParamGroup, len(m.groups))
	for i, g := range m.groups {
		out[i] = ParamGroup{Params: slices.Clone(g.Params), Config: g.Config}
	}
	return out
}
