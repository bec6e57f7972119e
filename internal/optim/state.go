package optim

import (
	"fmt"
	"slices"

	"github.com/born-ml/madgrad/internal/nn"
	"github.com/born-ml/madgrad/internal/tensor"
)

// State dict key prefixes. Keys are "{prefix}.{param_index}", where the
// index counts parameters across groups in order.
const (
	keyGradSumSq = "grad_sum_sq"
	keySum       = "s"
	keyAnchor    = "x0"
	keyParam     = "param" // Parameter values, checkpoints only
)

// StateDict is a snapshot of MADGRAD state.
type StateDict struct {
	Step    int64                        // Global step counter
	Tensors map[string]*tensor.RawTensor // Accumulators and anchors
}

func stateKey(prefix string, index int) string {
	return fmt.Sprintf("%s.%d", prefix, index)
}

// forEachParam calls f for every parameter with its global index.
func (m *MADGRAD) forEachParam(f func(index int, param *nn.Parameter, cfg MADGRADConfig)) {
	index := 0
	for _, group := range m.groups {
		for _, param := range group.Params {
			f(index, param, group.Config)
			index++
		}
	}
}

// StateDict returns the optimizer state for serialization.
//
// Parameters that have not received a gradient yet have no entries. The
// tensors are copies and may be modified freely.
//
// State keys:
//   - "grad_sum_sq.{param_index}": weighted sum of squared gradients
//   - "s.{param_index}": weighted sum of gradients
//   - "x0.{param_index}": anchor (momentum > 0 only)
func (m *MADGRAD) StateDict() StateDict {
	sd := StateDict{
		Step:    m.k,
		Tensors: make(map[string]*tensor.RawTensor),
	}

	m.forEachParam(func(i int, param *nn.Parameter, _ MADGRADConfig) {
		st, exists := m.state[param]
		if !exists {
			return // No state yet (hasn't been used in training)
		}

		sd.Tensors[stateKey(keyGradSumSq, i)] = snapshot(param, st.gradSumSq)
		sd.Tensors[stateKey(keySum, i)] = snapshot(param, st.s)
		if st.x0 != nil {
			sd.Tensors[stateKey(keyAnchor, i)] = snapshot(param, st.x0)
		}
	})

	return sd
}

func snapshot(param *nn.Parameter, data []float32) *tensor.RawTensor {
	t := tensor.ZerosLike(param.Tensor())
	copy(t.AsFloat32(), data)
	return t
}

// LoadStateDict replaces the optimizer state.
//
// For every parameter either both accumulators are present or neither is;
// parameters in momentum > 0 groups with accumulators also need an anchor.
// Returns an error if any tensor is missing or has the wrong shape, in which
// case the current state is left unchanged.
func (m *MADGRAD) LoadStateDict(sd StateDict) error {
	if sd.Step < 0 {
		return fmt.Errorf("%s: negative step counter %d", m, sd.Step)
	}

	next := make(map[*nn.Parameter]*madgradState)
	var loadErr error

	m.forEachParam(func(i int, param *nn.Parameter, cfg MADGRADConfig) {
		if loadErr != nil {
			return
		}

		sumSq, hasSumSq := sd.Tensors[stateKey(keyGradSumSq, i)]
		s, hasS := sd.Tensors[stateKey(keySum, i)]
		if !hasSumSq && !hasS {
			return // Will be initialized on first step
		}
		if hasSumSq != hasS {
			loadErr = fmt.Errorf("%s: parameter %d (%q): accumulators must be saved together: %w",
				m, i, param.Name(), ErrIncompleteState)
			return
		}

		st := &madgradState{}
		if st.gradSumSq, loadErr = m.restore(param, i, keyGradSumSq, sumSq); loadErr != nil {
			return
		}
		if st.s, loadErr = m.restore(param, i, keySum, s); loadErr != nil {
			return
		}

		if cfg.Momentum > 0 {
			x0, ok := sd.Tensors[stateKey(keyAnchor, i)]
			if !ok {
				loadErr = fmt.Errorf("%s: parameter %d (%q): missing anchor for momentum %v: %w",
					m, i, param.Name(), cfg.Momentum, ErrIncompleteState)
				return
			}
			if st.x0, loadErr = m.restore(param, i, keyAnchor, x0); loadErr != nil {
				return
			}
		}

		next[param] = st
	})

	if loadErr != nil {
		return loadErr
	}

	m.state = next
	m.k = sd.Step
	return nil
}

// restore validates a saved tensor against its parameter and copies it.
func (m *MADGRAD) restore(param *nn.Parameter, index int, prefix string, raw *tensor.RawTensor) ([]float32, error) {
	if raw == nil {
		return nil, fmt.Errorf("%s: %s is nil: %w", m, stateKey(prefix, index), ErrIncompleteState)
	}
	if !raw.Shape().Equal(param.Tensor().Shape()) {
		return nil, fmt.Errorf("%s: %s shape mismatch for parameter %q: expected %v, got %v: %w",
			m, stateKey(prefix, index), param.Name(), param.Tensor().Shape(), raw.Shape(), ErrShapeMismatch)
	}
	return slices.Clone(raw.AsFloat32()), nil
}
