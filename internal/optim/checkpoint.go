package optim

import (
	"fmt"
	"io"
	"maps"

	"github.com/born-ml/madgrad/internal/nn"
	"github.com/born-ml/madgrad/internal/serialization"
)

// SaveCheckpoint writes the parameter values and the optimizer state to w
// in .mdgr format.
//
// Parameter values are stored as "param.{param_index}" next to the state
// dict tensors. The header records the hyperparameters of every group for
// inspection; they are not restored by LoadCheckpoint.
func (m *MADGRAD) SaveCheckpoint(w io.Writer) error {
	sd := m.StateDict()

	tensors := maps.Clone(sd.Tensors)
	m.forEachParam(func(i int, param *nn.Parameter, _ MADGRADConfig) {
		tensors[stateKey(keyParam, i)] = param.Tensor().Clone()
	})

	groups := make([]map[string]any, len(m.groups))
	for i, g := range m.groups {
		groups[i] = g.Config.hyperparameters()
		groups[i]["params"] = len(g.Params)
	}

	return serialization.WriteOptimizerState(w, serialization.OptimizerState{
		OptimizerType: m.String(),
		Step:          sd.Step,
		Groups:        groups,
		Tensors:       tensors,
	})
}

// LoadCheckpoint restores parameter values and optimizer state written by
// SaveCheckpoint.
//
// The checkpoint must come from a MADGRAD optimizer with the same number of
// parameter groups and hold a value for every parameter; tensor shapes are
// checked as in LoadStateDict. On error neither the parameters nor the
// optimizer state are modified.
func (m *MADGRAD) LoadCheckpoint(r io.Reader) error {
	state, err := serialization.ReadOptimizerState(r)
	if err != nil {
		return fmt.Errorf("%s: failed to read checkpoint: %w", m, err)
	}

	if state.OptimizerType != m.String() {
		return fmt.Errorf("%s: checkpoint holds %q state: %w", m, state.OptimizerType, ErrOptimizerMismatch)
	}
	if len(state.Groups) != len(m.groups) {
		return fmt.Errorf("%s: checkpoint has %d parameter groups, optimizer has %d: %w",
			m, len(state.Groups), len(m.groups), ErrIncompleteState)
	}

	values := make(map[*nn.Parameter][]float32)
	var loadErr error
	m.forEachParam(func(i int, param *nn.Parameter, _ MADGRADConfig) {
		if loadErr != nil {
			return
		}
		raw, ok := state.Tensors[stateKey(keyParam, i)]
		if !ok {
			loadErr = fmt.Errorf("%s: parameter %d (%q): missing value: %w", m, i, param.Name(), ErrIncompleteState)
			return
		}
		values[param], loadErr = m.restore(param, i, keyParam, raw)
	})
	if loadErr != nil {
		return loadErr
	}

	if err := m.LoadStateDict(StateDict{Step: state.Step, Tensors: state.Tensors}); err != nil {
		return err
	}

	for param, data := range values {
		copy(param.Tensor().AsFloat32(), data)
	}
	return nil
}
