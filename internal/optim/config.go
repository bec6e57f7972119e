package optim

import (
	"github.com/chewxy/math32"

	"github.com/born-ml/madgrad/internal/nn"
)

// MADGRADConfig holds configuration for the MADGRAD optimizer.
//
// A config is validated once when the optimizer is built and never changes
// afterwards. Zero values are meaningful (Momentum 0 disables the stored
// anchor, Eps 0 enables the division guard), so there is no zero-value
// defaulting; start from DefaultMADGRADConfig instead.
type MADGRADConfig struct {
	LR            float32 // Learning rate (> 0)
	Momentum      float32 // Momentum factor (range: [0, 1))
	WeightDecay   float32 // L2 penalty (>= 0)
	DecoupleDecay bool    // Apply AdamW style decoupled weight decay
	Eps           float32 // Term added to the denominator (>= 0)
}

// DefaultMADGRADConfig returns the default hyperparameters.
//
// Default hyperparameters:
//   - LR: 0.001
//   - Momentum: 0.9
//   - WeightDecay: 0
//   - DecoupleDecay: false
//   - Eps: 1e-6
func DefaultMADGRADConfig() MADGRADConfig {
	return MADGRADConfig{
		LR:       1e-3,
		Momentum: 0.9,
		Eps:      1e-6,
	}
}

// Validate checks every hyperparameter against its valid range.
//
// Returns a *ConfigError for the first violation.
func (c MADGRADConfig) Validate() error {
	if err := validateLearningRate(c.LR); err != nil {
		return err
	}
	if err := validateMomentum(c.Momentum); err != nil {
		return err
	}
	if err := validateWeightDecay(c.WeightDecay); err != nil {
		return err
	}
	return validateEpsilon(c.Eps)
}

// hyperparameters returns the config as a flat map for checkpoint headers.
func (c MADGRADConfig) hyperparameters() map[string]any {
	return map[string]any{
		"lr":             c.LR,
		"momentum":       c.Momentum,
		"weight_decay":   c.WeightDecay,
		"decouple_decay": c.DecoupleDecay,
		"eps":            c.Eps,
	}
}

func validateLearningRate(lr float32) error {
	if !(lr > 0) || math32.IsInf(lr, 1) {
		return &ConfigError{Field: "learning rate", Value: lr, Reason: "must be a positive finite number"}
	}
	return nil
}

func validateMomentum(momentum float32) error {
	if !(momentum >= 0 && momentum < 1) {
		return &ConfigError{Field: "momentum", Value: momentum, Reason: "must be in [0, 1)"}
	}
	return nil
}

func validateWeightDecay(wd float32) error {
	if !(wd >= 0) || math32.IsInf(wd, 1) {
		return &ConfigError{Field: "weight decay", Value: wd, Reason: "must be a non-negative finite number"}
	}
	return nil
}

func validateEpsilon(eps float32) error {
	if !(eps >= 0) || math32.IsInf(eps, 1) {
		return &ConfigError{Field: "epsilon", Value: eps, Reason: "must be a non-negative finite number"}
	}
	return nil
}

// ParamGroup is a set of parameters sharing one configuration.
type ParamGroup struct {
	Params []*nn.Parameter
	Config MADGRADConfig
}
