package serialization

import (
	"time"

	"github.com/born-ml/madgrad/internal/tensor"
)

// Format constants.
const (
	MagicBytes    = "MDGR"
	FormatVersion = 1  // v1: JSON header, SHA-256 checksum, float32 data
	ChecksumSize  = 32 // SHA-256 checksum size (32 bytes)
	float32Size   = 4
)

// Header represents the JSON header in a .mdgr file.
type Header struct {
	FormatVersion int              `json:"format_version"` // Version of the .mdgr format
	Version       string           `json:"version"`        // Library version that created this file
	CreatedAt     time.Time        `json:"created_at"`     // When the file was created
	OptimizerType string           `json:"optimizer_type"` // Optimizer type ("MADGRAD")
	Step          int64            `json:"step"`           // Global step counter
	Groups        []map[string]any `json:"groups"`         // Hyperparameters per parameter group
	Tensors       []TensorMeta     `json:"tensors"`        // Tensor metadata
}

// TensorMeta describes a tensor in the .mdgr file.
type TensorMeta struct {
	Name   string `json:"name"`   // Tensor name (e.g., "grad_sum_sq.0")
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Offset in the data section (bytes)
	Size   int64  `json:"size"`   // Size in bytes
}

// OptimizerState is everything needed to resume an optimizer.
type OptimizerState struct {
	OptimizerType string
	Step          int64
	Groups        []map[string]any
	Tensors       map[string]*tensor.RawTensor
}
