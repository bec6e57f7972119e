package serialization

import (
	"fmt"
	"sort"

	"github.com/born-ml/madgrad/internal/tensor"
)

// Validation limits for security and resource protection.
const (
	MaxHeaderSize    = 64 * 1024 * 1024 // 64MB - maximum header size
	MaxTensorCount   = 1_000_000        // Maximum number of tensors in a file
	MaxTensorNameLen = 4096             // Maximum tensor name length
)

// ValidateHeader checks tensor names, shapes and offsets against the data size.
func ValidateHeader(h *Header, dataSize int64) error {
	if len(h.Tensors) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(h.Tensors), MaxTensorCount),
			Err:     ErrTooManyTensors,
		}
	}

	seen := make(map[string]struct{}, len(h.Tensors))
	for _, t := range h.Tensors {
		if t.Name == "" || len(t.Name) > MaxTensorNameLen {
			return &ValidationError{
				Type:    "invalid_name",
				Tensor:  t.Name,
				Details: fmt.Sprintf("name length %d (must be 1..%d)", len(t.Name), MaxTensorNameLen),
				Err:     ErrInvalidTensorName,
			}
		}
		if _, dup := seen[t.Name]; dup {
			return &ValidationError{
				Type:    "duplicate_name",
				Tensor:  t.Name,
				Details: "tensor name appears more than once",
				Err:     ErrInvalidTensorName,
			}
		}
		seen[t.Name] = struct{}{}

		if err := tensor.Shape(t.Shape).Validate(); err != nil {
			return &ValidationError{Type: "invalid_shape", Tensor: t.Name, Details: err.Error()}
		}
		if want := int64(tensor.Shape(t.Shape).NumElements()) * float32Size; t.Size != want {
			return &ValidationError{
				Type:    "size_mismatch",
				Tensor:  t.Name,
				Details: fmt.Sprintf("size %d bytes, shape %v needs %d", t.Size, t.Shape, want),
			}
		}
	}

	return ValidateTensorOffsets(h.Tensors, dataSize)
}

// ValidateTensorOffsets checks for overlapping tensor offsets and out-of-bounds access.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	// Sort tensors by offset for efficient overlap detection.
	sorted := make([]TensorMeta, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 {
			return &ValidationError{
				Type:    "negative_offset",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset=%d, size=%d (negative values not allowed)", t.Offset, t.Size),
				Err:     ErrNegativeOffset,
			}
		}

		if t.Offset+t.Size > dataSize {
			return &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", t.Offset, t.Size, dataSize),
				Err:     ErrOutOfBounds,
			}
		}

		if i < len(sorted)-1 {
			next := sorted[i+1]
			if t.Offset+t.Size > next.Offset {
				return &ValidationError{
					Type:    "offset_overlap",
					Tensor:  t.Name,
					Tensor2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						t.Offset, t.Offset+t.Size, next.Offset, next.Offset+next.Size),
					Err: ErrOffsetOverlap,
				}
			}
		}
	}

	return nil
}
