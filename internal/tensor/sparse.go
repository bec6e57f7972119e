package tensor

import (
	"cmp"
	"fmt"
	"slices"
)

// SparseTensor is a float32 tensor in coordinate (COO) form.
//
// Only the listed entries are materialized; every other entry is an implicit
// zero. Indices are flat row-major offsets into Shape. Duplicate indices are
// allowed and mean the values are summed, as produced by embedding lookups
// that touch the same row more than once.
//
// Example:
//
//	// Gradient for rows 1 and 3 of a 4x2 embedding table
//	g, err := tensor.NewSparse(tensor.Shape{4, 2}, []int{2, 3, 6, 7}, []float32{0.1, 0.2, 0.3, 0.4})
type SparseTensor struct {
	shape     Shape
	indices   []int
	values    []float32
	coalesced bool
}

// NewSparse creates a sparse tensor from flat indices and values.
//
// The slices are copied. Returns an error if the lengths differ or an index
// falls outside the shape.
func NewSparse(shape Shape, indices []int, values []float32) (*SparseTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if len(indices) != len(values) {
		return nil, fmt.Errorf("got %d indices and %d values: %w",
			len(indices), len(values), ErrLengthMismatch)
	}

	n := shape.NumElements()
	for _, idx := range indices {
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("index %d outside shape %v (%d elements): %w",
				idx, shape, n, ErrIndexOutOfRange)
		}
	}

	return &SparseTensor{
		shape:   shape.Clone(),
		indices: slices.Clone(indices),
		values:  slices.Clone(values),
	}, nil
}

// NewSparseFromCoords creates a sparse tensor from multi-dimensional coordinates.
func NewSparseFromCoords(shape Shape, coords [][]int, values []float32) (*SparseTensor, error) {
	if len(coords) != len(values) {
		return nil, fmt.Errorf("got %d coordinates and %d values: %w",
			len(coords), len(values), ErrLengthMismatch)
	}
	indices := make([]int, len(coords))
	for i, c := range coords {
		offset, err := shape.Offset(c)
		if err != nil {
			return nil, err
		}
		indices[i] = offset
	}
	return NewSparse(shape, indices, values)
}

// Shape returns the logical (dense) shape.
func (s *SparseTensor) Shape() Shape {
	return s.shape
}

// IsSparse always returns true.
func (s *SparseTensor) IsSparse() bool {
	return true
}

func (s *SparseTensor) gradient() {}

// NNZ returns the number of stored entries.
func (s *SparseTensor) NNZ() int {
	return len(s.indices)
}

// Indices returns the flat indices of the stored entries.
func (s *SparseTensor) Indices() []int {
	return s.indices
}

// Values returns the stored values, aligned with Indices.
func (s *SparseTensor) Values() []float32 {
	return s.values
}

// IsCoalesced reports whether indices are sorted and unique.
func (s *SparseTensor) IsCoalesced() bool {
	return s.coalesced
}

// Coalesce returns a tensor with sorted, unique indices.
//
// Values at duplicate indices are summed. If s is already coalesced it is
// returned as is.
func (s *SparseTensor) Coalesce() *SparseTensor {
	if s.coalesced {
		return s
	}

	order := make([]int, len(s.indices))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(s.indices[a], s.indices[b])
	})

	indices := make([]int, 0, len(order))
	values := make([]float32, 0, len(order))
	for _, i := range order {
		last := len(indices) - 1
		if last >= 0 && indices[last] == s.indices[i] {
			values[last] += s.values[i]
			continue
		}
		indices = append(indices, s.indices[i])
		values = append(values, s.values[i])
	}

	return &SparseTensor{
		shape:     s.shape.Clone(),
		indices:   indices,
		values:    values,
		coalesced: true,
	}
}

// ToDense materializes the tensor, summing duplicate entries.
func (s *SparseTensor) ToDense() *RawTensor {
	d := &RawTensor{
		data:  make([]float32, s.shape.NumElements()),
		shape: s.shape.Clone(),
	}
	for i, idx := range s.indices {
		d.data[idx] += s.values[i]
	}
	return d
}

// String returns a short description of the tensor.
func (s *SparseTensor) String() string {
	return fmt.Sprintf("SparseTensor(shape=%v, nnz=%d)", s.shape, len(s.indices))
}
