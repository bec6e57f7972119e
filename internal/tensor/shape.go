package tensor

import "fmt"

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks if the shape is valid (all dimensions > 0).
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
// Strides define memory layout: stride[i] = product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// Offset converts a multi-dimensional coordinate into a flat row-major index.
//
// Example:
//
//	Shape{2, 3}.Offset([]int{1, 2}) // 5
func (s Shape) Offset(coord []int) (int, error) {
	if len(coord) != len(s) {
		return 0, fmt.Errorf("coordinate %v has rank %d, shape %v has rank %d: %w",
			coord, len(coord), s, len(s), ErrIndexOutOfRange)
	}
	strides := s.ComputeStrides()
	offset := 0
	for i, c := range coord {
		if c < 0 || c >= s[i] {
			return 0, fmt.Errorf("coordinate %v outside shape %v (dimension %d): %w",
				coord, s, i, ErrIndexOutOfRange)
		}
		offset += c * strides[i]
	}
	return offset, nil
}
