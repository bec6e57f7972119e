package tensor

import (
	"errors"
	"fmt"
)

// Errors returned when building tensors and gradients.
var (
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrLengthMismatch  = errors.New("data length does not match shape")
)

// Gradient is a gradient for a single parameter tensor.
//
// It is implemented by *RawTensor (dense) and *SparseTensor (sparse COO form)
// and by nothing else.
type Gradient interface {
	// Shape returns the logical shape of the gradient.
	Shape() Shape

	// IsSparse reports whether only a subset of entries is materialized.
	IsSparse() bool

	gradient()
}

// IsNil reports whether g is nil or a typed nil gradient.
func IsNil(g Gradient) bool {
	switch v := g.(type) {
	case nil:
		return true
	case *RawTensor:
		return v == nil
	case *SparseTensor:
		return v == nil
	default:
		return false
	}
}

// RawTensor is a dense float32 tensor stored in row-major order.
//
// Parameters, optimizer accumulators and dense gradients are all RawTensors.
// The backing slice returned by AsFloat32 is the tensor's storage, so writes
// through it update the tensor in place.
type RawTensor struct {
	data  []float32
	shape Shape
}

// NewRaw creates a zero-filled RawTensor with the given shape.
func NewRaw(shape Shape) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	return &RawTensor{
		data:  make([]float32, shape.NumElements()),
		shape: shape.Clone(),
	}, nil
}

// FromSlice creates a RawTensor holding a copy of data.
//
// Example:
//
//	w, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2})
func FromSlice(data []float32, shape Shape) (*RawTensor, error) {
	t, err := NewRaw(shape)
	if err != nil {
		return nil, err
	}
	if len(data) != len(t.data) {
		return nil, fmt.Errorf("got %d values for shape %v (%d elements): %w",
			len(data), shape, len(t.data), ErrLengthMismatch)
	}
	copy(t.data, data)
	return t, nil
}

// ZerosLike returns a zero-filled tensor with the same shape as r.
func ZerosLike(r *RawTensor) *RawTensor {
	return &RawTensor{
		data:  make([]float32, len(r.data)),
		shape: r.shape.Clone(),
	}
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return len(r.data)
}

// IsSparse always returns false.
func (r *RawTensor) IsSparse() bool {
	return false
}

func (r *RawTensor) gradient() {}

// AsFloat32 returns the tensor's storage.
func (r *RawTensor) AsFloat32() []float32 {
	return r.data
}

// Clone returns a deep copy of the tensor.
func (r *RawTensor) Clone() *RawTensor {
	c := ZerosLike(r)
	copy(c.data, r.data)
	return c
}

// String returns a short description of the tensor.
func (r *RawTensor) String() string {
	return fmt.Sprintf("RawTensor(shape=%v)", r.shape)
}
