// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for the tensors used by the optimizer.
//
// The package defines:
//   - RawTensor: dense float32 tensor, used for parameters and dense gradients
//   - SparseTensor: coordinate-form float32 gradient
//   - Gradient: either of the above
//   - Shape: tensor dimensions
//
// Example:
//
//	w, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2})
//	g, _ := tensor.NewSparseFromCoords(tensor.Shape{2, 2}, [][]int{{1, 0}}, []float32{0.5})
package tensor

import (
	"github.com/born-ml/madgrad/internal/tensor"
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// RawTensor is a dense float32 tensor.
type RawTensor = tensor.RawTensor

// SparseTensor is a float32 tensor in coordinate form.
type SparseTensor = tensor.SparseTensor

// Gradient is a dense or sparse gradient.
type Gradient = tensor.Gradient

// Errors returned by tensor constructors.
var (
	ErrIndexOutOfRange = tensor.ErrIndexOutOfRange
	ErrLengthMismatch  = tensor.ErrLengthMismatch
)

// NewRaw creates a zero-filled dense tensor.
func NewRaw(shape Shape) (*RawTensor, error) {
	return tensor.NewRaw(shape)
}

// FromSlice creates a dense tensor holding a copy of data.
func FromSlice(data []float32, shape Shape) (*RawTensor, error) {
	return tensor.FromSlice(data, shape)
}

// ZerosLike returns a zero-filled tensor with the same shape as t.
func ZerosLike(t *RawTensor) *RawTensor {
	return tensor.ZerosLike(t)
}

// NewSparse creates a sparse tensor from flat row-major indices and values.
func NewSparse(shape Shape, indices []int, values []float32) (*SparseTensor, error) {
	return tensor.NewSparse(shape, indices, values)
}

// NewSparseFromCoords creates a sparse tensor from per-dimension coordinates.
func NewSparseFromCoords(shape Shape, coords [][]int, values []float32) (*SparseTensor, error) {
	return tensor.NewSparseFromCoords(shape, coords, values)
}
