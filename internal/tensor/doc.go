// Package tensor provides the float32 tensor types used by the MADGRAD optimizer.
//
// This package provides:
//   - RawTensor: dense row-major storage for parameters, accumulators and gradients
//   - SparseTensor: coordinate-form gradients with implicit zeros
//   - Gradient: the closed set of gradient representations (dense or sparse)
//   - Shape: dimensions, strides and coordinate offsets
package tensor
