// Package serialization provides the .mdgr checkpoint format for optimizer state.
//
// The format is a small binary container for named float32 tensors plus a
// JSON header describing the optimizer that produced them:
//
//	Format Structure:
//	  [4 bytes: Magic "MDGR"]
//	  [4 bytes: Version (uint32 LE)]
//	  [8 bytes: Header Size (uint64 LE)]
//	  [Header: JSON metadata]
//	  [32 bytes: SHA-256 checksum of the tensor data]
//	  [Tensor data: float32 LE, in header order]
//
// Example usage:
//
//	// Save optimizer state
//	f, _ := os.Create("optimizer.mdgr")
//	err := serialization.WriteOptimizerState(f, state)
//
//	// Load optimizer state
//	f, _ := os.Open("optimizer.mdgr")
//	state, err := serialization.ReadOptimizerState(f)
package serialization
