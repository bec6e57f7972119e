// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the MADGRAD optimizer.
//
// # Overview
//
// MADGRAD is a dual averaging method: every step rebuilds the parameters
// from an anchor and the weighted sums of all past gradients, scaled by the
// cube root of the weighted sum of squared gradients. This package contains:
//   - MADGRAD: the optimizer, with optional momentum and weight decay
//   - MADGRADConfig / ParamGroup: validated per-group hyperparameters
//   - StateDict, SaveCheckpoint, LoadCheckpoint: resumable state
//   - Optimizer interface
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/madgrad/nn"
//	    "github.com/born-ml/madgrad/optim"
//	    "github.com/born-ml/madgrad/tensor"
//	)
//
//	func main() {
//	    w, _ := tensor.FromSlice(make([]float32, 10), tensor.Shape{10})
//	    weight := nn.NewParameter("weight", w)
//
//	    optimizer, err := optim.NewMADGRAD(
//	        []*nn.Parameter{weight},
//	        optim.MADGRADConfig{LR: 0.01, Momentum: 0.9, Eps: 1e-6},
//	    )
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    for step := range 100 {
//	        weight.SetGrad(computeGradient(weight))
//	        if _, err := optimizer.Step(nil, nil); err != nil {
//	            log.Fatal(err)
//	        }
//	        optimizer.ZeroGrad()
//	    }
//	}
//
// # Sparse Gradients
//
// Parameters such as embedding tables can receive *tensor.SparseTensor
// gradients. Sparse gradients require Momentum == 0 and either no weight
// decay or DecoupleDecay; other combinations fail the step with a
// *SparseUnsupportedError before anything is modified:
//
//	optimizer, _ := optim.NewMADGRAD(
//	    []*nn.Parameter{embedding},
//	    optim.MADGRADConfig{LR: 0.01, Eps: 1e-6},
//	)
//	grad, _ := tensor.NewSparse(tensor.Shape{vocab, dim}, touched, values)
//	_, err := optimizer.Step(map[*tensor.RawTensor]tensor.Gradient{
//	    embedding.Tensor(): grad,
//	}, nil)
//
// # Checkpoints
//
//	f, _ := os.Create("optimizer.mdgr")
//	err := optimizer.SaveCheckpoint(f)
//
//	f, _ := os.Open("optimizer.mdgr")
//	err := optimizer.LoadCheckpoint(f)
package optim
