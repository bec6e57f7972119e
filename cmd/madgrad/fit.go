package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"

	"github.com/seehuhn/mt19937"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/madgrad/nn"
	"github.com/born-ml/madgrad/optim"
	"github.com/born-ml/madgrad/tensor"
)

// problem is a least squares problem min ||Aw - b||² / 2n.
type problem struct {
	a *mat.Dense
	b *mat.VecDense
}

// newProblem builds a random problem with a known solution. With nnzPerRow
// > 0 every row of A has only that many non-zero entries.
func newProblem(rows, cols, nnzPerRow int, seed int64) *problem {
	rng := rand.New(mt19937.New())
	rng.Seed(seed)

	a := mat.NewDense(rows, cols, nil)
	for i := range rows {
		if nnzPerRow <= 0 {
			for j := range cols {
				a.Set(i, j, rng.NormFloat64())
			}
			continue
		}
		for _, j := range rng.Perm(cols)[:min(nnzPerRow, cols)] {
			a.Set(i, j, rng.NormFloat64())
		}
	}

	truth := mat.NewVecDense(cols, nil)
	for j := range cols {
		truth.SetVec(j, rng.NormFloat64())
	}

	b := mat.NewVecDense(rows, nil)
	b.MulVec(a, truth)

	return &problem{a: a, b: b}
}

func toVec(data []float32) *mat.VecDense {
	v := mat.NewVecDense(len(data), nil)
	for i, x := range data {
		v.SetVec(i, float64(x))
	}
	return v
}

// residual returns Aw - b.
func (p *problem) residual(w []float32) *mat.VecDense {
	r := mat.NewVecDense(p.b.Len(), nil)
	r.MulVec(p.a, toVec(w))
	r.SubVec(r, p.b)
	return r
}

func (p *problem) loss(w []float32) float32 {
	r := p.residual(w)
	n, _ := p.a.Dims()
	return float32(mat.Dot(r, r) / float64(2*n))
}

// fullGradient returns Aᵀ(Aw - b) / n.
func (p *problem) fullGradient(w []float32) (*tensor.RawTensor, error) {
	r := p.residual(w)
	n, cols := p.a.Dims()

	g := mat.NewVecDense(cols, nil)
	g.MulVec(p.a.T(), r)
	g.ScaleVec(1/float64(n), g)

	out := make([]float32, cols)
	for j := range out {
		out[j] = float32(g.AtVec(j))
	}
	return tensor.FromSlice(out, tensor.Shape{cols})
}

// rowGradient returns the sparse gradient of the loss of row i alone.
func (p *problem) rowGradient(w []float32, i int) (*tensor.SparseTensor, error) {
	row := p.a.RawRowView(i)
	ri := mat.Dot(p.a.RowView(i), toVec(w)) - p.b.AtVec(i)

	var indices []int
	var values []float32
	for j, aij := range row {
		if aij == 0 {
			continue
		}
		indices = append(indices, j)
		values = append(values, float32(aij*ri))
	}
	return tensor.NewSparse(tensor.Shape{len(row)}, indices, values)
}

// fitOptions holds the flags of the fit command.
type fitOptions struct {
	config     optim.MADGRADConfig
	steps      int
	rows       int
	cols       int
	sparse     bool
	seed       int64
	checkpoint string
	resume     string
}

// fitResult is the objective value before and after training.
type fitResult struct {
	initialLoss float32
	finalLoss   float32
	step        int64
}

func parseFitFlags(args []string) (fitOptions, error) {
	fs := flag.NewFlagSet("fit", flag.ContinueOnError)
	lr := fs.Float64("lr", 0.01, "Learning rate")
	momentum := fs.Float64("momentum", 0.9, "Momentum in [0, 1); must be 0 with -sparse")
	wd := fs.Float64("wd", 0, "Weight decay")
	decouple := fs.Bool("decouple", false, "Use decoupled weight decay")
	eps := fs.Float64("eps", 1e-6, "Denominator epsilon")
	steps := fs.Int("steps", 500, "Number of optimizer steps")
	rows := fs.Int("rows", 256, "Rows of the design matrix")
	cols := fs.Int("cols", 32, "Columns of the design matrix")
	sparse := fs.Bool("sparse", false, "Use sparse per-row gradients")
	seed := fs.Int64("seed", 1, "Random seed")
	checkpoint := fs.String("checkpoint", "", "Write weights and optimizer state to this .mdgr file when done")
	resume := fs.String("resume", "", "Load weights and optimizer state from this .mdgr file before training")
	if err := fs.Parse(args); err != nil {
		return fitOptions{}, err
	}
	if *steps < 0 || *rows <= 0 || *cols <= 0 {
		return fitOptions{}, errors.New("steps, rows and cols must be positive")
	}

	return fitOptions{
		config: optim.MADGRADConfig{
			LR:            float32(*lr),
			Momentum:      float32(*momentum),
			WeightDecay:   float32(*wd),
			DecoupleDecay: *decouple,
			Eps:           float32(*eps),
		},
		steps:      *steps,
		rows:       *rows,
		cols:       *cols,
		sparse:     *sparse,
		seed:       *seed,
		checkpoint: *checkpoint,
		resume:     *resume,
	}, nil
}

func runFit(args []string) error {
	opts, err := parseFitFlags(args)
	if err != nil {
		return err
	}
	_, err = fit(opts)
	return err
}

func fit(opts fitOptions) (fitResult, error) {
	nnz := 0
	if opts.sparse {
		nnz = max(1, opts.cols/8)
	}
	prob := newProblem(opts.rows, opts.cols, nnz, opts.seed)

	w, err := tensor.NewRaw(tensor.Shape{opts.cols})
	if err != nil {
		return fitResult{}, err
	}
	weight := nn.NewParameter("weight", w)

	optimizer, err := optim.NewMADGRAD([]*nn.Parameter{weight}, opts.config)
	if err != nil {
		return fitResult{}, err
	}

	if opts.resume != "" {
		if err := loadCheckpoint(optimizer, opts.resume); err != nil {
			return fitResult{}, err
		}
		log.Printf("resumed from %s at step %d", opts.resume, optimizer.GetStep())
	}

	result := fitResult{initialLoss: prob.loss(w.AsFloat32())}
	log.Printf("fitting %dx%d problem (sparse=%v), initial loss %.6f", opts.rows, opts.cols, opts.sparse, result.initialLoss)

	closure := func() (float32, error) { return prob.loss(w.AsFloat32()), nil }
	logEvery := max(1, opts.steps/10)

	for step := range opts.steps {
		var grad tensor.Gradient
		if opts.sparse {
			grad, err = prob.rowGradient(w.AsFloat32(), step%opts.rows)
		} else {
			grad, err = prob.fullGradient(w.AsFloat32())
		}
		if err != nil {
			return fitResult{}, err
		}
		weight.SetGrad(grad)

		loss, err := optimizer.Step(nil, closure)
		if err != nil {
			return fitResult{}, fmt.Errorf("step %d: %w", step, err)
		}
		optimizer.ZeroGrad()

		if step%logEvery == 0 {
			log.Printf("step %4d  loss %.6f", optimizer.GetStep(), loss.Value)
		}
	}

	result.finalLoss = prob.loss(w.AsFloat32())
	result.step = optimizer.GetStep()
	log.Printf("final loss %.6f after %d steps", result.finalLoss, result.step)

	if opts.checkpoint != "" {
		if err := saveCheckpoint(optimizer, opts.checkpoint); err != nil {
			return fitResult{}, err
		}
		log.Printf("checkpoint written to %s", opts.checkpoint)
	}
	return result, nil
}

func saveCheckpoint(optimizer *optim.MADGRAD, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint: %w", err)
	}
	if err := optimizer.SaveCheckpoint(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func loadCheckpoint(optimizer *optim.MADGRAD, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint: %w", err)
	}
	defer func() { _ = f.Close() }()
	return optimizer.LoadCheckpoint(f)
}
