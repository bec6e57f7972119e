package optim_test

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
	"github.com/seehuhn/mt19937"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/madgrad/internal/nn"
	"github.com/born-ml/madgrad/internal/optim"
	"github.com/born-ml/madgrad/internal/tensor"
)

type gradMap = map[*tensor.RawTensor]tensor.Gradient

func newParam(t *testing.T, name string, values []float32, shape tensor.Shape) *nn.Parameter {
	t.Helper()
	raw, err := tensor.FromSlice(values, shape)
	require.NoError(t, err)
	return nn.NewParameter(name, raw)
}

func denseGrad(t *testing.T, values ...float32) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.FromSlice(values, tensor.Shape{len(values)})
	require.NoError(t, err)
	return raw
}

func sparseGrad(t *testing.T, n int, indices []int, values []float32) *tensor.SparseTensor {
	t.Helper()
	sp, err := tensor.NewSparse(tensor.Shape{n}, indices, values)
	require.NoError(t, err)
	return sp
}

func newMADGRAD(t *testing.T, cfg optim.MADGRADConfig, params ...*nn.Parameter) *optim.MADGRAD {
	t.Helper()
	opt, err := optim.NewMADGRAD(params, cfg)
	require.NoError(t, err)
	return opt
}

func step(t *testing.T, opt *optim.MADGRAD, grads gradMap) {
	t.Helper()
	_, err := opt.Step(grads, nil)
	require.NoError(t, err)
}

// ulp32 returns the spacing between x and the next larger float32.
func ulp32(x float32) float32 {
	return math32.Nextafter(x, math32.Inf(1)) - x
}

func toFloat64(data []float32) []float64 {
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = float64(v)
	}
	return out
}

// TestMADGRAD_SingleStepClosedForm checks one step from k=0 against the closed form.
func TestMADGRAD_SingleStepClosedForm(t *testing.T) {
	param := newParam(t, "x", []float32{0}, tensor.Shape{1})
	opt := newMADGRAD(t, optim.MADGRADConfig{LR: 0.01, Eps: 1e-6}, param)

	step(t, opt, gradMap{param.Tensor(): denseGrad(t, 2.0)})

	// lambda = (lr + eps) * sqrt(1); p = -(lambda*g) / (cbrt(lambda*g²) + eps)
	lr, eps, g := 0.01+1e-6, 1e-6, 2.0
	lambda := lr
	want := -(lambda * g) / (math.Cbrt(lambda*g*g) + eps)

	assert.InDelta(t, want, param.Tensor().AsFloat32()[0], 1e-6)
	assert.InDelta(t, -0.058484082, param.Tensor().AsFloat32()[0], 1e-6)
	assert.Equal(t, int64(1), opt.GetStep())
}

// TestMADGRAD_ZeroGradientIsNoOp checks that an all-zero gradient only advances the counter.
func TestMADGRAD_ZeroGradientIsNoOp(t *testing.T) {
	initial := []float32{0.5, -1.25, 3}

	t.Run("fresh state", func(t *testing.T) {
		param := newParam(t, "x", initial, tensor.Shape{3})
		opt := newMADGRAD(t, optim.MADGRADConfig{LR: 0.01, Eps: 1e-6}, param)

		step(t, opt, gradMap{param.Tensor(): denseGrad(t, 0, 0, 0)})

		assert.Equal(t, initial, param.Tensor().AsFloat32())
		sd := opt.StateDict()
		assert.Equal(t, []float32{0, 0, 0}, sd.Tensors["grad_sum_sq.0"].AsFloat32())
		assert.Equal(t, []float32{0, 0, 0}, sd.Tensors["s.0"].AsFloat32())
		assert.Equal(t, int64(1), opt.GetStep())
	})

	t.Run("after a real step", func(t *testing.T) {
		param := newParam(t, "x", initial, tensor.Shape{3})
		opt := newMADGRAD(t, optim.MADGRADConfig{LR: 0.01, Eps: 1e-6}, param)

		step(t, opt, gradMap{param.Tensor(): denseGrad(t, 1, -2, 0.5)})
		before := append([]float32(nil), param.Tensor().AsFloat32()...)
		sdBefore := opt.StateDict()

		step(t, opt, gradMap{param.Tensor(): denseGrad(t, 0, 0, 0)})

		// With momentum 0 the parameter is rebuilt as (p + s/rms) - s/rms with
		// unchanged accumulators. That is exact up to the two float32 roundings,
		// so allow one ulp of the larger intermediate and no more.
		after := param.Tensor().AsFloat32()
		gss, sums := sdBefore.Tensors["grad_sum_sq.0"].AsFloat32(), sdBefore.Tensors["s.0"].AsFloat32()
		for i := range before {
			shift := sums[i] / (math32.Cbrt(gss[i]) + 1e-6)
			bound := ulp32(2 * max(math32.Abs(before[i]), math32.Abs(shift)))
			assert.LessOrEqual(t, math32.Abs(after[i]-before[i]), bound, "entry %d", i)
		}
		sdAfter := opt.StateDict()
		assert.Equal(t, sdBefore.Tensors["grad_sum_sq.0"].AsFloat32(), sdAfter.Tensors["grad_sum_sq.0"].AsFloat32())
		assert.Equal(t, sdBefore.Tensors["s.0"].AsFloat32(), sdAfter.Tensors["s.0"].AsFloat32())
		assert.Equal(t, int64(2), opt.GetStep())
	})

	t.Run("momentum", func(t *testing.T) {
		param := newParam(t, "x", initial, tensor.Shape{3})
		opt := newMADGRAD(t, optim.MADGRADConfig{LR: 0.01, Momentum: 0.9, Eps: 1e-6}, param)

		step(t, opt, gradMap{param.Tensor(): denseGrad(t, 0, 0, 0)})

		assert.InDeltaSlice(t, toFloat64(initial), toFloat64(param.Tensor().AsFloat32()), 1e-6)
	})
}

// TestMADGRAD_SparseMatchesDense checks sparse updates against equivalent dense ones.
func TestMADGRAD_SparseMatchesDense(t *testing.T) {
	initial := []float32{1, 2, 3, 4, 5, 6}
	touched := []int{1, 4}
	cfg := optim.MADGRADConfig{LR: 0.05, Eps: 1e-6}

	sparseParam := newParam(t, "sparse", initial, tensor.Shape{6})
	denseParam := newParam(t, "dense", initial, tensor.Shape{6})
	sparseOpt := newMADGRAD(t, cfg, sparseParam)
	denseOpt := newMADGRAD(t, cfg, denseParam)

	steps := [][]float32{{0.5, -1}, {-0.25, 2}, {1.5, 0.125}}
	for _, vals := range steps {
		dense := make([]float32, 6)
		for j, idx := range touched {
			dense[idx] = vals[j]
		}

		step(t, sparseOpt, gradMap{sparseParam.Tensor(): sparseGrad(t, 6, touched, vals)})
		step(t, denseOpt, gradMap{denseParam.Tensor(): denseGrad(t, dense...)})
	}

	sp := sparseParam.Tensor().AsFloat32()
	dn := denseParam.Tensor().AsFloat32()
	for _, idx := range touched {
		assert.InDelta(t, dn[idx], sp[idx], 1e-5, "touched index %d", idx)
		assert.NotEqual(t, initial[idx], sp[idx], "touched index %d should move", idx)
	}
	for i := range initial {
		if i == 1 || i == 4 {
			continue
		}
		assert.Equal(t, math.Float32bits(initial[i]), math.Float32bits(sp[i]), "untouched index %d must be bit-identical", i)
	}

	// Accumulators agree everywhere
	sSparse := sparseOpt.StateDict()
	sDense := denseOpt.StateDict()
	assert.InDeltaSlice(t, toFloat64(sDense.Tensors["grad_sum_sq.0"].AsFloat32()), toFloat64(sSparse.Tensors["grad_sum_sq.0"].AsFloat32()), 1e-5)
	assert.InDeltaSlice(t, toFloat64(sDense.Tensors["s.0"].AsFloat32()), toFloat64(sSparse.Tensors["s.0"].AsFloat32()), 1e-5)
}

// TestMADGRAD_SparseDuplicateIndices checks that duplicate entries are summed before the update.
func TestMADGRAD_SparseDuplicateIndices(t *testing.T) {
	cfg := optim.MADGRADConfig{LR: 0.1, Eps: 1e-6}

	a := newParam(t, "a", []float32{1, 1, 1}, tensor.Shape{3})
	b := newParam(t, "b", []float32{1, 1, 1}, tensor.Shape{3})
	optA := newMADGRAD(t, cfg, a)
	optB := newMADGRAD(t, cfg, b)

	step(t, optA, gradMap{a.Tensor(): sparseGrad(t, 3, []int{2, 0, 2}, []float32{0.5, 1, 0.25})})
	step(t, optB, gradMap{b.Tensor(): sparseGrad(t, 3, []int{0, 2}, []float32{1, 0.75})})

	assert.InDeltaSlice(t, toFloat64(b.Tensor().AsFloat32()), toFloat64(a.Tensor().AsFloat32()), 1e-7)
	assert.Equal(t, float32(1), a.Tensor().AsFloat32()[1])
}

// TestMADGRAD_MomentumBlending checks a fixed two-step sequence with momentum 0.9.
func TestMADGRAD_MomentumBlending(t *testing.T) {
	const m = 0.9
	cfg := optim.MADGRADConfig{LR: 0.1, Momentum: m, Eps: 1e-6}
	param := newParam(t, "x", []float32{1, -2}, tensor.Shape{2})
	opt := newMADGRAD(t, cfg, param)

	grads := [][]float32{{0.5, -1}, {0.25, 0.5}}
	want := [][]float64{
		{0.9829001850153762, -1.9784555558868844},
		{0.9582209126420654, -1.9749054742279766},
	}

	for i, g := range grads {
		pre := toFloat64(param.Tensor().AsFloat32())
		step(t, opt, gradMap{param.Tensor(): denseGrad(t, g...)})
		post := toFloat64(param.Tensor().AsFloat32())

		assert.InDeltaSlice(t, want[i], post, 1e-5, "step %d", i+1)

		// post == m*pre + (1-m)*z with z = x0 - s/(cbrt(gradSumSq)+eps)
		sd := opt.StateDict()
		x0 := sd.Tensors["x0.0"].AsFloat32()
		s := sd.Tensors["s.0"].AsFloat32()
		sumSq := sd.Tensors["grad_sum_sq.0"].AsFloat32()
		for j := range post {
			z := float64(x0[j]) - float64(s[j])/(math.Cbrt(float64(sumSq[j]))+1e-6)
			assert.InDelta(t, m*pre[j]+(1-m)*z, post[j], 2e-6, "step %d index %d", i+1, j)
		}
	}

	// Anchor is the initial value and never changes
	assert.Equal(t, []float32{1, -2}, opt.StateDict().Tensors["x0.0"].AsFloat32())
}

// TestMADGRAD_WeightDecayModes compares coupled and decoupled weight decay.
func TestMADGRAD_WeightDecayModes(t *testing.T) {
	const (
		lr  = 0.01
		eps = 1e-6
		wd  = 0.1
		p0  = 1.0
		g   = 0.5
	)
	lrEff := lr + eps
	lambda := lrEff

	coupledParam := newParam(t, "coupled", []float32{p0}, tensor.Shape{1})
	coupledOpt := newMADGRAD(t, optim.MADGRADConfig{LR: lr, Eps: eps, WeightDecay: wd}, coupledParam)
	coupledGrad := denseGrad(t, g)
	step(t, coupledOpt, gradMap{coupledParam.Tensor(): coupledGrad})

	decoupledParam := newParam(t, "decoupled", []float32{p0}, tensor.Shape{1})
	decoupledOpt := newMADGRAD(t, optim.MADGRADConfig{LR: lr, Eps: eps, WeightDecay: wd, DecoupleDecay: true}, decoupledParam)
	decoupledGrad := denseGrad(t, g)
	step(t, decoupledOpt, gradMap{decoupledParam.Tensor(): decoupledGrad})

	// Coupled: the penalty joins the gradient before adaptive scaling
	gc := g + wd*p0
	wantCoupled := p0 - lambda*gc/(math.Cbrt(lambda*gc*gc)+eps)
	assert.InDelta(t, wantCoupled, coupledParam.Tensor().AsFloat32()[0], 1e-6)
	assert.InDelta(t, 0.9608489691633723, coupledParam.Tensor().AsFloat32()[0], 1e-6)
	assert.InDelta(t, gc, coupledGrad.AsFloat32()[0], 1e-7, "coupled decay updates the gradient in place")

	// Decoupled: the penalty is subtracted from the parameter directly
	wantDecoupled := p0 - lambda*g/(math.Cbrt(lambda*g*g)+eps) - lrEff*wd*p0
	assert.InDelta(t, wantDecoupled, decoupledParam.Tensor().AsFloat32()[0], 1e-6)
	assert.InDelta(t, 0.9621574004823384, decoupledParam.Tensor().AsFloat32()[0], 1e-6)
	assert.Equal(t, float32(g), decoupledGrad.AsFloat32()[0], "decoupled decay leaves the gradient alone")

	assert.NotEqual(t, coupledParam.Tensor().AsFloat32()[0], decoupledParam.Tensor().AsFloat32()[0])
}

// TestMADGRAD_DecoupledDecayWithMomentum checks the decoupled subtraction uses the pre-blend value.
func TestMADGRAD_DecoupledDecayWithMomentum(t *testing.T) {
	const (
		lr, eps, wd, m = 0.05, 1e-6, 0.2, 0.5
		p0, g          = 2.0, -1.0
	)
	param := newParam(t, "x", []float32{p0}, tensor.Shape{1})
	opt := newMADGRAD(t, optim.MADGRADConfig{LR: lr, Momentum: m, Eps: eps, WeightDecay: wd, DecoupleDecay: true}, param)

	step(t, opt, gradMap{param.Tensor(): denseGrad(t, g)})

	lrEff := lr + eps
	z := p0 - lrEff*g/(math.Cbrt(lrEff*g*g)+eps)
	want := m*p0 + (1-m)*z - lrEff*wd*p0
	assert.InDelta(t, want, param.Tensor().AsFloat32()[0], 1e-5)
}

// TestMADGRAD_SparseErrors checks the unsupported sparse combinations.
func TestMADGRAD_SparseErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  optim.MADGRADConfig
		note string
	}{
		{"momentum", optim.MADGRADConfig{LR: 0.01, Momentum: 0.9, Eps: 1e-6}, "momentum > 0.0"},
		{"coupled weight decay", optim.MADGRADConfig{LR: 0.01, WeightDecay: 0.1, Eps: 1e-6}, "weight_decay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			param := newParam(t, "emb", []float32{1, 2, 3}, tensor.Shape{3})
			opt := newMADGRAD(t, tt.cfg, param)

			_, err := opt.Step(gradMap{param.Tensor(): sparseGrad(t, 3, []int{1}, []float32{0.5})}, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, optim.ErrSparseUnsupported))

			var sErr *optim.SparseUnsupportedError
			require.ErrorAs(t, err, &sErr)
			assert.Equal(t, "MADGRAD", sErr.Optimizer)
			assert.Equal(t, "emb", sErr.Param)
			assert.Equal(t, tt.note, sErr.Note)

			assert.Equal(t, []float32{1, 2, 3}, param.Tensor().AsFloat32())
			assert.Equal(t, int64(0), opt.GetStep())
		})
	}

	t.Run("decoupled weight decay is allowed", func(t *testing.T) {
		param := newParam(t, "emb", []float32{1, 2, 3}, tensor.Shape{3})
		opt := newMADGRAD(t, optim.MADGRADConfig{LR: 0.01, WeightDecay: 0.1, DecoupleDecay: true, Eps: 1e-6}, param)

		_, err := opt.Step(gradMap{param.Tensor(): sparseGrad(t, 3, []int{1}, []float32{0.5})}, nil)
		require.NoError(t, err)
		assert.Equal(t, float32(1), param.Tensor().AsFloat32()[0])
		assert.NotEqual(t, float32(2), param.Tensor().AsFloat32()[1])
	})
}

// TestMADGRAD_NoPartialApplication checks that a failing parameter blocks the whole step.
func TestMADGRAD_NoPartialApplication(t *testing.T) {
	dense := newParam(t, "dense", []float32{1, 1}, tensor.Shape{2})
	emb := newParam(t, "emb", []float32{2, 2}, tensor.Shape{2})
	opt, err := optim.NewMADGRADGroups([]optim.ParamGroup{
		{Params: []*nn.Parameter{dense}, Config: optim.MADGRADConfig{LR: 0.1, Eps: 1e-6}},
		{Params: []*nn.Parameter{emb}, Config: optim.MADGRADConfig{LR: 0.1, Momentum: 0.9, Eps: 1e-6}},
	})
	require.NoError(t, err)

	_, err = opt.Step(gradMap{
		dense.Tensor(): denseGrad(t, 1, 1),
		emb.Tensor():   sparseGrad(t, 2, []int{0}, []float32{1}),
	}, nil)
	require.ErrorIs(t, err, optim.ErrSparseUnsupported)

	assert.Equal(t, []float32{1, 1}, dense.Tensor().AsFloat32())
	assert.Empty(t, opt.StateDict().Tensors)
	assert.Equal(t, int64(0), opt.GetStep())
}

// TestMADGRAD_ShapeMismatch checks gradient shape validation.
func TestMADGRAD_ShapeMismatch(t *testing.T) {
	param := newParam(t, "w", []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	opt := newMADGRAD(t, optim.MADGRADConfig{LR: 0.1, Eps: 1e-6}, param)

	_, err := opt.Step(gradMap{param.Tensor(): denseGrad(t, 1, 2, 3, 4)}, nil)
	require.ErrorIs(t, err, optim.ErrShapeMismatch)
	assert.Equal(t, []float32{1, 2, 3, 4}, param.Tensor().AsFloat32())
}

// TestMADGRAD_StepCounter checks the counter advances once per call.
func TestMADGRAD_StepCounter(t *testing.T) {
	a := newParam(t, "a", []float32{1}, tensor.Shape{1})
	b := newParam(t, "b", []float32{1}, tensor.Shape{1})
	opt, err := optim.NewMADGRADGroups([]optim.ParamGroup{
		{Params: []*nn.Parameter{a}, Config: optim.MADGRADConfig{LR: 0.1, Eps: 1e-6}},
		{Params: []*nn.Parameter{b}, Config: optim.MADGRADConfig{LR: 0.2, Momentum: 0.5, Eps: 1e-6}},
	})
	require.NoError(t, err)

	const n = 7
	for i := range n {
		step(t, opt, gradMap{a.Tensor(): denseGrad(t, 0.1), b.Tensor(): denseGrad(t, -0.1)})
		assert.Equal(t, int64(i+1), opt.GetStep())
	}
	assert.Equal(t, int64(n), opt.GetStep())

	// A call where every gradient is absent still counts as a step
	step(t, opt, nil)
	assert.Equal(t, int64(n+1), opt.GetStep())
}

// TestMADGRAD_ZeroEpsilonDense checks the division guard when eps == 0.
func TestMADGRAD_ZeroEpsilonDense(t *testing.T) {
	for _, momentum := range []float32{0, 0.9} {
		param := newParam(t, "x", []float32{0.5, 1}, tensor.Shape{2})
		opt := newMADGRAD(t, optim.MADGRADConfig{LR: 0.1, Momentum: momentum}, param)

		for range 3 {
			step(t, opt, gradMap{param.Tensor(): denseGrad(t, 0, 1)})
		}

		p := param.Tensor().AsFloat32()
		assert.False(t, math.IsNaN(float64(p[0])) || math.IsInf(float64(p[0]), 0), "momentum %v: untouched entry must stay finite", momentum)
		assert.InDelta(t, 0.5, p[0], 1e-6, "momentum %v: entry with no gradient history must not move", momentum)
		assert.False(t, math.IsNaN(float64(p[1])), "momentum %v", momentum)
		assert.Less(t, p[1], float32(1), "momentum %v: entry with positive gradient must decrease", momentum)
	}
}

// TestMADGRAD_ZeroEpsilonSparse checks the division guard on the sparse path.
func TestMADGRAD_ZeroEpsilonSparse(t *testing.T) {
	param := newParam(t, "emb", []float32{0.5, 1, -1}, tensor.Shape{3})
	opt := newMADGRAD(t, optim.MADGRADConfig{LR: 0.1}, param)

	// Explicit zero at index 0, real gradient at index 1
	for range 3 {
		step(t, opt, gradMap{param.Tensor(): sparseGrad(t, 3, []int{0, 1}, []float32{0, 1})})
	}

	p := param.Tensor().AsFloat32()
	assert.Equal(t, float32(0.5), p[0])
	assert.Equal(t, float32(-1), p[2])
	assert.False(t, math.IsNaN(float64(p[1])))
	assert.Less(t, p[1], float32(1))

	// Dense and sparse agree with eps == 0 as well
	ref := newParam(t, "ref", []float32{0.5, 1, -1}, tensor.Shape{3})
	refOpt := newMADGRAD(t, optim.MADGRADConfig{LR: 0.1}, ref)
	for range 3 {
		step(t, refOpt, gradMap{ref.Tensor(): denseGrad(t, 0, 1, 0)})
	}
	assert.InDeltaSlice(t, toFloat64(ref.Tensor().AsFloat32()), toFloat64(p), 1e-6)
}

// TestMADGRAD_AnchorRecovery runs many momentum-free steps against a reference
// that stores the anchor explicitly. Recovering x0 from already-updated
// accumulators would drift away from it after the first step.
func TestMADGRAD_AnchorRecovery(t *testing.T) {
	const (
		n     = 8
		steps = 25
		lr    = 0.02
		eps   = 1e-6
	)
	rng := rand.New(mt19937.New())
	rng.Seed(42)

	initial := make([]float32, n)
	for i := range initial {
		initial[i] = float32(rng.NormFloat64())
	}
	param := newParam(t, "x", initial, tensor.Shape{n})
	opt := newMADGRAD(t, optim.MADGRADConfig{LR: lr, Eps: eps}, param)

	// Reference in float64 with a stored anchor
	x0 := toFloat64(initial)
	sumSq := make([]float64, n)
	s := make([]float64, n)
	want := make([]float64, n)

	for k := range steps {
		g := make([]float32, n)
		for i := range g {
			g[i] = float32(rng.NormFloat64())
		}
		step(t, opt, gradMap{param.Tensor(): denseGrad(t, g...)})

		lambda := (lr + eps) * math.Sqrt(float64(k+1))
		for i := range want {
			gi := float64(g[i])
			sumSq[i] += lambda * gi * gi
			s[i] += lambda * gi
			want[i] = x0[i] - s[i]/(math.Cbrt(sumSq[i])+eps)
		}

		got := toFloat64(param.Tensor().AsFloat32())
		require.True(t, floats.EqualApprox(want, got, 1e-4), "step %d: got %v, want %v", k+1, got, want)
	}
}

// TestMADGRAD_Closure checks closure ordering and the optional loss.
func TestMADGRAD_Closure(t *testing.T) {
	param := newParam(t, "x", []float32{3}, tensor.Shape{1})
	opt := newMADGRAD(t, optim.MADGRADConfig{LR: 0.1, Eps: 1e-6}, param)
	grads := gradMap{param.Tensor(): denseGrad(t, 1)}

	loss, err := opt.Step(grads, func() (float32, error) {
		v := param.Tensor().AsFloat32()[0]
		return v * v, nil
	})
	require.NoError(t, err)
	assert.True(t, loss.Valid)
	assert.Equal(t, float32(9), loss.Value, "closure must see pre-update parameters")
	assert.NotEqual(t, float32(3), param.Tensor().AsFloat32()[0])

	loss, err = opt.Step(grads, nil)
	require.NoError(t, err)
	assert.False(t, loss.Valid)

	before := param.Tensor().AsFloat32()[0]
	failure := errors.New("data loader exhausted")
	_, err = opt.Step(grads, func() (float32, error) { return 0, failure })
	require.ErrorIs(t, err, failure)
	assert.Equal(t, before, param.Tensor().AsFloat32()[0])
	assert.Equal(t, int64(2), opt.GetStep())
}

// TestMADGRAD_GradientSources checks map lookup, attached gradients and ZeroGrad.
func TestMADGRAD_GradientSources(t *testing.T) {
	a := newParam(t, "a", []float32{1}, tensor.Shape{1})
	b := newParam(t, "b", []float32{1}, tensor.Shape{1})
	c := newParam(t, "c", []float32{1}, tensor.Shape{1})
	opt := newMADGRAD(t, optim.MADGRADConfig{LR: 0.1, Eps: 1e-6}, a, b, c)

	// a: map only; b: attached only; c: attached but overridden by a zero map entry
	a.SetGrad(nil)
	b.SetGrad(denseGrad(t, 1))
	c.SetGrad(denseGrad(t, 1))

	step(t, opt, gradMap{a.Tensor(): denseGrad(t, 1), c.Tensor(): denseGrad(t, 0)})

	assert.Less(t, a.Tensor().AsFloat32()[0], float32(1))
	assert.Less(t, b.Tensor().AsFloat32()[0], float32(1))
	assert.Equal(t, float32(1), c.Tensor().AsFloat32()[0])

	opt.ZeroGrad()
	assert.Nil(t, a.Grad())
	assert.Nil(t, b.Grad())
	assert.Nil(t, c.Grad())

	// Typed nil map entries are treated as absent
	var none *tensor.RawTensor
	before := b.Tensor().AsFloat32()[0]
	step(t, opt, gradMap{b.Tensor(): none})
	assert.Equal(t, before, b.Tensor().AsFloat32()[0])
}

// TestMADGRAD_GroupsUseOwnConfig checks per-group hyperparameters.
func TestMADGRAD_GroupsUseOwnConfig(t *testing.T) {
	slow := newParam(t, "slow", []float32{0}, tensor.Shape{1})
	fast := newParam(t, "fast", []float32{0}, tensor.Shape{1})
	opt, err := optim.NewMADGRADGroups([]optim.ParamGroup{
		{Params: []*nn.Parameter{slow}, Config: optim.MADGRADConfig{LR: 0.01, Eps: 1e-6}},
		{Params: []*nn.Parameter{fast}, Config: optim.MADGRADConfig{LR: 0.1, Eps: 1e-6}},
	})
	require.NoError(t, err)
	assert.Equal(t, float32(0.01), opt.GetLR())
	assert.Len(t, opt.Groups(), 2)

	step(t, opt, gradMap{slow.Tensor(): denseGrad(t, 1), fast.Tensor(): denseGrad(t, 1)})

	// With p0 = 0 and g = 1, one step moves by -lambda^(2/3) approximately
	assert.InDelta(t, -math.Pow(0.010001, 2.0/3), slow.Tensor().AsFloat32()[0], 1e-4)
	assert.InDelta(t, -math.Pow(0.100001, 2.0/3), fast.Tensor().AsFloat32()[0], 1e-4)
}

// TestMADGRAD_Reset checks that Reset clears state and re-anchors.
func TestMADGRAD_Reset(t *testing.T) {
	plain := newParam(t, "plain", []float32{1, 2}, tensor.Shape{2})
	heavy := newParam(t, "heavy", []float32{3, 4}, tensor.Shape{2})
	opt, err := optim.NewMADGRADGroups([]optim.ParamGroup{
		{Params: []*nn.Parameter{plain}, Config: optim.MADGRADConfig{LR: 0.1, Eps: 1e-6}},
		{Params: []*nn.Parameter{heavy}, Config: optim.MADGRADConfig{LR: 0.1, Momentum: 0.9, Eps: 1e-6}},
	})
	require.NoError(t, err)

	for range 3 {
		step(t, opt, gradMap{plain.Tensor(): denseGrad(t, 1, -1), heavy.Tensor(): denseGrad(t, 0.5, 0.5)})
	}
	require.Equal(t, int64(3), opt.GetStep())

	opt.Reset()
	assert.Equal(t, int64(0), opt.GetStep())

	sd := opt.StateDict()
	assert.Equal(t, []float32{0, 0}, sd.Tensors["grad_sum_sq.0"].AsFloat32())
	assert.Equal(t, []float32{0, 0}, sd.Tensors["s.0"].AsFloat32())
	assert.NotContains(t, sd.Tensors, "x0.0")
	assert.Equal(t, []float32{0, 0}, sd.Tensors["grad_sum_sq.1"].AsFloat32())
	assert.Equal(t, heavy.Tensor().AsFloat32(), sd.Tensors["x0.1"].AsFloat32(), "anchor is the value at reset time")

	// After reset the next step behaves like a first step from the current values
	start := append([]float32(nil), plain.Tensor().AsFloat32()...)
	fresh := newParam(t, "fresh", start, tensor.Shape{2})
	freshOpt := newMADGRAD(t, optim.MADGRADConfig{LR: 0.1, Eps: 1e-6}, fresh)

	step(t, opt, gradMap{plain.Tensor(): denseGrad(t, 1, -1)})
	step(t, freshOpt, gradMap{fresh.Tensor(): denseGrad(t, 1, -1)})
	assert.InDeltaSlice(t, toFloat64(fresh.Tensor().AsFloat32()), toFloat64(plain.Tensor().AsFloat32()), 1e-6)
}
