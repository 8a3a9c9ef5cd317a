package critic

import (
	"math"
	"testing"

	"github.com/samuelfneumann/goiql/network"
	"github.com/samuelfneumann/goiql/solver"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// uniform returns n samples drawn uniformly from [-1, 1)
func uniform(n int, seed uint64) []float64 {
	dist := distuv.Uniform{Min: -1, Max: 1, Src: rand.NewSource(seed)}
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = dist.Rand()
	}
	return samples
}

func vanillaMaker(t *testing.T, stepSize float64) solver.Maker {
	t.Helper()
	s, err := solver.NewVanilla(stepSize, 1, -1)
	if err != nil {
		t.Fatal(err)
	}
	return s.Maker()
}

// linearNet returns a network with no hidden layers
func linearNet(t *testing.T, features, outputs, batch int) network.NeuralNet {
	t.Helper()
	net, err := network.NewMultiHeadMLP(features, batch, outputs,
		G.NewGraph(), []int{}, []bool{}, G.GlorotU(1.0),
		[]*network.Activation{})
	if err != nil {
		t.Fatal(err)
	}
	return net
}

func newLinearValue(t *testing.T, features, batch int,
	stepSize float64) *Value {
	t.Helper()
	v, err := NewValue(linearNet(t, features, 1, batch), MSE,
		vanillaMaker(t, stepSize), -1)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

// runLoss evaluates loss on the given predictions and targets
func runLoss(t *testing.T, loss Loss, pred, target []float64) float64 {
	t.Helper()
	g := G.NewGraph()
	predNode := G.NewVector(g, tensor.Float64, G.WithShape(len(pred)),
		G.WithName("pred"), G.WithValue(tensor.New(
			tensor.WithShape(len(pred)), tensor.WithBacking(pred))))
	targetNode := G.NewVector(g, tensor.Float64, G.WithShape(len(target)),
		G.WithName("target"), G.WithValue(tensor.New(
			tensor.WithShape(len(target)), tensor.WithBacking(target))))

	cost, err := loss(predNode, targetNode)
	if err != nil {
		t.Fatal(err)
	}
	var costVal G.Value
	G.Read(cost, &costVal)

	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatal(err)
	}

	value, err := scalar(costVal)
	if err != nil {
		t.Fatal(err)
	}
	return value
}

func TestExpectileLossGraph(t *testing.T) {
	pred := []float64{1.0, -2.0, 0.5, 3.0, 0.0}
	target := []float64{0.0, 1.0, 0.5, -1.0, 2.0}

	for _, expectile := range []float64{0.1, 0.5, 0.7, 0.9} {
		var want float64
		for i := range pred {
			diff := pred[i] - target[i]
			weight := expectile
			if diff > 0 {
				weight = 1 - expectile
			}
			want += weight * diff * diff
		}
		want /= float64(len(pred))

		have := runLoss(t, Expectile(expectile), pred, target)
		if math.Abs(have-want) > 1e-12 {
			t.Errorf("expectile %v: have loss %v want %v", expectile, have,
				want)
		}
	}

	mse := runLoss(t, MSE, pred, target)
	half := runLoss(t, Expectile(0.5), pred, target)
	if math.Abs(half-0.5*mse) > 1e-12 {
		t.Errorf("expectile 0.5 loss %v is not half of mse %v", half, mse)
	}
}

func TestValueForward(t *testing.T) {
	const features = 3
	v := newLinearValue(t, features, 4, 0.01)
	defer v.Close()

	params := network.Params(v.Network())
	weights, bias := params[0], params[1][0]

	// Forward accepts any number of states
	for _, n := range []int{1, 4, 7} {
		states := uniform(n*features, uint64(n))
		values, err := v.Forward(states)
		if err != nil {
			t.Fatalf("forward %v states: %v", n, err)
		}
		if len(values) != n {
			t.Fatalf("forward: have %v values want %v", len(values), n)
		}

		for i := 0; i < n; i++ {
			want := floats.Dot(weights, states[i*features:(i+1)*features]) +
				bias
			if math.Abs(values[i]-want) > 1e-10 {
				t.Errorf("state %v: have value %v want %v", i, values[i], want)
			}
		}
	}
}

func TestValueZeroLossFixedPoint(t *testing.T) {
	const features, batch = 2, 4
	v := newLinearValue(t, features, batch, 0.1)
	defer v.Close()

	states := uniform(features*batch, 1)
	targets, err := v.Forward(states)
	if err != nil {
		t.Fatal(err)
	}
	before := network.Params(v.Network())

	metrics, err := v.Update(states, targets)
	if err != nil {
		t.Fatal(err)
	}
	if loss := metrics["baseline_loss"]; math.Abs(loss) > 1e-20 {
		t.Errorf("have loss %v want 0", loss)
	}
	if _, ok := metrics["baseline_grad_norm"]; !ok {
		t.Errorf("missing gradient norm metric")
	}

	after := network.Params(v.Network())
	for i := range before {
		if !floats.EqualApprox(before[i], after[i], 1e-12) {
			t.Errorf("learnable %v changed: %v -> %v", i, before[i], after[i])
		}
	}
}

func TestValueUpdateReducesLoss(t *testing.T) {
	const features, batch = 2, 8
	v := newLinearValue(t, features, batch, 0.1)
	defer v.Close()

	states := uniform(features*batch, 2)
	targets := make([]float64, batch)
	for i := range targets {
		targets[i] = 2*states[i*features] - states[i*features+1] + 0.5
	}

	first, err := v.Update(states, targets)
	if err != nil {
		t.Fatal(err)
	}
	var last float64
	for i := 0; i < 200; i++ {
		metrics, err := v.Update(states, targets)
		if err != nil {
			t.Fatal(err)
		}
		last = metrics["baseline_loss"]
	}
	if last >= first["baseline_loss"] {
		t.Errorf("loss did not decrease: %v -> %v", first["baseline_loss"],
			last)
	}
}

func TestValueShapeMismatch(t *testing.T) {
	const features, batch = 2, 4
	v := newLinearValue(t, features, batch, 0.1)
	defer v.Close()

	states := uniform(features*batch, 3)
	if _, err := v.Update(states, make([]float64, batch-1)); err == nil ||
		!network.IsShapeMismatch(err) {
		t.Errorf("expected shape mismatch on wrong number of targets, "+
			"have %v", err)
	}
	if _, err := v.Update(states[:features*(batch-1)],
		make([]float64, batch)); err == nil || !network.IsShapeMismatch(err) {
		t.Errorf("expected shape mismatch on wrong number of states, "+
			"have %v", err)
	}
	if _, err := v.Forward(states[:features+1]); err == nil ||
		!network.IsShapeMismatch(err) {
		t.Errorf("expected shape mismatch on partial state, have %v", err)
	}
}

func TestNewValueRequiresSingleOutput(t *testing.T) {
	_, err := NewValue(linearNet(t, 2, 3, 4), MSE, vanillaMaker(t, 0.1), -1)
	if err == nil || !network.IsShapeMismatch(err) {
		t.Errorf("expected shape mismatch for multi-output network, have %v",
			err)
	}
}

func TestGather(t *testing.T) {
	values := []float64{
		1, 2, 3,
		4, 5, 6,
	}
	gathered, err := Gather(values, []int{2, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !floats.Equal(gathered, []float64{3, 4}) {
		t.Errorf("have %v want [3 4]", gathered)
	}

	if _, err := Gather(values, []int{3, 0}, 3); err == nil {
		t.Errorf("expected error on out of range action")
	}
	if _, err := Gather(values, []int{0}, 3); !network.IsShapeMismatch(err) {
		t.Errorf("expected shape mismatch, have %v", err)
	}

	oneHot, err := OneHot([]int{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !floats.Equal(oneHot, []float64{0, 1, 1, 0}) {
		t.Errorf("have one-hot %v want [0 1 1 0]", oneHot)
	}
}

func TestQStepOnlyUpdatesTakenActions(t *testing.T) {
	const features, numActions, batch = 2, 3, 4
	q, err := NewQ(linearNet(t, features, numActions, batch), MSE,
		vanillaMaker(t, 0.1))
	if err != nil {
		t.Fatal(err)
	}
	defer q.Close()

	states := uniform(features*batch, 4)
	actions := []int{0, 2, 0, 2}
	targets := []float64{5, -5, 5, -5}

	before := network.Params(q.Network())
	want, err := q.Values(states, actions)
	if err != nil {
		t.Fatal(err)
	}

	step, err := q.Step(states, actions, targets, -1)
	if err != nil {
		t.Fatal(err)
	}
	if !floats.EqualApprox(step.Predictions, want, 1e-10) {
		t.Errorf("training predictions %v differ from gathered values %v",
			step.Predictions, want)
	}
	if step.GradNorm <= 0 {
		t.Errorf("expected positive gradient norm, have %v", step.GradNorm)
	}

	// Weights are (features x numActions) and biases (1 x numActions):
	// only the columns of action 1, which was never taken, stay fixed
	after := network.Params(q.Network())
	for i := range after {
		for j := range after[i] {
			action := j % numActions
			changed := after[i][j] != before[i][j]
			if action == 1 && changed {
				t.Errorf("learnable %v element %v of untaken action changed",
					i, j)
			}
		}
	}
	if floats.Equal(after[0], before[0]) {
		t.Errorf("weights of taken actions did not change")
	}

	// The target network only changes when synced
	if !floats.Equal(network.Params(q.Target())[0], before[0]) {
		t.Errorf("target network changed before sync")
	}
	if err := q.UpdateTarget(); err != nil {
		t.Fatal(err)
	}
	if !floats.Equal(network.Params(q.Target())[0], after[0]) {
		t.Errorf("target network not synced")
	}

	targetValues, err := q.TargetValues(states, actions)
	if err != nil {
		t.Fatal(err)
	}
	liveValues, err := q.Values(states, actions)
	if err != nil {
		t.Fatal(err)
	}
	if !floats.Equal(targetValues, liveValues) {
		t.Errorf("synced target values %v differ from live values %v",
			targetValues, liveValues)
	}
}

func TestQStepInvalidActions(t *testing.T) {
	q, err := NewQ(linearNet(t, 2, 2, 2), MSE, vanillaMaker(t, 0.1))
	if err != nil {
		t.Fatal(err)
	}
	defer q.Close()

	states := uniform(4, 5)
	if _, err := q.Step(states, []int{0, 2}, []float64{0, 0}, -1); err == nil {
		t.Errorf("expected error on out of range action")
	}
	if _, err := q.Step(states, []int{0}, []float64{0, 0}, -1); err == nil ||
		!network.IsShapeMismatch(err) {
		t.Errorf("expected shape mismatch on missing action, have %v", err)
	}
}
