package network

import (
	"encoding/gob"
	"encoding/json"
	"testing"

	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"
)

func newTestMLP(t *testing.T, batch int) NeuralNet {
	t.Helper()
	net, err := NewMultiHeadMLP(3, batch, 2, G.NewGraph(), []int{5, 4},
		[]bool{true, false}, G.GlorotU(1.0),
		[]*Activation{ReLU(), TanH()})
	if err != nil {
		t.Fatal(err)
	}
	return net
}

func equalParams(a, b [][]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !floats.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func TestNewMultiHeadMLPValidation(t *testing.T) {
	if _, err := NewMultiHeadMLP(3, 2, 2, G.NewGraph(), []int{4},
		[]bool{true, true}, G.GlorotU(1.0), []*Activation{ReLU()}); err == nil {
		t.Errorf("expected error for mismatched biases")
	}
	if _, err := NewMultiHeadMLP(3, 2, 2, G.NewGraph(), []int{4},
		[]bool{true}, G.GlorotU(1.0), []*Activation{}); err == nil {
		t.Errorf("expected error for mismatched activations")
	}
	if _, err := NewMultiHeadMLP(0, 2, 2, G.NewGraph(), []int{}, []bool{},
		G.GlorotU(1.0), []*Activation{}); err == nil {
		t.Errorf("expected error for no features")
	}

	net := newTestMLP(t, 2)
	// Three layers, the second without a bias
	if len(net.Learnables()) != 5 {
		t.Errorf("have %v learnables want 5", len(net.Learnables()))
	}
}

func TestSetCopiesWeights(t *testing.T) {
	source := newTestMLP(t, 2)
	dest := newTestMLP(t, 2)
	if equalParams(Params(source), Params(dest)) {
		t.Fatalf("independent networks have equal weights")
	}

	if err := Set(dest, source); err != nil {
		t.Fatal(err)
	}
	if !equalParams(Params(source), Params(dest)) {
		t.Fatalf("weights not copied")
	}

	// Changing the source afterwards must not change the destination
	before := Params(dest)
	params := Params(source)
	for i := range params {
		floats.AddConst(1, params[i])
	}
	if err := SetParams(source, params); err != nil {
		t.Fatal(err)
	}
	if !equalParams(Params(dest), before) {
		t.Errorf("destination shares storage with source")
	}

	other, err := NewMultiHeadMLP(3, 2, 2, G.NewGraph(), []int{5},
		[]bool{true}, G.GlorotU(1.0), []*Activation{ReLU()})
	if err != nil {
		t.Fatal(err)
	}
	if err := Set(other, source); !IsShapeMismatch(err) {
		t.Errorf("expected shape mismatch, have %v", err)
	}
}

func TestSetParamsValidation(t *testing.T) {
	net := newTestMLP(t, 2)
	params := Params(net)

	if err := SetParams(net, params[:2]); !IsShapeMismatch(err) {
		t.Errorf("expected shape mismatch for missing learnables, have %v",
			err)
	}
	params[0] = params[0][1:]
	if err := SetParams(net, params); !IsShapeMismatch(err) {
		t.Errorf("expected shape mismatch for short weights, have %v", err)
	}
}

func TestPredictorMatchesNetwork(t *testing.T) {
	net := newTestMLP(t, 2)
	inputs := []float64{0.1, -0.2, 0.3, 1.0, 0.5, -0.7}

	if err := net.SetInput(inputs); err != nil {
		t.Fatal(err)
	}
	vm := G.NewTapeMachine(net.Graph())
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatal(err)
	}
	want := append([]float64{}, net.Output().Data().([]float64)...)

	p := NewPredictor(net)
	defer p.Close()

	have, err := p.Predict(inputs)
	if err != nil {
		t.Fatal(err)
	}
	if !floats.EqualApprox(have, want, 1e-12) {
		t.Errorf("have predictions %v want %v", have, want)
	}

	// Each input is predicted independently of the batch
	single, err := p.Predict(inputs[3:])
	if err != nil {
		t.Fatal(err)
	}
	if !floats.EqualApprox(single, want[2:], 1e-12) {
		t.Errorf("have single prediction %v want %v", single, want[2:])
	}

	// Predictions follow the current weights of the source
	params := Params(net)
	for i := range params {
		floats.Scale(0, params[i])
	}
	if err := SetParams(net, params); err != nil {
		t.Fatal(err)
	}
	zero, err := p.Predict(inputs)
	if err != nil {
		t.Fatal(err)
	}
	if !floats.Equal(zero, make([]float64, 4)) {
		t.Errorf("have predictions %v for zero weights", zero)
	}

	if _, err := p.Predict(inputs[:4]); !IsShapeMismatch(err) {
		t.Errorf("expected shape mismatch, have %v", err)
	}
}

func TestPredictorBoundsCachedBatches(t *testing.T) {
	net := newTestMLP(t, 1)
	p := NewPredictor(net)
	defer p.Close()

	row := []float64{0.4, -0.1, 0.9}
	want, err := p.Predict(row)
	if err != nil {
		t.Fatal(err)
	}

	for batch := 1; batch <= maxCachedBatches+3; batch++ {
		inputs := make([]float64, 0, batch*len(row))
		for i := 0; i < batch; i++ {
			inputs = append(inputs, row...)
		}
		have, err := p.Predict(inputs)
		if err != nil {
			t.Fatalf("batch %v: %v", batch, err)
		}
		if !floats.EqualApprox(have[len(have)-2:], want, 1e-12) {
			t.Errorf("batch %v: have %v want %v", batch, have, want)
		}
		if len(p.nets) > maxCachedBatches || len(p.vms) != len(p.nets) ||
			len(p.order) != len(p.nets) {
			t.Fatalf("batch %v: cached %v nets, %v vms, %v sizes",
				batch, len(p.nets), len(p.vms), len(p.order))
		}
	}

	// Evicted batch sizes are rebuilt on demand
	if _, ok := p.nets[1]; ok {
		t.Errorf("batch size 1 should have been evicted")
	}
	have, err := p.Predict(row)
	if err != nil {
		t.Fatal(err)
	}
	if !floats.EqualApprox(have, want, 1e-12) {
		t.Errorf("have %v want %v after eviction", have, want)
	}
}

func TestGobRoundTrip(t *testing.T) {
	net := newTestMLP(t, 3)

	data, err := net.(gob.GobEncoder).GobEncode()
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}

	if decoded.Features() != 3 || decoded.Outputs() != 2 ||
		decoded.BatchSize() != 3 {
		t.Errorf("decoded architecture differs: %v features %v outputs "+
			"batch %v", decoded.Features(), decoded.Outputs(),
			decoded.BatchSize())
	}
	if !equalParams(Params(decoded), Params(net)) {
		t.Errorf("decoded weights differ")
	}

	inputs := []float64{0.1, 0.2, 0.3, -1, -2, -3, 0.5, 0, -0.5}
	want, err := NewPredictor(net).Predict(inputs)
	if err != nil {
		t.Fatal(err)
	}
	have, err := NewPredictor(decoded).Predict(inputs)
	if err != nil {
		t.Fatal(err)
	}
	if !floats.EqualApprox(have, want, 1e-12) {
		t.Errorf("decoded network predicts %v want %v", have, want)
	}
}

func TestActivationJSON(t *testing.T) {
	acts := []*Activation{ReLU(), TanH(), Identity()}
	data, err := json.Marshal(acts)
	if err != nil {
		t.Fatal(err)
	}

	var decoded []*Activation
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	for i := range acts {
		if decoded[i].String() != acts[i].String() {
			t.Errorf("have activation %v want %v", decoded[i], acts[i])
		}
	}
	if !decoded[2].IsIdentity() {
		t.Errorf("identity activation not decoded")
	}

	var bad Activation
	if err := json.Unmarshal([]byte(`"sigmoid"`), &bad); err == nil {
		t.Errorf("expected error for unknown activation")
	}
}
