package solver

import (
	"encoding/json"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// learnable is a G.ValueGrad with a fixed gradient
type learnable struct {
	value *tensor.Dense
	grad  *tensor.Dense
}

func (l learnable) Value() G.Value         { return l.value }
func (l learnable) Grad() (G.Value, error) { return l.grad, nil }

func newLearnable(grad ...float64) learnable {
	return learnable{
		value: tensor.New(tensor.WithShape(len(grad)),
			tensor.WithBacking(make([]float64, len(grad)))),
		grad: tensor.New(tensor.WithShape(len(grad)),
			tensor.WithBacking(grad)),
	}
}

func TestClipGradNorm(t *testing.T) {
	tests := []struct {
		name    string
		maxNorm float64
		want    []float64 // Gradients after clipping
	}{
		{"no clip", -1, []float64{3, 4, 0}},
		{"infinite", math.Inf(1), []float64{3, 4, 0}},
		{"largest float", math.MaxFloat64, []float64{3, 4, 0}},
		{"above norm", 10, []float64{3, 4, 0}},
		{"below norm", 1, []float64{0.6, 0.8, 0}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			a, b := newLearnable(3, 4), newLearnable(0)
			norm, err := ClipGradNorm([]G.ValueGrad{a, b}, test.maxNorm)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(norm-5) > 1e-12 {
				t.Errorf("have norm %v want 5", norm)
			}

			grads := append(a.grad.Data().([]float64),
				b.grad.Data().([]float64)...)
			if !floats.EqualApprox(grads, test.want, 1e-5) {
				t.Errorf("have gradients %v want %v", grads, test.want)
			}
		})
	}

	if _, err := ClipGradNorm(nil, math.NaN()); err == nil {
		t.Errorf("expected error for NaN bound")
	}
}

func TestSolverJSON(t *testing.T) {
	adam, err := NewDefaultAdam(0.01, 1)
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(adam)
	if err != nil {
		t.Fatal(err)
	}

	var decoded Solver
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Type != Adam {
		t.Errorf("have type %v want %v", decoded.Type, Adam)
	}
	config, ok := decoded.Config.(AdamConfig)
	if !ok || config.StepSize != 0.01 {
		t.Errorf("have config %+v", decoded.Config)
	}
	if decoded.Solver == nil {
		t.Errorf("solver not created")
	}

	for _, bad := range []string{
		`{"Type": "SGD", "Config": {}}`,
		`{"Config": {}}`,
	} {
		var s Solver
		if err := json.Unmarshal([]byte(bad), &s); err == nil {
			t.Errorf("expected error decoding %v", bad)
		}
	}
}

func TestNewAdamValidation(t *testing.T) {
	tests := []struct {
		name                        string
		stepSize, eps, beta1, beta2 float64
	}{
		{"zero step size", 0, 1e-8, 0.9, 0.999},
		{"NaN step size", math.NaN(), 1e-8, 0.9, 0.999},
		{"negative epsilon", 1e-3, -1, 0.9, 0.999},
		{"beta1 of one", 1e-3, 1e-8, 1, 0.999},
		{"negative beta2", 1e-3, 1e-8, 0.9, -0.1},
	}
	for _, test := range tests {
		if _, err := NewAdam(test.stepSize, test.eps, test.beta1,
			test.beta2, 1); err == nil {
			t.Errorf("%v: expected error", test.name)
		}
	}

	if _, err := NewAdam(1e-3, 0, 0, 0.999, 0); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMakerCreatesIndependentSolvers(t *testing.T) {
	rms, err := NewDefaultRMSProp(0.01, 1)
	if err != nil {
		t.Fatal(err)
	}
	maker := rms.Maker()

	g := G.NewGraph()
	w := G.NewVector(g, tensor.Float64, G.WithShape(2), G.WithName("w"),
		G.WithInit(G.Zeroes()))

	first, err := maker(G.Nodes{w})
	if err != nil {
		t.Fatal(err)
	}
	second, err := maker(G.Nodes{w})
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Errorf("maker returned a shared solver")
	}

	if _, err := maker(G.Nodes{}); err == nil {
		t.Errorf("expected error without learnables")
	}
}
