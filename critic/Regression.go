package critic

import (
	"fmt"

	"github.com/samuelfneumann/goiql/network"
	"github.com/samuelfneumann/goiql/solver"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Step describes a single gradient step taken by a critic
type Step struct {
	Loss        float64
	GradNorm    float64   // Gradient norm before clipping
	Predictions []float64 // Predictions the loss was computed on
}

// regression is a training graph that regresses a batch of
// predictions of a network onto targets given at each step. Only the
// learnables of the network are adapted.
type regression struct {
	net     network.NeuralNet
	targets *G.Node

	pred    *G.Node
	predVal G.Value
	loss    *G.Node
	lossVal G.Value

	vm     G.VM
	solver G.Solver
}

// newRegression adds the loss between pred and a new targets node to
// the graph of net, then compiles the graph. The pred node must be a
// vector with one element per input in the batch, computed from the
// prediction of net.
func newRegression(net network.NeuralNet, pred *G.Node, loss Loss,
	makeSolver solver.Maker) (*regression, error) {
	batch := net.BatchSize()
	if pred.Shape().TotalSize() != batch {
		return nil, &network.ShapeError{
			Op:   "newregression",
			What: "predictions",
			Want: batch,
			Have: pred.Shape().TotalSize(),
		}
	}

	g := net.Graph()
	targets := G.NewVector(g, tensor.Float64, G.WithShape(batch),
		G.WithName("targets"), G.WithInit(G.Zeroes()))

	r := &regression{net: net, targets: targets, pred: pred}

	cost, err := loss(pred, targets)
	if err != nil {
		return nil, fmt.Errorf("newregression: could not compute loss: %v",
			err)
	}
	r.loss = cost
	G.Read(r.pred, &r.predVal)
	G.Read(r.loss, &r.lossVal)

	if _, err := G.Grad(cost, net.Learnables()...); err != nil {
		return nil, fmt.Errorf("newregression: could not compute "+
			"gradient: %v", err)
	}
	r.vm = G.NewTapeMachine(g, G.BindDualValues(net.Learnables()...))

	r.solver, err = makeSolver(net.Learnables())
	if err != nil {
		r.vm.Close()
		return nil, fmt.Errorf("newregression: could not create solver: %v",
			err)
	}
	return r, nil
}

// step sets the input and regression targets, runs the graph, clips
// the gradient to maxNorm and steps the solver.
func (r *regression) step(inputs, targets []float64,
	maxNorm float64) (Step, error) {
	if len(targets) != r.net.BatchSize() {
		return Step{}, &network.ShapeError{
			Op:   "step",
			What: "regression targets",
			Want: r.net.BatchSize(),
			Have: len(targets),
		}
	}
	if err := r.net.SetInput(inputs); err != nil {
		return Step{}, err
	}

	backing := make([]float64, len(targets))
	copy(backing, targets)
	targetTensor := tensor.New(
		tensor.WithShape(r.targets.Shape()...),
		tensor.WithBacking(backing),
	)
	if err := G.Let(r.targets, targetTensor); err != nil {
		return Step{}, fmt.Errorf("step: could not set targets: %v", err)
	}

	defer r.vm.Reset()
	if err := r.vm.RunAll(); err != nil {
		return Step{}, fmt.Errorf("step: could not run graph: %v", err)
	}

	loss, err := scalar(r.lossVal)
	if err != nil {
		return Step{}, fmt.Errorf("step: %v", err)
	}
	predVal := r.predVal.Data().([]float64)
	predictions := make([]float64, len(predVal))
	copy(predictions, predVal)

	norm, err := solver.ClipGradNorm(r.net.Model(), maxNorm)
	if err != nil {
		return Step{}, fmt.Errorf("step: %v", err)
	}
	if err := r.solver.Step(r.net.Model()); err != nil {
		return Step{}, fmt.Errorf("step: could not step solver: %v", err)
	}

	return Step{Loss: loss, GradNorm: norm, Predictions: predictions}, nil
}

// close closes the VM of the training graph
func (r *regression) close() error {
	return r.vm.Close()
}

// scalar returns the single float64 held by v
func scalar(v G.Value) (float64, error) {
	if v == nil {
		return 0, fmt.Errorf("loss has not been computed")
	}
	switch data := v.Data().(type) {
	case float64:
		return data, nil
	case []float64:
		if len(data) == 1 {
			return data[0], nil
		}
	}
	return 0, fmt.Errorf("loss is not a float64 scalar (%T)", v.Data())
}
