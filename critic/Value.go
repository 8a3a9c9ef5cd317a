// Package critic implements state value and action value critics
// which are trained by regressing the predictions of a neural network
// onto given targets.
package critic

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/samuelfneumann/goiql/agent"
	"github.com/samuelfneumann/goiql/network"
	"github.com/samuelfneumann/goiql/solver"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Value is a state value critic V(s). A Value critic owns a network
// with a single output, trained on fixed size batches, and evaluates
// that network on any number of states without computing gradients.
type Value struct {
	net       network.NeuralNet
	train     *regression
	predictor *network.Predictor
	clip      float64
}

// NewValue returns a new Value critic which trains net to minimize
// loss using a solver created by makeSolver. The gradient norm is
// clipped to clip before each step; see solver.ClipGradNorm.
//
// The critic takes ownership of net, adding its training graph to
// net's computational graph.
func NewValue(net network.NeuralNet, loss Loss, makeSolver solver.Maker,
	clip float64) (*Value, error) {
	if net.Outputs() != 1 {
		return nil, &network.ShapeError{
			Op:   "newvalue",
			What: "network outputs",
			Want: 1,
			Have: net.Outputs(),
		}
	}
	if err := solver.ValidateClip(clip); err != nil {
		return nil, fmt.Errorf("newvalue: %v", err)
	}

	// Drop the trailing output dimension so that predictions and
	// targets have the same shape
	pred, err := G.Reshape(net.Prediction(), tensor.Shape{net.BatchSize()})
	if err != nil {
		return nil, fmt.Errorf("newvalue: could not reshape prediction: %v",
			err)
	}

	train, err := newRegression(net, pred, loss, makeSolver)
	if err != nil {
		return nil, fmt.Errorf("newvalue: %v", err)
	}

	return &Value{
		net:       net,
		train:     train,
		predictor: network.NewPredictor(net),
		clip:      clip,
	}, nil
}

// Forward returns the value of each state. States are given in row
// major order and may hold any positive number of states.
func (v *Value) Forward(states []float64) ([]float64, error) {
	values, err := v.predictor.Predict(states)
	if err != nil {
		return nil, errors.Wrap(err, "forward")
	}
	return values, nil
}

// Step takes a single gradient step regressing the values of states
// onto targets, clipping the gradient norm to maxNorm.
func (v *Value) Step(states, targets []float64, maxNorm float64) (Step,
	error) {
	return v.train.step(states, targets, maxNorm)
}

// Update takes a single gradient step regressing the values of states
// onto qValues and reports the loss and gradient norm. The number of
// states must equal the batch size of the critic.
func (v *Value) Update(states, qValues []float64) (agent.Metrics, error) {
	step, err := v.Step(states, qValues, v.clip)
	if err != nil {
		return nil, errors.Wrap(err, "update")
	}

	return agent.Metrics{
		"baseline_loss":      step.Loss,
		"baseline_grad_norm": step.GradNorm,
	}, nil
}

// Network returns the network whose weights the critic learns
func (v *Value) Network() network.NeuralNet {
	return v.net
}

// BatchSize returns the number of states in each training batch
func (v *Value) BatchSize() int {
	return v.net.BatchSize()
}

// Close closes all VMs used by the critic
func (v *Value) Close() error {
	if err := v.train.close(); err != nil {
		return fmt.Errorf("close: %v", err)
	}
	return v.predictor.Close()
}
