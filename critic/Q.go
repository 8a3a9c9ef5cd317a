package critic

import (
	"fmt"

	"github.com/aunum/log"
	"github.com/pkg/errors"
	"github.com/samuelfneumann/goiql/network"
	"github.com/samuelfneumann/goiql/solver"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Q is an action value critic Q(s, ·) over a discrete set of actions
// along with a target copy of its network. The network predicts the
// value of every action in a state. Training regresses only the value
// of the action taken in each state, so gradients flow through the
// selected action values alone.
type Q struct {
	net    network.NeuralNet
	target network.NeuralNet

	// selectedActions holds one-hot encodings of the actions taken in
	// the training batch
	selectedActions *G.Node
	train           *regression

	predictor       *network.Predictor
	targetPredictor *network.Predictor
}

// NewQ returns a new Q critic which trains net to minimize loss using
// a solver created by makeSolver. The number of actions is the number
// of outputs of net. The target network starts as an exact copy of
// net.
//
// The critic takes ownership of net, adding its training graph to
// net's computational graph.
func NewQ(net network.NeuralNet, loss Loss, makeSolver solver.Maker) (*Q,
	error) {
	target, err := net.Clone()
	if err != nil {
		return nil, fmt.Errorf("newq: could not create target network: %v",
			err)
	}

	batch, numActions := net.BatchSize(), net.Outputs()
	selectedActions := G.NewMatrix(
		net.Graph(),
		tensor.Float64,
		G.WithShape(batch, numActions),
		G.WithName("actionSelected"),
		G.WithInit(G.Zeroes()),
	)
	selectedValues := G.Must(G.HadamardProd(net.Prediction(),
		selectedActions))
	selectedValues = G.Must(G.Sum(selectedValues, 1))

	train, err := newRegression(net, selectedValues, loss, makeSolver)
	if err != nil {
		return nil, fmt.Errorf("newq: %v", err)
	}

	return &Q{
		net:             net,
		target:          target,
		selectedActions: selectedActions,
		train:           train,
		predictor:       network.NewPredictor(net),
		targetPredictor: network.NewPredictor(target),
	}, nil
}

// Step takes a single gradient step regressing the values of actions
// taken in states onto targets, clipping the gradient norm to maxNorm.
// The predictions of the returned Step are the values of the taken
// actions before the step.
func (q *Q) Step(states []float64, actions []int, targets []float64,
	maxNorm float64) (Step, error) {
	if len(actions) != q.BatchSize() {
		return Step{}, &network.ShapeError{
			Op:   "step",
			What: "actions",
			Want: q.BatchSize(),
			Have: len(actions),
		}
	}

	oneHot, err := OneHot(actions, q.NumActions())
	if err != nil {
		return Step{}, errors.Wrap(err, "step")
	}
	oneHotTensor := tensor.New(
		tensor.WithShape(q.selectedActions.Shape()...),
		tensor.WithBacking(oneHot),
	)
	if err := G.Let(q.selectedActions, oneHotTensor); err != nil {
		return Step{}, fmt.Errorf("step: could not set actions: %v", err)
	}

	return q.train.step(states, targets, maxNorm)
}

// ActionValues returns the value of each action in each state,
// predicted by the live network. Values are returned in row major
// order, one row of NumActions() values per state.
func (q *Q) ActionValues(states []float64) ([]float64, error) {
	values, err := q.predictor.Predict(states)
	if err != nil {
		return nil, errors.Wrap(err, "actionValues")
	}
	return values, nil
}

// TargetActionValues returns the value of each action in each state,
// predicted by the target network.
func (q *Q) TargetActionValues(states []float64) ([]float64, error) {
	values, err := q.targetPredictor.Predict(states)
	if err != nil {
		return nil, errors.Wrap(err, "targetActionValues")
	}
	return values, nil
}

// Values returns the value of taking actions[i] in state i, predicted
// by the live network
func (q *Q) Values(states []float64, actions []int) ([]float64, error) {
	actionValues, err := q.ActionValues(states)
	if err != nil {
		return nil, errors.Wrap(err, "values")
	}
	return Gather(actionValues, actions, q.NumActions())
}

// TargetValues returns the value of taking actions[i] in state i,
// predicted by the target network
func (q *Q) TargetValues(states []float64, actions []int) ([]float64,
	error) {
	actionValues, err := q.TargetActionValues(states)
	if err != nil {
		return nil, errors.Wrap(err, "targetValues")
	}
	return Gather(actionValues, actions, q.NumActions())
}

// UpdateTarget sets the weights of the target network to copies of the
// weights of the live network
func (q *Q) UpdateTarget() error {
	if err := network.Set(q.target, q.net); err != nil {
		return fmt.Errorf("updateTarget: %v", err)
	}
	log.Debugf("synced target Q network")
	return nil
}

// Network returns the live network
func (q *Q) Network() network.NeuralNet {
	return q.net
}

// Target returns the target network
func (q *Q) Target() network.NeuralNet {
	return q.target
}

// NumActions returns the number of discrete actions
func (q *Q) NumActions() int {
	return q.net.Outputs()
}

// Features returns the number of features in a state
func (q *Q) Features() int {
	return q.net.Features()
}

// BatchSize returns the number of transitions in each training batch
func (q *Q) BatchSize() int {
	return q.net.BatchSize()
}

// Close closes all VMs used by the critic
func (q *Q) Close() error {
	if err := q.train.close(); err != nil {
		return fmt.Errorf("close: %v", err)
	}
	if err := q.predictor.Close(); err != nil {
		return fmt.Errorf("close: %v", err)
	}
	return q.targetPredictor.Close()
}

// Gather returns values[i, actions[i]] for each row i of values, which
// holds numActions values per row in row major order.
func Gather(values []float64, actions []int, numActions int) ([]float64,
	error) {
	if len(values) != len(actions)*numActions {
		return nil, &network.ShapeError{
			Op:   "gather",
			What: "action values",
			Want: len(actions) * numActions,
			Have: len(values),
		}
	}

	gathered := make([]float64, len(actions))
	for i, a := range actions {
		if a < 0 || a >= numActions {
			return nil, fmt.Errorf("gather: action %v out of range "+
				"\n\twant([0, %v))\n\thave(%v)", i, numActions, a)
		}
		gathered[i] = values[i*numActions+a]
	}
	return gathered, nil
}

// OneHot returns the one-hot encodings of actions in row major order
func OneHot(actions []int, numActions int) ([]float64, error) {
	oneHot := make([]float64, len(actions)*numActions)
	for i, a := range actions {
		if a < 0 || a >= numActions {
			return nil, fmt.Errorf("oneHot: action %v out of range "+
				"\n\twant([0, %v))\n\thave(%v)", i, numActions, a)
		}
		oneHot[i*numActions+a] = 1.0
	}
	return oneHot, nil
}
