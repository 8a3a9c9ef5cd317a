// Package iql implements Implicit Q-Learning for discrete actions.
//
// IQL learns a state value function V(s) by expectile regression onto
// the values of a target Q network at the logged actions, and learns
// Q(s, a) by regression onto r + γ(1 - done)V_target(s'). Since the
// bootstrap target never queries actions outside the dataset, the
// critics can be learned entirely from logged experience. The
// advantages Q(s, a) - V(s) are handed to an Actor which extracts a
// policy from them.
package iql

import (
	"fmt"
	"math"

	"github.com/aunum/log"
	"github.com/pkg/errors"
	"github.com/samuelfneumann/goiql/agent"
	"github.com/samuelfneumann/goiql/critic"
	"github.com/samuelfneumann/goiql/network"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var _ agent.Closer = &IQL{}
var _ agent.Advantager = &IQL{}

// IQL implements the Implicit Q-Learning agent
type IQL struct {
	base Base

	features   int
	numActions int
	batchSize  int
	expectile  float64

	valueCritic       *critic.Value
	targetValueNet    network.NeuralNet
	targetValueCritic *network.Predictor
}

// New returns a new IQL agent. The state value critic and its target
// are created with makeValueFn and are identical copies after New
// returns. The state value critic is trained with a solver created by
// makeValueSolver. The Q critic and its target, the actor, and the
// remaining hyperparameters are given by base.
func New(features, numActions, batchSize int, makeValueFn ValueFnMaker,
	makeValueSolver SolverMaker, expectile float64, base Base) (*IQL,
	error) {
	if !(expectile > 0 && expectile < 1) {
		return nil, fmt.Errorf("new: expectile must be in (0, 1) "+
			"\n\thave(%v)", expectile)
	}
	if err := base.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	sizes := []struct {
		what       string
		want, have int
	}{
		{"Q critic features", features, base.Critic.Features()},
		{"Q critic actions", numActions, base.Critic.NumActions()},
		{"Q critic batch size", batchSize, base.Critic.BatchSize()},
	}
	for _, s := range sizes {
		if s.want != s.have {
			return nil, &network.ShapeError{Op: "new", What: s.what,
				Want: s.want, Have: s.have}
		}
	}

	valueNet, err := newValueNet(makeValueFn, features, batchSize)
	if err != nil {
		return nil, errors.Wrap(err, "new: could not create value network")
	}
	targetValueNet, err := newValueNet(makeValueFn, features, batchSize)
	if err != nil {
		return nil, errors.Wrap(err, "new: could not create target value "+
			"network")
	}
	if err := network.Set(targetValueNet, valueNet); err != nil {
		return nil, errors.Wrap(err, "new: could not initialize target "+
			"value network")
	}

	valueCritic, err := critic.NewValue(valueNet, critic.Expectile(expectile),
		makeValueSolver, base.ClipGradNorm)
	if err != nil {
		return nil, errors.Wrap(err, "new")
	}

	log.Debugf("iql: created agent with %v features, %v actions, batch "+
		"size %v, expectile %v", features, numActions, batchSize, expectile)

	return &IQL{
		base:              base,
		features:          features,
		numActions:        numActions,
		batchSize:         batchSize,
		expectile:         expectile,
		valueCritic:       valueCritic,
		targetValueNet:    targetValueNet,
		targetValueCritic: network.NewPredictor(targetValueNet),
	}, nil
}

// newValueNet creates a value network and checks its size
func newValueNet(makeValueFn ValueFnMaker, features,
	batch int) (network.NeuralNet, error) {
	net, err := makeValueFn(features, batch)
	if err != nil {
		return nil, err
	}

	if net.Features() != features {
		return nil, &network.ShapeError{Op: "newValueNet", What: "features",
			Want: features, Have: net.Features()}
	}
	if net.BatchSize() != batch {
		return nil, &network.ShapeError{Op: "newValueNet",
			What: "batch size", Want: batch, Have: net.BatchSize()}
	}
	return net, nil
}

// transitions is a validated batch with integer actions
type transitions struct {
	states     []float64
	actions    []int
	rewards    []float64
	nextStates []float64
	dones      []float64
}

// decode validates a batch for use by the agent
func (i *IQL) decode(b agent.Batch) (transitions, error) {
	if err := b.Validate(i.features, i.numActions); err != nil {
		return transitions{}, err
	}
	if b.Len() != i.batchSize {
		return transitions{}, &network.ShapeError{Op: "decode",
			What: "batch size", Want: i.batchSize, Have: b.Len()}
	}

	actions, err := b.ActionIndices(i.numActions)
	if err != nil {
		return transitions{}, err
	}
	return transitions{
		states:     b.Observations,
		actions:    actions,
		rewards:    b.Rewards,
		nextStates: b.NextObservations,
		dones:      b.Dones,
	}, nil
}

// ComputeAdvantage returns Q(s, a) - V(s) for each state s and action
// a taken in s, using the live Q and state value critics. No gradients
// are computed. Any positive number of states may be given; a forward
// graph is built for each new number of states, and only those of the
// most recent few numbers of states are kept.
func (i *IQL) ComputeAdvantage(states []float64, actions []int) ([]float64,
	error) {
	qs, err := i.base.Critic.Values(states, actions)
	if err != nil {
		return nil, errors.Wrap(err, "computeAdvantage")
	}
	vs, err := i.valueCritic.Forward(states)
	if err != nil {
		return nil, errors.Wrap(err, "computeAdvantage")
	}

	adv := make([]float64, len(qs))
	floats.SubTo(adv, qs, vs)
	return adv, nil
}

// UpdateQ takes a single gradient step regressing Q(s, a) onto
// r + γ(1 - done)V_target(s'). The target of a terminal transition is
// exactly its reward.
func (i *IQL) UpdateQ(b agent.Batch) (agent.Metrics, error) {
	tr, err := i.decode(b)
	if err != nil {
		return nil, errors.Wrap(err, "updateQ")
	}
	return i.updateQ(tr)
}

func (i *IQL) updateQ(tr transitions) (agent.Metrics, error) {
	nextValues, err := i.targetValueCritic.Predict(tr.nextStates)
	if err != nil {
		return nil, errors.Wrap(err, "updateQ: could not predict next "+
			"state values")
	}

	targets := make([]float64, len(tr.rewards))
	for j, r := range tr.rewards {
		if tr.dones[j] == 1 {
			targets[j] = r
			continue
		}
		targets[j] = r + i.base.Discount*(1-tr.dones[j])*nextValues[j]
	}

	step, err := i.base.Critic.Step(tr.states, tr.actions, targets,
		i.base.ClipGradNorm)
	if err != nil {
		return nil, errors.Wrap(err, "updateQ")
	}

	return agent.Metrics{
		"q_loss":        step.Loss,
		"q_values":      stat.Mean(step.Predictions, nil),
		"target_values": stat.Mean(targets, nil),
		"q_grad_norm":   step.GradNorm,
	}, nil
}

// ExpectileLoss returns the mean of weight * (vs - targetQs)², where
// the weight of each element is 1 - expectile if vs exceeds targetQs
// and expectile otherwise.
func ExpectileLoss(expectile float64, vs, targetQs []float64) (float64,
	error) {
	if len(vs) != len(targetQs) {
		return 0, &network.ShapeError{Op: "expectileLoss",
			What: "target values", Want: len(vs), Have: len(targetQs)}
	}
	if len(vs) == 0 {
		return 0, fmt.Errorf("expectileLoss: no values")
	}

	var loss float64
	for j := range vs {
		diff := vs[j] - targetQs[j]
		weight := expectile
		if diff > 0 {
			weight = 1 - expectile
		}
		loss += weight * diff * diff
	}
	return loss / float64(len(vs)), nil
}

// UpdateV takes a single gradient step regressing V(s) onto the
// target Q network's value of the action taken in s with the
// expectile loss
func (i *IQL) UpdateV(b agent.Batch) (agent.Metrics, error) {
	tr, err := i.decode(b)
	if err != nil {
		return nil, errors.Wrap(err, "updateV")
	}
	return i.updateV(tr)
}

func (i *IQL) updateV(tr transitions) (agent.Metrics, error) {
	targetQs, err := i.base.Critic.TargetValues(tr.states, tr.actions)
	if err != nil {
		return nil, errors.Wrap(err, "updateV: could not predict target "+
			"action values")
	}

	step, err := i.valueCritic.Step(tr.states, targetQs, i.base.ClipGradNorm)
	if err != nil {
		return nil, errors.Wrap(err, "updateV")
	}

	vs := step.Predictions
	adv := make([]float64, len(vs))
	floats.SubTo(adv, vs, targetQs)

	return agent.Metrics{
		"v_loss":          step.Loss,
		"vs_adv":          stat.Mean(adv, nil),
		"vs":              stat.Mean(vs, nil),
		"v_target_values": stat.Mean(targetQs, nil),
		"v_grad_norm":     step.GradNorm,
	}, nil
}

// UpdateCritic updates the Q critic and then the state value critic
func (i *IQL) UpdateCritic(b agent.Batch) (agent.Metrics, error) {
	tr, err := i.decode(b)
	if err != nil {
		return nil, errors.Wrap(err, "updateCritic")
	}
	return i.updateCritic(tr)
}

func (i *IQL) updateCritic(tr transitions) (agent.Metrics, error) {
	qMetrics, err := i.updateQ(tr)
	if err != nil {
		return nil, err
	}
	vMetrics, err := i.updateV(tr)
	if err != nil {
		return nil, err
	}
	return qMetrics.Merge(vMetrics)
}

// Update updates the critics and then the actor. Both target networks
// are synced after the update whenever step is a multiple of the
// target update period, including step 0.
func (i *IQL) Update(b agent.Batch, step int) (agent.Metrics, error) {
	if step < 0 {
		return nil, fmt.Errorf("update: step must be non-negative "+
			"\n\thave(%v)", step)
	}
	tr, err := i.decode(b)
	if err != nil {
		return nil, errors.Wrap(err, "update")
	}

	metrics, err := i.updateCritic(tr)
	if err != nil {
		return nil, errors.Wrap(err, "update")
	}

	actor, err := i.base.Actor.UpdateActor(tr.states, tr.actions, i)
	if err != nil {
		return nil, errors.Wrap(err, "update: could not update actor")
	}
	metrics, err = metrics.Merge(agent.Metrics{
		"actor_loss":      actor.Loss,
		"grad_norm_actor": actor.GradNorm,
		"actor_adv":       actor.Advantage,
	})
	if err != nil {
		return nil, errors.Wrap(err, "update")
	}

	if step%i.base.TargetUpdatePeriod == 0 {
		if step == 0 {
			log.Infof("iql: syncing target networks at step 0")
		}
		if err := i.UpdateTargetCritic(); err != nil {
			return nil, errors.Wrap(err, "update")
		}
		if err := i.UpdateTargetValueCritic(); err != nil {
			return nil, errors.Wrap(err, "update")
		}
	}

	for name, value := range metrics {
		if math.IsNaN(value) {
			log.Infof("iql: metric %v is NaN at step %v", name, step)
		}
	}
	return metrics, nil
}

// UpdateTargetCritic syncs the target Q network to the live Q network
func (i *IQL) UpdateTargetCritic() error {
	return i.base.UpdateTargetCritic()
}

// UpdateTargetValueCritic syncs the target state value network to the
// live state value network
func (i *IQL) UpdateTargetValueCritic() error {
	if err := network.Set(i.targetValueNet,
		i.valueCritic.Network()); err != nil {
		return fmt.Errorf("updateTargetValueCritic: %v", err)
	}
	log.Debugf("iql: synced target value network")
	return nil
}

// BatchSize returns the number of transitions in each batch
func (i *IQL) BatchSize() int {
	return i.batchSize
}

// Expectile returns the expectile of the state value regression
func (i *IQL) Expectile() float64 {
	return i.expectile
}

// Base returns the shared parts of the agent
func (i *IQL) Base() Base {
	return i.base
}

// ValueCritic returns the live state value critic
func (i *IQL) ValueCritic() *critic.Value {
	return i.valueCritic
}

// TargetValueNetwork returns the target state value network
func (i *IQL) TargetValueNetwork() network.NeuralNet {
	return i.targetValueNet
}

// Close closes all VMs of the agent's critics
func (i *IQL) Close() error {
	if err := i.valueCritic.Close(); err != nil {
		return fmt.Errorf("close: %v", err)
	}
	if err := i.targetValueCritic.Close(); err != nil {
		return fmt.Errorf("close: %v", err)
	}
	return i.base.Critic.Close()
}
