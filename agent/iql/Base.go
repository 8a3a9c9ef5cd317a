package iql

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/goiql/agent"
	"github.com/samuelfneumann/goiql/critic"
	"github.com/samuelfneumann/goiql/network"
	"github.com/samuelfneumann/goiql/solver"
)

// ValueFnMaker creates a state value network taking states with the
// given number of features in batches of the given size
type ValueFnMaker func(features, batch int) (network.NeuralNet, error)

// SolverMaker creates a solver for a set of learnables
type SolverMaker = solver.Maker

// ActorUpdate reports a single policy update
type ActorUpdate struct {
	Loss      float64
	GradNorm  float64
	Advantage float64 // Mean advantage of the batch
}

// Actor updates a policy towards actions with high advantage, as
// computed by an agent.Advantager, in the manner of AWAC.
type Actor interface {
	UpdateActor(states []float64, actions []int,
		adv agent.Advantager) (ActorUpdate, error)
}

// Base holds the parts of an IQL agent that are shared with the
// actor-critic algorithm it extends: the Q critic with its target
// network, the actor, and the hyperparameters of the critic update.
type Base struct {
	Critic *critic.Q
	Actor  Actor

	Discount           float64
	ClipGradNorm       float64 // <= 0 or +Inf to disable clipping
	TargetUpdatePeriod int     // Steps between target network syncs
}

// Validate returns an error if the Base cannot be used by an agent
func (b Base) Validate() error {
	if b.Critic == nil {
		return fmt.Errorf("validate: no Q critic")
	}
	if b.Actor == nil {
		return fmt.Errorf("validate: no actor")
	}
	if b.Discount < 0 || b.Discount > 1 || math.IsNaN(b.Discount) {
		return fmt.Errorf("validate: discount must be in [0, 1] "+
			"\n\thave(%v)", b.Discount)
	}
	if b.TargetUpdatePeriod < 1 {
		return fmt.Errorf("validate: target update period must be "+
			"positive \n\thave(%v)", b.TargetUpdatePeriod)
	}
	if err := solver.ValidateClip(b.ClipGradNorm); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	return nil
}

// UpdateTargetCritic syncs the target Q network to the live Q network
func (b Base) UpdateTargetCritic() error {
	return b.Critic.UpdateTarget()
}
