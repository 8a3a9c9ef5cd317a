package iql

import (
	"fmt"

	"github.com/samuelfneumann/goiql/agent"
	"github.com/samuelfneumann/goiql/critic"
	"github.com/samuelfneumann/goiql/network"
	"github.com/samuelfneumann/goiql/solver"
)

// MLP is the Type of Config's which create IQL agents using MLP
// critics
const MLP agent.Type = "IQL-MLP"

func init() {
	// Register the Config so that it can be typed using
	// agent.TypedConfig to help with serialization/deserialization.
	agent.Register(MLP, Config{})
}

// Config implements a configuration of an IQL agent with MLP critics
type Config struct {
	Q     critic.QConfig   // Action value critic
	Value critic.NetConfig // State value critic and its target

	Expectile          float64
	Discount           float64
	ClipGradNorm       float64 // <= 0, +Inf or .inf in YAML to disable clipping
	TargetUpdatePeriod int

	Batch int
}

// Type returns the type of agent the Config creates
func (c Config) Type() agent.Type {
	return MLP
}

// BatchSize returns the batch size of the agent
func (c Config) BatchSize() int {
	return c.Batch
}

// Validate checks that the Config describes a valid agent
func (c Config) Validate() error {
	if c.Batch < 1 {
		return fmt.Errorf("validate: batch size must be positive "+
			"\n\thave(%v)", c.Batch)
	}
	if !(c.Expectile > 0 && c.Expectile < 1) {
		return fmt.Errorf("validate: expectile must be in (0, 1) "+
			"\n\thave(%v)", c.Expectile)
	}
	if c.Discount < 0 || c.Discount > 1 {
		return fmt.Errorf("validate: discount must be in [0, 1] "+
			"\n\thave(%v)", c.Discount)
	}
	if c.TargetUpdatePeriod < 1 {
		return fmt.Errorf("validate: target update period must be "+
			"positive \n\thave(%v)", c.TargetUpdatePeriod)
	}
	if err := solver.ValidateClip(c.ClipGradNorm); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	if err := c.Q.Validate(); err != nil {
		return fmt.Errorf("validate: q critic: %v", err)
	}
	if err := c.Value.Validate(); err != nil {
		return fmt.Errorf("validate: value critic: %v", err)
	}
	return nil
}

// Create returns the IQL agent that the Config describes. The policy
// of the agent is learned by actor.
func (c Config) Create(features, numActions int, actor Actor) (*IQL,
	error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("create: %v", err)
	}

	q, err := c.Q.Create(features, numActions, c.Batch)
	if err != nil {
		return nil, fmt.Errorf("create: could not create q critic: %v", err)
	}

	base := Base{
		Critic:             q,
		Actor:              actor,
		Discount:           c.Discount,
		ClipGradNorm:       c.ClipGradNorm,
		TargetUpdatePeriod: c.TargetUpdatePeriod,
	}
	makeValueFn := func(features, batch int) (network.NeuralNet, error) {
		return c.Value.NewNetwork(features, 1, batch)
	}

	iql, err := New(features, numActions, c.Batch, makeValueFn,
		c.Value.SolverMaker(), c.Expectile, base)
	if err != nil {
		q.Close()
		return nil, fmt.Errorf("create: %v", err)
	}
	return iql, nil
}
