package critic

import (
	"fmt"

	"github.com/samuelfneumann/goiql/initwfn"
	"github.com/samuelfneumann/goiql/network"
	"github.com/samuelfneumann/goiql/solver"
	G "gorgonia.org/gorgonia"
)

// NetConfig describes the MLP architecture of a critic and how its
// weights are learned
type NetConfig struct {
	Layers      []int                 // Hidden layer sizes
	Biases      []bool                // Whether each hidden layer has a bias
	Activations []*network.Activation // Activation of each hidden layer

	InitWFn *initwfn.InitWFn // Weight initialization
	Solver  *solver.Solver   // Solver for learning weights
}

// Validate checks that the architecture is well defined
func (c NetConfig) Validate() error {
	if len(c.Layers) != len(c.Biases) {
		return fmt.Errorf("validate: invalid number of biases\n\t"+
			"want(%v)\n\thave(%v)", len(c.Layers), len(c.Biases))
	}
	if len(c.Layers) != len(c.Activations) {
		return fmt.Errorf("validate: invalid number of activations\n\t"+
			"want(%v)\n\thave(%v)", len(c.Layers), len(c.Activations))
	}
	for i, act := range c.Activations {
		if act == nil {
			return fmt.Errorf("validate: activation %v is nil", i)
		}
	}
	if c.InitWFn == nil {
		return fmt.Errorf("validate: no weight initializer")
	}
	if c.Solver == nil {
		return fmt.Errorf("validate: no solver")
	}
	return nil
}

// NewNetwork returns a new MLP with the configured architecture and
// the given number of inputs and outputs, in a new computational
// graph
func (c NetConfig) NewNetwork(features, outputs,
	batch int) (network.NeuralNet, error) {
	return network.NewMultiHeadMLP(features, batch, outputs, G.NewGraph(),
		c.Layers, c.Biases, c.InitWFn.InitWFn(), c.Activations)
}

// SolverMaker returns a solver.Maker for the configured Solver
func (c NetConfig) SolverMaker() solver.Maker {
	return c.Solver.Maker()
}

// ValueConfig describes a Value critic trained with the mean squared
// error
type ValueConfig struct {
	NetConfig
	ClipGradNorm float64 // <= 0 or +Inf to disable clipping
}

// Validate checks that the configuration is valid
func (c ValueConfig) Validate() error {
	if err := c.NetConfig.Validate(); err != nil {
		return err
	}
	return solver.ValidateClip(c.ClipGradNorm)
}

// ValueFn returns a function which creates new state value networks
// of the configured architecture
func (c ValueConfig) ValueFn() func(features, batch int) (network.NeuralNet,
	error) {
	return func(features, batch int) (network.NeuralNet, error) {
		return c.NewNetwork(features, 1, batch)
	}
}

// Create returns the Value critic that the configuration describes
func (c ValueConfig) Create(features, batch int) (*Value, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("create: %v", err)
	}

	net, err := c.ValueFn()(features, batch)
	if err != nil {
		return nil, fmt.Errorf("create: could not create network: %v", err)
	}
	return NewValue(net, MSE, c.SolverMaker(), c.ClipGradNorm)
}

// QConfig describes a Q critic trained with the mean squared error.
// Gradient clipping of the Q critic is set by the agent which trains
// it.
type QConfig struct {
	NetConfig
}

// Create returns the Q critic that the configuration describes
func (c QConfig) Create(features, numActions, batch int) (*Q, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("create: %v", err)
	}

	net, err := c.NewNetwork(features, numActions, batch)
	if err != nil {
		return nil, fmt.Errorf("create: could not create network: %v", err)
	}
	return NewQ(net, MSE, c.SolverMaker())
}
