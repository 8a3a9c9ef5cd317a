package solver

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// AdamConfig configures the Adam solver, the default optimiser of the
// Q and state value critics. Each critic gets its own Adam state
// through a Maker.
type AdamConfig struct {
	StepSize float64
	Epsilon  float64 // Smoothing factor
	Beta1    float64
	Beta2    float64
	Batch    int // Losses are batch means, so usually left at 0 or 1
}

// NewDefaultAdam returns an Adam Solver with the usual epsilon and
// moment decay rates
func NewDefaultAdam(stepSize float64, batchSize int) (*Solver, error) {
	return NewAdam(stepSize, 1e-8, 0.9, 0.999, batchSize)
}

// NewAdam returns a new Adam Solver, or an error if a hyperparameter
// is out of range
func NewAdam(stepSize, epsilon, beta1, beta2 float64, batchSize int) (*Solver,
	error) {
	adam := AdamConfig{
		StepSize: stepSize,
		Epsilon:  epsilon,
		Beta1:    beta1,
		Beta2:    beta2,
		Batch:    batchSize,
	}
	if err := adam.validate(); err != nil {
		return nil, fmt.Errorf("newAdam: %v", err)
	}

	return newSolver(Adam, adam)
}

func (a AdamConfig) validate() error {
	if !(a.StepSize > 0) {
		return fmt.Errorf("step size must be positive \n\thave(%v)",
			a.StepSize)
	}
	if !(a.Epsilon >= 0) {
		return fmt.Errorf("epsilon must be non-negative \n\thave(%v)",
			a.Epsilon)
	}
	for _, beta := range []float64{a.Beta1, a.Beta2} {
		if !(beta >= 0 && beta < 1) {
			return fmt.Errorf("moment decay rates must be in [0, 1) "+
				"\n\thave(%v)", beta)
		}
	}
	return nil
}

// Create returns the Gorgonia Adam Solver described by the AdamConfig
func (a AdamConfig) Create() G.Solver {
	return G.NewAdamSolver(
		G.WithLearnRate(a.StepSize),
		G.WithEps(a.Epsilon),
		G.WithBeta1(a.Beta1),
		G.WithBeta2(a.Beta2),
		G.WithBatchSize(float64(batchOrOne(a.Batch))),
	)
}

// ValidType returns if the given Solver type is a valid type to be
// created with this config.
func (a AdamConfig) ValidType(t Type) bool {
	return t == Adam
}
