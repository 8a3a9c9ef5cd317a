// Package timestep implements the logged steps of episodes that make
// up an offline dataset, and the transitions between consecutive steps
package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// StepType marks where in a logged episode a TimeStep lies
type StepType int

const (
	First StepType = iota
	Mid
	Last // Terminal step; transitions into it are not bootstrapped
)

func (s StepType) String() string {
	switch s {
	case First:
		return "First"
	case Last:
		return "Last"
	default:
		return "Mid"
	}
}

// TimeStep is one logged step of an episode. Reward and Discount are
// those received on entering the step, and Number is its index in the
// episode.
type TimeStep struct {
	StepType    StepType
	Reward      float64
	Discount    float64
	Observation *mat.VecDense
	Number      int
}

// New returns a new TimeStep
func New(t StepType, r, d float64, o *mat.VecDense, n int) TimeStep {
	return TimeStep{
		StepType:    t,
		Reward:      r,
		Discount:    d,
		Observation: o,
		Number:      n,
	}
}

// First returns whether the TimeStep starts an episode
func (t *TimeStep) First() bool {
	return t.StepType == First
}

// Mid returns whether the TimeStep is neither first nor terminal
func (t *TimeStep) Mid() bool {
	return t.StepType == Mid
}

// Last returns whether the TimeStep is terminal
func (t *TimeStep) Last() bool {
	return t.StepType == Last
}

func (t TimeStep) String() string {
	return fmt.Sprintf("TimeStep{%v #%v, r=%.3g, γ=%.3g}", t.StepType,
		t.Number, t.Reward, t.Discount)
}
