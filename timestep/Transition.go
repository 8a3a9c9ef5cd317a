package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Transition is a single (s, a, r, s', done) tuple of experience
type Transition struct {
	State     *mat.VecDense
	Action    int
	Reward    float64
	Discount  float64
	NextState *mat.VecDense
	Done      bool
}

// NewTransition returns the Transition from step to next when taking
// action in step. The Transition is terminal if next is the last step
// of an episode.
func NewTransition(step TimeStep, action int, next TimeStep) (Transition,
	error) {
	if step.Last() {
		return Transition{}, fmt.Errorf("newTransition: cannot transition " +
			"out of the last step of an episode")
	}
	if next.Number != step.Number+1 {
		return Transition{}, fmt.Errorf("newTransition: steps are not "+
			"consecutive \n\twant(%v)\n\thave(%v)", step.Number+1,
			next.Number)
	}

	return Transition{
		State:     step.Observation,
		Action:    action,
		Reward:    next.Reward,
		Discount:  next.Discount,
		NextState: next.Observation,
		Done:      next.Last(),
	}, nil
}

// DoneMask returns 1 if the transition is terminal and 0 otherwise
func (t Transition) DoneMask() float64 {
	if t.Done {
		return 1.0
	}
	return 0.0
}

func (t Transition) String() string {
	str := "Transition | Action: %v  |  Reward:  %.2f  |  Done: %v"
	return fmt.Sprintf(str, t.Action, t.Reward, t.Done)
}
