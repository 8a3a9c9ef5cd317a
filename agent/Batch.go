package agent

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/goiql/network"
)

// Batch is a batch of transitions. Observations and NextObservations
// are constructed in row major order, one row of features per
// transition. Actions hold discrete action indices stored as float64
// and Dones hold 1 for terminal transitions and 0 otherwise.
type Batch struct {
	Observations     []float64
	Actions          []float64
	Rewards          []float64
	NextObservations []float64
	Dones            []float64
}

// Len returns the number of transitions in the batch
func (b Batch) Len() int {
	return len(b.Rewards)
}

// Validate returns an error if the batch does not hold a whole number
// of transitions with the given number of features and actions, or if
// any action or done flag is malformed.
func (b Batch) Validate(features, numActions int) error {
	n := b.Len()
	if n == 0 {
		return fmt.Errorf("validate: empty batch")
	}

	lengths := []struct {
		what string
		want int
		have int
	}{
		{"actions", n, len(b.Actions)},
		{"dones", n, len(b.Dones)},
		{"observations", n * features, len(b.Observations)},
		{"next observations", n * features, len(b.NextObservations)},
	}
	for _, l := range lengths {
		if l.want != l.have {
			return &network.ShapeError{Op: "validate", What: l.what,
				Want: l.want, Have: l.have}
		}
	}

	for i, done := range b.Dones {
		if done != 0 && done != 1 {
			return fmt.Errorf("validate: done flag %v must be 0 or 1 "+
				"\n\thave(%v)", i, done)
		}
	}
	for i, r := range b.Rewards {
		if math.IsNaN(r) {
			return fmt.Errorf("validate: reward %v is NaN", i)
		}
	}

	_, err := b.ActionIndices(numActions)
	return err
}

// ActionIndices returns the actions of the batch as integer indices.
// An error is returned if any action is not an integer in
// [0, numActions).
func (b Batch) ActionIndices(numActions int) ([]int, error) {
	return ActionIndices(b.Actions, numActions)
}

// ActionIndices converts actions stored as float64 to integer indices,
// returning an error if any action is not an integer in
// [0, numActions).
func ActionIndices(actions []float64, numActions int) ([]int, error) {
	indices := make([]int, len(actions))
	for i, a := range actions {
		if a != math.Trunc(a) || a < 0 || a >= float64(numActions) {
			return nil, fmt.Errorf("actionIndices: action %v is not a "+
				"valid action index \n\twant([0, %v))\n\thave(%v)", i,
				numActions, a)
		}
		indices[i] = int(a)
	}
	return indices, nil
}
