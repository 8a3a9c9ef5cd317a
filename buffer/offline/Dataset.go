// Package offline implements a fixed capacity dataset of logged
// transitions from which agents sample batches to learn offline.
package offline

import (
	"fmt"

	"github.com/aunum/log"
	"github.com/samuelfneumann/goiql/agent"
	"github.com/samuelfneumann/goiql/timestep"
)

// Config implements a specific configuration of a Dataset
type Config struct {
	SampleMethod SelectorType
	BatchSize    int
	MinCapacity  int
	MaxCapacity  int
}

// Create creates and returns the Dataset with the specified Config.
func (c Config) Create(features, numActions int, seed uint64) (*Dataset,
	error) {
	sampler, err := CreateSelector(c.SampleMethod, c.BatchSize, seed)
	if err != nil {
		return nil, fmt.Errorf("create: %v", err)
	}
	return New(sampler, c.MinCapacity, c.MaxCapacity, features, numActions)
}

// Dataset stores transitions with discrete actions and samples them
// in batches. States are flattened into row major storage.
type Dataset struct {
	states     []float64
	actions    []float64
	rewards    []float64
	nextStates []float64
	dones      []float64

	size        int
	minCapacity int
	maxCapacity int
	features    int
	numActions  int

	sampler Selector
}

// New creates and returns a new Dataset. The sampler determines how
// batches are drawn. Sampling is allowed once the dataset holds at
// least minCapacity transitions, and at most maxCapacity transitions
// may be added.
func New(sampler Selector, minCapacity, maxCapacity, features,
	numActions int) (*Dataset, error) {
	if minCapacity <= 0 {
		return nil, fmt.Errorf("new: minCapacity must be > 0")
	}
	if maxCapacity < minCapacity {
		return nil, fmt.Errorf("new: maxCapacity (%v) must be >= "+
			"minCapacity (%v)", maxCapacity, minCapacity)
	}
	if sampler.BatchSize() < 1 {
		return nil, fmt.Errorf("new: batch size must be positive")
	}
	if features < 1 || numActions < 1 {
		return nil, fmt.Errorf("new: features (%v) and actions (%v) must "+
			"be positive", features, numActions)
	}

	return &Dataset{
		states:      make([]float64, 0, maxCapacity*features),
		actions:     make([]float64, 0, maxCapacity),
		rewards:     make([]float64, 0, maxCapacity),
		nextStates:  make([]float64, 0, maxCapacity*features),
		dones:       make([]float64, 0, maxCapacity),
		minCapacity: minCapacity,
		maxCapacity: maxCapacity,
		features:    features,
		numActions:  numActions,
		sampler:     sampler,
	}, nil
}

// Add adds a transition to the dataset
func (d *Dataset) Add(t timestep.Transition) error {
	if d.size >= d.maxCapacity {
		return &DatasetError{Op: "add", Err: errFullDataset}
	}
	if t.State == nil || t.NextState == nil {
		return fmt.Errorf("add: transition has no state")
	}
	if t.State.Len() != d.features || t.NextState.Len() != d.features {
		return fmt.Errorf("add: invalid feature size \n\twant(%v)\n\t"+
			"have(%v, %v)", d.features, t.State.Len(), t.NextState.Len())
	}
	if t.Action < 0 || t.Action >= d.numActions {
		return fmt.Errorf("add: invalid action \n\twant([0, %v))\n\t"+
			"have(%v)", d.numActions, t.Action)
	}

	// Views such as matrix columns are strided, so vectors are read
	// element by element rather than through their backing slice
	for j := 0; j < d.features; j++ {
		d.states = append(d.states, t.State.AtVec(j))
	}
	for j := 0; j < d.features; j++ {
		d.nextStates = append(d.nextStates, t.NextState.AtVec(j))
	}
	d.actions = append(d.actions, float64(t.Action))
	d.rewards = append(d.rewards, t.Reward)
	d.dones = append(d.dones, t.DoneMask())
	d.size++

	return nil
}

// AddEpisode adds the transitions of an episode, where actions[i] is
// the action taken in steps[i]. The final step of the episode need
// not be a Last step for truncated episodes.
func (d *Dataset) AddEpisode(steps []timestep.TimeStep,
	actions []int) error {
	if len(actions) != len(steps)-1 {
		return fmt.Errorf("addEpisode: invalid number of actions "+
			"\n\twant(%v)\n\thave(%v)", len(steps)-1, len(actions))
	}

	for i, action := range actions {
		t, err := timestep.NewTransition(steps[i], action, steps[i+1])
		if err != nil {
			return fmt.Errorf("addEpisode: %v", err)
		}
		if err := d.Add(t); err != nil {
			return fmt.Errorf("addEpisode: could not add transition %v: %v",
				i, err)
		}
	}

	log.Debugf("offline: added episode of %v transitions, dataset size %v",
		len(actions), d.size)
	return nil
}

// Sample samples a batch of transitions from the dataset
func (d *Dataset) Sample() (agent.Batch, error) {
	if d.size == 0 {
		return agent.Batch{}, &DatasetError{Op: "sample", Err: errEmptyDataset}
	}
	if d.size < d.minCapacity {
		return agent.Batch{}, &DatasetError{
			Op:  "sample",
			Err: errInsufficientSamples,
		}
	}

	indices := d.sampler.choose(d.size)
	batch := agent.Batch{
		Observations:     make([]float64, len(indices)*d.features),
		Actions:          make([]float64, len(indices)),
		Rewards:          make([]float64, len(indices)),
		NextObservations: make([]float64, len(indices)*d.features),
		Dones:            make([]float64, len(indices)),
	}

	for i, index := range indices {
		batchStart := i * d.features
		dataStart := index * d.features
		copy(batch.Observations[batchStart:batchStart+d.features],
			d.states[dataStart:dataStart+d.features])
		copy(batch.NextObservations[batchStart:batchStart+d.features],
			d.nextStates[dataStart:dataStart+d.features])

		batch.Actions[i] = d.actions[index]
		batch.Rewards[i] = d.rewards[index]
		batch.Dones[i] = d.dones[index]
	}

	return batch, nil
}

// Len returns the number of transitions in the dataset
func (d *Dataset) Len() int {
	return d.size
}

// MaxCapacity returns the maximum number of transitions allowed in
// the dataset
func (d *Dataset) MaxCapacity() int {
	return d.maxCapacity
}

// MinCapacity returns the number of transitions required in the
// dataset before sampling is allowed
func (d *Dataset) MinCapacity() int {
	return d.minCapacity
}

// BatchSize returns the number of transitions returned by Sample()
func (d *Dataset) BatchSize() int {
	return d.sampler.BatchSize()
}

func (d *Dataset) String() string {
	return fmt.Sprintf("Dataset | Size: %v  |  Capacity: %v  |  "+
		"Batch Size: %v", d.size, d.maxCapacity, d.BatchSize())
}
