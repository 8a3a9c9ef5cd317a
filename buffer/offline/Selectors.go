package offline

import (
	"fmt"

	"golang.org/x/exp/rand"
)

// SelectorType determines how batches are drawn from a Dataset
type SelectorType string

const (
	// Uniform draws each sample uniformly with replacement
	Uniform SelectorType = "Uniform"

	// Shuffled draws samples without replacement from a random
	// permutation of the dataset, reshuffling once every sample has
	// been drawn
	Shuffled SelectorType = "Shuffled"
)

// Selector chooses the indices of the transitions in a Dataset that
// make up a batch
type Selector interface {
	// choose selects BatchSize() indices in [0, size)
	choose(size int) []int

	// BatchSize returns the number of elements that will be selected
	BatchSize() int
}

// CreateSelector is a factory for creating Selectors
func CreateSelector(t SelectorType, samples int, seed uint64) (Selector,
	error) {
	switch t {
	case Uniform:
		return NewUniformSelector(samples, seed), nil
	case Shuffled:
		return NewShuffledSelector(samples, seed), nil
	default:
		return nil, fmt.Errorf("createSelector: unknown selector type %q",
			t)
	}
}

// uniformSelector selects data uniformly randomly with replacement
type uniformSelector struct {
	samples int
	rng     *rand.Rand
}

// NewUniformSelector returns a new Selector which selects data
// uniformly randomly with replacement
func NewUniformSelector(samples int, seed uint64) Selector {
	return &uniformSelector{samples: samples, rng: rand.New(rand.NewSource(seed))}
}

// BatchSize gets the number of samples in a batch
func (u *uniformSelector) BatchSize() int {
	return u.samples
}

func (u *uniformSelector) choose(size int) []int {
	selected := make([]int, u.samples)
	for i := range selected {
		selected[i] = u.rng.Intn(size)
	}
	return selected
}

// shuffledSelector selects data in epochs of random permutations
type shuffledSelector struct {
	samples int
	rng     *rand.Rand
	order   []int
	next    int
}

// NewShuffledSelector returns a new Selector which draws every
// transition once per pass over the dataset, in a random order
func NewShuffledSelector(samples int, seed uint64) Selector {
	return &shuffledSelector{
		samples: samples,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// BatchSize gets the number of samples in a batch
func (s *shuffledSelector) BatchSize() int {
	return s.samples
}

func (s *shuffledSelector) choose(size int) []int {
	selected := make([]int, s.samples)
	for i := range selected {
		// Start a new pass if the dataset has grown or the current
		// permutation is exhausted
		if s.next >= len(s.order) || len(s.order) != size {
			s.order = s.rng.Perm(size)
			s.next = 0
		}
		selected[i] = s.order[s.next]
		s.next++
	}
	return selected
}
