// Package agent defines the interfaces shared by offline agents along
// with the batches of experience they learn from and the metrics they
// report.
package agent

// Learner implements a learning algorithm that defines how weights are
// updated from batches of logged experience.
type Learner interface {
	// Update performs a single update using the batch b. The step is
	// the index of the update, counted from 0, and is used to schedule
	// periodic work such as target network synchronisation.
	Update(b Batch, step int) (Metrics, error)

	// BatchSize returns the number of transitions in each batch that
	// Update expects
	BatchSize() int
}

// Closer is a Learner that must be closed after it is done learning
type Closer interface {
	Learner
	Close() error
}

// Advantager computes the advantage Q(s, a) - V(s) of taking actions in
// states without computing any gradients. States should be constructed
// in row major order.
type Advantager interface {
	ComputeAdvantage(states []float64, actions []int) ([]float64, error)
}
