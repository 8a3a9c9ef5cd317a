package offline

import "errors"

// DatasetError implements errors unique to an offline dataset
type DatasetError struct {
	Op  string
	Err error
}

// Error satisifes the error interface
func (e *DatasetError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

var errEmptyDataset = errors.New("dataset empty")

var errInsufficientSamples = errors.New("minimum capacity not yet reached")

var errFullDataset = errors.New("maximum capacity reached")

// IsInsufficientSamples returns whether or not an error reports that
// there are insufficient samples in the dataset to sample a batch.
//
// A dataset has too few samples to sample if its current size is
// less than its minimum capacity.
func IsInsufficientSamples(err error) bool {
	return cause(err) == errInsufficientSamples
}

// IsEmptyDataset returns whether or not an error reports that a
// dataset is empty.
func IsEmptyDataset(err error) bool {
	return cause(err) == errEmptyDataset
}

// IsFullDataset returns whether or not an error reports that a dataset
// cannot hold more transitions.
func IsFullDataset(err error) bool {
	return cause(err) == errFullDataset
}

func cause(err error) error {
	if datasetErr, ok := err.(*DatasetError); ok {
		return datasetErr.Err
	}
	return err
}
