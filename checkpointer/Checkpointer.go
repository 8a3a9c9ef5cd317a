// Package checkpointer periodically saves serializable objects, such
// as the networks of a critic, to files.
package checkpointer

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/aunum/log"
)

// Checkpointer checkpoints/saves serializable objects based on the
// number of updates an agent has performed
type Checkpointer interface {
	Checkpoint(step int) error
}

// nStep implements checkpointing every N steps
type nStep struct {
	interval int
	object   gob.GobEncoder // Object to save

	// filename returns the name of the file to save the object in.
	//
	// If each serialized object should be saved in a separate file with
	// each file having an incremented number as a suffix (e.g.
	// file1.bin, file2.bin, ..., fileK.bin), then simply use
	// FilenameEnumerator. Otherwise, if the filename does not matter,
	// use FileTimer.
	filename func() string
}

// NewNStep returns a checkpointer that checkpoints every n steps.
func NewNStep(n int, object gob.GobEncoder,
	filename func() string) (Checkpointer, error) {
	if n < 1 {
		return nil, fmt.Errorf("newNStep: interval must be positive")
	}
	return &nStep{
		interval: n,
		object:   object,
		filename: filename,
	}, nil
}

// Checkpoint saves the tracked object if step is a multiple of the
// checkpointing interval
func (n *nStep) Checkpoint(step int) error {
	if step%n.interval != 0 {
		return nil
	}

	data, err := n.object.GobEncode()
	if err != nil {
		return fmt.Errorf("checkpoint: could not encode object: %v", err)
	}

	filename := n.filename()
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("checkpoint: could not save object: %v", err)
	}
	log.Debugf("checkpointer: saved step %v to %v", step, filename)
	return nil
}
