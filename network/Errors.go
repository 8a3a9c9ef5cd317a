package network

import (
	"fmt"

	"github.com/pkg/errors"
)

// ShapeError reports that some data did not have the size required by
// an operation. Shapes are never broadcast to fit: any mismatch is
// reported with a ShapeError.
type ShapeError struct {
	Op   string
	What string
	Want int
	Have int
}

// Error satisfies the error interface
func (s *ShapeError) Error() string {
	return fmt.Sprintf("%s: shape mismatch in %s\n\twant(%v)\n\thave(%v)",
		s.Op, s.What, s.Want, s.Have)
}

// IsShapeMismatch returns whether an error, or any error it wraps,
// reports a shape mismatch.
func IsShapeMismatch(err error) bool {
	var shapeErr *ShapeError
	return errors.As(err, &shapeErr)
}
