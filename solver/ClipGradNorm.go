package solver

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"
)

// clipEpsilon is added to the gradient norm before computing the
// clipping coefficient
const clipEpsilon = 1e-6

// NoClip reports whether a gradient norm bound disables clipping.
// Non-positive and infinite bounds disable clipping, as does
// math.MaxFloat64, which config files use in place of +Inf.
func NoClip(maxNorm float64) bool {
	return maxNorm <= 0 || maxNorm >= math.MaxFloat64
}

// ValidateClip returns an error if maxNorm cannot be used as a bound
// on the gradient norm.
func ValidateClip(maxNorm float64) error {
	if math.IsNaN(maxNorm) {
		return fmt.Errorf("gradient norm bound must not be NaN")
	}
	return nil
}

// ClipGradNorm computes the L2 norm of all gradients of model, taken
// together as a single vector, and returns it. If the norm exceeds
// maxNorm, the gradients are rescaled in place by
// maxNorm / (norm + 1e-6) before the Solver is stepped. If NoClip
// reports true for maxNorm the gradients are left untouched.
//
// The model's gradients must have been computed, e.g. by running a VM
// which binds dual values, before calling ClipGradNorm.
func ClipGradNorm(model []G.ValueGrad, maxNorm float64) (float64, error) {
	if err := ValidateClip(maxNorm); err != nil {
		return 0, fmt.Errorf("clipgradnorm: %v", err)
	}

	grads := make([][]float64, len(model))
	var sumSquares float64
	for i, vg := range model {
		grad, err := vg.Grad()
		if err != nil {
			return 0, fmt.Errorf("clipgradnorm: could not get gradient of "+
				"learnable %v: %v", i, err)
		}

		data, ok := grad.Data().([]float64)
		if !ok {
			return 0, fmt.Errorf("clipgradnorm: gradient of learnable %v "+
				"is not float64 tensor (%T)", i, grad.Data())
		}
		norm := floats.Norm(data, 2)
		sumSquares += norm * norm
		grads[i] = data
	}
	norm := math.Sqrt(sumSquares)

	if NoClip(maxNorm) {
		return norm, nil
	}

	coef := maxNorm / (norm + clipEpsilon)
	if coef < 1.0 {
		for _, grad := range grads {
			floats.Scale(coef, grad)
		}
	}
	return norm, nil
}
