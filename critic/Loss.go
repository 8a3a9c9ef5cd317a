package critic

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// Loss adds to the computational graph a scalar loss between a vector
// of predictions and a vector of regression targets of the same size
type Loss func(pred, target *G.Node) (*G.Node, error)

// MSE is the mean squared error mean((pred - target)²)
func MSE(pred, target *G.Node) (*G.Node, error) {
	diff, err := G.Sub(pred, target)
	if err != nil {
		return nil, fmt.Errorf("mse: %v", err)
	}
	loss, err := G.Square(diff)
	if err != nil {
		return nil, fmt.Errorf("mse: %v", err)
	}
	return G.Mean(loss)
}

// Expectile returns the asymmetric squared loss of expectile
// regression. With diff = pred - target, each squared difference is
// weighted by (1 - expectile) if diff > 0 and by expectile otherwise.
//
// The weighting is computed without branching as
//
//	0.5 * diff² + (0.5 - expectile) * diff * |diff|
//
// which takes the same value and gradient as the weighted form.
func Expectile(expectile float64) Loss {
	return func(pred, target *G.Node) (*G.Node, error) {
		diff, err := G.Sub(pred, target)
		if err != nil {
			return nil, fmt.Errorf("expectile: %v", err)
		}

		half := G.NewConstant(0.5, G.WithName("half"))
		sym := G.Must(G.Square(diff))
		sym = G.Must(G.HadamardProd(half, sym))

		skew := G.NewConstant(0.5-expectile, G.WithName("skew"))
		asym := G.Must(G.Abs(diff))
		asym = G.Must(G.HadamardProd(diff, asym))
		asym = G.Must(G.HadamardProd(skew, asym))

		loss, err := G.Add(sym, asym)
		if err != nil {
			return nil, fmt.Errorf("expectile: %v", err)
		}
		return G.Mean(loss)
	}
}
