package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// maxCachedBatches is the number of batch sizes for which a Predictor
// keeps a cloned network
const maxCachedBatches = 8

// Predictor runs forward passes of a source network without tracking
// gradients. Inputs may have any batch size: the Predictor keeps one
// clone of the source network for each of the last few batch sizes it
// has seen (at most maxCachedBatches), and copies
// the source network's current weights into the clone before every
// prediction. Predictions therefore always reflect the source weights
// at the time of the call, and no gradient of the source network is
// ever computed or modified.
type Predictor struct {
	source NeuralNet
	nets   map[int]NeuralNet
	vms    map[int]G.VM
	order  []int // Cached batch sizes, oldest first
}

// NewPredictor returns a new Predictor for the source network
func NewPredictor(source NeuralNet) *Predictor {
	return &Predictor{
		source: source,
		nets:   make(map[int]NeuralNet),
		vms:    make(map[int]G.VM),
	}
}

// Source returns the network whose weights are used for predictions
func (p *Predictor) Source() NeuralNet {
	return p.source
}

// Predict returns the outputs of the source network on the row major
// inputs. The returned slice is of length n * source.Outputs() for n
// inputs and is never shared with the computational graph.
func (p *Predictor) Predict(inputs []float64) ([]float64, error) {
	features := p.source.Features()
	if len(inputs) == 0 || len(inputs)%features != 0 {
		return nil, &ShapeError{
			Op:   "predict",
			What: "input features (not a positive multiple)",
			Want: features,
			Have: len(inputs),
		}
	}
	batch := len(inputs) / features

	net, vm, err := p.netFor(batch)
	if err != nil {
		return nil, fmt.Errorf("predict: %v", err)
	}

	if err := Set(net, p.source); err != nil {
		return nil, fmt.Errorf("predict: could not copy weights: %v", err)
	}
	if err := net.SetInput(inputs); err != nil {
		return nil, fmt.Errorf("predict: %v", err)
	}

	defer vm.Reset()
	if err := vm.RunAll(); err != nil {
		return nil, fmt.Errorf("predict: could not run forward pass: %v", err)
	}

	out := net.Output().Data().([]float64)
	predictions := make([]float64, len(out))
	copy(predictions, out)
	return predictions, nil
}

// netFor returns the cached clone and VM of the source network for a
// batch size, creating them if needed
func (p *Predictor) netFor(batch int) (NeuralNet, G.VM, error) {
	if net, ok := p.nets[batch]; ok {
		return net, p.vms[batch], nil
	}

	if len(p.nets) >= maxCachedBatches {
		if err := p.evict(); err != nil {
			return nil, nil, err
		}
	}

	net, err := p.source.CloneWithBatch(batch)
	if err != nil {
		return nil, nil, fmt.Errorf("could not clone network for batch "+
			"size %v: %v", batch, err)
	}
	vm := G.NewTapeMachine(net.Graph())

	p.nets[batch] = net
	p.vms[batch] = vm
	p.order = append(p.order, batch)
	return net, vm, nil
}

// evict closes and removes the clone created longest ago
func (p *Predictor) evict() error {
	oldest := p.order[0]
	p.order = p.order[1:]

	vm := p.vms[oldest]
	delete(p.vms, oldest)
	delete(p.nets, oldest)
	if err := vm.Close(); err != nil {
		return fmt.Errorf("could not close vm for batch size %v: %v",
			oldest, err)
	}
	return nil
}

// Close closes all VMs created by the Predictor
func (p *Predictor) Close() error {
	for batch, vm := range p.vms {
		if err := vm.Close(); err != nil {
			return fmt.Errorf("close: could not close vm for batch size "+
				"%v: %v", batch, err)
		}
		delete(p.vms, batch)
		delete(p.nets, batch)
	}
	p.order = nil
	return nil
}
