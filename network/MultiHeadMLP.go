package network

import (
	"bytes"
	"encoding/gob"
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// multiHeadMLP implements a multi-layered perceptron with multiple
// output nodes, one for each value that should be predicted.
type multiHeadMLP struct {
	g          *G.ExprGraph
	layers     []*fcLayer
	input      *G.Node
	numOutputs int
	numInputs  int
	batchSize  int

	// Architecture, needed for gobbing. These include the final
	// linear output layer.
	hiddenSizes []int
	biases      []bool
	activations []*Activation

	learnables G.Nodes
	model      []G.ValueGrad

	prediction *G.Node
	predVal    G.Value
}

// NewMultiHeadMLP creates and returns a new multi-layered perceptron
// that has multiple output nodes, The number of outputs nodes is equal
// to outputs. The graph parameter g is populated with the MLP.
//
// The MLP has number of layers equal to len(hiddenSizes) + 1. A final
// layer is always added such that given any input, the output will
// be outputs. The final layer also contains a bias unit, and bias units
// for each additional hidden layer is specified by biases. The final
// layer will contain no activations, and the activations of additional
// hidden layers is specified by activations. The parameter init
// determines the weight initialization scheme.
//
// The function works such that for index i, hiddenSizes[i] is the
// number of nodes in hidden layer i; biases[i] is true if the
// hidden layer will contain a bias unit and false otherwise; and
// activations[i] is the activation function for hidden layer i.
//
// A linear network is created by passing empty hiddenSizes, biases,
// and activations.
func NewMultiHeadMLP(features, batch, outputs int, g *G.ExprGraph,
	hiddenSizes []int, biases []bool, init G.InitWFn,
	activations []*Activation) (NeuralNet, error) {
	if err := validateMLP(features, batch, outputs, hiddenSizes, biases,
		activations); err != nil {
		return nil, fmt.Errorf("newmultiheadmlp: %v", err)
	}

	net := &multiHeadMLP{}
	if err := net.build(g, features, batch, outputs, hiddenSizes, biases,
		init, activations); err != nil {
		return nil, fmt.Errorf("newmultiheadmlp: %v", err)
	}
	return net, nil
}

// build populates g with the layers of the MLP and computes the
// forward pass on a new input node.
func (e *multiHeadMLP) build(g *G.ExprGraph, features, batch, outputs int,
	hiddenSizes []int, biases []bool, init G.InitWFn,
	activations []*Activation) error {
	// Append the final linear layer so that the network predicts the
	// required number of outputs
	sizes := append(append([]int{}, hiddenSizes...), outputs)
	withBias := append(append([]bool{}, biases...), true)
	acts := append(append([]*Activation{}, activations...), Identity())

	input := G.NewMatrix(g, tensor.Float64, G.WithShape(batch, features),
		G.WithName("input"), G.WithInit(G.Zeroes()))

	*e = multiHeadMLP{
		g:           g,
		layers:      newFCLayers(g, features, sizes, withBias, acts, init),
		input:       input,
		numOutputs:  outputs,
		numInputs:   features,
		batchSize:   batch,
		hiddenSizes: sizes,
		biases:      withBias,
		activations: acts,
	}
	if err := e.fwd(input); err != nil {
		return fmt.Errorf("could not compute forward pass: %v", err)
	}
	return nil
}

// validateMLP checks the architecture arguments of NewMultiHeadMLP
func validateMLP(features, batch, outputs int, hiddenSizes []int,
	biases []bool, activations []*Activation) error {
	if features < 1 || batch < 1 || outputs < 1 {
		return fmt.Errorf("features (%v), batch (%v), and outputs (%v) "+
			"must be positive", features, batch, outputs)
	}

	// Ensure we have one activation per layer
	if len(hiddenSizes) != len(activations) {
		msg := "invalid number of activations\n\twant(%d)\n\thave(%d)"
		return fmt.Errorf(msg, len(hiddenSizes), len(activations))
	}

	// Ensure one bias bool per layer
	if len(hiddenSizes) != len(biases) {
		msg := "invalid number of biases\n\twant(%d)\n\thave(%d)"
		return fmt.Errorf(msg, len(hiddenSizes), len(biases))
	}

	for i, size := range hiddenSizes {
		if size < 1 {
			return fmt.Errorf("hidden layer %v must have a positive size", i)
		}
	}
	return nil
}

// Graph returns the computational graph of the multiHeadMLP.
func (e *multiHeadMLP) Graph() *G.ExprGraph {
	return e.g
}

// Clone clones a multiHeadMLP to a new computational graph
func (e *multiHeadMLP) Clone() (NeuralNet, error) {
	return e.CloneWithBatch(e.batchSize)
}

// CloneWithBatch clones a multiHeadMLP, including its current weights,
// to a new computational graph with a new input batch size.
func (e *multiHeadMLP) CloneWithBatch(batchSize int) (NeuralNet, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("clonewithbatch: batch size must be " +
			"positive")
	}

	graph := G.NewGraph()
	input := G.NewMatrix(
		graph,
		tensor.Float64,
		G.WithShape(batchSize, e.numInputs),
		G.WithName("input"),
		G.WithInit(G.Zeroes()),
	)

	layers := make([]*fcLayer, len(e.layers))
	for i := range e.layers {
		layers[i] = e.layers[i].cloneTo(graph)
	}

	net := &multiHeadMLP{
		g:           graph,
		layers:      layers,
		input:       input,
		numOutputs:  e.numOutputs,
		numInputs:   e.numInputs,
		batchSize:   batchSize,
		hiddenSizes: e.hiddenSizes,
		biases:      e.biases,
		activations: e.activations,
	}
	if err := net.fwd(input); err != nil {
		return nil, fmt.Errorf("clonewithbatch: could not clone: %v", err)
	}

	return net, nil
}

// BatchSize returns the batch size of inputs to the network
func (e *multiHeadMLP) BatchSize() int {
	return e.batchSize
}

// Features returns the number of features in a single observation
// vector that the network takes as input.
func (e *multiHeadMLP) Features() int {
	return e.numInputs
}

// Outputs returns the number of outputs from the network
func (e *multiHeadMLP) Outputs() int {
	return e.numOutputs
}

// SetInput sets the value of the input node before running the forward
// pass.
func (e *multiHeadMLP) SetInput(input []float64) error {
	if len(input) != e.numInputs*e.batchSize {
		return &ShapeError{
			Op:   "setinput",
			What: "network input",
			Want: e.numInputs * e.batchSize,
			Have: len(input),
		}
	}

	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(e.input.Shape()...),
	)
	return G.Let(e.input, inputTensor)
}

// Learnables returns the learnable nodes in a multiHeadMLP
func (e *multiHeadMLP) Learnables() G.Nodes {
	// Lazy instantiation
	if e.learnables == nil {
		learnables := make(G.Nodes, 0, 2*len(e.layers))
		for _, layer := range e.layers {
			learnables = append(learnables, layer.learnables()...)
		}
		e.learnables = learnables
	}
	return e.learnables
}

// Model returns the learnables nodes with their gradients.
func (e *multiHeadMLP) Model() []G.ValueGrad {
	// Lazy instantiation
	if e.model == nil {
		learnables := e.Learnables()
		model := make([]G.ValueGrad, len(learnables))
		for i, node := range learnables {
			model[i] = node
		}
		e.model = model
	}
	return e.model
}

// fwd performs the forward pass of the multiHeadMLP on the input
// node
func (e *multiHeadMLP) fwd(input *G.Node) error {
	pred := input
	var err error
	for i, l := range e.layers {
		if pred, err = l.fwd(pred); err != nil {
			msg := "fwd: could not compute forward pass of layer %v: %v"
			return fmt.Errorf(msg, i, err)
		}
	}

	e.prediction = pred
	G.Read(e.prediction, &e.predVal)

	return nil
}

// Output returns the output of the multiHeadMLP.
func (e *multiHeadMLP) Output() G.Value {
	return e.predVal
}

// Prediction returns the node of the computational graph the stores
// the output of the multiHeadMLP
func (e *multiHeadMLP) Prediction() *G.Node {
	return e.prediction
}

// GobEncode implements the gob.GobEncoder interface. Only the
// architecture and weights are encoded; the batch size is kept so that
// the decoded network accepts the same inputs.
func (e *multiHeadMLP) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	fields := []interface{}{
		e.numInputs,
		e.batchSize,
		e.numOutputs,
		e.hiddenSizes,
		e.biases,
		e.activations,
		Params(e),
	}
	for i, field := range fields {
		if err := enc.Encode(field); err != nil {
			return nil, fmt.Errorf("gobencode: could not encode field %v: %v",
				i, err)
		}
	}

	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface
func (e *multiHeadMLP) GobDecode(in []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(in))

	var numInputs, batchSize, numOutputs int
	var hiddenSizes []int
	var biases []bool
	var activations []*Activation
	var params [][]float64

	fields := []interface{}{
		&numInputs,
		&batchSize,
		&numOutputs,
		&hiddenSizes,
		&biases,
		&activations,
		&params,
	}
	for i, field := range fields {
		if err := dec.Decode(field); err != nil {
			return fmt.Errorf("gobdecode: could not decode field %v: %v", i,
				err)
		}
	}
	if len(hiddenSizes) == 0 || len(biases) == 0 || len(activations) == 0 {
		return fmt.Errorf("gobdecode: missing output layer")
	}

	// Encoded architectures include the final output layer, which
	// build adds itself
	last := len(hiddenSizes) - 1
	if err := validateMLP(numInputs, batchSize, numOutputs, hiddenSizes[:last],
		biases[:last], activations[:last]); err != nil {
		return fmt.Errorf("gobdecode: %v", err)
	}
	if err := e.build(G.NewGraph(), numInputs, batchSize, numOutputs,
		hiddenSizes[:last], biases[:last], G.Zeroes(),
		activations[:last]); err != nil {
		return fmt.Errorf("gobdecode: could not construct new MLP: %v", err)
	}
	if err := SetParams(e, params); err != nil {
		return fmt.Errorf("gobdecode: %v", err)
	}
	return nil
}

// Decode decodes a network encoded with gob
func Decode(data []byte) (NeuralNet, error) {
	net := &multiHeadMLP{}
	if err := net.GobDecode(data); err != nil {
		return nil, err
	}
	return net, nil
}
