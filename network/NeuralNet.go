// Package network implements neural network function approximators
// built on Gorgonia computational graphs, along with utilities for
// copying parameters between networks and for running forward passes
// that are detached from any training graph.
package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// NeuralNet is a feed forward neural network that lives in its own
// computational graph. The input of a NeuralNet has a fixed batch
// size; use CloneWithBatch to evaluate the same architecture on a
// different number of inputs.
type NeuralNet interface {
	Graph() *G.ExprGraph
	Clone() (NeuralNet, error)
	CloneWithBatch(int) (NeuralNet, error)
	BatchSize() int
	Features() int
	Outputs() int

	// SetInput sets the input node of the network. Inputs are given
	// in row major order.
	SetInput([]float64) error

	Learnables() G.Nodes
	Model() []G.ValueGrad

	// Output returns the value of the prediction after the graph has
	// been run by a VM
	Output() G.Value
	Prediction() *G.Node
}

// Set sets the weights of dest to be copies of the weights of source.
// After Set returns, no parameter storage is shared between the two
// networks.
func Set(dest, source NeuralNet) error {
	sourceNodes := source.Learnables()
	destNodes := dest.Learnables()
	if len(sourceNodes) != len(destNodes) {
		return &ShapeError{
			Op:   "set",
			What: "learnables",
			Want: len(destNodes),
			Have: len(sourceNodes),
		}
	}

	for i := range destNodes {
		if !destNodes[i].Shape().Eq(sourceNodes[i].Shape()) {
			return fmt.Errorf("set: learnable %v has shape %v but source "+
				"has shape %v", i, destNodes[i].Shape(),
				sourceNodes[i].Shape())
		}

		weights, err := G.CloneValue(sourceNodes[i].Value())
		if err != nil {
			return fmt.Errorf("set: could not copy learnable %v: %v", i, err)
		}
		if err := G.Let(destNodes[i], weights); err != nil {
			return fmt.Errorf("set: could not set learnable %v: %v", i, err)
		}
	}
	return nil
}

// Params returns a copy of the weights of a network, one slice per
// learnable node in the order given by Learnables().
func Params(net NeuralNet) [][]float64 {
	learnables := net.Learnables()
	params := make([][]float64, len(learnables))
	for i, node := range learnables {
		data := node.Value().Data().([]float64)
		params[i] = make([]float64, len(data))
		copy(params[i], data)
	}
	return params
}

// SetParams sets the weights of a network to copies of params, which
// must be ordered and sized as returned by Params.
func SetParams(net NeuralNet, params [][]float64) error {
	learnables := net.Learnables()
	if len(params) != len(learnables) {
		return &ShapeError{
			Op:   "setparams",
			What: "learnables",
			Want: len(learnables),
			Have: len(params),
		}
	}

	for i, node := range learnables {
		if len(params[i]) != node.Shape().TotalSize() {
			return &ShapeError{
				Op:   "setparams",
				What: fmt.Sprintf("weights in learnable %v", i),
				Want: node.Shape().TotalSize(),
				Have: len(params[i]),
			}
		}

		backing := make([]float64, len(params[i]))
		copy(backing, params[i])
		weights := tensor.New(
			tensor.WithShape(node.Shape().Clone()...),
			tensor.WithBacking(backing),
		)
		if err := G.Let(node, weights); err != nil {
			return fmt.Errorf("setparams: could not set learnable %v: %v",
				i, err)
		}
	}
	return nil
}
