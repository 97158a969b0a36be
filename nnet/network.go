// Package nnet contains routines for constructing and training embedding networks.
package nnet

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Network type represents a multilayer neural network model.
type Network struct {
	Layers     []Layer
	inShapes   [][]int
	DebugLevel int
}

// New function creates a new network with the given layers and initialises
// each one in sequence from the per sample input shape.
func New(layers []Layer, inShape []int) *Network {
	n := &Network{}
	shape := inShape
	for _, layer := range layers {
		n.inShapes = append(n.inShapes, shape)
		layer.Init(shape)
		n.Layers = append(n.Layers, layer)
		shape = layer.OutShape()
	}
	return n
}

// OutShape returns the per sample output shape of the final layer.
func (n *Network) OutShape() []int {
	if len(n.Layers) == 0 {
		return nil
	}
	return n.Layers[len(n.Layers)-1].OutShape()
}

// Initialise network weights using a linear or normal distribution.
// Weights for each layer are scaled by 1/sqrt(nin)
func (n *Network) InitWeights(normal bool, rng *rand.Rand) {
	for i, layer := range n.Layers {
		if l, ok := layer.(ParamLayer); ok {
			nin := prod(n.inShapes[i])
			l.InitParams(1/math.Sqrt(float64(nin)), normal, rng)
		}
	}
}

// Params returns the parameters of all layers in order.
func (n *Network) Params() []*Param {
	var params []*Param
	for _, layer := range n.Layers {
		if l, ok := layer.(ParamLayer); ok {
			params = append(params, l.Params()...)
		}
	}
	return params
}

// ZeroGrad clears the accumulated parameter gradients.
func (n *Network) ZeroGrad() {
	for _, p := range n.Params() {
		p.Grad.Zero()
	}
}

// Feed forward the input to get the predicted output
func (n *Network) Fprop(input *mat.Dense) *mat.Dense {
	pred := input
	for i, layer := range n.Layers {
		if n.DebugLevel >= 2 {
			fmt.Printf("layer %d input\n%v\n", i, mat.Formatted(pred))
		}
		pred = layer.Fprop(pred)
	}
	return pred
}

// Back propagate the output gradient, accumulating parameter gradients.
// Must follow a forward pass with the matching input.
func (n *Network) Bprop(grad *mat.Dense) *mat.Dense {
	for i := len(n.Layers) - 1; i >= 0; i-- {
		grad = n.Layers[i].Bprop(grad)
		if n.DebugLevel >= 3 && grad != nil {
			fmt.Printf("layer %d bprop output\n%v\n", i, mat.Formatted(grad))
		}
	}
	return grad
}

// Print network description
func (n *Network) String() string {
	s := make([]string, len(n.Layers))
	for i, layer := range n.Layers {
		s[i] = fmt.Sprintf("%2d: %-25s %v", i, layer.ToString(), n.inShapes[i])
	}
	return strings.Join(s, "\n")
}

// Set random number seed, returns a random seed if seed <= 0
func SetSeed(seed int64) *rand.Rand {
	if seed <= 0 {
		seed = time.Now().UTC().UnixNano()
	}
	fmt.Println("random seed =", seed)
	return rand.New(rand.NewSource(seed))
}

// Exit in case of error
func CheckErr(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
