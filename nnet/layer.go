package nnet

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Layer interface type represents one layer of the network. Shapes are per
// sample; the batch dimension is the rows of the input matrix.
type Layer interface {
	Init(inShape []int) Layer
	OutShape() []int
	Fprop(in *mat.Dense) *mat.Dense
	Bprop(grad *mat.Dense) *mat.Dense
	ToString() string
}

// ParamLayer is a layer with trainable parameters.
type ParamLayer interface {
	Layer
	InitParams(scale float64, normal bool, rng *rand.Rand)
	Params() []*Param
}

// Param holds one weight matrix and its accumulated gradient.
type Param struct {
	W    *mat.Dense
	Grad *mat.Dense
}

func newParam(rows, cols int) *Param {
	return &Param{W: mat.NewDense(rows, cols, nil), Grad: mat.NewDense(rows, cols, nil)}
}

// Layer configuration details
type LayerConfig struct {
	Type string
	Data json.RawMessage
}

type ConfigLayer interface {
	Marshal() LayerConfig
}

// Unmarshal JSON data and construct new layer
func (l LayerConfig) Unmarshal() Layer {
	switch l.Type {
	case "conv":
		cfg := new(Conv)
		unmarshal(l.Data, cfg)
		return &conv{Conv: *cfg}
	case "maxPool":
		cfg := new(MaxPool)
		unmarshal(l.Data, cfg)
		return &maxPool{MaxPool: *cfg}
	case "linear":
		cfg := new(Linear)
		unmarshal(l.Data, cfg)
		return &linear{Linear: *cfg}
	case "activation":
		cfg := new(Activation)
		unmarshal(l.Data, cfg)
		return newActivation(*cfg)
	case "flatten":
		return &flatten{}
	default:
		panic("invalid layer type: " + l.Type)
	}
}

func (l LayerConfig) String() string {
	return l.Unmarshal().ToString()
}

// Convolutional layer, implements ParamLayer interface.
type Conv struct {
	Nfeats, Size, Stride, Pad int
}

func (c Conv) Marshal() LayerConfig {
	if c.Stride == 0 {
		c.Stride = 1
	}
	return LayerConfig{Type: "conv", Data: marshal(c)}
}

func (c Conv) ToString() string {
	return fmt.Sprintf("conv %+v", c)
}

// Max pooling layer, should follow conv layer.
type MaxPool struct {
	Size, Stride int
}

func (c MaxPool) Marshal() LayerConfig {
	if c.Stride == 0 {
		c.Stride = c.Size
	}
	return LayerConfig{Type: "maxPool", Data: marshal(c)}
}

func (c MaxPool) ToString() string {
	return fmt.Sprintf("maxPool %+v", c)
}

// Linear fully connected layer, implements ParamLayer interface.
type Linear struct {
	Nout int
}

func (c Linear) Marshal() LayerConfig {
	return LayerConfig{Type: "linear", Data: marshal(c)}
}

func (c Linear) ToString() string {
	return fmt.Sprintf("linear %+v", c)
}

// Sigmoid, tanh or relu activation layer.
type Activation struct {
	Atype string
}

func (c Activation) Marshal() LayerConfig {
	return LayerConfig{Type: "activation", Data: marshal(c)}
}

func (c Activation) ToString() string {
	return fmt.Sprintf("activation %+v", c)
}

// Flatten layer reshapes the per sample dimensions to a vector.
type Flatten struct{}

func (c Flatten) Marshal() LayerConfig {
	return LayerConfig{Type: "flatten"}
}

// linear layer implementation
type linear struct {
	Linear
	w, b *Param
	src  *mat.Dense
	nin  int
}

func (l *linear) OutShape() []int { return []int{l.Nout} }

func (l *linear) Init(inShape []int) Layer {
	if len(inShape) != 1 {
		panic("Linear: expect 1 dimensional input")
	}
	l.nin = inShape[0]
	l.w = newParam(l.nin, l.Nout)
	l.b = newParam(1, l.Nout)
	return l
}

func (l *linear) Params() []*Param { return []*Param{l.w, l.b} }

func (l *linear) InitParams(scale float64, normal bool, rng *rand.Rand) {
	initWeights(l.w.W, scale, normal, rng)
	l.b.W.Zero()
}

func (l *linear) Fprop(in *mat.Dense) *mat.Dense {
	l.src = in
	rows, _ := in.Dims()
	dst := mat.NewDense(rows, l.Nout, nil)
	dst.Mul(in, l.w.W)
	bias := l.b.W.RawRowView(0)
	for i := 0; i < rows; i++ {
		row := dst.RawRowView(i)
		for j, bv := range bias {
			row[j] += bv
		}
	}
	return dst
}

func (l *linear) Bprop(grad *mat.Dense) *mat.Dense {
	var dw mat.Dense
	dw.Mul(l.src.T(), grad)
	l.w.Grad.Add(l.w.Grad, &dw)
	rows, _ := grad.Dims()
	db := l.b.Grad.RawRowView(0)
	for i := 0; i < rows; i++ {
		for j, gv := range grad.RawRowView(i) {
			db[j] += gv
		}
	}
	dsrc := mat.NewDense(rows, l.nin, nil)
	dsrc.Mul(grad, l.w.W.T())
	return dsrc
}

// activation layer implementation
type activation struct {
	Activation
	shape []int
	dst   *mat.Dense
	fn    func(x float64) float64
	deriv func(y float64) float64
}

func newActivation(c Activation) Layer {
	l := &activation{Activation: c}
	switch c.Atype {
	case "sigmoid":
		l.fn = func(x float64) float64 { return 1 / (1 + math.Exp(-x)) }
		l.deriv = func(y float64) float64 { return y * (1 - y) }
	case "tanh":
		l.fn = math.Tanh
		l.deriv = func(y float64) float64 { return 1 - y*y }
	case "relu":
		l.fn = func(x float64) float64 { return math.Max(x, 0) }
		l.deriv = func(y float64) float64 {
			if y > 0 {
				return 1
			}
			return 0
		}
	default:
		panic(fmt.Sprintf("activation type %s invalid", c.Atype))
	}
	return l
}

func (l *activation) OutShape() []int { return l.shape }

func (l *activation) Init(inShape []int) Layer {
	l.shape = inShape
	return l
}

func (l *activation) Fprop(in *mat.Dense) *mat.Dense {
	rows, cols := in.Dims()
	l.dst = mat.NewDense(rows, cols, nil)
	src := in.RawMatrix().Data
	dst := l.dst.RawMatrix().Data
	for i, x := range src {
		dst[i] = l.fn(x)
	}
	return l.dst
}

func (l *activation) Bprop(grad *mat.Dense) *mat.Dense {
	rows, cols := grad.Dims()
	dsrc := mat.NewDense(rows, cols, nil)
	out := l.dst.RawMatrix().Data
	g := grad.RawMatrix().Data
	d := dsrc.RawMatrix().Data
	for i := range d {
		d[i] = g[i] * l.deriv(out[i])
	}
	return dsrc
}

// flatten layer implementation
type flatten struct {
	shape []int
}

func (l *flatten) ToString() string { return "flatten" }

func (l *flatten) OutShape() []int { return []int{prod(l.shape)} }

func (l *flatten) Init(inShape []int) Layer {
	l.shape = inShape
	return l
}

// per sample data is already stored contiguously per row
func (l *flatten) Fprop(in *mat.Dense) *mat.Dense { return in }

func (l *flatten) Bprop(grad *mat.Dense) *mat.Dense { return grad }

func initWeights(w *mat.Dense, scale float64, normal bool, rng *rand.Rand) {
	data := w.RawMatrix().Data
	for i := range data {
		if normal {
			data[i] = rng.NormFloat64() * scale
		} else {
			data[i] = rng.Float64() * scale
		}
	}
}

func prod(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func marshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func unmarshal(data json.RawMessage, v interface{}) {
	err := json.Unmarshal(data, v)
	if err != nil {
		panic(err)
	}
}
