// Package triplet trains and evaluates a triplet loss embedding network.
package triplet

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/jnb666/tripletnet/nnet"
)

const distEps = 1e-12

// EmbedNet composes a backbone feature extractor with a projection head
// mapping images to embedding vectors.
type EmbedNet struct {
	Backbone *nnet.Network
	Project  *nnet.Network
}

// NewEmbedNet builds the backbone and projection named in the config and
// initialises the weights.
func NewEmbedNet(conf nnet.Config, inShape []int, rng *rand.Rand) (*EmbedNet, error) {
	backbone, err := nnet.Backbone(conf.Backbone, conf, inShape)
	if err != nil {
		return nil, err
	}
	project, err := nnet.Model(conf.Model, conf, backbone.OutShape())
	if err != nil {
		return nil, err
	}
	backbone.DebugLevel = conf.DebugLevel
	project.DebugLevel = conf.DebugLevel
	e := &EmbedNet{Backbone: backbone, Project: project}
	backbone.InitWeights(conf.NormalWeights, rng)
	project.InitWeights(conf.NormalWeights, rng)
	return e, nil
}

// Forward maps a batch of images to embeddings.
func (e *EmbedNet) Forward(x *mat.Dense) *mat.Dense {
	return e.Project.Fprop(e.Backbone.Fprop(x))
}

// Backward propagates the embedding gradient, accumulating parameter
// gradients. Must directly follow a Forward call with the matching input.
func (e *EmbedNet) Backward(grad *mat.Dense) *mat.Dense {
	return e.Backbone.Bprop(e.Project.Bprop(grad))
}

// Params returns backbone and projection parameters in order.
func (e *EmbedNet) Params() []*nnet.Param {
	return append(e.Backbone.Params(), e.Project.Params()...)
}

// ZeroGrad clears all accumulated gradients.
func (e *EmbedNet) ZeroGrad() {
	e.Backbone.ZeroGrad()
	e.Project.ZeroGrad()
}

// TripletNet applies one shared EmbedNet to anchor, positive and negative
// inputs, so the three branches always use identical weights.
type TripletNet struct {
	Embed *EmbedNet
}

func NewTripletNet(embed *EmbedNet) *TripletNet {
	return &TripletNet{Embed: embed}
}

// Forward returns the anchor, positive and negative embeddings.
func (t *TripletNet) Forward(a, p, n *mat.Dense) (ea, ep, en *mat.Dense) {
	ea = t.Embed.Forward(a)
	ep = t.Embed.Forward(p)
	en = t.Embed.Forward(n)
	return ea, ep, en
}

// FeatureExtract returns the embedding for a single batch of images.
func (t *TripletNet) FeatureExtract(x *mat.Dense) *mat.Dense {
	return t.Embed.Forward(x)
}

// PairwiseDistance returns the row-wise Euclidean distance between two
// embedding matrices.
func PairwiseDistance(x, y *mat.Dense) []float64 {
	rows, cols := x.Dims()
	dist := make([]float64, rows)
	for i := 0; i < rows; i++ {
		a := x.RawRowView(i)
		b := y.RawRowView(i)
		sum := 0.0
		for j := 0; j < cols; j++ {
			d := a[j] - b[j]
			sum += d * d
		}
		dist[i] = math.Sqrt(sum + distEps)
	}
	return dist
}

// TripletMarginLoss returns the per sample hinge loss
// max(0, d(a,p) - d(a,n) + margin) for a batch of embeddings.
func TripletMarginLoss(ea, ep, en *mat.Dense, margin float64) []float64 {
	distPos := PairwiseDistance(ea, ep)
	distNeg := PairwiseDistance(ea, en)
	loss := make([]float64, len(distPos))
	for i := range loss {
		loss[i] = math.Max(0, distPos[i]-distNeg[i]+margin)
	}
	return loss
}

// tripletLossGrads returns the per sample losses plus the gradients of the
// batch mean loss with respect to each embedding.
func tripletLossGrads(ea, ep, en *mat.Dense, margin float64) (loss []float64, ga, gp, gn *mat.Dense) {
	rows, cols := ea.Dims()
	distPos := PairwiseDistance(ea, ep)
	distNeg := PairwiseDistance(ea, en)
	loss = make([]float64, rows)
	ga = mat.NewDense(rows, cols, nil)
	gp = mat.NewDense(rows, cols, nil)
	gn = mat.NewDense(rows, cols, nil)
	scale := 1 / float64(rows)
	for i := 0; i < rows; i++ {
		loss[i] = math.Max(0, distPos[i]-distNeg[i]+margin)
		if loss[i] == 0 {
			continue
		}
		a, p, n := ea.RawRowView(i), ep.RawRowView(i), en.RawRowView(i)
		dga, dgp, dgn := ga.RawRowView(i), gp.RawRowView(i), gn.RawRowView(i)
		for j := 0; j < cols; j++ {
			up := (a[j] - p[j]) / distPos[i]
			un := (a[j] - n[j]) / distNeg[i]
			dga[j] = scale * (up - un)
			dgp[j] = scale * -up
			dgn[j] = scale * un
		}
	}
	return loss, ga, gp, gn
}
