package triplet

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"

	"github.com/jnb666/tripletnet/metrics"
	"github.com/jnb666/tripletnet/nnet"
	"github.com/jnb666/tripletnet/vis"
)

// Trainer owns the triplet network and defines the per batch training,
// validation and test steps plus the epoch level aggregation.
type Trainer struct {
	Conf    nnet.Config
	Net     *TripletNet
	Opt     nnet.Optimizer
	inShape []int
}

// NewTrainer builds the network from the backbone and model named in the
// config and the optimizer to train it.
func NewTrainer(conf nnet.Config, inShape []int, rng *rand.Rand) (*Trainer, error) {
	embed, err := NewEmbedNet(conf, inShape, rng)
	if err != nil {
		return nil, err
	}
	opt, err := nnet.NewOptimizer(conf)
	if err != nil {
		return nil, err
	}
	return &Trainer{Conf: conf, Net: NewTripletNet(embed), Opt: opt, inShape: inShape}, nil
}

// TrainStep performs one optimization step on a batch of triples and
// returns the mean triplet margin loss.
func (t *Trainer) TrainStep(b Batch) float64 {
	net := t.Net.Embed
	net.ZeroGrad()
	ea, ep, en := t.Net.Forward(b.Anchor, b.Pos, b.Neg)
	loss, ga, gp, gn := tripletLossGrads(ea, ep, en, t.Conf.Margin)
	// layer activations are cached per forward call, so each branch is
	// re-run immediately before its backward pass
	net.Forward(b.Anchor)
	net.Backward(ga)
	net.Forward(b.Pos)
	net.Backward(gp)
	net.Forward(b.Neg)
	net.Backward(gn)
	t.Opt.Step(net.Params())
	avg := stat.Mean(loss, nil)
	log.Debug().Int("batch", b.Index).Float64("train_loss", avg).Msg("train step")
	return avg
}

// BatchResult holds the unreduced losses and pair distances for one batch.
type BatchResult struct {
	Loss    []float64
	DistPos []float64
	DistNeg []float64
}

// ValidationStep computes per sample losses and anchor-positive /
// anchor-negative distances for one batch.
func (t *Trainer) ValidationStep(b Batch) BatchResult {
	ea, ep, en := t.Net.Forward(b.Anchor, b.Pos, b.Neg)
	return BatchResult{
		Loss:    TripletMarginLoss(ea, ep, en, t.Conf.Margin),
		DistPos: PairwiseDistance(ea, ep),
		DistNeg: PairwiseDistance(ea, en),
	}
}

// EvalEpoch accumulates batch results for one validation epoch. It is owned
// by the caller: created empty at epoch start, filled per batch and consumed
// exactly once by ValidationEpochEnd.
type EvalEpoch struct {
	batches []BatchResult
}

func NewEvalEpoch() *EvalEpoch {
	return &EvalEpoch{}
}

// Add appends one batch result in accumulation order.
func (e *EvalEpoch) Add(r BatchResult) {
	e.batches = append(e.batches, r)
}

// Merge appends all results from another accumulator.
func (e *EvalEpoch) Merge(other *EvalEpoch) {
	e.batches = append(e.batches, other.batches...)
}

func (e *EvalEpoch) Len() int { return len(e.batches) }

// take concatenates the accumulated results in order and clears the
// accumulator, so a repeated call cannot double count.
func (e *EvalEpoch) take() (loss, distPos, distNeg []float64, err error) {
	if len(e.batches) == 0 {
		return nil, nil, nil, fmt.Errorf("empty epoch accumulator")
	}
	for _, b := range e.batches {
		loss = append(loss, b.Loss...)
		distPos = append(distPos, b.DistPos...)
		distNeg = append(distNeg, b.DistNeg...)
	}
	e.batches = nil
	return loss, distPos, distNeg, nil
}

// Summary holds the epoch level statistics.
type Summary struct {
	Epoch     int
	Phase     string
	TrainLoss float64
	Loss      float64
	DistPos   float64
	DistNeg   float64
	AUC       float64
	Threshold float64
	Elapsed   time.Duration
}

// ValidationEpochEnd aggregates the epoch accumulator: logs mean loss and
// distances, computes the ROC curve, AUC and best decision threshold over
// positive and negative pair distances, and renders the ROC curve and
// confusion matrix for this epoch. The accumulator is cleared exactly once.
func (t *Trainer) ValidationEpochEnd(ep *EvalEpoch, epoch int) (Summary, error) {
	loss, distPos, distNeg, err := ep.take()
	if err != nil {
		return Summary{}, err
	}
	s, err := t.epochEnd(loss, distPos, distNeg,
		fmt.Sprintf("roc_curve_epoch_%d.png", epoch),
		fmt.Sprintf("confusion_matrix_epoch_%d.png", epoch))
	if err != nil {
		return Summary{}, err
	}
	s.Epoch = epoch
	s.Phase = "valid"
	log.Info().Float64("val_loss", s.Loss).Float64("dist_pos", s.DistPos).
		Float64("dist_neg", s.DistNeg).Float64("auc", s.AUC).Msg("validation epoch")
	return s, nil
}

// TestBatchResult retains the raw input tensors as well as the distances so
// that misclassified examples can be exported at epoch end.
type TestBatchResult struct {
	Batch  Batch
	Result BatchResult
}

// TestEpoch accumulates test batch results, owned by the caller like EvalEpoch.
type TestEpoch struct {
	batches []TestBatchResult
}

func NewTestEpoch() *TestEpoch {
	return &TestEpoch{}
}

func (e *TestEpoch) Add(r TestBatchResult) {
	e.batches = append(e.batches, r)
}

func (e *TestEpoch) Len() int { return len(e.batches) }

// TestStep is the validation step plus retention of the batch tensors.
func (t *Trainer) TestStep(b Batch) TestBatchResult {
	return TestBatchResult{Batch: b, Result: t.ValidationStep(b)}
}

// TestEpochEnd aggregates like validation but writes fixed plot filenames
// and exports up to 10 misclassified examples in (batch, sample) scan order.
func (t *Trainer) TestEpochEnd(ep *TestEpoch) (Summary, error) {
	if len(ep.batches) == 0 {
		return Summary{}, fmt.Errorf("empty epoch accumulator")
	}
	var loss, distPos, distNeg []float64
	for _, b := range ep.batches {
		loss = append(loss, b.Result.Loss...)
		distPos = append(distPos, b.Result.DistPos...)
		distNeg = append(distNeg, b.Result.DistNeg...)
	}
	s, err := t.epochEnd(loss, distPos, distNeg, "roc_curve_test.png", "confusion_matrix.png")
	if err != nil {
		return Summary{}, err
	}
	s.Phase = "test"
	saved, err := t.exportMisclassified(ep.batches, s.Threshold)
	if err != nil {
		return Summary{}, err
	}
	ep.batches = nil
	log.Info().Float64("test_loss", s.Loss).Float64("auc", s.AUC).
		Float64("threshold", s.Threshold).Int("misclassified", saved).Msg("test epoch")
	return s, nil
}

// epochEnd computes the shared epoch statistics and plots. Positive pairs
// are labelled 1 and negative pairs 0, with score = -distance so that a
// larger score means more similar. The returned threshold is the distance
// cutoff equivalent to the best score threshold.
func (t *Trainer) epochEnd(loss, distPos, distNeg []float64, rocFile, cmFile string) (Summary, error) {
	yTrue := make([]int, 0, len(distPos)+len(distNeg))
	yScore := make([]float64, 0, len(distPos)+len(distNeg))
	for _, d := range distPos {
		yTrue = append(yTrue, 1)
		yScore = append(yScore, -d)
	}
	for _, d := range distNeg {
		yTrue = append(yTrue, 0)
		yScore = append(yScore, -d)
	}
	fpr, tpr, thresholds := metrics.ROCCurve(yTrue, yScore)
	rocAUC := metrics.AUC(fpr, tpr)
	best := metrics.FindBestThreshold(fpr, tpr, thresholds)
	if err := os.MkdirAll(t.Conf.BaseDir, 0755); err != nil {
		return Summary{}, err
	}
	err := vis.DrawROCCurve(fpr, tpr, thresholds, best, rocAUC, filepath.Join(t.Conf.BaseDir, rocFile))
	if err != nil {
		return Summary{}, err
	}
	yPred := make([]int, len(yScore))
	for i, score := range yScore {
		if score >= best {
			yPred[i] = 1
		}
	}
	cm := metrics.ConfusionMatrix(yTrue, yPred)
	err = vis.DrawConfusionMatrix(cm, -best, filepath.Join(t.Conf.BaseDir, cmFile))
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		Loss:      stat.Mean(loss, nil),
		DistPos:   stat.Mean(distPos, nil),
		DistNeg:   stat.Mean(distNeg, nil),
		AUC:       rocAUC,
		Threshold: -best,
	}, nil
}

// Fit trains the network for MaxEpoch epochs, running one validation epoch
// after each training epoch. Each summary is passed to the sink if set.
func (t *Trainer) Fit(train, valid *Dataset, sink func(Summary)) error {
	start := time.Now()
	for epoch := 1; epoch <= t.Conf.MaxEpoch; epoch++ {
		if t.Conf.Shuffle {
			train.Shuffle()
		}
		train.NextEpoch()
		trainLoss := 0.0
		for batch := 0; batch < train.Batches; batch++ {
			trainLoss += t.TrainStep(train.NextBatch())
		}
		trainLoss /= float64(train.Batches)

		ep := NewEvalEpoch()
		valid.NextEpoch()
		for batch := 0; batch < valid.Batches; batch++ {
			ep.Add(t.ValidationStep(valid.NextBatch()))
		}
		s, err := t.ValidationEpochEnd(ep, epoch)
		if err != nil {
			return err
		}
		s.TrainLoss = trainLoss
		s.Elapsed = time.Since(start)
		log.Info().Int("epoch", epoch).Float64("train_loss", trainLoss).
			Float64("val_loss", s.Loss).Dur("elapsed", s.Elapsed).Msg("epoch done")
		if sink != nil {
			sink(s)
		}
	}
	return nil
}

// Test runs one test epoch over the dataset.
func (t *Trainer) Test(test *Dataset, sink func(Summary)) (Summary, error) {
	ep := NewTestEpoch()
	test.NextEpoch()
	for batch := 0; batch < test.Batches; batch++ {
		ep.Add(t.TestStep(test.NextBatch()))
	}
	s, err := t.TestEpochEnd(ep)
	if err != nil {
		return s, err
	}
	if sink != nil {
		sink(s)
	}
	return s, nil
}
