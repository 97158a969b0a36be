package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jnb666/tripletnet/metrics"
)

// perfectly separated distances: positives close, negatives far
func TestPerfectSeparation(t *testing.T) {
	yTrue := []int{1, 1, 0, 0}
	yScore := []float64{-0.1, -0.2, -0.9, -0.8}
	fpr, tpr, thresholds := metrics.ROCCurve(yTrue, yScore)
	require.Equal(t, len(fpr), len(tpr))
	require.Equal(t, len(fpr), len(thresholds))
	assert.InDelta(t, 1.0, metrics.AUC(fpr, tpr), 1e-12)

	best := metrics.FindBestThreshold(fpr, tpr, thresholds)
	yPred := make([]int, len(yScore))
	for i, s := range yScore {
		if s >= best {
			yPred[i] = 1
		}
	}
	assert.Equal(t, []int{1, 1, 0, 0}, yPred, "all four classified correctly")
	cm := metrics.ConfusionMatrix(yTrue, yPred)
	assert.Equal(t, [2][2]int{{2, 0}, {0, 2}}, cm)
}

func TestROCCurveShape(t *testing.T) {
	yTrue := []int{0, 0, 1, 1}
	yScore := []float64{0.1, 0.4, 0.35, 0.8}
	fpr, tpr, thresholds := metrics.ROCCurve(yTrue, yScore)
	// curve starts at (0,0) with a threshold above the max score
	assert.Equal(t, 0.0, fpr[0])
	assert.Equal(t, 0.0, tpr[0])
	assert.Greater(t, thresholds[0], 0.8)
	// and ends at (1,1)
	assert.Equal(t, 1.0, fpr[len(fpr)-1])
	assert.Equal(t, 1.0, tpr[len(tpr)-1])
	// thresholds are strictly decreasing
	for i := 1; i < len(thresholds); i++ {
		assert.Less(t, thresholds[i], thresholds[i-1])
	}
	assert.InDelta(t, 0.75, metrics.AUC(fpr, tpr), 1e-12)
}

func TestROCCurveTiedScores(t *testing.T) {
	yTrue := []int{1, 0, 1, 0}
	yScore := []float64{0.5, 0.5, 0.5, 0.5}
	fpr, tpr, thresholds := metrics.ROCCurve(yTrue, yScore)
	// one distinct score: a single point beyond the origin
	require.Len(t, thresholds, 2)
	assert.Equal(t, 1.0, fpr[1])
	assert.Equal(t, 1.0, tpr[1])
	assert.InDelta(t, 0.5, metrics.AUC(fpr, tpr), 1e-12)
}

func TestFindBestThresholdTies(t *testing.T) {
	// two points with equal J: keep the first, i.e. higher, threshold
	fpr := []float64{0, 0, 0.5, 1}
	tpr := []float64{0, 0.5, 1, 1}
	thresholds := []float64{1.9, 0.9, 0.5, 0.1}
	assert.Equal(t, 0.9, metrics.FindBestThreshold(fpr, tpr, thresholds))
}

func TestConfusionMatrix(t *testing.T) {
	cm := metrics.ConfusionMatrix([]int{0, 0, 1, 1, 1}, []int{0, 1, 1, 0, 1})
	assert.Equal(t, 1, cm[0][0], "true negatives")
	assert.Equal(t, 1, cm[0][1], "false positives")
	assert.Equal(t, 1, cm[1][0], "false negatives")
	assert.Equal(t, 2, cm[1][1], "true positives")
}

func TestMismatchedLengths(t *testing.T) {
	assert.Panics(t, func() { metrics.ROCCurve([]int{1}, []float64{0.1, 0.2}) })
	assert.Panics(t, func() { metrics.ConfusionMatrix([]int{1, 0}, []int{1}) })
}
