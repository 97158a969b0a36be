// Package metrics computes binary classification metrics for the
// verification task: ROC curve, AUC, confusion matrix and the operating
// threshold search.
package metrics

import (
	"sort"

	"gonum.org/v1/gonum/integrate"
)

// ROCCurve computes the receiver operating characteristic for binary labels
// (0 or 1) and real valued scores where a larger score means more likely
// positive. Thresholds are strictly decreasing over the distinct score
// values, with a leading threshold above the maximum score so the curve
// starts at (0, 0). A prediction is positive when score >= threshold.
func ROCCurve(yTrue []int, yScore []float64) (fpr, tpr, thresholds []float64) {
	if len(yTrue) != len(yScore) {
		panic("metrics: label and score lengths differ")
	}
	n := len(yTrue)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return yScore[order[i]] > yScore[order[j]]
	})
	var pos, neg float64
	for _, y := range yTrue {
		if y == 1 {
			pos++
		} else {
			neg++
		}
	}
	fpr = []float64{0}
	tpr = []float64{0}
	thresholds = []float64{yScore[order[0]] + 1}
	var tp, fp float64
	for k, ix := range order {
		if yTrue[ix] == 1 {
			tp++
		} else {
			fp++
		}
		// emit one point per distinct score value
		if k+1 < n && yScore[order[k+1]] == yScore[ix] {
			continue
		}
		fpr = append(fpr, ratio(fp, neg))
		tpr = append(tpr, ratio(tp, pos))
		thresholds = append(thresholds, yScore[ix])
	}
	return fpr, tpr, thresholds
}

// AUC returns the area under the ROC curve by trapezoidal integration.
func AUC(fpr, tpr []float64) float64 {
	return integrate.Trapezoidal(fpr, tpr)
}

// FindBestThreshold returns the threshold maximising Youden's J statistic
// (TPR - FPR). Ties keep the earliest, i.e. highest, threshold.
func FindBestThreshold(fpr, tpr, thresholds []float64) float64 {
	best, bestJ := thresholds[0], tpr[0]-fpr[0]
	for i := 1; i < len(thresholds); i++ {
		if j := tpr[i] - fpr[i]; j > bestJ {
			best, bestJ = thresholds[i], j
		}
	}
	return best
}

// ConfusionMatrix tabulates binary predictions: rows are the true label,
// columns the predicted label.
func ConfusionMatrix(yTrue, yPred []int) [2][2]int {
	if len(yTrue) != len(yPred) {
		panic("metrics: label and prediction lengths differ")
	}
	var cm [2][2]int
	for i, t := range yTrue {
		cm[t][yPred[i]]++
	}
	return cm
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
