// Package vis renders evaluation plots to PNG files.
package vis

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// DrawROCCurve renders the ROC curve with the operating point marked and the
// AUC in the legend, and saves it to savePath.
func DrawROCCurve(fpr, tpr, thresholds []float64, best, rocAUC float64, savePath string) error {
	p, err := newPlot("ROC curve", "false positive rate", "true positive rate")
	if err != nil {
		return err
	}
	pts := make(plotter.XYs, len(fpr))
	for i := range pts {
		pts[i].X, pts[i].Y = fpr[i], tpr[i]
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Width = 2
	line.Color = plotutil.Color(0)
	p.Add(line)
	p.Legend.Add(fmt.Sprintf("AUC = %.3f ", rocAUC), line)

	diag, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return err
	}
	diag.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	diag.Color = plotutil.Color(1)
	p.Add(diag)

	if i := thresholdIndex(thresholds, best); i >= 0 {
		point, err := plotter.NewScatter(plotter.XYs{{X: fpr[i], Y: tpr[i]}})
		if err != nil {
			return err
		}
		point.Radius = vg.Points(4)
		point.Shape = draw.CircleGlyph{}
		point.Color = plotutil.Color(2)
		p.Add(point)
		p.Legend.Add(fmt.Sprintf("threshold = %.3f ", best), point)
	}
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1
	return p.Save(6*vg.Inch, 6*vg.Inch, savePath)
}

// DrawConfusionMatrix renders the 2x2 confusion matrix as a heat map with
// cell counts, and saves it to savePath.
func DrawConfusionMatrix(cm [2][2]int, threshold float64, savePath string) error {
	p, err := newPlot(fmt.Sprintf("confusion matrix (threshold %.3f)", threshold),
		"predicted", "actual")
	if err != nil {
		return err
	}
	p.Add(plotter.NewHeatMap(cmGrid{cm: cm}, palette.Heat(12, 1)))

	var pts plotter.XYs
	var txt []string
	for row := 0; row < 2; row++ {
		for col := 0; col < 2; col++ {
			pts = append(pts, plotter.XY{X: float64(col), Y: float64(row)})
			txt = append(txt, fmt.Sprintf("%d", cm[row][col]))
		}
	}
	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: pts, Labels: txt})
	if err != nil {
		return err
	}
	p.Add(labels)
	p.NominalX("different", "same")
	p.NominalY("different", "same")
	return p.Save(6*vg.Inch, 5*vg.Inch, savePath)
}

// grid adapter so a confusion matrix can feed plotter.HeatMap
type cmGrid struct {
	cm [2][2]int
}

func (g cmGrid) Dims() (c, r int)   { return 2, 2 }
func (g cmGrid) Z(c, r int) float64 { return float64(g.cm[r][c]) }
func (g cmGrid) X(c int) float64    { return float64(c) }
func (g cmGrid) Y(r int) float64    { return float64(r) }

func newPlot(title, xlabel, ylabel string) (*plot.Plot, error) {
	p, err := plot.New()
	if err != nil {
		return nil, err
	}
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel
	fontSmall, err := vg.MakeFont("Helvetica", 10)
	if err != nil {
		return nil, err
	}
	p.X.Tick.Label.Font = fontSmall
	p.Y.Tick.Label.Font = fontSmall
	p.Add(plotter.NewGrid())
	return p, nil
}

func thresholdIndex(thresholds []float64, t float64) int {
	for i, v := range thresholds {
		if v == t {
			return i
		}
	}
	return -1
}
