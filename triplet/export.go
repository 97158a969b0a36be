package triplet

import (
	"fmt"
	"path/filepath"

	"github.com/jnb666/tripletnet/img"
)

// cap on exported misclassified examples per test epoch
const maxExports = 10

// exportMisclassified scans the accumulated test results in (batch, sample)
// order and writes image pairs for misclassified examples: positive pairs
// with distance at or above the cutoff and negative pairs below it. Returns
// the number of exports (each export writes the anchor plus its pair).
func (t *Trainer) exportMisclassified(batches []TestBatchResult, cutoff float64) (int, error) {
	dir := filepath.Join(t.Conf.BaseDir, "misclassified")
	saved := 0
	for _, b := range batches {
		for i := 0; i < b.Batch.Samples; i++ {
			if b.Result.DistPos[i] >= cutoff {
				if err := t.saveImagePair(dir, b.Batch, i, b.Result.DistPos[i], "pos"); err != nil {
					return saved, err
				}
				if saved++; saved >= maxExports {
					return saved, nil
				}
			}
			if b.Result.DistNeg[i] < cutoff {
				if err := t.saveImagePair(dir, b.Batch, i, b.Result.DistNeg[i], "neg"); err != nil {
					return saved, err
				}
				if saved++; saved >= maxExports {
					return saved, nil
				}
			}
		}
	}
	return saved, nil
}

func (t *Trainer) saveImagePair(dir string, b Batch, i int, dist float64, role string) error {
	prefix := filepath.Join(dir, fmt.Sprintf("%d_%d_%.2f", b.Index, i, dist))
	if role == "pos" {
		if err := t.saveImage(prefix+"_anchor_pos.png", b.Anchor.RawRowView(i)); err != nil {
			return err
		}
		return t.saveImage(prefix+"_positive.png", b.Pos.RawRowView(i))
	}
	if err := t.saveImage(prefix+"_anchor_neg.png", b.Anchor.RawRowView(i)); err != nil {
		return err
	}
	return t.saveImage(prefix+"_negative.png", b.Neg.RawRowView(i))
}

// saveImage maps a normalised tensor back to display range and writes a PNG.
func (t *Trainer) saveImage(path string, row []float64) error {
	pix := make([]float32, len(row))
	for i, v := range row {
		pix[i] = float32(v)
	}
	img.Denormalize(pix, t.inShape[0])
	m, err := img.ToImage(pix, t.inShape)
	if err != nil {
		return err
	}
	return img.Save(path, m)
}
