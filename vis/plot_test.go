package vis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawROCCurve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roc.png")
	fpr := []float64{0, 0, 0.5, 1}
	tpr := []float64{0, 0.5, 1, 1}
	thresholds := []float64{1.8, 0.8, 0.4, 0.1}
	require.NoError(t, DrawROCCurve(fpr, tpr, thresholds, 0.4, 0.75, path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestDrawConfusionMatrix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cm.png")
	cm := [2][2]int{{8, 2}, {1, 9}}
	require.NoError(t, DrawConfusionMatrix(cm, 0.35, path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestThresholdIndex(t *testing.T) {
	thresholds := []float64{1.8, 0.8, 0.4}
	assert.Equal(t, 1, thresholdIndex(thresholds, 0.8))
	assert.Equal(t, -1, thresholdIndex(thresholds, 0.3))
}
