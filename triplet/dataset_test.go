package triplet

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jnb666/tripletnet/nnet"
)

// two class set where every image of class c has constant pixel value c
func constantBlobs(n int) *Data {
	nfeat := prodShape(testShape())
	labels := make([]int32, n)
	images := make([][]float32, n)
	for i := range labels {
		labels[i] = int32(i % 2)
		pix := make([]float32, nfeat)
		for j := range pix {
			pix[j] = float32(labels[i])
		}
		images[i] = pix
	}
	return NewData([]string{"0", "1"}, testShape(), labels, images)
}

func TestDatasetTriples(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	dset, err := NewDataset(constantBlobs(10), 4, rng)
	require.NoError(t, err)
	assert.Equal(t, 3, dset.Batches)
	dset.Shuffle()
	dset.NextEpoch()
	sizes := []int{}
	for i := 0; i < dset.Batches; i++ {
		b := dset.NextBatch()
		assert.Equal(t, i, b.Index)
		sizes = append(sizes, b.Samples)
		for row := 0; row < b.Samples; row++ {
			a := b.Anchor.RawRowView(row)[0]
			p := b.Pos.RawRowView(row)[0]
			n := b.Neg.RawRowView(row)[0]
			assert.Equal(t, a, p, "positive must share the anchor label")
			assert.NotEqual(t, a, n, "negative must differ from the anchor label")
		}
	}
	assert.Equal(t, []int{4, 4, 2}, sizes)
}

func TestDatasetFullBatch(t *testing.T) {
	dset, err := NewDataset(constantBlobs(6), 0, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, 1, dset.Batches)
	assert.Equal(t, 6, dset.BatchSize)
}

func TestDatasetSingleClass(t *testing.T) {
	nfeat := prodShape(testShape())
	data := NewData([]string{"0"}, testShape(), []int32{0, 0},
		[][]float32{make([]float32, nfeat), make([]float32, nfeat)})
	_, err := NewDataset(data, 2, rand.New(rand.NewSource(1)))
	assert.ErrorContains(t, err, "at least 2 classes")
}

func TestDataFileRoundTrip(t *testing.T) {
	saveDir := nnet.DataDir
	nnet.DataDir = t.TempDir()
	defer func() { nnet.DataDir = saveDir }()

	data := constantBlobs(8)
	require.NoError(t, SaveDataFile(data, "blobs_train"))
	got, err := LoadDataFile("blobs_train")
	require.NoError(t, err)
	assert.Equal(t, data.Class, got.Class)
	assert.Equal(t, data.Dims, got.Dims)
	assert.Equal(t, data.Labels, got.Labels)
	assert.Equal(t, data.Images, got.Images)

	sets, err := LoadData("blobs")
	require.NoError(t, err)
	assert.Len(t, sets, 1)
	assert.Equal(t, 8, sets["train"].Len())

	_, err = LoadData("missing")
	assert.ErrorContains(t, err, "no dataset files found")
}
