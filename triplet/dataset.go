package triplet

import (
	"encoding/gob"
	"fmt"
	"math/rand"
	"os"
	"path"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/jnb666/tripletnet/nnet"
)

// DataTypes lists the dataset splits in load order.
var DataTypes = []string{"train", "valid", "test"}

// DataHead describes a labelled image set.
type DataHead struct {
	Class  []string
	Dims   []int
	Labels []int32
	Mean   []float32
	Std    []float32
}

// Data holds normalised image tensors in channel, row, column order.
type Data struct {
	DataHead
	Images [][]float32
}

// NewData creates a new image set with dims [channels, height, width].
func NewData(classes []string, dims []int, labels []int32, images [][]float32) *Data {
	return &Data{
		DataHead: DataHead{Class: classes, Dims: dims, Labels: labels},
		Images:   images,
	}
}

// Len function returns number of images
func (d *Data) Len() int { return len(d.Labels) }

// Shape returns channels, height, width
func (d *Data) Shape() []int { return d.Dims }

// Load train, valid and test data from disk given the model name.
func LoadData(model string) (map[string]*Data, error) {
	d := make(map[string]*Data)
	for _, key := range DataTypes {
		name := model + "_" + key
		if !fileExists(name + ".dat") {
			continue
		}
		data, err := LoadDataFile(name)
		if err != nil {
			return nil, err
		}
		d[key] = data
	}
	if len(d) == 0 {
		return nil, fmt.Errorf("no dataset files found for %s under %s", model, nnet.DataDir)
	}
	return d, nil
}

// Decode data from file in gob format under DataDir
func LoadDataFile(name string) (*Data, error) {
	filePath := path.Join(nnet.DataDir, name+".dat")
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fmt.Printf("loading data from %s.dat:\t", name)
	d := new(Data)
	if err = gob.NewDecoder(f).Decode(d); err != nil {
		return nil, err
	}
	fmt.Println(append(append([]int{}, d.Dims...), d.Len()))
	return d, nil
}

// Encode in gob format and save to file under DataDir
func SaveDataFile(d *Data, name string) error {
	if err := os.MkdirAll(nnet.DataDir, 0755); err != nil {
		return err
	}
	filePath := path.Join(nnet.DataDir, name+".dat")
	f, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer f.Close()
	fmt.Println("saving data to", name+".dat")
	return gob.NewEncoder(f).Encode(d)
}

func fileExists(name string) bool {
	_, err := os.Stat(path.Join(nnet.DataDir, name))
	return err == nil
}

// Batch holds anchor, positive and negative image tensors with one sample
// per row.
type Batch struct {
	Index   int
	Anchor  *mat.Dense
	Pos     *mat.Dense
	Neg     *mat.Dense
	Samples int
}

// Dataset wraps an image set as a source of training triples: each anchor is
// paired with a random image of the same label and one of a different label.
// Batches are assembled in the background while the current one is consumed.
type Dataset struct {
	*Data
	Samples   int
	BatchSize int
	Batches   int
	byLabel   map[int32][]int
	indexes   []int
	rng       *rand.Rand
	loadRng   *rand.Rand
	batch     int
	next      Batch
	sync.WaitGroup
}

// Create a new Dataset and set the batch size.
func NewDataset(data *Data, batchSize int, rng *rand.Rand) (*Dataset, error) {
	d := &Dataset{Data: data, Samples: data.Len(), rng: rng}
	d.loadRng = rand.New(rand.NewSource(rng.Int63()))
	if batchSize == 0 || batchSize > d.Samples {
		d.BatchSize = d.Samples
	} else {
		d.BatchSize = batchSize
	}
	d.Batches = d.Samples / d.BatchSize
	if d.Samples%d.BatchSize != 0 {
		d.Batches++
	}
	d.byLabel = make(map[int32][]int)
	for i, label := range data.Labels {
		d.byLabel[label] = append(d.byLabel[label], i)
	}
	if len(d.byLabel) < 2 {
		return nil, fmt.Errorf("dataset needs at least 2 classes, have %d", len(d.byLabel))
	}
	d.indexes = make([]int, d.Samples)
	for i := range d.indexes {
		d.indexes[i] = i
	}
	return d, nil
}

// Shuffle the anchor order. Must not be called while a batch load is pending.
func (d *Dataset) Shuffle() {
	d.Wait()
	d.indexes = d.rng.Perm(d.Samples)
}

// Called at the start of each epoch.
func (d *Dataset) NextEpoch() {
	d.Wait()
	d.batch = 0
	d.loadBatch()
}

// Get next batch of data.
func (d *Dataset) NextBatch() Batch {
	d.Wait()
	b := d.next
	d.batch++
	if d.batch < d.Batches {
		d.loadBatch()
	}
	return b
}

// kick off load of next batch of data in background
func (d *Dataset) loadBatch() {
	d.Add(1)
	batch := d.batch
	go func() {
		defer d.Done()
		start := batch * d.BatchSize
		end := start + d.BatchSize
		if end > d.Samples {
			end = d.Samples
		}
		nfeat := len(d.Images[0])
		rows := end - start
		b := Batch{
			Index:   batch,
			Samples: rows,
			Anchor:  mat.NewDense(rows, nfeat, nil),
			Pos:     mat.NewDense(rows, nfeat, nil),
			Neg:     mat.NewDense(rows, nfeat, nil),
		}
		for i, ix := range d.indexes[start:end] {
			pos := d.samePos(ix)
			neg := d.otherNeg(ix)
			copyRow(b.Anchor.RawRowView(i), d.Images[ix])
			copyRow(b.Pos.RawRowView(i), d.Images[pos])
			copyRow(b.Neg.RawRowView(i), d.Images[neg])
		}
		d.next = b
	}()
}

// random index with the same label, excluding ix where possible
func (d *Dataset) samePos(ix int) int {
	same := d.byLabel[d.Labels[ix]]
	if len(same) == 1 {
		return ix
	}
	for {
		if p := same[d.loadRng.Intn(len(same))]; p != ix {
			return p
		}
	}
}

// random index with a different label
func (d *Dataset) otherNeg(ix int) int {
	for {
		if n := d.loadRng.Intn(d.Samples); d.Labels[n] != d.Labels[ix] {
			return n
		}
	}
}

func copyRow(dst []float64, src []float32) {
	for i, v := range src {
		dst[i] = float64(v)
	}
}
