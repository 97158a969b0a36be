package main

import (
	"flag"
	"fmt"
	"math/rand"
	"strconv"

	"github.com/jnb666/tripletnet/img"
	"github.com/jnb666/tripletnet/nnet"
	"github.com/jnb666/tripletnet/triplet"
)

const (
	width    = 16
	height   = 16
	channels = 3
	noise    = 0.15
)

// Generates a synthetic verification dataset: each class is a random colour
// pattern and each image a noisy copy of its class template.
func main() {
	name := flag.String("name", "blobs", "dataset name")
	classes := flag.Int("classes", 10, "number of classes")
	train := flag.Int("train", 2000, "training samples")
	valid := flag.Int("valid", 400, "validation samples")
	test := flag.Int("test", 400, "test samples")
	seed := flag.Int64("seed", 42, "random number seed")
	flag.Parse()

	rng := nnet.SetSeed(*seed)
	templates := make([][]float32, *classes)
	names := make([]string, *classes)
	for i := range templates {
		templates[i] = randomTemplate(rng)
		names[i] = strconv.Itoa(i)
	}
	for _, split := range []struct {
		key string
		n   int
	}{{"train", *train}, {"valid", *valid}, {"test", *test}} {
		data := generate(names, templates, split.n, rng)
		err := triplet.SaveDataFile(data, *name+"_"+split.key)
		nnet.CheckErr(err)
	}

	conf := nnet.Config{
		DataSet:      *name,
		Backbone:     "simple_cnn",
		Model:        "linear_embed",
		EmbedSize:    32,
		Margin:       0.5,
		LearningRate: 0.001,
		Optimizer:    "adam",
		TrainBatch:   32,
		TestBatch:    64,
		MaxEpoch:     20,
		Shuffle:      true,
		RandSeed:     *seed,
		BaseDir:      "out",
	}
	err := conf.Save(*name + ".net")
	nnet.CheckErr(err)
	fmt.Println(conf)
}

func randomTemplate(rng *rand.Rand) []float32 {
	pix := make([]float32, channels*height*width)
	for i := range pix {
		pix[i] = rng.Float32()
	}
	return pix
}

func generate(names []string, templates [][]float32, n int, rng *rand.Rand) *triplet.Data {
	labels := make([]int32, n)
	images := make([][]float32, n)
	for i := 0; i < n; i++ {
		class := rng.Intn(len(templates))
		labels[i] = int32(class)
		pix := make([]float32, len(templates[class]))
		for j, v := range templates[class] {
			pix[j] = clamp(v + noise*float32(rng.NormFloat64()))
		}
		img.Normalize(pix, channels)
		images[i] = pix
	}
	return triplet.NewData(names, []int{channels, height, width}, labels, images)
}

func clamp(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
