package triplet

import (
	"encoding/gob"
	"fmt"
	"os"
)

// SaveWeights writes all network parameters to a gob file.
func (t *Trainer) SaveWeights(path string) error {
	params := t.Net.Embed.Params()
	weights := make([][]float64, len(params))
	for i, p := range params {
		weights[i] = append([]float64{}, p.W.RawMatrix().Data...)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(weights)
}

// LoadWeights restores network parameters saved by SaveWeights. The network
// must have been built with the same config.
func (t *Trainer) LoadWeights(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var weights [][]float64
	if err := gob.NewDecoder(f).Decode(&weights); err != nil {
		return err
	}
	params := t.Net.Embed.Params()
	if len(weights) != len(params) {
		return fmt.Errorf("checkpoint has %d parameter blocks, network has %d", len(weights), len(params))
	}
	for i, p := range params {
		data := p.W.RawMatrix().Data
		if len(weights[i]) != len(data) {
			return fmt.Errorf("parameter %d size mismatch: %d != %d", i, len(weights[i]), len(data))
		}
		copy(data, weights[i])
	}
	return nil
}
