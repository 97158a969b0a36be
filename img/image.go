// Package img converts between normalised float tensors and images.
package img

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
)

// Per channel normalisation constants (ImageNet convention).
var (
	Mean   = []float32{0.485, 0.456, 0.406}
	StdDev = []float32{0.229, 0.224, 0.225}
)

// Normalize scales pixel values in place to zero mean and unit variance
// per channel. Pixels are stored in channel, row, column order.
func Normalize(pix []float32, channels int) {
	plane := len(pix) / channels
	for ch := 0; ch < channels; ch++ {
		m, s := chanStats(ch)
		for i := ch * plane; i < (ch+1)*plane; i++ {
			pix[i] = (pix[i] - m) / s
		}
	}
}

// Denormalize maps a normalised tensor back to display range in place.
func Denormalize(pix []float32, channels int) {
	plane := len(pix) / channels
	for ch := 0; ch < channels; ch++ {
		m, s := chanStats(ch)
		for i := ch * plane; i < (ch+1)*plane; i++ {
			pix[i] = pix[i]*s + m
		}
	}
}

// single channel images use the green channel constants
func chanStats(ch int) (m, s float32) {
	if ch >= len(Mean) {
		ch = 1
	}
	return Mean[ch], StdDev[ch]
}

// ToImage converts a float tensor with dims [channels, height, width] and
// display range values to an image. Values are clamped to 0-1.
func ToImage(pix []float32, dims []int) (*image.NRGBA, error) {
	if len(dims) != 3 {
		return nil, fmt.Errorf("img: expect 3 dimensions, have %v", dims)
	}
	channels, h, w := dims[0], dims[1], dims[2]
	if channels != 1 && channels != 3 {
		return nil, fmt.Errorf("img: expect 1 or 3 channels, have %d", channels)
	}
	if len(pix) != channels*h*w {
		return nil, fmt.Errorf("img: %d pixels does not match dims %v", len(pix), dims)
	}
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var r, g, b float32
			if channels == 1 {
				r = pix[y*w+x]
				g, b = r, r
			} else {
				r = pix[y*w+x]
				g = pix[h*w+y*w+x]
				b = pix[2*h*w+y*w+x]
			}
			m.SetNRGBA(x, y, color.NRGBA{R: clampu8(r), G: clampu8(g), B: clampu8(b), A: 0xff})
		}
	}
	return m, nil
}

// Save writes the image as a PNG file, creating the directory if needed.
func Save(path string, m image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, m)
}

func clampu8(x float32) uint8 {
	return uint8(clamp(x, 0, 1)*255 + 0.5)
}

func clamp(x, x0, x1 float32) float32 {
	if x < x0 {
		return x0
	}
	if x > x1 {
		return x1
	}
	return x
}
