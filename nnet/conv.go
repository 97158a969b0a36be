package nnet

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// conv layer implementation: im2col per sample, so a batch forward pass is
// one matrix multiply per image.
type conv struct {
	Conv
	w, b   *Param
	cols   []*mat.Dense
	inDims [3]int
	oh, ow int
}

func (l *conv) OutShape() []int { return []int{l.Nfeats, l.oh, l.ow} }

func (l *conv) Init(inShape []int) Layer {
	if len(inShape) != 3 {
		panic("Conv: expect 3 dimensional input")
	}
	if l.Stride == 0 {
		l.Stride = 1
	}
	c, h, w := inShape[0], inShape[1], inShape[2]
	l.inDims = [3]int{c, h, w}
	l.oh = (h+2*l.Pad-l.Size)/l.Stride + 1
	l.ow = (w+2*l.Pad-l.Size)/l.Stride + 1
	if l.oh < 1 || l.ow < 1 {
		panic(fmt.Sprintf("Conv: output shape %dx%d invalid", l.oh, l.ow))
	}
	l.w = newParam(l.Nfeats, c*l.Size*l.Size)
	l.b = newParam(1, l.Nfeats)
	return l
}

func (l *conv) Params() []*Param { return []*Param{l.w, l.b} }

func (l *conv) InitParams(scale float64, normal bool, rng *rand.Rand) {
	initWeights(l.w.W, scale, normal, rng)
	l.b.W.Zero()
}

func (l *conv) Fprop(in *mat.Dense) *mat.Dense {
	rows, _ := in.Dims()
	npix := l.oh * l.ow
	dst := mat.NewDense(rows, l.Nfeats*npix, nil)
	l.cols = make([]*mat.Dense, rows)
	bias := l.b.W.RawRowView(0)
	for i := 0; i < rows; i++ {
		col := l.im2col(in.RawRowView(i))
		l.cols[i] = col
		out := mat.NewDense(l.Nfeats, npix, dst.RawRowView(i))
		out.Mul(l.w.W, col)
		for f := 0; f < l.Nfeats; f++ {
			row := out.RawRowView(f)
			for j := range row {
				row[j] += bias[f]
			}
		}
	}
	return dst
}

func (l *conv) Bprop(grad *mat.Dense) *mat.Dense {
	rows, _ := grad.Dims()
	npix := l.oh * l.ow
	nfeat := prod(l.inDims[:])
	dsrc := mat.NewDense(rows, nfeat, nil)
	db := l.b.Grad.RawRowView(0)
	var dw, dcol mat.Dense
	for i := 0; i < rows; i++ {
		g := mat.NewDense(l.Nfeats, npix, grad.RawRowView(i))
		dw.Reset()
		dw.Mul(g, l.cols[i].T())
		l.w.Grad.Add(l.w.Grad, &dw)
		for f := 0; f < l.Nfeats; f++ {
			for _, gv := range g.RawRowView(f) {
				db[f] += gv
			}
		}
		dcol.Reset()
		dcol.Mul(l.w.W.T(), g)
		l.col2im(&dcol, dsrc.RawRowView(i))
	}
	return dsrc
}

// unpack one image into a (C*K*K) x (OH*OW) patch matrix, zero padded
func (l *conv) im2col(src []float64) *mat.Dense {
	c, h, w := l.inDims[0], l.inDims[1], l.inDims[2]
	col := mat.NewDense(c*l.Size*l.Size, l.oh*l.ow, nil)
	for oy := 0; oy < l.oh; oy++ {
		for ox := 0; ox < l.ow; ox++ {
			j := oy*l.ow + ox
			for ch := 0; ch < c; ch++ {
				for ky := 0; ky < l.Size; ky++ {
					iy := oy*l.Stride - l.Pad + ky
					for kx := 0; kx < l.Size; kx++ {
						ix := ox*l.Stride - l.Pad + kx
						if iy >= 0 && iy < h && ix >= 0 && ix < w {
							col.Set(ch*l.Size*l.Size+ky*l.Size+kx, j, src[ch*h*w+iy*w+ix])
						}
					}
				}
			}
		}
	}
	return col
}

// accumulate patch gradients back into image layout
func (l *conv) col2im(col *mat.Dense, dst []float64) {
	c, h, w := l.inDims[0], l.inDims[1], l.inDims[2]
	for oy := 0; oy < l.oh; oy++ {
		for ox := 0; ox < l.ow; ox++ {
			j := oy*l.ow + ox
			for ch := 0; ch < c; ch++ {
				for ky := 0; ky < l.Size; ky++ {
					iy := oy*l.Stride - l.Pad + ky
					for kx := 0; kx < l.Size; kx++ {
						ix := ox*l.Stride - l.Pad + kx
						if iy >= 0 && iy < h && ix >= 0 && ix < w {
							dst[ch*h*w+iy*w+ix] += col.At(ch*l.Size*l.Size+ky*l.Size+kx, j)
						}
					}
				}
			}
		}
	}
}

// max pooling layer implementation
type maxPool struct {
	MaxPool
	inDims [3]int
	oh, ow int
	argmax [][]int
}

func (l *maxPool) OutShape() []int { return []int{l.inDims[0], l.oh, l.ow} }

func (l *maxPool) Init(inShape []int) Layer {
	if len(inShape) != 3 {
		panic("MaxPool: expect 3 dimensional input")
	}
	if l.Stride == 0 {
		l.Stride = l.Size
	}
	c, h, w := inShape[0], inShape[1], inShape[2]
	l.inDims = [3]int{c, h, w}
	l.oh = (h-l.Size)/l.Stride + 1
	l.ow = (w-l.Size)/l.Stride + 1
	return l
}

func (l *maxPool) Fprop(in *mat.Dense) *mat.Dense {
	rows, _ := in.Dims()
	c, h, w := l.inDims[0], l.inDims[1], l.inDims[2]
	dst := mat.NewDense(rows, c*l.oh*l.ow, nil)
	l.argmax = make([][]int, rows)
	for i := 0; i < rows; i++ {
		src := in.RawRowView(i)
		out := dst.RawRowView(i)
		arg := make([]int, c*l.oh*l.ow)
		for ch := 0; ch < c; ch++ {
			for oy := 0; oy < l.oh; oy++ {
				for ox := 0; ox < l.ow; ox++ {
					best, bestIx := math.Inf(-1), -1
					for ky := 0; ky < l.Size; ky++ {
						for kx := 0; kx < l.Size; kx++ {
							ix := ch*h*w + (oy*l.Stride+ky)*w + ox*l.Stride + kx
							if src[ix] > best {
								best, bestIx = src[ix], ix
							}
						}
					}
					j := ch*l.oh*l.ow + oy*l.ow + ox
					out[j] = best
					arg[j] = bestIx
				}
			}
		}
		l.argmax[i] = arg
	}
	return dst
}

func (l *maxPool) Bprop(grad *mat.Dense) *mat.Dense {
	rows, _ := grad.Dims()
	dsrc := mat.NewDense(rows, prod(l.inDims[:]), nil)
	for i := 0; i < rows; i++ {
		g := grad.RawRowView(i)
		d := dsrc.RawRowView(i)
		for j, ix := range l.argmax[i] {
			d[ix] += g[j]
		}
	}
	return dsrc
}
