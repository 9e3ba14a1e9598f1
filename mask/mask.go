// Package mask converts segmentation masks into per-class indicator tensors
// and turns model outputs back into class maps.
package mask

import (
	"image"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/sugarme/droneseg/errs"
	"github.com/sugarme/droneseg/label"
	"github.com/sugarme/droneseg/raster"
)

// Threshold converts a single channel intensity mask into n indicator
// channels.
//
// For n == 1 the single output channel is 1 where the intensity is below 0.5.
// For n > 1, [0, 1] is split into n equal bands [i/n, (i+1)/n) and channel i
// is 1 where the intensity falls in band i. 1.0 belongs to the last band.
// Intensities outside [0, 1] fall in no band.
func Threshold(m raster.Tensor, n int) (raster.Tensor, error) {
	if m.C != 1 {
		return raster.Tensor{}, errors.Wrapf(errs.ErrShapeMismatch, "threshold expects 1 channel, got %d", m.C)
	}
	if n < 1 {
		return raster.Tensor{}, errors.Errorf("invalid class count %d", n)
	}

	out := raster.New(n, m.H, m.W)
	plane := m.H * m.W

	if n == 1 {
		for i, v := range m.Data {
			if v < 0.5 {
				out.Data[i] = 1
			}
		}
		return out, nil
	}

	bounds := Bands(n)
	for i, v := range m.Data {
		c := band(float64(v), bounds)
		if c >= 0 {
			out.Data[c*plane+i] = 1
		}
	}

	return out, nil
}

// Bands returns the n+1 band boundaries of [0, 1], spaced like
// numpy.linspace(0, 1, n+1).
func Bands(n int) []float64 {
	step := 1 / float64(n)
	bounds := make([]float64, n+1)
	for i := 0; i < n; i++ {
		bounds[i] = float64(i) * step
	}
	bounds[n] = 1
	return bounds
}

// band returns the band index of v, or -1.
func band(v float64, bounds []float64) int {
	n := len(bounds) - 1
	if v == bounds[n] {
		return n - 1
	}
	if v < bounds[0] || v > bounds[n] {
		return -1
	}
	for i := 0; i < n; i++ {
		if bounds[i] <= v && v < bounds[i+1] {
			return i
		}
	}
	return -1
}

// Labeled converts an RGB mask into n one-hot channels using the first n
// classes of table. Channel k is 1 exactly where the pixel colour equals the
// colour of class k. Pixels of other colours are 0 in every channel.
func Labeled(m *image.NRGBA, table *label.Table, n int) (raster.Tensor, error) {
	if err := table.Covers(n); err != nil {
		return raster.Tensor{}, err
	}

	// colour -> channel, first class wins for classes sharing a colour.
	lookup := make(map[label.RGB]int, n)
	for k, c := range table.Classes()[:n] {
		if _, ok := lookup[c.Color]; !ok {
			lookup[c.Color] = k
		}
	}

	h, w := m.Rect.Dy(), m.Rect.Dx()
	out := raster.New(n, h, w)
	plane := h * w
	for y := 0; y < h; y++ {
		row := m.Pix[y*m.Stride : y*m.Stride+4*w]
		for x := 0; x < w; x++ {
			rgb := label.RGB{row[4*x], row[4*x+1], row[4*x+2]}
			if k, ok := lookup[rgb]; ok {
				out.Data[k*plane+y*w+x] = 1
			}
		}
	}

	// classes sharing a colour each get their own channel set.
	for k, c := range table.Classes()[:n] {
		if first := lookup[c.Color]; first != k {
			copy(out.Channel(k), out.Channel(first))
		}
	}

	return out, nil
}

// Normalize standardises every channel of t in place with the mean and
// standard deviation of that channel. A constant channel is only centred.
func Normalize(t *raster.Tensor) {
	vals := make([]float64, t.H*t.W)
	for c := 0; c < t.C; c++ {
		ch := t.Channel(c)
		for i, v := range ch {
			vals[i] = float64(v)
		}
		mean, std := stat.MeanStdDev(vals, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		for i, v := range vals {
			ch[i] = float32((v - mean) / std)
		}
	}
}
