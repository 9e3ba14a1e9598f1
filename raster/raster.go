// Package raster provides a channel-major float tensor used between image
// decoding and the gotch tensors fed to the model.
package raster

import (
	"image"

	"github.com/sugarme/droneseg/imageio"
)

// Tensor is a CxHxW float32 tensor stored channel by channel, row by row.
type Tensor struct {
	C, H, W int
	Data    []float32
}

// New creates a zero tensor of shape [c h w].
func New(c, h, w int) Tensor {
	return Tensor{C: c, H: h, W: w, Data: make([]float32, c*h*w)}
}

// Shape returns [C H W] in the int64 form gotch expects.
func (t Tensor) Shape() []int64 {
	return []int64{int64(t.C), int64(t.H), int64(t.W)}
}

// At returns the value at channel c, row y, column x.
func (t Tensor) At(c, y, x int) float32 {
	return t.Data[(c*t.H+y)*t.W+x]
}

// Set sets the value at channel c, row y, column x.
func (t Tensor) Set(c, y, x int, v float32) {
	t.Data[(c*t.H+y)*t.W+x] = v
}

// Channel returns channel c as a view into t.Data.
func (t Tensor) Channel(c int) []float32 {
	n := t.H * t.W
	return t.Data[c*n : (c+1)*n]
}

// SameSize reports whether t and o have equal height and width.
func (t Tensor) SameSize(o Tensor) bool {
	return t.H == o.H && t.W == o.W
}

// FromImage converts an image to a tensor with values in [0, 1].
// Grayscale images give one channel, anything else three (RGB).
func FromImage(img image.Image) Tensor {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		h, w := g.Rect.Dy(), g.Rect.Dx()
		t := New(1, h, w)
		for y := 0; y < h; y++ {
			row := g.Pix[y*g.Stride : y*g.Stride+w]
			for x, p := range row {
				t.Data[y*w+x] = float32(p) / 255
			}
		}
		return t
	}

	n := imageio.ToNRGBA(img)
	h, w := n.Rect.Dy(), n.Rect.Dx()
	t := New(3, h, w)
	plane := h * w
	for y := 0; y < h; y++ {
		row := n.Pix[y*n.Stride : y*n.Stride+4*w]
		for x := 0; x < w; x++ {
			i := y*w + x
			t.Data[i] = float32(row[4*x]) / 255
			t.Data[plane+i] = float32(row[4*x+1]) / 255
			t.Data[2*plane+i] = float32(row[4*x+2]) / 255
		}
	}
	return t
}

// ToImage converts a 1 or 3 channel tensor with values in [0, 1] back to an
// image. Values are clamped.
func ToImage(t Tensor) image.Image {
	r := image.Rect(0, 0, t.W, t.H)
	plane := t.H * t.W
	if t.C < 3 {
		g := image.NewGray(r)
		for i := 0; i < plane; i++ {
			g.Pix[i] = to8(t.Data[i])
		}
		return g
	}

	n := image.NewNRGBA(r)
	for i := 0; i < plane; i++ {
		n.Pix[4*i] = to8(t.Data[i])
		n.Pix[4*i+1] = to8(t.Data[plane+i])
		n.Pix[4*i+2] = to8(t.Data[2*plane+i])
		n.Pix[4*i+3] = 255
	}
	return n
}

func to8(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v*255 + 0.5)
	}
}
