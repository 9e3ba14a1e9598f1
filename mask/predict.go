package mask

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/sugarme/droneseg/label"
	"github.com/sugarme/droneseg/raster"
)

// Threshold types for single class predictions.
const (
	ThresholdMean  = "mean"  // threshold at the mean probability of the prediction
	ThresholdFixed = "fixed" // threshold at 0.5
)

// Argmax returns, for every pixel, the channel with the highest value.
// Ties resolve to the lowest channel.
func Argmax(probs raster.Tensor) []int {
	plane := probs.H * probs.W
	classes := make([]int, plane)
	for i := 0; i < plane; i++ {
		best := probs.Data[i]
		for c := 1; c < probs.C; c++ {
			if v := probs.Data[c*plane+i]; v > best {
				best = v
				classes[i] = c
			}
		}
	}
	return classes
}

// Binarize thresholds a single channel probability map. With ThresholdMean
// the threshold is the mean probability of the map, otherwise 0.5.
func Binarize(probs raster.Tensor, kind string) (raster.Tensor, error) {
	if probs.C != 1 {
		return raster.Tensor{}, errors.Errorf("binarize expects 1 channel, got %d", probs.C)
	}

	threshold := 0.5
	switch kind {
	case ThresholdMean:
		vals := make([]float64, len(probs.Data))
		for i, v := range probs.Data {
			vals[i] = float64(v)
		}
		threshold = floats.Sum(vals) / float64(len(vals))
	case ThresholdFixed:
	default:
		return raster.Tensor{}, errors.Errorf("unknown threshold type %q", kind)
	}

	out := raster.New(1, probs.H, probs.W)
	for i, v := range probs.Data {
		if float64(v) >= threshold {
			out.Data[i] = 1
		}
	}
	return out, nil
}

// Colorize paints a class map (as from Argmax) with the class colours of
// table. Classes outside the table are painted black.
func Colorize(classes []int, h, w int, table *label.Table) *image.NRGBA {
	palette := table.Classes()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i, k := range classes {
		c := color.NRGBA{A: 255}
		if k >= 0 && k < len(palette) {
			rgb := palette[k].Color
			c.R, c.G, c.B = rgb[0], rgb[1], rgb[2]
		}
		img.SetNRGBA(i%w, i/w, c)
	}
	return img
}

// Gray renders a single channel [0, 1] tensor as a grayscale image.
func Gray(t raster.Tensor, channel int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, t.W, t.H))
	for i, v := range t.Channel(channel) {
		switch {
		case v <= 0:
			img.Pix[i] = 0
		case v >= 1:
			img.Pix[i] = 255
		default:
			img.Pix[i] = uint8(v*255 + 0.5)
		}
	}
	return img
}
