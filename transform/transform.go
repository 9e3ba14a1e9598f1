// Package transform implements the sample transform pipeline as two explicit
// stages: a geometric stage mapping images to images, then a conversion
// stage mapping the result to a tensor.
package transform

import (
	"image"
	"math/rand"

	"github.com/disintegration/imaging"

	"github.com/sugarme/droneseg/raster"
)

// State is shared by the steps applied to one sample. Image and masks of a
// sample are transformed with states seeded identically so random steps
// agree across them.
type State struct {
	Rand *rand.Rand
	Mask bool // input is a label mask: resampling must not blend colours
}

// NewState returns a state seeded with seed.
func NewState(seed int64, isMask bool) *State {
	return &State{Rand: rand.New(rand.NewSource(seed)), Mask: isMask}
}

// Step is one geometric transform.
type Step interface {
	Apply(img image.Image, st *State) image.Image
}

// Converter is the final stage turning an image into a tensor.
type Converter interface {
	Convert(img image.Image) raster.Tensor
}

// ToTensor scales 8-bit pixels to [0, 1] floats.
type ToTensor struct{}

// Convert implements Converter.
func (ToTensor) Convert(img image.Image) raster.Tensor {
	return raster.FromImage(img)
}

// Pipeline is a geometric stage followed by a conversion stage.
type Pipeline struct {
	Geometric []Step
	Convert   Converter
}

// Default resizes to w x h and converts to a tensor.
func Default(h, w int) *Pipeline {
	return &Pipeline{
		Geometric: []Step{Resize{W: w, H: h}},
		Convert:   ToTensor{},
	}
}

// ApplyGeometric runs the geometric stage only.
func (p *Pipeline) ApplyGeometric(img image.Image, st *State) image.Image {
	for _, s := range p.Geometric {
		img = s.Apply(img, st)
	}
	return img
}

// ApplyConvert runs the conversion stage only.
func (p *Pipeline) ApplyConvert(img image.Image) raster.Tensor {
	if p.Convert == nil {
		return ToTensor{}.Convert(img)
	}
	return p.Convert.Convert(img)
}

// Apply runs both stages.
func (p *Pipeline) Apply(img image.Image, st *State) raster.Tensor {
	return p.ApplyConvert(p.ApplyGeometric(img, st))
}

// Resize scales the image to W x H. Masks use nearest neighbour.
type Resize struct {
	W, H int
}

// Apply implements Step.
func (r Resize) Apply(img image.Image, st *State) image.Image {
	b := img.Bounds()
	if b.Dx() == r.W && b.Dy() == r.H {
		return img
	}
	filter := imaging.Linear
	if st != nil && st.Mask {
		filter = imaging.NearestNeighbor
	}
	return imaging.Resize(img, r.W, r.H, filter)
}

// CenterCrop cuts a W x H region from the image centre.
type CenterCrop struct {
	W, H int
}

// Apply implements Step.
func (c CenterCrop) Apply(img image.Image, st *State) image.Image {
	return imaging.CropCenter(img, c.W, c.H)
}

// RandomCrop cuts a W x H region at a random position.
type RandomCrop struct {
	W, H int
}

// Apply implements Step.
func (c RandomCrop) Apply(img image.Image, st *State) image.Image {
	return imaging.Crop(img, CropRect(img.Bounds(), c.W, c.H, st.Rand))
}

// CropRect picks a random w x h rectangle inside b. The rectangle is
// clamped to b when b is smaller.
func CropRect(b image.Rectangle, w, h int, rng *rand.Rand) image.Rectangle {
	if w > b.Dx() {
		w = b.Dx()
	}
	if h > b.Dy() {
		h = b.Dy()
	}
	x := b.Min.X + rng.Intn(b.Dx()-w+1)
	y := b.Min.Y + rng.Intn(b.Dy()-h+1)
	return image.Rect(x, y, x+w, y+h)
}

// HFlip mirrors the image left to right.
type HFlip struct{}

// Apply implements Step.
func (HFlip) Apply(img image.Image, st *State) image.Image {
	return imaging.FlipH(img)
}

// VFlip mirrors the image top to bottom.
type VFlip struct{}

// Apply implements Step.
func (VFlip) Apply(img image.Image, st *State) image.Image {
	return imaging.FlipV(img)
}

// RandomHFlip mirrors left to right with probability P.
type RandomHFlip struct {
	P float64
}

// Apply implements Step.
func (f RandomHFlip) Apply(img image.Image, st *State) image.Image {
	if st.Rand.Float64() < f.P {
		return imaging.FlipH(img)
	}
	return img
}

// RandomVFlip mirrors top to bottom with probability P.
type RandomVFlip struct {
	P float64
}

// Apply implements Step.
func (f RandomVFlip) Apply(img image.Image, st *State) image.Image {
	if st.Rand.Float64() < f.P {
		return imaging.FlipV(img)
	}
	return img
}
