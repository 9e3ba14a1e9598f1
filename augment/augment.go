// Package augment expands an image/mask dataset offline with resized,
// cropped and flipped variants.
package augment

import (
	"fmt"
	"image"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sugarme/droneseg/errs"
	"github.com/sugarme/droneseg/imageio"
	"github.com/sugarme/droneseg/transform"
)

// Default target size of augmented samples.
const (
	DefaultHeight = 1000
	DefaultWidth  = 1500
)

// Options configures Run.
type Options struct {
	Height  int  // target height, DefaultHeight when 0
	Width   int  // target width, DefaultWidth when 0
	Augment bool // write crop and flip variants besides the resized pair
	Seed    int64
}

func (o Options) size() (h, w int) {
	h, w = o.Height, o.Width
	if h <= 0 {
		h = DefaultHeight
	}
	if w <= 0 {
		w = DefaultWidth
	}
	return h, w
}

// Variants returns the number of pairs written per input pair.
func (o Options) Variants() int {
	if o.Augment {
		return 4
	}
	return 1
}

// Run writes, for each image/mask pair, the resized pair and, when
// augmenting, a random crop of two thirds of the size, a horizontal flip and
// a vertical flip. Every variant is resized to the target size and saved as
// <dst>/images/<stem>_<k><ext> and <dst>/masks/<stem>_<k><ext>.
//
// The first failing pair aborts the run.
func Run(images, masks []string, dst string, opts Options) error {
	if len(images) != len(masks) {
		return errors.Wrapf(errs.ErrShapeMismatch, "%d images but %d masks", len(images), len(masks))
	}

	imgDir := filepath.Join(dst, "images")
	maskDir := filepath.Join(dst, "masks")
	for _, d := range []string{imgDir, maskDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return err
		}
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	start := time.Now()
	for i := range images {
		if err := augmentPair(images[i], masks[i], imgDir, maskDir, opts, rng); err != nil {
			return errors.WithMessagef(err, "augment pair #%d", i)
		}
		log.WithFields(log.Fields{
			"image":    filepath.Base(images[i]),
			"progress": i + 1,
			"total":    len(images),
		}).Debug("augmented")
	}

	log.WithFields(log.Fields{
		"pairs":    len(images),
		"written":  len(images) * opts.Variants(),
		"duration": time.Since(start).String(),
	}).Info("Data augmentation: completed.")

	return nil
}

func augmentPair(imgPath, maskPath, imgDir, maskDir string, opts Options, rng *rand.Rand) error {
	h, w := opts.size()

	img, err := imageio.ReadRGB(imgPath)
	if err != nil {
		return err
	}
	mask, err := imageio.ReadRGB(maskPath)
	if err != nil {
		return err
	}

	x := resizeImage(img, w, h)
	y := resizeMask(mask, w, h)

	xs := []image.Image{x}
	ys := []image.Image{y}
	if opts.Augment {
		rect := transform.CropRect(x.Bounds(), 2*w/3, 2*h/3, rng)
		xs = append(xs, imaging.Crop(x, rect), imaging.FlipH(x), imaging.FlipV(x))
		ys = append(ys, imaging.Crop(y, rect), imaging.FlipH(y), imaging.FlipV(y))
	}

	for k := range xs {
		if err := imageio.Write(variantPath(imgDir, imgPath, k), resizeImage(xs[k], w, h)); err != nil {
			return err
		}
		if err := imageio.Write(variantPath(maskDir, maskPath, k), resizeMask(ys[k], w, h)); err != nil {
			return err
		}
	}

	return nil
}

// variantPath names variant k of src inside dir.
func variantPath(dir, src string, k int) string {
	return filepath.Join(dir, fmt.Sprintf("%v_%d%v", imageio.Stem(src), k, filepath.Ext(src)))
}

func resizeImage(img image.Image, w, h int) image.Image {
	if b := img.Bounds(); b.Dx() == w && b.Dy() == h {
		return img
	}
	return resize.Resize(uint(w), uint(h), img, resize.Bilinear)
}

// resizeMask keeps mask colours exact.
func resizeMask(img image.Image, w, h int) image.Image {
	if b := img.Bounds(); b.Dx() == w && b.Dy() == h {
		return img
	}
	return resize.Resize(uint(w), uint(h), img, resize.NearestNeighbor)
}
