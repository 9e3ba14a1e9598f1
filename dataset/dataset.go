package dataset

import (
	"image"
	"reflect"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sugarme/droneseg/errs"
	"github.com/sugarme/droneseg/imageio"
	"github.com/sugarme/droneseg/label"
	"github.com/sugarme/droneseg/mask"
	"github.com/sugarme/droneseg/raster"
	"github.com/sugarme/droneseg/transform"
)

// Options configures how masks are turned into training targets.
type Options struct {
	Classes   int    // number of output mask channels
	Labeled   bool   // one-hot masks from label colours when Classes > 1
	LabelPath string // label CSV, read on every labeled sample
	Height    int    // expected mask height after the geometric stage
	Width     int    // expected mask width after the geometric stage
	Normalize bool   // self-normalise the grayscale mask before thresholding
	Seed      int64  // base seed for random geometric steps
}

// LabeledMode reports whether masks are built from label colours.
func (o Options) LabeledMode() bool {
	return o.Classes > 1 && o.Labeled
}

// Sample is one dataset item.
type Sample struct {
	Image   raster.Tensor // 3 x H x W in [0, 1]
	Mask    raster.Tensor // Classes x H x W of 0/1
	MaskRGB raster.Tensor // 3 x H x W in [0, 1]
}

// SegmentationDataset pairs image files with their RGB mask files.
type SegmentationDataset struct {
	imagePaths []string
	maskPaths  []string
	pipeline   *transform.Pipeline
	opts       Options
}

// New creates a dataset. A nil pipeline resizes to the configured size.
func New(imagePaths, maskPaths []string, pipeline *transform.Pipeline, opts Options) (*SegmentationDataset, error) {
	if len(imagePaths) != len(maskPaths) {
		return nil, errors.Wrapf(errs.ErrShapeMismatch, "%d images but %d masks", len(imagePaths), len(maskPaths))
	}
	if opts.Classes < 1 {
		return nil, errors.Wrapf(errs.ErrInvalidConfig, "class count %d", opts.Classes)
	}
	if pipeline == nil {
		pipeline = transform.Default(opts.Height, opts.Width)
	}

	return &SegmentationDataset{
		imagePaths: imagePaths,
		maskPaths:  maskPaths,
		pipeline:   pipeline,
		opts:       opts,
	}, nil
}

// Len returns the number of samples.
func (ds *SegmentationDataset) Len() int {
	return len(ds.imagePaths)
}

// ImagePath returns the image file of sample idx.
func (ds *SegmentationDataset) ImagePath(idx int) string {
	return ds.imagePaths[idx]
}

// Get loads, transforms and converts sample idx.
func (ds *SegmentationDataset) Get(idx int) (*Sample, error) {
	if idx < 0 || idx >= ds.Len() {
		return nil, errors.Errorf("index %d out of range [0, %d)", idx, ds.Len())
	}

	img, err := imageio.ReadRGB(ds.imagePaths[idx])
	if err != nil {
		return nil, err
	}
	maskGray, err := imageio.ReadGray(ds.maskPaths[idx])
	if err != nil {
		return nil, err
	}
	maskRGB, err := imageio.ReadRGB(ds.maskPaths[idx])
	if err != nil {
		return nil, err
	}
	if img.Bounds().Size() != maskRGB.Bounds().Size() {
		return nil, errors.Wrapf(errs.ErrShapeMismatch, "image %v is %v, mask is %v",
			ds.imagePaths[idx], img.Bounds().Size(), maskRGB.Bounds().Size())
	}

	seed := ds.opts.Seed + int64(idx)
	imgOut := ds.pipeline.ApplyGeometric(img, transform.NewState(seed, false))
	grayOut := ds.pipeline.ApplyGeometric(maskGray, transform.NewState(seed, true))
	rgbOut := imageio.ToNRGBA(ds.pipeline.ApplyGeometric(maskRGB, transform.NewState(seed, true)))

	if err := ds.checkSize(rgbOut.Bounds()); err != nil {
		return nil, err
	}

	imgTs := ds.pipeline.ApplyConvert(imgOut)
	gray := ds.pipeline.ApplyConvert(imageio.ToGray(grayOut))
	if ds.opts.Normalize {
		mask.Normalize(&gray)
	}

	var target raster.Tensor
	if ds.opts.LabeledMode() {
		table, err := label.Load(ds.opts.LabelPath)
		if err != nil {
			return nil, err
		}
		target, err = mask.Labeled(rgbOut, table, ds.opts.Classes)
		if err != nil {
			return nil, err
		}
	} else {
		target, err = mask.Threshold(gray, ds.opts.Classes)
		if err != nil {
			return nil, err
		}
	}

	// the RGB mask is converted last so labeled matching sees 8-bit colours.
	rgb := ds.pipeline.ApplyConvert(rgbOut)

	return &Sample{Image: imgTs, Mask: target, MaskRGB: rgb}, nil
}

func (ds *SegmentationDataset) checkSize(b image.Rectangle) error {
	if ds.opts.Height <= 0 || ds.opts.Width <= 0 {
		return nil
	}
	if b.Dx() != ds.opts.Width || b.Dy() != ds.opts.Height {
		return errors.Wrapf(errs.ErrShapeMismatch, "transformed mask is %dx%d, expected %dx%d",
			b.Dx(), b.Dy(), ds.opts.Width, ds.opts.Height)
	}
	return nil
}

// Item implements dutil.Dataset.
func (ds *SegmentationDataset) Item(idx int) (interface{}, error) {
	s, err := ds.Get(idx)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to read sample #%d", idx)
	}
	return *s, nil
}

// DType implements dutil.Dataset.
func (ds *SegmentationDataset) DType() reflect.Type {
	return reflect.TypeOf(Sample{})
}

// LogClasses logs the label table used in labeled mode.
func (ds *SegmentationDataset) LogClasses() error {
	table, err := label.Load(ds.opts.LabelPath)
	if err != nil {
		return err
	}
	table.Log(ds.opts.Classes)
	if ds.opts.LabeledMode() {
		return table.Covers(ds.opts.Classes)
	}
	log.WithField("classes", ds.opts.Classes).Info("Masks are thresholded by intensity bands.")
	return nil
}
