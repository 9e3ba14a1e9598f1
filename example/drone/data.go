package main

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/sugarme/gotch"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/droneseg/augment"
	"github.com/sugarme/droneseg/config"
	"github.com/sugarme/droneseg/dataset"
	"github.com/sugarme/droneseg/dutil"
	"github.com/sugarme/droneseg/label"
	"github.com/sugarme/droneseg/raster"
)

func datasetOptions(cfg *config.Config) dataset.Options {
	return dataset.Options{
		Classes:   cfg.Classes,
		Labeled:   cfg.LabeledClasses,
		LabelPath: cfg.LabelPath(),
		Height:    cfg.Height,
		Width:     cfg.Width,
		Normalize: cfg.NormalizeMask,
		Seed:      cfg.Seed,
	}
}

// maskDir is the mask directory matching the images used for training.
func maskDir(cfg *config.Config) string {
	if cfg.AugData {
		return cfg.AugmentedMaskPath()
	}
	return cfg.MaskDatasetPath()
}

// trainingPairs lists the image/mask pairs to split into train and test.
func trainingPairs(cfg *config.Config) (images, masks []string, err error) {
	if !cfg.AugData {
		return dataset.Pairs(cfg.ImageDatasetPath(), cfg.MaskDatasetPath(), cfg.ImageTypes)
	}

	if cfg.GenerateAugmentedData {
		if err := runAugment(cfg); err != nil {
			return nil, nil, err
		}
	}
	images, masks, err = dataset.Pairs(cfg.AugmentedImagePath(), cfg.AugmentedMaskPath(), cfg.ImageTypes)
	if err != nil {
		return nil, nil, err
	}

	return dataset.Subset(images, cfg.AugmentedDataSplit), dataset.Subset(masks, cfg.AugmentedDataSplit), nil
}

func runAugment(cfg *config.Config) error {
	images, masks, err := dataset.Pairs(cfg.ImageDatasetPath(), cfg.MaskDatasetPath(), cfg.ImageTypes)
	if err != nil {
		return err
	}

	log.WithField("pairs", len(images)).Info("Generating augmented data")
	return augment.Run(images, masks, cfg.AugmentedDataPath(), augment.Options{
		Augment: true,
		Seed:    cfg.Seed,
	})
}

func runClasses(cfg *config.Config) error {
	table, err := label.Load(cfg.LabelPath())
	if err != nil {
		return err
	}
	table.Log(cfg.Classes)
	if cfg.UseLabeledMode() {
		return table.Covers(cfg.Classes)
	}
	return nil
}

func newLoader(cfg *config.Config, ds *dataset.SegmentationDataset, batchSize int, shuffle bool) (*dutil.DataLoader, error) {
	s, err := dutil.NewBatchSampler(ds.Len(), batchSize, false, shuffle)
	if err != nil {
		return nil, err
	}
	s.Seed(cfg.Seed)

	var opts []dutil.Option
	if cfg.Parallelism {
		opts = append(opts, dutil.WithWorkers(cfg.Workers))
	}
	return dutil.NewDataLoader(ds, s, opts...)
}

// toBatch stacks sample images and masks into [B C H W] tensors on device.
func toBatch(samples []dataset.Sample, device gotch.Device) (images, masks *ts.Tensor, err error) {
	if len(samples) == 0 {
		return nil, nil, errors.New("empty batch")
	}

	imgs := make([]ts.Tensor, len(samples))
	msks := make([]ts.Tensor, len(samples))
	for i, s := range samples {
		x, err := ts.NewTensorFromData(s.Image.Data, s.Image.Shape())
		if err != nil {
			return nil, nil, err
		}
		y, err := ts.NewTensorFromData(s.Mask.Data, s.Mask.Shape())
		if err != nil {
			return nil, nil, err
		}
		imgs[i] = *x
		msks[i] = *y
	}

	imgTs := ts.MustStack(imgs, 0)
	for _, x := range imgs {
		x.MustDrop()
	}
	maskTs := ts.MustStack(msks, 0)
	for _, x := range msks {
		x.MustDrop()
	}

	return imgTs.MustTo(device, true), maskTs.MustTo(device, true), nil
}

// toRasters splits [B C H W] probabilities into per-sample rasters.
func toRasters(probs *ts.Tensor) []raster.Tensor {
	size := probs.MustSize()
	b, c, h, w := int(size[0]), int(size[1]), int(size[2]), int(size[3])
	values := probs.Float64Values()

	out := make([]raster.Tensor, b)
	step := c * h * w
	for i := range out {
		out[i] = raster.New(c, h, w)
		for j, v := range values[i*step : (i+1)*step] {
			out[i].Data[j] = float32(v)
		}
	}
	return out
}
