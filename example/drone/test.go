package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"

	"github.com/sugarme/droneseg/config"
	"github.com/sugarme/droneseg/dataset"
	"github.com/sugarme/droneseg/imageio"
	"github.com/sugarme/droneseg/label"
	"github.com/sugarme/droneseg/mask"
	"github.com/sugarme/droneseg/metric"
	"github.com/sugarme/droneseg/monitor"
	"github.com/sugarme/droneseg/raster"
)

func runTest(cfg *config.Config, device gotch.Device) error {
	if err := os.MkdirAll(cfg.PlotTestPath(), 0755); err != nil {
		return err
	}
	images, err := dataset.ReadTestPaths(cfg.TestPaths())
	if err != nil {
		return err
	}
	if len(images) > cfg.TestSamples {
		images = images[:cfg.TestSamples]
	}
	masks, err := dataset.MaskFor(images, maskDir(cfg), cfg.ImageTypes)
	if err != nil {
		return err
	}
	ds, err := dataset.New(images, masks, nil, datasetOptions(cfg))
	if err != nil {
		return err
	}

	vs := nn.NewVarStore(device)
	net, err := newModel(cfg, vs)
	if err != nil {
		return err
	}
	if err := vs.Load(cfg.ModelPath()); err != nil {
		return err
	}
	log.WithField("path", cfg.ModelPath()).Info("Loaded model")

	var (
		table *label.Table
		names []string
	)
	if cfg.UseLabeledMode() {
		table, err = label.Load(cfg.LabelPath())
		if err != nil {
			return err
		}
		names = table.Names()
	}

	classes := cfg.Classes
	if classes == 1 {
		classes = 2 // background, foreground
	}
	total := metric.NewConfusion(classes)

	for i := 0; i < ds.Len(); i++ {
		s, probs, err := predict(net, ds, i, device)
		if err != nil {
			return err
		}

		pred, target, err := classMaps(cfg, probs, s.Mask)
		if err != nil {
			return err
		}
		conf := metric.NewConfusion(classes)
		if err := conf.Add(pred, target); err != nil {
			return err
		}
		if err := total.Merge(conf); err != nil {
			return err
		}

		stem := imageio.Stem(ds.ImagePath(i))
		if cfg.AllConfusionMatrix {
			path := filepath.Join(cfg.PlotMetricsPath(), fmt.Sprintf("%v_confusion.csv", stem))
			if err := conf.WriteCSV(path, names); err != nil {
				return err
			}
		}
		if err := savePrediction(cfg, stem, s, probs, pred, table); err != nil {
			return err
		}

		log.WithFields(log.Fields{
			"image":    stem,
			"accuracy": fmt.Sprintf("%.4f", conf.PixelAccuracy()),
			"mIoU":     fmt.Sprintf("%.4f", conf.MeanIoU()),
		}).Info("Evaluated")
	}

	if err := total.WriteCSV(filepath.Join(cfg.PlotMetricsPath(), "confusion.csv"), names); err != nil {
		return err
	}
	if err := plotIoU(cfg, total, names); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"samples":  ds.Len(),
		"accuracy": fmt.Sprintf("%.4f", total.PixelAccuracy()),
		"mIoU":     fmt.Sprintf("%.4f", total.MeanIoU()),
		"mDice":    fmt.Sprintf("%.4f", total.MeanDice()),
	}).Info("Test done")

	return nil
}

// classMaps turns probabilities and the target mask into per-pixel class
// indices. A single class is binarized; target pixels with no class set are
// -1.
func classMaps(cfg *config.Config, probs, target raster.Tensor) (pred, truth []int, err error) {
	if probs.C == 1 {
		bin, err := mask.Binarize(probs, cfg.ThresholdType)
		if err != nil {
			return nil, nil, err
		}
		pred = make([]int, len(bin.Data))
		truth = make([]int, len(bin.Data))
		for i, v := range bin.Data {
			pred[i] = int(v)
			if target.Data[i] > 0.5 {
				truth[i] = 1
			}
		}
		return pred, truth, nil
	}

	pred = mask.Argmax(probs)
	truth = mask.Argmax(target)
	plane := target.H * target.W
	for i := range truth {
		if target.Data[truth[i]*plane+i] == 0 {
			truth[i] = -1
		}
	}
	return pred, truth, nil
}

func savePrediction(cfg *config.Config, stem string, s *dataset.Sample, probs raster.Tensor, pred []int, table *label.Table) error {
	colored := raster.ToImage(probs)
	if table != nil {
		colored = mask.Colorize(pred, probs.H, probs.W, table)
	}

	panel := sideBySide(raster.ToImage(s.Image), raster.ToImage(s.MaskRGB), colored)
	path := filepath.Join(cfg.PlotTestPath(), fmt.Sprintf("%v_test.png", stem))
	if err := imageio.Write(path, panel); err != nil {
		return err
	}
	log.WithField("path", path).Debug("Saved prediction")
	return nil
}

func plotIoU(cfg *config.Config, c *metric.Confusion, names []string) error {
	iou := c.IoU()
	labels := make([]string, len(iou))
	values := make([]float64, len(iou))
	for k, v := range iou {
		labels[k] = fmt.Sprintf("%d", k)
		if k < len(names) {
			labels[k] = names[k]
		}
		if !math.IsNaN(v) {
			values[k] = v
		}
	}
	return monitor.Bars(filepath.Join(cfg.PlotMetricsPath(), "iou.png"), "IoU per class", "IoU", labels, values)
}
