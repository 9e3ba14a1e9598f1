package main

import (
	"fmt"
	"image"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	log "github.com/sirupsen/logrus"
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/droneseg/config"
	"github.com/sugarme/droneseg/dataset"
	"github.com/sugarme/droneseg/dutil"
	"github.com/sugarme/droneseg/imageio"
	"github.com/sugarme/droneseg/mask"
	"github.com/sugarme/droneseg/metric"
	"github.com/sugarme/droneseg/monitor"
	"github.com/sugarme/droneseg/raster"
	"github.com/sugarme/droneseg/unet"
)

func newModel(cfg *config.Config, vs *nn.VarStore) (*unet.UNet, error) {
	return unet.New(vs.Root(), cfg.EncChannels, cfg.DecChannels, int64(cfg.Classes), cfg.DecoderAttention)
}

func runTrain(cfg *config.Config, device gotch.Device) error {
	images, masks, err := trainingPairs(cfg)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	trainX, trainY, testX, testY, err := dataset.Split(images, masks, cfg.TestSplit, rng)
	if err != nil {
		return err
	}
	if err := dataset.WriteTestPaths(cfg.TestPaths(), testX); err != nil {
		return err
	}
	log.WithFields(log.Fields{"train": len(trainX), "test": len(testX)}).Info("Split dataset")

	opts := datasetOptions(cfg)
	trainDS, err := dataset.New(trainX, trainY, nil, opts)
	if err != nil {
		return err
	}
	testDS, err := dataset.New(testX, testY, nil, opts)
	if err != nil {
		return err
	}
	if err := trainDS.LogClasses(); err != nil {
		return err
	}

	trainDL, err := newLoader(cfg, trainDS, cfg.BatchSize, true)
	if err != nil {
		return err
	}
	testDL, err := newLoader(cfg, testDS, cfg.BatchSize, false)
	if err != nil {
		return err
	}

	vs := nn.NewVarStore(device)
	net, err := newModel(cfg, vs)
	if err != nil {
		return err
	}
	opt, err := nn.DefaultAdamConfig().Build(vs, cfg.LR)
	if err != nil {
		return err
	}

	var (
		history monitor.History
		stopper = monitor.NewEarlyStopping(cfg.Patience)
	)
	start := time.Now()
	log.Info("Training the network...")
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		trainLoss, err := trainEpoch(net, opt, trainDL, device)
		if err != nil {
			return err
		}
		testLoss, err := evalLoss(net, testDL, device)
		if err != nil {
			return err
		}
		history.Add(trainLoss, testLoss)

		log.WithFields(log.Fields{
			"epoch": fmt.Sprintf("%d/%d", epoch+1, cfg.Epochs),
			"train": fmt.Sprintf("%.6f", trainLoss),
			"test":  fmt.Sprintf("%.4f", testLoss),
		}).Info("Epoch done")

		if cfg.EarlyStopping {
			stop := stopper.Step(testLoss)
			if stopper.Improved() {
				if err := vs.Save(cfg.ModelPath()); err != nil {
					return err
				}
				log.WithField("loss", stopper.Best()).Debug("Saved best model")
			}
			if stop {
				log.WithField("epoch", epoch+1).Info("Early stopping")
				break
			}
		}
	}
	log.WithField("elapsed", time.Since(start).Round(time.Second)).Info("Training done")

	if err := history.Plot(filepath.Join(cfg.PlotTrainPath(), "loss.png")); err != nil {
		return err
	}
	if !cfg.EarlyStopping {
		if err := vs.Save(cfg.ModelPath()); err != nil {
			return err
		}
	}
	log.WithField("path", cfg.ModelPath()).Info("Saved model")

	if cfg.Visualization {
		return visualize(cfg, net, testDS, device)
	}
	return nil
}

func trainEpoch(net ts.ModuleT, opt *nn.Optimizer, dl *dutil.DataLoader, device gotch.Device) (float64, error) {
	dl.Reset()

	var sum float64
	var n int
	for dl.HasNext() {
		b, err := dl.Next()
		if err != nil {
			return 0, err
		}
		input, target, err := toBatch(b.([]dataset.Sample), device)
		if err != nil {
			return 0, err
		}

		logit := net.ForwardT(input, true)
		loss := metric.BCEWithLogitsLoss(logit, target)
		opt.BackwardStep(loss)
		sum += loss.Float64Values()[0]
		n++

		input.MustDrop()
		target.MustDrop()
		logit.MustDrop()
		loss.MustDrop()
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}

func evalLoss(net ts.ModuleT, dl *dutil.DataLoader, device gotch.Device) (float64, error) {
	dl.Reset()

	var sum float64
	var n int
	for dl.HasNext() {
		b, err := dl.Next()
		if err != nil {
			return 0, err
		}
		input, target, err := toBatch(b.([]dataset.Sample), device)
		if err != nil {
			return 0, err
		}

		ts.NoGrad(func() {
			logit := net.ForwardT(input, false)
			loss := metric.BCEWithLogitsLoss(logit, target)
			sum += loss.Float64Values()[0]
			logit.MustDrop()
			loss.MustDrop()
		})
		n++

		input.MustDrop()
		target.MustDrop()
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}

// predict returns the sigmoid probabilities of sample idx.
func predict(net ts.ModuleT, ds *dataset.SegmentationDataset, idx int, device gotch.Device) (*dataset.Sample, raster.Tensor, error) {
	s, err := ds.Get(idx)
	if err != nil {
		return nil, raster.Tensor{}, err
	}
	input, target, err := toBatch([]dataset.Sample{*s}, device)
	if err != nil {
		return nil, raster.Tensor{}, err
	}
	target.MustDrop()

	var probs raster.Tensor
	ts.NoGrad(func() {
		logit := net.ForwardT(input, false)
		prob := logit.MustSigmoid(true)
		probs = toRasters(prob)[0]
		prob.MustDrop()
	})
	input.MustDrop()

	return s, probs, nil
}

// visualize saves, for the first test samples, the image, the mask channel
// VisualizationDim and its binarized prediction side by side.
func visualize(cfg *config.Config, net ts.ModuleT, ds *dataset.SegmentationDataset, device gotch.Device) error {
	n := cfg.TestSamples
	if n > ds.Len() {
		n = ds.Len()
	}
	channel := cfg.VisualizationDim - 1
	if err := os.MkdirAll(cfg.PlotTrainPath(), 0755); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		s, probs, err := predict(net, ds, i, device)
		if err != nil {
			return err
		}
		one := raster.Tensor{C: 1, H: probs.H, W: probs.W, Data: probs.Channel(channel)}
		pred, err := mask.Binarize(one, cfg.ThresholdType)
		if err != nil {
			return err
		}

		panel := sideBySide(
			raster.ToImage(s.Image),
			mask.Gray(s.Mask, channel),
			mask.Gray(pred, 0),
		)
		path := filepath.Join(cfg.PlotTrainPath(), fmt.Sprintf("%v_pred.png", imageio.Stem(ds.ImagePath(i))))
		if err := imageio.Write(path, panel); err != nil {
			return err
		}
		log.WithField("path", path).Debug("Saved prediction")
	}
	return nil
}

func sideBySide(imgs ...image.Image) *image.NRGBA {
	var w, h int
	for _, img := range imgs {
		w += img.Bounds().Dx()
		if dy := img.Bounds().Dy(); dy > h {
			h = dy
		}
	}

	dst := imaging.New(w, h, color.Black)
	x := 0
	for _, img := range imgs {
		dst = imaging.Paste(dst, img, image.Pt(x, 0))
		x += img.Bounds().Dx()
	}
	return dst
}
