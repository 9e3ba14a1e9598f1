package main

import (
	"sort"

	log "github.com/sirupsen/logrus"
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/droneseg/config"
)

// runCheckModel builds the configured U-Net, logs its variables and checks
// the output shape on a random batch.
func runCheckModel(cfg *config.Config, device gotch.Device) error {
	vs := nn.NewVarStore(device)
	net, err := newModel(cfg, vs)
	if err != nil {
		return err
	}
	logVars(vs)

	batchSize := int64(cfg.BatchSize)
	image := ts.MustRand([]int64{batchSize, 3, int64(cfg.Height), int64(cfg.Width)}, gotch.Float, device)
	ts.NoGrad(func() {
		logit := net.ForwardT(image, false)
		log.WithFields(log.Fields{
			"input":  image.MustSize(),
			"output": logit.MustSize(),
		}).Info("Forward pass")
		logit.MustDrop()
	})
	image.MustDrop()

	return nil
}

// logVars logs variables sorted by name.
func logVars(vs *nn.VarStore) {
	vars := vs.Variables()
	names := make([]string, 0, len(vars))
	for n := range vars {
		names = append(names, n)
	}
	sort.Strings(names)

	var params int64
	for _, n := range names {
		t := vars[n]
		size := t.MustSize()
		count := int64(1)
		for _, d := range size {
			count *= d
		}
		params += count
		log.WithField("size", size).Debug(n)
	}
	log.WithFields(log.Fields{"variables": len(names), "parameters": params}).Info("Model")
}
