package main

import (
	"flag"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/sugarme/gotch"

	"github.com/sugarme/droneseg/config"
)

// flag variables
var (
	confPath string
	task     string
	cuda     bool
	verbose  bool
)

func init() {
	flag.StringVar(&confPath, "conf", "", "specify YAML config file. Defaults are used when empty.")
	flag.StringVar(&task, "task", "", "specify task to run: train, test, augment, classes, eda, model. Defaults to the config process.")
	flag.BoolVar(&cuda, "cuda", false, "specify whether using CUDA or not.")
	flag.BoolVar(&verbose, "verbose", false, "log debug messages.")
}

func main() {
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg := config.Default()
	if confPath != "" {
		var err error
		cfg, err = config.Load(confPath)
		if err != nil {
			log.Fatal(err)
		}
	}
	if task == "" {
		task = cfg.Process
	}

	device := gotch.CPU
	if cuda || cfg.PinMemory() {
		device = gotch.NewCuda().CudaIfAvailable()
	}

	log.WithFields(log.Fields{
		"task":    task,
		"session": cfg.SessionID,
		"device":  fmt.Sprintf("%v", device),
		"workDir": cfg.WorkDir,
	}).Info("Starting")

	var err error
	switch task {
	case config.ProcessTrain:
		err = runTrain(cfg, device)
	case config.ProcessTest:
		err = runTest(cfg, device)
	case "augment":
		err = runAugment(cfg)
	case "classes":
		err = runClasses(cfg)
	case "eda":
		err = runEDA(cfg)
	case "model":
		err = runCheckModel(cfg, device)
	default:
		err = fmt.Errorf("unknown task %q. Please specify valid 'task' flag to run", task)
	}
	if err != nil {
		log.Fatal(err)
	}
}
