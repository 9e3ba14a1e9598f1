// Package config holds the settings of a training or test session.
//
// Defaults reproduce the project constants. A YAML file can override any of
// them; it is read once at start.
package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/sugarme/droneseg/errs"
	"github.com/sugarme/droneseg/imageio"
	"github.com/sugarme/droneseg/mask"
)

// Process modes.
const (
	ProcessTrain = "train"
	ProcessTest  = "test"
)

// Devices.
const (
	DeviceCPU  = "cpu"
	DeviceCUDA = "cuda"
	DeviceMPS  = "mps"
)

// Config is the flat set of session settings.
type Config struct {
	// General
	WorkDir     string `yaml:"workDir"`
	Device      string `yaml:"device"`
	Process     string `yaml:"process"`
	SessionID   string `yaml:"sessionId"`
	Parallelism bool   `yaml:"parallelism"`
	Workers     int    `yaml:"workers"`
	GPUs        int    `yaml:"gpus"`
	Seed        int64  `yaml:"seed"`

	// Data augmentation
	AugData               bool    `yaml:"augData"`
	GenerateAugmentedData bool    `yaml:"generateAugmentedData"`
	AugmentedDataSplit    float64 `yaml:"augmentedDataSplit"`

	// Training
	TestSplit        float64  `yaml:"testSplit"`
	EncChannels      []int64  `yaml:"encChannels"`
	DecChannels      []int64  `yaml:"decChannels"`
	DecoderAttention string   `yaml:"decoderAttention"`
	Classes          int      `yaml:"classes"`
	LabeledClasses   bool     `yaml:"labeledClasses"`
	NormalizeMask    bool     `yaml:"normalizeMask"`
	Height           int      `yaml:"height"`
	Width            int      `yaml:"width"`
	BatchSize        int      `yaml:"batchSize"`
	Epochs           int      `yaml:"epochs"`
	LR               float64  `yaml:"lr"`
	ThresholdType    string   `yaml:"thresholdType"`
	Visualization    bool     `yaml:"visualization"`
	VisualizationDim int      `yaml:"visualizationDim"`
	EarlyStopping    bool     `yaml:"earlyStopping"`
	Patience         int      `yaml:"patience"`
	ImageTypes       []string `yaml:"imageTypes"`

	// Test
	TestSamples        int  `yaml:"testSamples"`
	AllConfusionMatrix bool `yaml:"allConfusionMatrix"`
}

// Default returns the project settings for the running OS.
func Default() *Config {
	c := &Config{
		Device:    DeviceCPU,
		Process:   ProcessTrain,
		SessionID: "train_15_12_23_part-3",
		Workers:   8,
		Seed:      42,

		AugData:            true,
		AugmentedDataSplit: 1,

		TestSplit:        0.15,
		EncChannels:      []int64{3, 16, 32, 64},
		DecChannels:      []int64{64, 32, 16},
		Classes:          24,
		LabeledClasses:   true,
		NormalizeMask:    true,
		Height:           128,
		Width:            128,
		BatchSize:        4,
		Epochs:           20,
		LR:               0.01,
		ThresholdType:    mask.ThresholdMean,
		VisualizationDim: 1,
		Patience:         5,
		ImageTypes:       append([]string(nil), imageio.DefaultTypes...),

		TestSamples: 10,
	}

	switch runtime.GOOS {
	case "darwin":
		c.WorkDir = "./SICOM_DeepLearning/Semantic_Segmentation_U-NET/"
	case "linux":
		c.WorkDir = "/home/conversb/Semantic_Segmentation_U-NET/"
		c.Device = DeviceCUDA
	default:
		c.Device = DeviceCUDA
	}
	c.setGPUs()

	return c
}

// setGPUs uses one GPU for testing and three for training.
func (c *Config) setGPUs() {
	if c.Process == ProcessTest {
		c.GPUs = 1
	} else {
		c.GPUs = 3
	}
}

// Load reads the YAML file at path over the defaults.
func Load(path string) (*Config, error) {
	c := Default()

	data, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errs.ErrNotFound, "config file %q", path)
		}
		return nil, err
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(errs.ErrParse, "config file %q: %v", path, err)
	}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return nil, errors.Wrapf(errs.ErrParse, "config file %q: %v", path, err)
	}
	if _, ok := raw["gpus"]; !ok {
		c.setGPUs()
	}

	return c, c.Validate()
}

// Validate checks the settings.
func (c *Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return errors.Wrapf(errs.ErrInvalidConfig, format, args...)
	}

	switch {
	case c.Process != ProcessTrain && c.Process != ProcessTest:
		return invalid("process %q, expected %q or %q", c.Process, ProcessTrain, ProcessTest)
	case c.Classes < 1:
		return invalid("class count %d", c.Classes)
	case c.TestSplit <= 0 || c.TestSplit >= 1:
		return invalid("test split %v, expected (0, 1)", c.TestSplit)
	case c.Height <= 0 || c.Width <= 0:
		return invalid("image size %dx%d", c.Width, c.Height)
	case c.BatchSize <= 0:
		return invalid("batch size %d", c.BatchSize)
	case c.Epochs < 0:
		return invalid("epochs %d", c.Epochs)
	case c.LR <= 0:
		return invalid("learning rate %v", c.LR)
	case c.AugmentedDataSplit <= 0 || c.AugmentedDataSplit > 1:
		return invalid("augmented data split %v, expected (0, 1]", c.AugmentedDataSplit)
	case c.ThresholdType != mask.ThresholdMean && c.ThresholdType != mask.ThresholdFixed:
		return invalid("threshold type %q", c.ThresholdType)
	case c.VisualizationDim < 1 || c.VisualizationDim > c.Classes:
		return invalid("visualization dim %d, expected [1, %d]", c.VisualizationDim, c.Classes)
	case c.Workers < 0:
		return invalid("workers %d", c.Workers)
	case c.DecoderAttention != "" && c.DecoderAttention != "scse":
		return invalid("decoder attention %q, expected none or scse", c.DecoderAttention)
	case len(c.ImageTypes) == 0:
		return invalid("no image types")
	}

	return CheckChannels(c.EncChannels, c.DecChannels)
}

// CheckChannels validates U-Net channel tuples: the encoder starts with the
// 3 image channels, the decoder starts at the deepest encoder width and each
// decoder width matches the encoder feature it is concatenated with.
func CheckChannels(enc, dec []int64) error {
	if len(enc) < 2 || enc[0] != 3 {
		return errors.Wrapf(errs.ErrInvalidConfig, "encoder channels %v must start with 3 and have 2+ entries", enc)
	}
	if len(dec) != len(enc)-1 {
		return errors.Wrapf(errs.ErrInvalidConfig, "decoder channels %v, expected %d entries", dec, len(enc)-1)
	}
	for i := range dec {
		if dec[i] != enc[len(enc)-1-i] {
			return errors.Wrapf(errs.ErrInvalidConfig, "decoder channels %v do not mirror encoder channels %v", dec, enc)
		}
	}
	return nil
}

// UseLabeledMode reports whether masks are one-hot encoded from label colours.
func (c *Config) UseLabeledMode() bool {
	return c.Classes > 1 && c.LabeledClasses
}

// PinMemory reports whether the device is a GPU.
func (c *Config) PinMemory() bool {
	return c.Device == DeviceCUDA || c.Device == DeviceMPS
}

func (c *Config) datasetDir() string {
	return filepath.Join(c.WorkDir, "dataset", "semantic_drone_dataset")
}

// ImageDatasetPath is the directory of original images.
func (c *Config) ImageDatasetPath() string {
	return filepath.Join(c.datasetDir(), "original_images")
}

// MaskDatasetPath is the directory of RGB colour masks.
func (c *Config) MaskDatasetPath() string {
	return filepath.Join(c.datasetDir(), "RGB_color_image_masks")
}

// LabelPath is the label colour CSV.
func (c *Config) LabelPath() string {
	return filepath.Join(c.datasetDir(), "class_dict_seg.csv")
}

// AugmentedDataPath is the root of the augmented dataset.
func (c *Config) AugmentedDataPath() string {
	return filepath.Join(c.datasetDir(), "augmented_data")
}

// AugmentedImagePath is the directory of augmented images.
func (c *Config) AugmentedImagePath() string {
	return filepath.Join(c.AugmentedDataPath(), "images")
}

// AugmentedMaskPath is the directory of augmented masks.
func (c *Config) AugmentedMaskPath() string {
	return filepath.Join(c.AugmentedDataPath(), "masks")
}

// BaseOutput is the output root.
func (c *Config) BaseOutput() string {
	return filepath.Join(c.WorkDir, "output")
}

func (c *Config) sessionDir() string {
	return filepath.Join(c.BaseOutput(), c.SessionID)
}

// TestPaths is the file listing the test images of the session.
func (c *Config) TestPaths() string {
	return filepath.Join(c.sessionDir(), "test_paths.txt")
}

// PlotTrainPath is the directory of training plots.
func (c *Config) PlotTrainPath() string {
	return filepath.Join(c.sessionDir(), "train_plots")
}

// PlotTestPath is the directory of test plots.
func (c *Config) PlotTestPath() string {
	return filepath.Join(c.sessionDir(), "test_plots")
}

// PlotMetricsPath is the directory of metric plots.
func (c *Config) PlotMetricsPath() string {
	return filepath.Join(c.sessionDir(), "metrics_plots")
}

// ModelPath is the serialized model.
func (c *Config) ModelPath() string {
	return filepath.Join(c.sessionDir(), "unet_tgs_salt.gt")
}
