package mask_test

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sugarme/droneseg/mask"
	"github.com/sugarme/droneseg/raster"
)

func TestArgmax(t *testing.T) {
	probs := raster.New(3, 1, 3)
	copy(probs.Data, []float32{
		0.1, 0.7, 0.3, // channel 0
		0.8, 0.2, 0.3, // channel 1
		0.1, 0.1, 0.3, // channel 2
	})
	assert.Equal(t, []int{1, 0, 0}, mask.Argmax(probs))
}

func TestBinarize(t *testing.T) {
	probs := grayMask(0.1, 0.2, 0.3, 0.6)

	fixed, err := mask.Binarize(probs, mask.ThresholdFixed)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0, 1}, fixed.Data)

	mean, err := mask.Binarize(probs, mask.ThresholdMean)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 1, 1}, mean.Data)

	_, err = mask.Binarize(probs, "median")
	assert.Error(t, err)
}

// Colorize inverts Labeled for one-hot masks.
func TestColorizeRoundTrip(t *testing.T) {
	table := droneTable()
	src := uniformRGB(3, 2, color.NRGBA{130, 76, 0, 255})
	src.SetNRGBA(2, 1, color.NRGBA{0, 102, 0, 255})

	onehot, err := mask.Labeled(src, table, 3)
	require.NoError(t, err)

	img := mask.Colorize(mask.Argmax(onehot), 2, 3, table)
	assert.Equal(t, src.Pix, img.Pix)
}

func TestGray(t *testing.T) {
	img := mask.Gray(grayMask(-1, 0.5, 2), 0)
	assert.Equal(t, []uint8{0, 128, 255}, img.Pix)
}
