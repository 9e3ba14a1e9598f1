package dataset_test

import (
	"image"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sugarme/droneseg/dataset"
	"github.com/sugarme/droneseg/errs"
	"github.com/sugarme/droneseg/imageio"
)

func TestPairs(t *testing.T) {
	root := t.TempDir()
	imgDir := filepath.Join(root, "original_images")
	maskDir := filepath.Join(root, "RGB_color_image_masks")
	blank := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	for _, d := range []string{imgDir, maskDir} {
		require.NoError(t, mkdir(d))
	}
	for _, stem := range []string{"001", "000"} {
		require.NoError(t, imageio.Write(filepath.Join(imgDir, stem+".jpg"), blank))
		require.NoError(t, imageio.Write(filepath.Join(maskDir, stem+".png"), blank))
	}

	images, masks, err := dataset.Pairs(imgDir, maskDir, imageio.DefaultTypes)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(imgDir, "000.jpg"), filepath.Join(imgDir, "001.jpg")}, images)
	assert.Equal(t, []string{filepath.Join(maskDir, "000.png"), filepath.Join(maskDir, "001.png")}, masks)

	require.NoError(t, imageio.Write(filepath.Join(imgDir, "002.jpg"), blank))
	_, _, err = dataset.Pairs(imgDir, maskDir, imageio.DefaultTypes)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestSplit(t *testing.T) {
	var images, masks []string
	for i := 0; i < 20; i++ {
		images = append(images, string(rune('a'+i))+".jpg")
		masks = append(masks, string(rune('a'+i))+".png")
	}

	trX, trY, teX, teY, err := dataset.Split(images, masks, 0.15, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Len(t, teX, 3)
	assert.Len(t, trX, 17)
	for i := range teX {
		assert.Equal(t, imageio.Stem(teX[i]), imageio.Stem(teY[i]))
	}
	for i := range trX {
		assert.Equal(t, imageio.Stem(trX[i]), imageio.Stem(trY[i]))
	}

	all := append(append([]string{}, trX...), teX...)
	sort.Strings(all)
	assert.Equal(t, images, all)

	_, _, _, _, err = dataset.Split(images, masks[:3], 0.15, rand.New(rand.NewSource(1)))
	assert.True(t, errors.Is(err, errs.ErrShapeMismatch))
	_, _, _, _, err = dataset.Split(images, masks, 1, rand.New(rand.NewSource(1)))
	assert.True(t, errors.Is(err, errs.ErrInvalidConfig))
}

func TestSubset(t *testing.T) {
	paths := []string{"a", "b", "c", "d"}
	assert.Equal(t, paths, dataset.Subset(paths, 1))
	assert.Equal(t, []string{"a", "b"}, dataset.Subset(paths, 0.5))
	assert.Empty(t, dataset.Subset(paths, 0))
}

func TestTestPathsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session", "test_paths.txt")
	paths := []string{"/data/a.jpg", "/data/b.jpg"}

	require.NoError(t, dataset.WriteTestPaths(path, paths))
	got, err := dataset.ReadTestPaths(path)
	require.NoError(t, err)
	assert.Equal(t, paths, got)

	_, err = dataset.ReadTestPaths(filepath.Join(t.TempDir(), "none.txt"))
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func mkdir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
