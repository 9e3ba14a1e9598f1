// Package dataset provides the segmentation dataset adapter and the helpers
// that build its file lists.
package dataset

import (
	"bufio"
	"io/ioutil"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/sugarme/droneseg/errs"
	"github.com/sugarme/droneseg/imageio"
)

// Pairs lists the images of imageDir and matches each with the mask of
// maskDir that has the same stem. Images without a mask are an error.
func Pairs(imageDir, maskDir string, exts []string) (images, masks []string, err error) {
	images, err = imageio.List(imageDir, exts)
	if err != nil {
		return nil, nil, err
	}
	masks, err = MaskFor(images, maskDir, exts)
	if err != nil {
		return nil, nil, err
	}

	return images, masks, nil
}

// Split shuffles the pairs with rng and moves a testRatio share of them to
// the test set.
func Split(images, masks []string, testRatio float64, rng *rand.Rand) (trainX, trainY, testX, testY []string, err error) {
	if len(images) != len(masks) {
		err = errors.Wrapf(errs.ErrShapeMismatch, "%d images but %d masks", len(images), len(masks))
		return
	}
	if testRatio < 0 || testRatio >= 1 {
		err = errors.Wrapf(errs.ErrInvalidConfig, "test split %v", testRatio)
		return
	}

	idx := rng.Perm(len(images))
	nTest := int(math.Ceil(float64(len(images)) * testRatio))
	for n, i := range idx {
		if n < nTest {
			testX = append(testX, images[i])
			testY = append(testY, masks[i])
			continue
		}
		trainX = append(trainX, images[i])
		trainY = append(trainY, masks[i])
	}

	return
}

// Subset keeps the leading fraction (0, 1] of paths.
func Subset(paths []string, fraction float64) []string {
	if fraction >= 1 {
		return paths
	}
	if fraction <= 0 {
		return nil
	}
	return paths[:int(float64(len(paths))*fraction)]
}

// WriteTestPaths saves the test image paths, one per line.
func WriteTestPaths(path string, images []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	content := strings.Join(images, "\n")
	if len(images) > 0 {
		content += "\n"
	}
	return ioutil.WriteFile(path, []byte(content), 0644)
}

// ReadTestPaths loads the paths saved by WriteTestPaths.
func ReadTestPaths(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errs.ErrNotFound, "test paths %q", path)
		}
		return nil, err
	}
	defer f.Close()

	var paths []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			paths = append(paths, line)
		}
	}
	return paths, sc.Err()
}

// MaskFor maps image paths to the mask with the same stem in maskDir.
func MaskFor(images []string, maskDir string, exts []string) ([]string, error) {
	maskFiles, err := imageio.List(maskDir, exts)
	if err != nil {
		return nil, err
	}
	byStem := make(map[string]string, len(maskFiles))
	for _, m := range maskFiles {
		byStem[imageio.Stem(m)] = m
	}

	masks := make([]string, len(images))
	for i, img := range images {
		m, ok := byStem[imageio.Stem(img)]
		if !ok {
			return nil, errors.Wrapf(errs.ErrNotFound, "mask for image %q", img)
		}
		masks[i] = m
	}
	return masks, nil
}
