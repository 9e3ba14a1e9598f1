// Package imageio decodes and encodes dataset images by file extension.
package imageio

import (
	"image"
	"image/jpeg"
	"image/png"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chai2010/tiff"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/sugarme/droneseg/errs"
)

// DefaultTypes lists the image extensions accepted when listing a dataset.
var DefaultTypes = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff"}

// JPEGQuality is the quality used when writing .jpg files.
var JPEGQuality = 95

// Read reads image from file.
func Read(filename string) (image.Image, error) {
	f, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errs.ErrNotFound, "image %q", filename)
		}
		return nil, err
	}
	defer f.Close()

	var img image.Image
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		img, err = png.Decode(f)
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(f)
	case ".tiff", ".tif":
		img, err = tiff.Decode(f)
	case ".bmp":
		img, err = bmp.Decode(f)
	default:
		return nil, errors.Wrapf(errs.ErrUnsupportedFormat, "%q", filename)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode %q", filename)
	}

	return img, nil
}

// ReadRGB reads an image and converts it to 8-bit RGB(A).
func ReadRGB(filename string) (*image.NRGBA, error) {
	img, err := Read(filename)
	if err != nil {
		return nil, err
	}
	return ToNRGBA(img), nil
}

// ReadGray reads an image and converts it to 8-bit grayscale.
func ReadGray(filename string) (*image.Gray, error) {
	img, err := Read(filename)
	if err != nil {
		return nil, err
	}
	return ToGray(img), nil
}

// ToNRGBA converts img to a zero-origin *image.NRGBA. An image that already
// is one is returned as is.
func ToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Copy(dst, image.Point{}, img, b, draw.Src, nil)
	return dst
}

// ToGray converts img to a zero-origin *image.Gray using the luminance
// weights of color.GrayModel.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Copy(dst, image.Point{}, img, b, draw.Src, nil)
	return dst
}

// Write encodes img to filename, choosing the codec from the extension.
// Missing parent directories are created.
func Write(filename string, img image.Image) error {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".tiff", ".tif", ".bmp":
	default:
		return errors.Wrapf(errs.ErrUnsupportedFormat, "%q", filename)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	f, err := os.Create(filename)
	if err != nil {
		return err
	}

	switch ext {
	case ".png":
		err = png.Encode(f, img)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: JPEGQuality})
	case ".tiff", ".tif":
		err = tiff.Encode(f, img, nil)
	case ".bmp":
		err = bmp.Encode(f, img)
	}
	if err != nil {
		f.Close()
		return errors.Wrapf(err, "encode %q", filename)
	}

	return f.Close()
}

// List returns the sorted paths of files in dir whose extension is one of
// exts (case insensitive).
func List(dir string, exts []string) ([]string, error) {
	files, err := ioutil.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errs.ErrNotFound, "directory %q", dir)
		}
		return nil, err
	}

	var paths []string
	for _, f := range files {
		if f.IsDir() || !hasExt(f.Name(), exts) {
			continue
		}
		paths = append(paths, filepath.Join(dir, f.Name()))
	}
	sort.Strings(paths)

	return paths, nil
}

// Stem returns the file name without directory and extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func hasExt(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}
