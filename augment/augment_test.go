package augment_test

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sugarme/droneseg/augment"
	"github.com/sugarme/droneseg/errs"
	"github.com/sugarme/droneseg/imageio"
)

func writePairs(t *testing.T, dir string, stems ...string) (images, masks []string) {
	t.Helper()
	for _, stem := range stems {
		img := image.NewNRGBA(image.Rect(0, 0, 12, 9))
		m := image.NewNRGBA(image.Rect(0, 0, 12, 9))
		for y := 0; y < 9; y++ {
			for x := 0; x < 12; x++ {
				img.SetNRGBA(x, y, color.NRGBA{uint8(20 * x), uint8(25 * y), 7, 255})
				if y < 3 {
					m.SetNRGBA(x, y, color.NRGBA{28, 42, 168, 255})
				} else {
					m.SetNRGBA(x, y, color.NRGBA{0, 102, 0, 255})
				}
			}
		}
		ip := filepath.Join(dir, stem+".png")
		mp := filepath.Join(dir, stem+"_mask.png")
		require.NoError(t, imageio.Write(ip, img))
		require.NoError(t, imageio.Write(mp, m))
		images = append(images, ip)
		masks = append(masks, mp)
	}
	return images, masks
}

func TestRunNoAugment(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	images, masks := writePairs(t, src, "000", "001")

	require.NoError(t, augment.Run(images, masks, dst, augment.Options{Height: 6, Width: 8}))

	outImages, err := imageio.List(filepath.Join(dst, "images"), imageio.DefaultTypes)
	require.NoError(t, err)
	outMasks, err := imageio.List(filepath.Join(dst, "masks"), imageio.DefaultTypes)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dst, "images", "000_0.png"),
		filepath.Join(dst, "images", "001_0.png"),
	}, outImages)
	assert.Equal(t, []string{
		filepath.Join(dst, "masks", "000_mask_0.png"),
		filepath.Join(dst, "masks", "001_mask_0.png"),
	}, outMasks)

	for _, p := range append(outImages, outMasks...) {
		img, err := imageio.Read(p)
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds(), p)
	}
}

func TestRunNoAugmentMaskColours(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	images, masks := writePairs(t, src, "000")

	for _, size := range []image.Point{{X: 5, Y: 3}, {X: 17, Y: 13}} {
		opts := augment.Options{Height: size.Y, Width: size.X}
		require.NoError(t, augment.Run(images, masks, dst, opts))

		m, err := imageio.ReadRGB(filepath.Join(dst, "masks", "000_mask_0.png"))
		require.NoError(t, err)
		require.Equal(t, image.Rect(0, 0, size.X, size.Y), m.Bounds())

		seen := map[color.NRGBA]int{}
		for y := 0; y < size.Y; y++ {
			for x := 0; x < size.X; x++ {
				c := m.NRGBAAt(x, y)
				seen[c]++
				assert.Contains(t, []color.NRGBA{{28, 42, 168, 255}, {0, 102, 0, 255}}, c, "%v (%d,%d)", size, x, y)
			}
		}
		assert.Len(t, seen, 2, "%v", size)
	}
}

func TestRunNoAugmentSameSize(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	images, masks := writePairs(t, src, "000")

	require.NoError(t, augment.Run(images, masks, dst, augment.Options{Height: 9, Width: 12}))

	for in, out := range map[string]string{
		images[0]: filepath.Join(dst, "images", "000_0.png"),
		masks[0]:  filepath.Join(dst, "masks", "000_mask_0.png"),
	} {
		want, err := imageio.ReadRGB(in)
		require.NoError(t, err)
		got, err := imageio.ReadRGB(out)
		require.NoError(t, err)
		assert.Equal(t, want.Bounds(), got.Bounds(), out)
		assert.Equal(t, want.Pix, got.Pix, out)
	}
}

func TestRunAugment(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	images, masks := writePairs(t, src, "000")

	opts := augment.Options{Height: 6, Width: 8, Augment: true, Seed: 3}
	assert.Equal(t, 4, opts.Variants())
	require.NoError(t, augment.Run(images, masks, dst, opts))

	outImages, err := imageio.List(filepath.Join(dst, "images"), imageio.DefaultTypes)
	require.NoError(t, err)
	outMasks, err := imageio.List(filepath.Join(dst, "masks"), imageio.DefaultTypes)
	require.NoError(t, err)
	assert.Len(t, outImages, 4)
	assert.Len(t, outMasks, 4)

	colours := map[color.NRGBA]bool{
		{28, 42, 168, 255}: true,
		{0, 102, 0, 255}:   true,
	}
	for _, p := range outMasks {
		m, err := imageio.ReadRGB(p)
		require.NoError(t, err)
		require.Equal(t, image.Rect(0, 0, 8, 6), m.Bounds(), p)
		for y := 0; y < 6; y++ {
			for x := 0; x < 8; x++ {
				assert.True(t, colours[m.NRGBAAt(x, y)], "%v (%d,%d)", p, x, y)
			}
		}
	}

	// the vertical flip moves the water band to the bottom.
	vflip, err := imageio.ReadRGB(filepath.Join(dst, "masks", "000_mask_3.png"))
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{0, 102, 0, 255}, vflip.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{28, 42, 168, 255}, vflip.NRGBAAt(0, 5))
}

func TestRunErrors(t *testing.T) {
	src := t.TempDir()
	images, masks := writePairs(t, src, "000")

	err := augment.Run(images, nil, t.TempDir(), augment.Options{})
	assert.True(t, errors.Is(err, errs.ErrShapeMismatch))

	err = augment.Run([]string{filepath.Join(src, "missing.png")}, masks, t.TempDir(), augment.Options{Height: 6, Width: 8})
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}
