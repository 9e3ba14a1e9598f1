package unet_test

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/droneseg/errs"
	"github.com/sugarme/droneseg/unet"
)

func TestNewUNet(t *testing.T) {
	tests := []struct {
		name      string
		enc, dec  []int64
		attention string
		size      int64
	}{
		{"default", []int64{3, 16, 32, 64}, []int64{64, 32, 16}, "", 32},
		{"odd size", []int64{3, 8, 16}, []int64{16, 8}, "", 30},
		{"scse", []int64{3, 8, 16}, []int64{16, 8}, "scse", 16},
		{"no decoder", []int64{3, 8}, []int64{8}, "", 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vs := nn.NewVarStore(gotch.CPU)
			net, err := unet.New(vs.Root(), tt.enc, tt.dec, 5, tt.attention)
			require.NoError(t, err)

			image := ts.MustRand([]int64{2, 3, tt.size, tt.size}, gotch.Float, gotch.CPU)
			logit := net.ForwardT(image, false)
			assert.Equal(t, []int64{2, 5, tt.size, tt.size}, logit.MustSize())

			logit.MustDrop()
			image.MustDrop()
		})
	}
}

func TestNewUNetErrors(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)

	_, err := unet.New(vs.Root(), []int64{3, 16, 32}, []int64{16, 32}, 2)
	assert.Equal(t, errs.ErrInvalidConfig, errors.Cause(err))

	_, err = unet.New(vs.Root(), []int64{3, 16}, []int64{16}, 2, "cbam")
	assert.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unet.gt")

	vs := nn.NewVarStore(gotch.CPU)
	_, err := unet.New(vs.Root(), []int64{3, 8, 16}, []int64{16, 8}, 3)
	require.NoError(t, err)
	require.NoError(t, vs.Save(path))

	loaded := nn.NewVarStore(gotch.CPU)
	_, err = unet.New(loaded.Root(), []int64{3, 8, 16}, []int64{16, 8}, 3)
	require.NoError(t, err)
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, vs.Len(), loaded.Len())
}
