package monitor_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sugarme/droneseg/monitor"
)

func TestEarlyStopping(t *testing.T) {
	es := monitor.NewEarlyStopping(2)

	assert.False(t, es.Step(1.0))
	assert.True(t, es.Improved())
	assert.False(t, es.Step(0.8))
	assert.True(t, es.Improved())
	assert.False(t, es.Step(0.9))
	assert.False(t, es.Improved())
	assert.True(t, es.Step(0.85))
	assert.Equal(t, 0.8, es.Best())
}

func TestHistoryPlot(t *testing.T) {
	var h monitor.History
	h.Add(0.9, 1.0)
	h.Add(0.5, 0.7)
	h.Add(0.3, 0.6)
	assert.Equal(t, 3, h.Len())

	path := filepath.Join(t.TempDir(), "plots", "loss.png")
	require.NoError(t, h.Plot(path))
	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, fi.Size() > 0)
}

func TestBars(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classes.png")
	require.NoError(t, monitor.Bars(path, "Pixels per class", "pixels",
		[]string{"paved-area", "dirt"}, []float64{120, 30}))
	_, err := os.Stat(path)
	assert.NoError(t, err)

	assert.Error(t, monitor.Bars(path, "", "", []string{"a"}, nil))
}
