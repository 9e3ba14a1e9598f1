// Package monitor tracks training progress: loss history, early stopping
// and the plots saved alongside a session.
package monitor

import (
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// History records per-epoch losses.
type History struct {
	Train []float64
	Test  []float64
}

// Add appends the losses of one epoch.
func (h *History) Add(train, test float64) {
	h.Train = append(h.Train, train)
	h.Test = append(h.Test, test)
}

// Len returns the number of recorded epochs.
func (h *History) Len() int {
	return len(h.Train)
}

// Plot saves the loss curves to path. The format follows the extension
// (png, svg, pdf...).
func (h *History) Plot(path string) error {
	p, err := plot.New()
	if err != nil {
		return err
	}
	p.Title.Text = "Training Loss on Dataset"
	p.X.Label.Text = "Epoch #"
	p.Y.Label.Text = "Loss"

	for _, c := range []struct {
		name   string
		values []float64
		dashed bool
	}{
		{"train_loss", h.Train, false},
		{"test_loss", h.Test, true},
	} {
		line, err := plotter.NewLine(xys(c.values))
		if err != nil {
			return err
		}
		if c.dashed {
			line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		}
		p.Add(line)
		p.Legend.Add(c.name, line)
	}
	p.Legend.Top = true

	return save(p, path)
}

func xys(values []float64) plotter.XYs {
	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i].X = float64(i)
		pts[i].Y = v
	}
	return pts
}

// Bars saves a bar chart of values labelled by names.
func Bars(path, title, ylabel string, names []string, values []float64) error {
	if len(names) != len(values) {
		return errors.Errorf("%d names for %d values", len(names), len(values))
	}

	p, err := plot.New()
	if err != nil {
		return err
	}
	p.Title.Text = title
	p.Y.Label.Text = ylabel

	bars, err := plotter.NewBarChart(plotter.Values(values), vg.Points(12))
	if err != nil {
		return err
	}
	p.Add(bars)
	p.NominalX(names...)

	return save(p, path)
}

func save(p *plot.Plot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}

// EarlyStopping stops training once the monitored loss has not improved for
// Patience consecutive epochs.
type EarlyStopping struct {
	Patience int
	MinDelta float64

	best    float64
	waiting int
	started bool
}

// NewEarlyStopping creates an EarlyStopping with the given patience.
func NewEarlyStopping(patience int) *EarlyStopping {
	return &EarlyStopping{Patience: patience, best: math.Inf(1)}
}

// Step records loss and reports whether training should stop.
func (e *EarlyStopping) Step(loss float64) bool {
	if !e.started {
		e.started = true
		e.best = loss
		return false
	}
	if loss < e.best-e.MinDelta {
		e.best = loss
		e.waiting = 0
		return false
	}
	e.waiting++
	return e.waiting >= e.Patience
}

// Best returns the lowest loss seen.
func (e *EarlyStopping) Best() float64 {
	return e.best
}

// Improved reports whether the last Step set a new best loss.
func (e *EarlyStopping) Improved() bool {
	return e.started && e.waiting == 0
}
