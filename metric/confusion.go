// Package metric provides segmentation losses and scores.
package metric

import (
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"

	"github.com/sugarme/droneseg/errs"
)

// Confusion is a per-pixel confusion matrix. Rows are target classes,
// columns predicted classes.
type Confusion struct {
	n      int
	counts [][]int64
}

// NewConfusion creates an empty n-class matrix.
func NewConfusion(n int) *Confusion {
	counts := make([][]int64, n)
	for i := range counts {
		counts[i] = make([]int64, n)
	}
	return &Confusion{n: n, counts: counts}
}

// Classes returns the class count.
func (c *Confusion) Classes() int {
	return c.n
}

// Count returns the number of pixels of class target predicted as pred.
func (c *Confusion) Count(target, pred int) int64 {
	return c.counts[target][pred]
}

// Add accumulates pixel pairs. Pairs with a class out of range are ignored.
func (c *Confusion) Add(pred, target []int) error {
	if len(pred) != len(target) {
		return errors.Wrapf(errs.ErrShapeMismatch, "%d predictions for %d targets", len(pred), len(target))
	}
	for i, p := range pred {
		t := target[i]
		if p < 0 || p >= c.n || t < 0 || t >= c.n {
			continue
		}
		c.counts[t][p]++
	}
	return nil
}

// Merge adds the counts of o.
func (c *Confusion) Merge(o *Confusion) error {
	if o.n != c.n {
		return errors.Wrapf(errs.ErrShapeMismatch, "merging %d classes into %d", o.n, c.n)
	}
	for i := range c.counts {
		for j := range c.counts[i] {
			c.counts[i][j] += o.counts[i][j]
		}
	}
	return nil
}

// tp, fp, fn of class k.
func (c *Confusion) stats(k int) (tp, fp, fn float64) {
	tp = float64(c.counts[k][k])
	for i := 0; i < c.n; i++ {
		if i == k {
			continue
		}
		fp += float64(c.counts[i][k])
		fn += float64(c.counts[k][i])
	}
	return tp, fp, fn
}

// IoU returns the per-class intersection over union. Classes absent from
// both prediction and target are NaN.
func (c *Confusion) IoU() []float64 {
	out := make([]float64, c.n)
	for k := range out {
		tp, fp, fn := c.stats(k)
		if tp+fp+fn == 0 {
			out[k] = math.NaN()
			continue
		}
		out[k] = tp / (tp + fp + fn)
	}
	return out
}

// Dice returns the per-class Dice coefficient, NaN for absent classes.
func (c *Confusion) Dice() []float64 {
	out := make([]float64, c.n)
	for k := range out {
		tp, fp, fn := c.stats(k)
		if tp+fp+fn == 0 {
			out[k] = math.NaN()
			continue
		}
		out[k] = 2 * tp / (2*tp + fp + fn)
	}
	return out
}

// MeanIoU averages IoU over present classes.
func (c *Confusion) MeanIoU() float64 {
	return nanMean(c.IoU())
}

// MeanDice averages Dice over present classes.
func (c *Confusion) MeanDice() float64 {
	return nanMean(c.Dice())
}

// PixelAccuracy is the fraction of correctly classified pixels.
func (c *Confusion) PixelAccuracy() float64 {
	var correct, total int64
	for i := range c.counts {
		for j, v := range c.counts[i] {
			total += v
			if i == j {
				correct += v
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total)
}

func nanMean(values []float64) float64 {
	var sum float64
	var n int
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// DataFrame returns one row per class with its name, pixel support, IoU and
// Dice. names may be shorter than the class count.
func (c *Confusion) DataFrame(names []string) dataframe.DataFrame {
	iou := c.IoU()
	dice := c.Dice()

	classes := make([]string, c.n)
	support := make([]int, c.n)
	for k := 0; k < c.n; k++ {
		classes[k] = "class_" + strconv.Itoa(k)
		if k < len(names) {
			classes[k] = names[k]
		}
		for _, v := range c.counts[k] {
			support[k] += int(v)
		}
	}

	return dataframe.New(
		series.New(classes, series.String, "class"),
		series.New(support, series.Int, "support"),
		series.New(iou, series.Float, "iou"),
		series.New(dice, series.Float, "dice"),
	)
}

// WriteCSV saves the per-class table to path.
func (c *Confusion) WriteCSV(path string, names []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	df := c.DataFrame(names)
	return df.WriteCSV(f)
}
