package metric

import (
	"github.com/sugarme/gotch"
	ts "github.com/sugarme/gotch/tensor"
)

// BCEWithLogitsLoss is the mean binary cross entropy between logit and a
// target of the same shape, computed in double precision.
func BCEWithLogitsLoss(logit, target *ts.Tensor) *ts.Tensor {
	logitR := logit.MustReshape([]int64{-1}, false).MustTotype(gotch.Double, true)
	targetR := target.MustReshape([]int64{-1}, false).MustTotype(gotch.Double, true)

	// reduction: none = 0; mean = 1; sum = 2
	loss := logitR.MustBinaryCrossEntropyWithLogits(targetR, ts.NewTensor(), ts.NewTensor(), 1, true)
	targetR.MustDrop()

	return loss
}

// DiceCoeff measures the overlap of pred and target, both binarized at 0.5.
// Ref. http://campar.in.tum.de/pub/milletari2016Vnet/milletari2016Vnet.pdf
func DiceCoeff(pred, target *ts.Tensor) float64 {
	overlap, p, t := overlapSums(pred, target)
	return dice(overlap, p, t)
}

// DiceCoeffBatch is the mean DiceCoeff over the first (batch) dimension.
func DiceCoeffBatch(pred, target *ts.Tensor) float64 {
	size := pred.MustSize()
	if len(size) == 0 || size[0] == 0 {
		return 0
	}

	pv := pred.Float64Values()
	tv := target.Float64Values()
	n := int(size[0])
	step := len(pv) / n

	var sum float64
	for i := 0; i < n; i++ {
		var overlap, p, t float64
		for j := i * step; j < (i+1)*step; j++ {
			pb, tb := pv[j] > 0.5, tv[j] > 0.5
			if pb {
				p++
			}
			if tb {
				t++
			}
			if pb && tb {
				overlap++
			}
		}
		sum += dice(overlap, p, t)
	}

	return sum / float64(n)
}

// IoU is the intersection over union of pred and target, both binarized at
// 0.5.
func IoU(pred, target *ts.Tensor) float64 {
	overlap, p, t := overlapSums(pred, target)
	union := p + t - overlap
	if union == 0 {
		return 1
	}
	return overlap / union
}

// JaccardIndex is the IoU averaged over the classes present in pred or
// target. Both hold class indices and must have the same number of
// elements.
func JaccardIndex(pred, target *ts.Tensor, classes int) (float64, error) {
	c := NewConfusion(classes)
	if err := c.Add(toClasses(pred.Float64Values()), toClasses(target.Float64Values())); err != nil {
		return 0, err
	}
	return c.MeanIoU(), nil
}

func toClasses(values []float64) []int {
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = int(v)
	}
	return out
}

func overlapSums(pred, target *ts.Tensor) (overlap, p, t float64) {
	pflat := pred.MustView([]int64{-1}, false)
	tflat := target.MustView([]int64{-1}, false)
	pb := pflat.MustGt(ts.FloatScalar(0.5), true)
	tb := tflat.MustGt(ts.FloatScalar(0.5), true)
	ptMul := pb.MustMul(tb, false)

	overlap = ptMul.MustSum(gotch.Double, true).Float64Values()[0]
	p = pb.MustSum(gotch.Double, true).Float64Values()[0]
	t = tb.MustSum(gotch.Double, true).Float64Values()[0]

	return overlap, p, t
}

func dice(overlap, p, t float64) float64 {
	if p+t == 0 {
		return 1
	}
	return 2 * overlap / (p + t)
}
