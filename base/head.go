// Package base provides building blocks shared by segmentation models.
package base

import "github.com/sugarme/gotch/nn"

// NewSegmentationHead maps cIn feature channels to cOut class logits with a
// ksize x ksize convolution that keeps the spatial size.
func NewSegmentationHead(p *nn.Path, cIn, cOut, ksize int64) *nn.SequentialT {
	seq := nn.SeqT()
	seq.Add(Conv2d(p.Sub("conv"), cIn, cOut, ksize, ksize/2, 1))

	return seq
}
