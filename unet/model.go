// Package unet implements a U-Net with configurable depth and widths.
// Ref: https://arxiv.org/abs/1505.04597
package unet

import (
	"fmt"

	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/droneseg/base"
	"github.com/sugarme/droneseg/config"
)

// UNet is a UNET model struct.
type UNet struct {
	Inc   *nn.SequentialT
	Downs []*Down
	Ups   []*Up
	Head  *nn.SequentialT
}

// New creates a UNet from encoder and decoder channel tuples, e.g.
// enc (3, 16, 32, 64) and dec (64, 32, 16), predicting classes logits per
// pixel. attentionOpt selects the decoder attention (none or "scse").
func New(p *nn.Path, enc, dec []int64, classes int64, attentionOpt ...string) (*UNet, error) {
	if err := config.CheckChannels(enc, dec); err != nil {
		return nil, err
	}
	attention := base.AttentionNone
	if len(attentionOpt) > 0 {
		attention = attentionOpt[0]
	}

	m := &UNet{
		Inc: base.DoubleConv(p.Sub("inc"), enc[0], enc[1]),
	}
	for i := 1; i < len(enc)-1; i++ {
		m.Downs = append(m.Downs, NewDown(p.Sub(fmt.Sprintf("down%d", i)), enc[i], enc[i+1]))
	}
	for i := 0; i < len(dec)-1; i++ {
		up, err := NewUp(p.Sub(fmt.Sprintf("up%d", i+1)), dec[i], dec[i+1], attention)
		if err != nil {
			return nil, err
		}
		m.Ups = append(m.Ups, up)
	}
	m.Head = base.NewSegmentationHead(p.Sub("head"), dec[len(dec)-1], classes, 1)

	return m, nil
}

// ForwardT implements ts.ModuleT for UNet. x is [B 3 H W], the result is
// [B classes H W] logits.
func (m *UNet) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	features := []*ts.Tensor{m.Inc.ForwardT(x, train)} // [B enc1 H W]
	for _, d := range m.Downs {
		features = append(features, d.ForwardT(features[len(features)-1], train))
	}

	z := features[len(features)-1]
	for i, up := range m.Ups {
		skip := features[len(features)-2-i]
		next := up.UpForward(z, skip, train)
		if i > 0 {
			z.MustDrop()
		}
		z = next
	}

	logits := m.Head.ForwardT(z, train)
	if len(m.Ups) > 0 {
		z.MustDrop()
	}
	for _, f := range features {
		f.MustDrop()
	}

	xSize := x.MustSize()
	if lSize := logits.MustSize(); lSize[2] != xSize[2] || lSize[3] != xSize[3] {
		out := upsampling(logits, xSize[2:])
		logits.MustDrop()
		return out
	}
	return logits
}
