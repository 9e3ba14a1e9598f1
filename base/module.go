package base

import (
	"github.com/pkg/errors"
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"
)

// Decoder attention types, as set by the `decoder_attention` config key.
const (
	AttentionNone = ""
	AttentionSCSE = "scse"
)

// Identity passes decoder features through when no attention is configured.
type Identity struct{}

// ForwardT returns a copy of x that stays on the autograd graph.
func (i *Identity) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	return x.MustMul1(ts.FloatScalar(1), false)
}

// SCSE reweights decoder features along channels and along pixels, then sums
// both gated maps.
// Ref. https://arxiv.org/abs/1808.08127
type SCSE struct {
	channelGate *nn.SequentialT // [B C H W] => [B C 1 1]
	pixelGate   *nn.SequentialT // [B C H W] => [B 1 H W]
}

// ForwardT implements ts.ModuleT. Output has the shape of x.
func (m *SCSE) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	byChannel := gate(x, m.channelGate, train)
	byPixel := gate(x, m.pixelGate, train)
	out := byChannel.MustAdd(byPixel, true)
	byPixel.MustDrop()

	return out
}

// gate multiplies x by the broadcast weights computed from x.
func gate(x *ts.Tensor, weights *nn.SequentialT, train bool) *ts.Tensor {
	w := weights.ForwardT(x, train)
	out := x.MustMul(w, false)
	w.MustDrop()
	return out
}

// NewSCSE builds the attention block for a decoder stage with cIn channels.
// The channel gate squeezes cIn by reduction (default 16), keeping at least
// one channel.
func NewSCSE(p *nn.Path, cIn int64, reductionOpt ...int64) *SCSE {
	reduction := int64(16)
	if len(reductionOpt) > 0 {
		reduction = reductionOpt[0]
	}
	squeezed := cIn / reduction
	if squeezed < 1 {
		squeezed = 1
	}

	channelGate := nn.SeqT()
	channelGate.AddFn(nn.NewFunc(func(xs *ts.Tensor) *ts.Tensor {
		return xs.MustAdaptiveAvgPool2d([]int64{1, 1}, false)
	}))
	channelGate.Add(Conv2d(p.Sub("sqzconv1"), cIn, squeezed, 1, 0, 1))
	channelGate.AddFn(relu())
	channelGate.Add(Conv2d(p.Sub("sqzconv2"), squeezed, cIn, 1, 0, 1))
	channelGate.AddFn(sigmoid())

	pixelGate := nn.SeqT()
	pixelGate.Add(Conv2d(p.Sub("spatconv"), cIn, 1, 1, 0, 1))
	pixelGate.AddFn(sigmoid())

	return &SCSE{channelGate: channelGate, pixelGate: pixelGate}
}

// NewAttention returns the decoder attention block named by typ.
func NewAttention(p *nn.Path, typ string, cIn int64) (ts.ModuleT, error) {
	switch typ {
	case AttentionNone:
		return &Identity{}, nil
	case AttentionSCSE:
		return NewSCSE(p, cIn), nil
	default:
		return nil, errors.Errorf("unsupported attention type %q", typ)
	}
}

// Conv2d is a square convolution with bias, used for the decoder 1x1
// reductions and the segmentation head.
func Conv2d(p *nn.Path, cIn, cOut, ksize, padding, stride int64) *nn.Conv2D {
	return conv(p, cIn, cOut, ksize, padding, stride, true)
}

func conv(p *nn.Path, cIn, cOut, ksize, padding, stride int64, bias bool) *nn.Conv2D {
	cfg := nn.DefaultConv2DConfig()
	cfg.Bias = bias
	cfg.Stride = []int64{stride, stride}
	cfg.Padding = []int64{padding, padding}

	return nn.NewConv2D(p, cIn, cOut, ksize, cfg)
}

// convBnRelu is a 3x3 same-size convolution followed by batch norm and ReLU.
// The batch norm carries the bias.
func convBnRelu(p *nn.Path, cIn, cOut int64) *nn.SequentialT {
	bn := nn.DefaultBatchNormConfig()
	bn.Eps = 0.001

	seq := nn.SeqT()
	seq.Add(conv(p.Sub("conv"), cIn, cOut, 3, 1, 1, false))
	seq.Add(nn.BatchNorm2D(p.Sub("bn"), cOut, bn))
	seq.AddFn(relu())

	return seq
}

// DoubleConv is the U-Net stage block: [B cIn H W] => [B cOut H W].
// The middle width defaults to cOut.
func DoubleConv(p *nn.Path, cIn, cOut int64, cMidOpt ...int64) *nn.SequentialT {
	cMid := cOut
	if len(cMidOpt) > 0 {
		cMid = cMidOpt[0]
	}

	seq := nn.SeqT()
	seq.Add(convBnRelu(p.Sub("conv1"), cIn, cMid))
	seq.Add(convBnRelu(p.Sub("conv2"), cMid, cOut))

	return seq
}

func relu() nn.Func {
	return nn.NewFunc(func(xs *ts.Tensor) *ts.Tensor {
		return xs.MustRelu(false)
	})
}

func sigmoid() nn.Func {
	return nn.NewFunc(func(xs *ts.Tensor) *ts.Tensor {
		return xs.MustSigmoid(false)
	})
}
