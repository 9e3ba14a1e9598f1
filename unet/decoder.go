package unet

import (
	"reflect"

	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/droneseg/base"
)

// Down is a SequentialT module composed of maxpool and 2x conv.
type Down struct {
	MaxpoolConv *nn.SequentialT
}

// NewDown creates a new Down ModuleT layer.
func NewDown(p *nn.Path, cIn, cOut int64) *Down {
	doubleconv := base.DoubleConv(p, cIn, cOut)

	down := nn.SeqT()
	down.AddFn(nn.NewFunc(func(x *ts.Tensor) *ts.Tensor {
		// [B C H W] => [B C H/2 W/2]
		// ksize = 2; stride=2; padding=0; dilation=1; ceil=false
		return x.MustMaxPool2d([]int64{2, 2}, []int64{2, 2}, []int64{0, 0}, []int64{1, 1}, false, false)
	}))
	down.Add(doubleconv)

	return &Down{down}
}

// ForwardT implements nn.ModuleT interface.
func (l *Down) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	return l.MaxpoolConv.ForwardT(x, train)
}

// Up upsamples a decoder feature to its skip connection, reduces its
// channels to the skip width, concatenates both and runs a double conv.
type Up struct {
	Reduce     *nn.Conv2D
	DoubleConv *nn.SequentialT
	Attn       ts.ModuleT
}

// NewUp creates an Up layer from cIn decoder channels to cOut channels. The
// skip connection must carry cOut channels.
func NewUp(p *nn.Path, cIn, cOut int64, attention string) (*Up, error) {
	attn, err := base.NewAttention(p.Sub("attention"), attention, cOut)
	if err != nil {
		return nil, err
	}

	return &Up{
		Reduce:     base.Conv2d(p.Sub("reduce"), cIn, cOut, 1, 0, 1),
		DoubleConv: base.DoubleConv(p.Sub("doubleconv"), 2*cOut, cOut),
		Attn:       attn,
	}, nil
}

// UpForward upsamples x1 to the size of skip x2 and forwards through the
// double conv. x1, x2 should be in shape [B C H W].
func (l *Up) UpForward(x1, x2 *ts.Tensor, train bool) *ts.Tensor {
	xUp := upsampling(x1, x2.MustSize()[2:])
	xRed := l.Reduce.ForwardT(xUp, train)
	xUp.MustDrop()

	x := ts.MustCat([]ts.Tensor{*x2, *xRed}, 1)
	xRed.MustDrop()

	conv := l.DoubleConv.ForwardT(x, train)
	x.MustDrop()

	out := l.Attn.ForwardT(conv, train)
	conv.MustDrop()

	return out
}

// interpolation using `bilinear` algorithm
// x should be in shape: [B C H W]
func upsampling(x *ts.Tensor, outSize []int64) *ts.Tensor {
	xSize := x.MustSize()
	if reflect.DeepEqual(xSize[2:], outSize) {
		return x.MustMul1(ts.FloatScalar(1), false)
	}

	return x.MustUpsampleBilinear2d(outSize, false, nil, nil, false)
}
