// Package networks defines the SRGAN architectures: the SRResNet and RRDBNet
// generators, the VGG-style discriminators and the VGG19 feature extractor
// used by the perceptual loss.
//
// Parameter names match the layouts of the widely used PyTorch checkpoints
// ("model.1.sub.0.RDB1.conv1.0.weight", "features.0.weight", ...), so a state
// dict converted from those files loads strictly.
package networks

import (
	"fmt"
	"math/rand"
	"strings"

	errorsmod "cosmossdk.io/errors"

	"github.com/born-ml/srgan/internal/autodiff"
	"github.com/born-ml/srgan/internal/nn"
	"github.com/born-ml/srgan/internal/types"
)

// Block options.
const (
	NormNone  = ""
	NormBatch = "batch"

	ActNone      = ""
	ActReLU      = "relu"
	ActLeakyReLU = "leakyrelu"

	ModeCNA = "CNA"

	leakySlope = 0.2
)

func normalizeNorm(norm string) string {
	if strings.EqualFold(norm, "none") || strings.EqualFold(norm, "null") {
		return NormNone
	}
	return norm
}

// checkBlockTypes rejects norm, activation and mode names the blocks cannot build.
func checkBlockTypes(norm, act, mode string) error {
	switch normalizeNorm(norm) {
	case NormNone, NormBatch:
	default:
		return errorsmod.Wrapf(types.ErrNotImplemented, "normalization layer [%s] is not found", norm)
	}
	switch act {
	case ActNone, ActReLU, ActLeakyReLU:
	default:
		return errorsmod.Wrapf(types.ErrNotImplemented, "activation layer [%s] is not found", act)
	}
	if mode != ModeCNA {
		return errorsmod.Wrapf(types.ErrNotImplemented, "conv mode [%s] not supported", mode)
	}
	return nil
}

// builder creates layers on one engine from one random source.
type builder struct {
	eng *autodiff.Engine
	rng *rand.Rand
}

// convBlock returns conv → [norm] → [act] with "same" padding.
func (b builder) convBlock(in, out, kernel, stride int, norm, act string) []nn.Module {
	layers := []nn.Module{nn.NewConv2D(b.eng, in, out, kernel, stride, (kernel-1)/2, true, b.rng)}
	if normalizeNorm(norm) == NormBatch {
		layers = append(layers, nn.NewBatchNorm2D(b.eng, out))
	}
	if a := activation(act); a != nil {
		layers = append(layers, a)
	}
	return layers
}

func activation(act string) nn.Module {
	switch act {
	case ActReLU:
		return nn.NewReLU()
	case ActLeakyReLU:
		return nn.NewLeakyReLU(leakySlope)
	default:
		return nil
	}
}

// upsampleStages returns how many ×factor stages reach scale.
func upsampleStages(scale int) (stages, factor int) {
	if scale == 3 {
		return 1, 3
	}
	for s := scale; s > 1; s /= 2 {
		stages++
	}
	return stages, 2
}

// pixelShuffleBlock is conv(nf → nf·r²) → shuffle(r) → act.
func (b builder) pixelShuffleBlock(in, out, factor int, act string) []nn.Module {
	layers := b.convBlock(in, out*factor*factor, 3, 1, NormNone, ActNone)
	layers = append(layers, nn.NewPixelShuffle(factor))
	if a := activation(act); a != nil {
		layers = append(layers, a)
	}
	return layers
}

// upconvBlock is nearest upsample(r) → conv → act.
func (b builder) upconvBlock(in, out, factor int, act string) []nn.Module {
	return append([]nn.Module{nn.NewUpsample(factor)}, b.convBlock(in, out, 3, 1, NormNone, act)...)
}

// composite is a module with named children, printed like a PyTorch module.
type composite struct {
	class string
	names []string
	mods  []nn.Module
}

// register prefixes m's names with name and records it as a child.
func (c *composite) register(name string, m nn.Module) {
	nn.Prefix(name, m)
	c.names = append(c.names, name)
	c.mods = append(c.mods, m)
}

func (c *composite) Children() []nn.Module { return c.mods }

func (c *composite) Parameters() []*nn.Parameter {
	var params []*nn.Parameter
	for _, m := range c.mods {
		params = append(params, m.Parameters()...)
	}
	return params
}

func (c *composite) Buffers() []*nn.Buffer {
	var bufs []*nn.Buffer
	for _, m := range c.mods {
		bufs = append(bufs, m.Buffers()...)
	}
	return bufs
}

func (c *composite) SetTraining(training bool) {
	for _, m := range c.mods {
		m.SetTraining(training)
	}
}

// Class returns the architecture name used in network printouts.
func (c *composite) Class() string { return c.class }

func (c *composite) String() string {
	var s strings.Builder
	s.WriteString(c.class + "(")
	for i, m := range c.mods {
		fmt.Fprintf(&s, "\n  (%s): %s", c.names[i], strings.ReplaceAll(m.String(), "\n", "\n  "))
	}
	if len(c.mods) > 0 {
		s.WriteString("\n")
	}
	s.WriteString(")")
	return s.String()
}

// ResNetBlock is x + res_scale·res(x) with res = convBlock → conv [→ norm].
type ResNetBlock struct {
	composite
	res   *nn.Sequential
	scale float32
}

func (b builder) resNetBlock(nf int, norm, act string, resScale float32) *ResNetBlock {
	layers := b.convBlock(nf, nf, 3, 1, norm, act)
	// CNA mode: no activation after the second conv.
	layers = append(layers, b.convBlock(nf, nf, 3, 1, norm, ActNone)...)
	blk := &ResNetBlock{composite: composite{class: "ResNetBlock"}, res: nn.NewSequential(layers...), scale: resScale}
	blk.register("res", blk.res)
	return blk
}

func (r *ResNetBlock) Forward(x *autodiff.Variable) *autodiff.Variable {
	res := r.res.Forward(x)
	if r.scale != 1 {
		res = res.Scale(r.scale)
	}
	return x.Add(res)
}

// ResidualDenseBlock5C is five densely connected convs; each conv sees the
// input concatenated with every earlier output.
// Output: x + 0.2·conv5(...).
type ResidualDenseBlock5C struct {
	composite
	convs [5]*nn.Sequential
}

func (b builder) residualDenseBlock(nf, gc int, norm, act string) *ResidualDenseBlock5C {
	blk := &ResidualDenseBlock5C{composite: composite{class: "ResidualDenseBlock_5C"}}
	for i := 0; i < 5; i++ {
		out, a := gc, act
		if i == 4 {
			out, a = nf, ActNone
		}
		blk.convs[i] = nn.NewSequential(b.convBlock(nf+i*gc, out, 3, 1, norm, a)...)
		blk.register(fmt.Sprintf("conv%d", i+1), blk.convs[i])
	}
	return blk
}

func (r *ResidualDenseBlock5C) Forward(x *autodiff.Variable) *autodiff.Variable {
	eng := x.Engine()
	features := []*autodiff.Variable{x}
	for i := 0; i < 4; i++ {
		features = append(features, r.convs[i].Forward(eng.Concat(features...)))
	}
	x5 := r.convs[4].Forward(eng.Concat(features...))
	return x.Add(x5.Scale(0.2))
}

// RRDB is a residual-in-residual dense block: x + 0.2·RDB3(RDB2(RDB1(x))).
type RRDB struct {
	composite
	rdbs [3]*ResidualDenseBlock5C
}

func (b builder) rrdb(nf, gc int, norm, act string) *RRDB {
	blk := &RRDB{composite: composite{class: "RRDB"}}
	for i := range blk.rdbs {
		blk.rdbs[i] = b.residualDenseBlock(nf, gc, norm, act)
		blk.register(fmt.Sprintf("RDB%d", i+1), blk.rdbs[i])
	}
	return blk
}

func (r *RRDB) Forward(x *autodiff.Variable) *autodiff.Variable {
	out := x
	for _, rdb := range r.rdbs {
		out = rdb.Forward(out)
	}
	return x.Add(out.Scale(0.2))
}
