package networks

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/srgan/internal/autodiff"
	"github.com/born-ml/srgan/internal/nn"
	"github.com/born-ml/srgan/internal/tensor"
)

// MaxPool marks a 2×2 max pool in a VGG configuration.
const MaxPool = -1

// VGG19Config is the torchvision VGG19 "features" layout.
var VGG19Config = []int{
	64, 64, MaxPool,
	128, 128, MaxPool,
	256, 256, 256, 256, MaxPool,
	512, 512, 512, 512, MaxPool,
	512, 512, 512, 512, MaxPool,
}

// Feature layers of VGG19-54: the output of conv5_4 before its activation.
const (
	VGG19FeatureLayer   = 34
	VGG19BNFeatureLayer = 49
)

// ImageNet statistics used to normalise [0, 1] RGB input.
var (
	imageNetMean = []float32{0.485, 0.456, 0.406}
	imageNetStd  = []float32{0.229, 0.224, 0.225}
)

// FeatureExtractor returns VGG features of an image for the perceptual loss.
// Its parameters are frozen and it always runs in evaluation mode.
type FeatureExtractor struct {
	composite
	useInputNorm bool
	mean, std    *nn.Buffer // [3]
	features     *nn.Sequential
}

// NewVGGFeatureExtractor builds the VGG prefix of cfg up to and including
// featureLayer (an index into the flattened conv/[bn]/relu/pool list).
func NewVGGFeatureExtractor(eng *autodiff.Engine, cfg []int, featureLayer int, useBN, useInputNorm bool, rng *rand.Rand) *FeatureExtractor {
	var layers []nn.Module
	in := 3
	for _, v := range cfg {
		if v == MaxPool {
			layers = append(layers, nn.NewMaxPool2D(2, 2))
			continue
		}
		layers = append(layers, nn.NewConv2D(eng, in, v, 3, 1, 1, true, rng))
		if useBN {
			layers = append(layers, nn.NewBatchNorm2D(eng, v))
		}
		layers = append(layers, nn.NewReLU())
		in = v
	}
	if featureLayer < 0 || featureLayer >= len(layers) {
		panic(fmt.Sprintf("vgg: feature layer %d out of %d layers", featureLayer, len(layers)))
	}

	f := &FeatureExtractor{
		composite:    composite{class: "VGGFeatureExtractor"},
		useInputNorm: useInputNorm,
		features:     nn.NewSequential(layers[:featureLayer+1]...),
	}
	if useInputNorm {
		f.mean = nn.NewBuffer("mean", tensor.MustNew(tensor.Shape{3}))
		f.std = nn.NewBuffer("std", tensor.MustNew(tensor.Shape{3}))
		copy(f.mean.Value().Data(), imageNetMean)
		copy(f.std.Value().Data(), imageNetStd)
	}
	f.register("features", f.features)
	nn.SetTrainable(f, false)
	f.SetTraining(false)
	return f
}

// vggLayers returns the length of the flattened conv/[bn]/relu/pool list of cfg.
func vggLayers(cfg []int, useBN bool) int {
	n := 0
	for _, v := range cfg {
		switch {
		case v == MaxPool:
			n++
		case useBN:
			n += 3
		default:
			n += 2
		}
	}
	return n
}

// Forward normalises x with the ImageNet statistics and returns the features.
func (f *FeatureExtractor) Forward(x *autodiff.Variable) *autodiff.Variable {
	if f.useInputNorm {
		eng := x.Engine()
		shape := x.Shape()
		mean := eng.Constant(f.mean.Value()).ExpandChannels(shape)
		invStd := eng.Constant(f.std.Value()).Reciprocal().ExpandChannels(shape)
		x = x.Sub(mean).Mul(invStd)
	}
	return f.features.Forward(x)
}

// Buffers includes the normalisation statistics.
func (f *FeatureExtractor) Buffers() []*nn.Buffer {
	bufs := f.composite.Buffers()
	if f.useInputNorm {
		bufs = append([]*nn.Buffer{f.mean, f.std}, bufs...)
	}
	return bufs
}

// SetTraining keeps the extractor in evaluation mode.
func (f *FeatureExtractor) SetTraining(bool) {
	f.composite.SetTraining(false)
}
