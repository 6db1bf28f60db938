package networks

import (
	"math/rand"

	errorsmod "cosmossdk.io/errors"

	"github.com/born-ml/srgan/internal/autodiff"
	"github.com/born-ml/srgan/internal/config"
	"github.com/born-ml/srgan/internal/logging"
	"github.com/born-ml/srgan/internal/nn"
	"github.com/born-ml/srgan/internal/serialization"
	"github.com/born-ml/srgan/internal/types"
)

// Generator and discriminator kinds accepted by the factories.
const (
	KindSRResNet = "sr_resnet"
	KindRRDBNet  = "RRDB_net"

	KindDiscriminatorVGG96    = "discriminator_vgg_96"
	KindDiscriminatorVGG128   = "discriminator_vgg_128"
	KindDiscriminatorVGG192   = "discriminator_vgg_192"
	KindDiscriminatorVGG128SN = "discriminator_vgg_128_SN"
)

// DefineG builds the generator named by network_G.which_model_G. Training
// runs start from kaiming initialisation scaled by 0.1.
func DefineG(eng *autodiff.Engine, opt *config.Options, rng *rand.Rand) (nn.Module, error) {
	o := opt.NetworkG
	cfg := GeneratorConfig{
		InNC: o.InNC, OutNC: o.OutNC, NF: o.NF, NB: o.NB, GC: o.GC,
		Scale: o.Scale, NormType: o.NormType, Mode: o.Mode,
	}

	var (
		netG nn.Module
		err  error
	)
	switch o.WhichModel {
	case KindSRResNet:
		netG, err = NewSRResNet(eng, cfg, rng)
	case KindRRDBNet:
		netG, err = NewRRDBNet(eng, cfg, rng)
	default:
		return nil, errorsmod.Wrapf(types.ErrNotImplemented, "generator model [%s] not recognized", o.WhichModel)
	}
	if err != nil {
		return nil, err
	}
	if opt.IsTrain {
		if err := nn.InitWeights(netG, nn.InitKaiming, 0.1, 0, rng); err != nil {
			return nil, err
		}
	}
	return netG, nil
}

// DefineD builds the discriminator named by network_D.which_model_D with
// kaiming initialisation.
func DefineD(eng *autodiff.Engine, opt *config.Options, rng *rand.Rand) (nn.Module, error) {
	o := opt.NetworkD
	if o.WhichModel == KindDiscriminatorVGG128SN {
		return nil, errorsmod.Wrapf(types.ErrNotImplemented, "discriminator model [%s]: spectral normalization is not supported", o.WhichModel)
	}
	size, ok := vggInputSizes[o.WhichModel]
	if !ok {
		return nil, errorsmod.Wrapf(types.ErrNotImplemented, "discriminator model [%s] not recognized", o.WhichModel)
	}
	netD, err := NewDiscriminatorVGG(eng, size, DiscriminatorConfig{
		InNC: o.InNC, NF: o.NF, NormType: o.NormType, ActType: o.ActType, Mode: o.Mode,
	}, rng)
	if err != nil {
		return nil, err
	}
	if err := nn.InitWeights(netD, nn.InitKaiming, 1, 0, rng); err != nil {
		return nil, err
	}
	return netD, nil
}

// DefineF builds the frozen VGG19-54 feature extractor (pre-activation
// conv5_4, layer 34, or 49 with batch norm) and loads path.pretrain_model_F
// when set.
func DefineF(eng *autodiff.Engine, opt *config.Options, rng *rand.Rand) (nn.Module, error) {
	useBN := opt.NetworkF.UseBN
	cfg, layer := VGG19Config, VGG19FeatureLayer
	if useBN {
		layer = VGG19BNFeatureLayer
	}
	if len(opt.NetworkF.Cfg) > 0 {
		cfg, layer = opt.NetworkF.Cfg, opt.NetworkF.FeatureLayer
		if n := vggLayers(cfg, useBN); layer < 0 || layer >= n {
			return nil, errorsmod.Wrapf(types.ErrInvalidConfig,
				"network_F: feature_layer %d out of %d layers", layer, n)
		}
	}
	netF := NewVGGFeatureExtractor(eng, cfg, layer, useBN, true, rng)

	path := opt.Path.PretrainModelF
	if path == "" {
		logging.Warn("No pretrained weights for F, features come from a random VGG", types.Network)
		return netF, nil
	}
	logging.Info("Loading pretrained model for F ["+path+"] ...", types.Network)
	f, err := serialization.ReadFile(path)
	if err != nil {
		return nil, err
	}
	// The extractor is a prefix of the full VGG: extra classifier weights are ignored.
	if err := nn.LoadState(netF, f.Tensors, false); err != nil {
		return nil, err
	}
	return netF, nil
}
