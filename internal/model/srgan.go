package model

import (
	"fmt"
	"math/rand"
	"time"

	errorsmod "cosmossdk.io/errors"

	"github.com/born-ml/srgan/internal/autodiff"
	"github.com/born-ml/srgan/internal/config"
	"github.com/born-ml/srgan/internal/data"
	"github.com/born-ml/srgan/internal/logging"
	"github.com/born-ml/srgan/internal/loss"
	"github.com/born-ml/srgan/internal/networks"
	"github.com/born-ml/srgan/internal/nn"
	"github.com/born-ml/srgan/internal/optim"
	"github.com/born-ml/srgan/internal/tensor"
	"github.com/born-ml/srgan/internal/types"
)

// Adversarial targets of the GAN loss.
const (
	RealLabel = 1.0
	FakeLabel = 0.0
)

// Adam beta2 of both networks.
const adamBeta2 = 0.999

// Network labels used in checkpoint file names.
const (
	LabelG = "G"
	LabelD = "D"
)

// Visuals holds the first sample of the current batch, as host tensors of
// shape [C, H, W].
type Visuals struct {
	LR *tensor.RawTensor
	SR *tensor.RawTensor
	HR *tensor.RawTensor // nil unless requested
}

// SRGANModel trains a super-resolution generator against a discriminator.
//
// The generator G is always built. Training models also build the
// discriminator D, the feature network F when the feature loss is enabled,
// the losses, one Adam optimizer per network and a learning-rate schedule per
// optimizer.
type SRGANModel struct {
	*BaseModel

	netG nn.Module
	netD nn.Module
	netF nn.Module

	criPix loss.Criterion // nil when the pixel loss is removed
	criFea loss.Criterion // nil when the feature loss is removed
	criGAN *loss.GANLoss
	lPixW  float32
	lFeaW  float32
	lGANW  float32
	lGPW   float32

	dUpdateRatio int
	dInitIters   int

	optimizerG *optim.Adam
	optimizerD *optim.Adam

	rng *rand.Rand

	varL, varH, varRef *autodiff.Variable
	fakeH              *autodiff.Variable

	log *Log
}

// NewSRGANModel builds the model described by opt.
func NewSRGANModel(opt *config.Options) (*SRGANModel, error) {
	base, err := NewBaseModel(opt)
	if err != nil {
		return nil, err
	}
	opt = base.opt

	seed := opt.ManualSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	logging.Debug("Random seed", types.Model, "seed", seed)

	m := &SRGANModel{BaseModel: base, rng: rand.New(rand.NewSource(seed)), log: NewLog()}

	m.netG, err = networks.DefineG(m.eng, opt, m.rng)
	if err != nil {
		return nil, err
	}
	if m.isTrain {
		m.netD, err = networks.DefineD(m.eng, opt, m.rng)
		if err != nil {
			return nil, err
		}
		m.netG.SetTraining(true)
		m.netD.SetTraining(true)
	}
	if err := m.Load(); err != nil {
		return nil, err
	}

	if m.isTrain {
		if err := m.setupTraining(); err != nil {
			return nil, err
		}
	}
	m.printNetwork()
	return m, nil
}

func (m *SRGANModel) setupTraining() error {
	opt := m.opt
	t := opt.Train

	if t.PixelWeight > 0 {
		cri, err := loss.NewPixelCriterion(t.PixelCriterion)
		if err != nil {
			return err
		}
		m.criPix, m.lPixW = cri, float32(t.PixelWeight)
	} else {
		logging.Info("Remove pixel loss.", types.Model)
	}

	if t.FeatureWeight > 0 {
		cri, err := loss.NewPixelCriterion(t.FeatureCriterion)
		if err != nil {
			return err
		}
		m.criFea, m.lFeaW = cri, float32(t.FeatureWeight)
	} else {
		logging.Info("Remove feature loss.", types.Model)
	}
	if m.criFea != nil {
		netF, err := networks.DefineF(m.eng, opt, m.rng)
		if err != nil {
			return err
		}
		m.netF = netF
	}

	criGAN, err := loss.NewGANLoss(t.GANType, RealLabel, FakeLabel)
	if err != nil {
		return err
	}
	m.criGAN, m.lGANW = criGAN, float32(t.GANWeight)
	m.dUpdateRatio = max(t.DUpdateRatio, 1)
	m.dInitIters = max(t.DInitIters, 0)
	if t.GANType == loss.GANWGANGP {
		m.lGPW = float32(t.GPWeight)
	}

	var paramsG []*nn.Parameter
	for _, p := range m.netG.Parameters() {
		if p.Trainable() {
			paramsG = append(paramsG, p)
		} else {
			logging.Warn(fmt.Sprintf("Params [%s] will not optimize.", p.Name()), types.Model)
		}
	}
	m.optimizerG = optim.NewAdam(paramsG, optim.AdamConfig{
		LR:          t.LRG,
		Betas:       [2]float64{t.Beta1G, adamBeta2},
		WeightDecay: t.WeightDecayG,
	})
	m.optimizerD = optim.NewAdam(m.netD.Parameters(), optim.AdamConfig{
		LR:          t.LRD,
		Betas:       [2]float64{t.Beta1D, adamBeta2},
		WeightDecay: t.WeightDecayD,
	})
	m.optimizers = append(m.optimizers, m.optimizerG, m.optimizerD)

	for _, o := range m.optimizers {
		s, err := optim.NewScheduler(t.LRScheme, o, t.LRSteps, t.LRGamma)
		if err != nil {
			return err
		}
		m.schedulers = append(m.schedulers, s)
	}
	return nil
}

// NetG returns the generator.
func (m *SRGANModel) NetG() nn.Module { return m.netG }

// NetD returns the discriminator, nil unless training.
func (m *SRGANModel) NetD() nn.Module { return m.netD }

// NetF returns the feature network, nil unless the feature loss is enabled.
func (m *SRGANModel) NetF() nn.Module { return m.netF }

// FeedData sets the input of the next step. HR and the discriminator
// reference (HR unless the batch carries one) are only read when needHR is
// set.
func (m *SRGANModel) FeedData(batch data.Batch, needHR bool) {
	m.varL = m.eng.Constant(batch.LR)
	if !needHR {
		return
	}
	m.varH = m.eng.Constant(batch.HR)
	ref := batch.Ref
	if ref == nil {
		ref = batch.HR
	}
	m.varRef = m.eng.Constant(ref)
}

// updatesG reports whether step trains the generator.
func (m *SRGANModel) updatesG(step int) bool {
	return step%m.dUpdateRatio == 0 && step > m.dInitIters
}

// OptimizeParameters runs one training step.
//
// The generator is updated only when step is a multiple of D_update_ratio
// and past D_init_iters; the discriminator is updated on every step.
func (m *SRGANModel) OptimizeParameters(step int) error {
	if !m.isTrain {
		return errorsmod.Wrap(types.ErrInvalidConfig, "optimize_parameters on a model built for testing")
	}
	if m.varL == nil || m.varH == nil {
		return errorsmod.Wrap(types.ErrInvalidConfig, "optimize_parameters before feed_data with HR")
	}

	// G
	m.optimizerG.ZeroGrad()
	m.fakeH = m.netG.Forward(m.varL)

	updateG := m.updatesG(step)
	var lGPix, lGFea, lGGAN *autodiff.Variable
	if updateG {
		var lGTotal *autodiff.Variable
		add := func(l *autodiff.Variable) {
			if lGTotal == nil {
				lGTotal = l
				return
			}
			lGTotal = lGTotal.Add(l)
		}
		if m.criPix != nil {
			lGPix = m.criPix.Forward(m.fakeH, m.varH).Scale(m.lPixW)
			add(lGPix)
		}
		if m.criFea != nil {
			realFea := m.netF.Forward(m.varH).Detach()
			fakeFea := m.netF.Forward(m.fakeH)
			lGFea = m.criFea.Forward(fakeFea, realFea).Scale(m.lFeaW)
			add(lGFea)
		}
		predGFake := m.netD.Forward(m.fakeH)
		lGGAN = m.criGAN.Forward(predGFake, true).Scale(m.lGANW)
		add(lGGAN)

		if err := lGTotal.Backward(); err != nil {
			return errorsmod.Wrap(err, "generator backward")
		}
		m.optimizerG.Step()
	}

	// D
	m.optimizerD.ZeroGrad()
	predDReal := m.netD.Forward(m.varRef)
	lDReal := m.criGAN.Forward(predDReal, true)
	fake := m.fakeH.Detach()
	predDFake := m.netD.Forward(fake)
	lDFake := m.criGAN.Forward(predDFake, false)
	lDTotal := lDReal.Add(lDFake)

	var lDGP *autodiff.Variable
	if m.criGAN.Kind() == loss.GANWGANGP {
		interp := m.eng.Leaf(m.interpolate(fake.Value(), m.varRef.Value()), true)
		interpCrit := m.netD.Forward(interp)
		gp, err := loss.GradientPenalty(interp, interpCrit)
		if err != nil {
			return err
		}
		lDGP = gp.Scale(m.lGPW)
		lDTotal = lDTotal.Add(lDGP)
	}

	if err := lDTotal.Backward(); err != nil {
		return errorsmod.Wrap(err, "discriminator backward")
	}
	m.optimizerD.Step()

	if updateG {
		if lGPix != nil {
			m.log.Set("l_g_pix", float64(lGPix.Item()))
		}
		if lGFea != nil {
			m.log.Set("l_g_fea", float64(lGFea.Item()))
		}
		m.log.Set("l_g_gan", float64(lGGAN.Item()))
	}
	m.log.Set("l_d_real", float64(lDReal.Item()))
	m.log.Set("l_d_fake", float64(lDFake.Item()))
	if lDGP != nil {
		m.log.Set("l_d_gp", float64(lDGP.Item()))
	}
	m.log.Set("D_real", predDReal.Value().Mean())
	m.log.Set("D_fake", predDFake.Value().Mean())
	return nil
}

// interpolate returns alpha·fake + (1-alpha)·ref. Alpha is drawn from U(0, 1)
// for every sample of the batch, not once per batch.
func (m *SRGANModel) interpolate(fake, ref *tensor.RawTensor) *tensor.RawTensor {
	n := ref.Shape()[0]
	alpha := tensor.Uniform(tensor.Shape{n}, 0, 1, m.rng).Data()
	out := tensor.ZerosLike(ref)
	per := ref.NumElements() / n
	fd, rd, od := fake.Data(), ref.Data(), out.Data()
	for b := 0; b < n; b++ {
		a := alpha[b]
		for k := b * per; k < (b+1)*per; k++ {
			od[k] = a*fd[k] + (1-a)*rd[k]
		}
	}
	return out
}

// Test runs the generator on the current LR input in evaluation mode without
// recording gradients, then switches it back to training mode.
func (m *SRGANModel) Test() {
	m.netG.SetTraining(false)
	m.eng.NoGrad(func() {
		m.fakeH = m.netG.Forward(m.varL)
	})
	m.netG.SetTraining(true)
}

// CurrentLog returns the metrics of the latest step. Generator metrics keep
// their last value on steps that skip the generator update.
func (m *SRGANModel) CurrentLog() *Log {
	return m.log
}

// CurrentVisuals returns the first sample of the LR input, the generator
// output and, when needHR is set, the HR target.
func (m *SRGANModel) CurrentVisuals(needHR bool) Visuals {
	v := Visuals{LR: m.firstSample(m.varL), SR: m.firstSample(m.fakeH)}
	if needHR {
		v.HR = m.firstSample(m.varH)
	}
	return v
}

func (m *SRGANModel) firstSample(v *autodiff.Variable) *tensor.RawTensor {
	if v == nil {
		return nil
	}
	s := v.Value().Sample(0)
	return m.device.ToHost(s.MustReshape(s.Shape()[1:]))
}

func (m *SRGANModel) printNetwork() {
	m.describe("G", m.netG)
	if m.isTrain {
		m.describe("D", m.netD)
		if m.netF != nil {
			m.describe("F", m.netF)
		}
	}
}

func (m *SRGANModel) describe(label string, net nn.Module) {
	s, n := m.NetworkDescription(net)
	logging.Info(fmt.Sprintf("Network %s structure: %s, with parameters: %s", label, className(net), formatCount(n)), types.Network)
	logging.Debug(s, types.Network)
}

// Load reads the pretrained generator and, for training models, the
// pretrained discriminator named in the options.
func (m *SRGANModel) Load() error {
	if path := m.opt.Path.PretrainModelG; path != "" {
		logging.Info("Loading pretrained model for G ["+path+"] ...", types.Model)
		if err := m.LoadNetwork(path, m.netG, true); err != nil {
			return err
		}
	}
	if path := m.opt.Path.PretrainModelD; m.isTrain && path != "" {
		logging.Info("Loading pretrained model for D ["+path+"] ...", types.Model)
		if err := m.LoadNetwork(path, m.netD, true); err != nil {
			return err
		}
	}
	return nil
}

// Save writes the generator and, when present, the discriminator for iter.
func (m *SRGANModel) Save(iter int) error {
	if _, err := m.SaveNetwork(m.netG, LabelG, iter); err != nil {
		return err
	}
	if m.netD != nil {
		if _, err := m.SaveNetwork(m.netD, LabelD, iter); err != nil {
			return err
		}
	}
	return nil
}

// formatCount renders n with thousands separators.
func formatCount(n int) string {
	if n < 0 {
		return "-" + formatCount(-n)
	}
	s := fmt.Sprint(n)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}
