package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	errorsmod "cosmossdk.io/errors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/born-ml/srgan/internal/logging"
	"github.com/born-ml/srgan/internal/types"
)

// EnvPrefix marks environment variables that override options.
// SRGAN_TRAIN__LR_G=1e-4 sets train.lr_G.
const EnvPrefix = "SRGAN_"

type Options struct {
	Name       string          `koanf:"name"`
	IsTrain    bool            `koanf:"is_train"`
	GPUIDs     []int           `koanf:"gpu_ids"`
	Scale      int             `koanf:"scale"`
	ManualSeed int64           `koanf:"manual_seed"`
	NetworkG   NetworkGOptions `koanf:"network_G"`
	NetworkD   NetworkDOptions `koanf:"network_D"`
	NetworkF   NetworkFOptions `koanf:"network_F"`
	Path       PathOptions     `koanf:"path"`
	Train      TrainOptions    `koanf:"train"`
	Logger     LoggerOptions   `koanf:"logger"`
	Datasets   DatasetsOptions `koanf:"datasets"`
}

type NetworkGOptions struct {
	WhichModel string `koanf:"which_model_G"`
	NormType   string `koanf:"norm_type"`
	Mode       string `koanf:"mode"`
	NF         int    `koanf:"nf"`
	NB         int    `koanf:"nb"`
	InNC       int    `koanf:"in_nc"`
	OutNC      int    `koanf:"out_nc"`
	GC         int    `koanf:"gc"`
	Scale      int    `koanf:"scale"`
}

type NetworkDOptions struct {
	WhichModel string `koanf:"which_model_D"`
	NormType   string `koanf:"norm_type"`
	ActType    string `koanf:"act_type"`
	Mode       string `koanf:"mode"`
	NF         int    `koanf:"nf"`
	InNC       int    `koanf:"in_nc"`
}

type NetworkFOptions struct {
	UseBN bool `koanf:"use_bn"`
	// Cfg replaces the VGG19 layout (channel counts, -1 for a max pool) and
	// FeatureLayer picks the output layer within it. Both are for reduced
	// extractors; the default is VGG19-54.
	Cfg          []int `koanf:"cfg"`
	FeatureLayer int   `koanf:"feature_layer"`
}

type PathOptions struct {
	Root           string `koanf:"root"`
	PretrainModelG string `koanf:"pretrain_model_G"`
	PretrainModelD string `koanf:"pretrain_model_D"`
	PretrainModelF string `koanf:"pretrain_model_F"`
	ResumeState    string `koanf:"resume_state"`
	Experiments    string `koanf:"experiments_root"`
	Models         string `koanf:"models"`
	TrainingState  string `koanf:"training_state"`
}

type TrainOptions struct {
	LRG          float64 `koanf:"lr_G"`
	WeightDecayG float64 `koanf:"weight_decay_G"`
	Beta1G       float64 `koanf:"beta1_G"`
	LRD          float64 `koanf:"lr_D"`
	WeightDecayD float64 `koanf:"weight_decay_D"`
	Beta1D       float64 `koanf:"beta1_D"`
	LRScheme     string  `koanf:"lr_scheme"`
	LRSteps      []int   `koanf:"lr_steps"`
	LRGamma      float64 `koanf:"lr_gamma"`

	PixelCriterion   string  `koanf:"pixel_criterion"`
	PixelWeight      float64 `koanf:"pixel_weight"`
	FeatureCriterion string  `koanf:"feature_criterion"`
	FeatureWeight    float64 `koanf:"feature_weight"`
	GANType          string  `koanf:"gan_type"`
	GANWeight        float64 `koanf:"gan_weight"`

	DUpdateRatio int `koanf:"D_update_ratio"`
	DInitIters   int `koanf:"D_init_iters"`

	// GPWeight is the gradient penalty weight for wgan-gp. Older option
	// files spell the key gp_weigth; both are accepted.
	GPWeight       float64 `koanf:"gp_weight"`
	GPWeightLegacy float64 `koanf:"gp_weigth"`

	NIter   int `koanf:"niter"`
	ValFreq int `koanf:"val_freq"`
}

type LoggerOptions struct {
	PrintFreq          int `koanf:"print_freq"`
	SaveCheckpointFreq int `koanf:"save_checkpoint_freq"`
}

type DatasetsOptions struct {
	Train DatasetOptions `koanf:"train"`
}

type DatasetOptions struct {
	Name       string `koanf:"name"`
	Mode       string `koanf:"mode"`
	DataRootHR string `koanf:"dataroot_HR"`
	HRSize     int    `koanf:"HR_size"`
	BatchSize  int    `koanf:"batch_size"`
	NWorkers   int    `koanf:"n_workers"`
	UseShuffle bool   `koanf:"use_shuffle"`
	UseFlip    bool   `koanf:"use_flip"`
	UseRot     bool   `koanf:"use_rot"`
}

// Default values applied to absent or zero options.
const (
	DefaultGPWeight           = 10.0
	DefaultPrintFreq          = 100
	DefaultSaveCheckpointFreq = 5000
	DefaultDatasetMode        = "synthetic"
	DefaultNetworkMode        = "CNA"
)

// mixedCaseKeys restores the capitalised option keys that the lower-casing
// env transform would otherwise split into separate entries.
var mixedCaseKeys = map[string]string{
	"network_g":        "network_G",
	"network_d":        "network_D",
	"network_f":        "network_F",
	"which_model_g":    "which_model_G",
	"which_model_d":    "which_model_D",
	"pretrain_model_g": "pretrain_model_G",
	"pretrain_model_d": "pretrain_model_D",
	"pretrain_model_f": "pretrain_model_F",
	"lr_g":             "lr_G",
	"lr_d":             "lr_D",
	"weight_decay_g":   "weight_decay_G",
	"weight_decay_d":   "weight_decay_D",
	"beta1_g":          "beta1_G",
	"beta1_d":          "beta1_D",
	"d_update_ratio":   "D_update_ratio",
	"d_init_iters":     "D_init_iters",
	"dataroot_hr":      "dataroot_HR",
	"hr_size":          "HR_size",
}

func envKey(s string) string {
	parts := strings.Split(strings.Replace(strings.ToLower(
		strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1), ".")
	for i, part := range parts {
		if key, ok := mixedCaseKeys[part]; ok {
			parts[i] = key
		}
	}
	return strings.Join(parts, ".")
}

// LoadFile reads options from a YAML file.
func LoadFile(path string) (*Options, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidConfig, "options file: %v", err)
	}
	return Load(file.Provider(path))
}

// Load reads YAML options from provider, applies SRGAN_ environment
// overrides and defaults, and validates the result.
func Load(provider koanf.Provider) (*Options, error) {
	k := koanf.New(".")
	if err := k.Load(provider, yaml.Parser()); err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidConfig, "error loading options: %v", err)
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidConfig, "error loading env: %v", err)
	}

	var opt Options
	if err := k.Unmarshal("", &opt); err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidConfig, "error unmarshalling options: %v", err)
	}
	opt.applyDefaults()
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	logging.Debug("Options loaded", types.Config, "name", opt.Name, "is_train", opt.IsTrain)
	return &opt, nil
}

// Marshal renders the options back to YAML.
func (o *Options) Marshal() ([]byte, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(o, "koanf"), nil); err != nil {
		return nil, err
	}
	return k.Marshal(yaml.Parser())
}

func (o *Options) applyDefaults() {
	if o.NetworkG.Scale == 0 {
		o.NetworkG.Scale = o.Scale
	}
	if o.NetworkG.Mode == "" {
		o.NetworkG.Mode = DefaultNetworkMode
	}
	if o.NetworkD.Mode == "" {
		o.NetworkD.Mode = DefaultNetworkMode
	}
	if o.NetworkD.ActType == "" {
		o.NetworkD.ActType = "leakyrelu"
	}

	t := &o.Train
	if t.DUpdateRatio == 0 {
		t.DUpdateRatio = 1
	}
	if t.GPWeight == 0 {
		t.GPWeight = t.GPWeightLegacy
	}
	if t.GPWeight == 0 {
		t.GPWeight = DefaultGPWeight
	}
	if t.LRGamma == 0 {
		t.LRGamma = 0.5
	}

	if o.Logger.PrintFreq == 0 {
		o.Logger.PrintFreq = DefaultPrintFreq
	}
	if o.Logger.SaveCheckpointFreq == 0 {
		o.Logger.SaveCheckpointFreq = DefaultSaveCheckpointFreq
	}
	if o.Datasets.Train.Mode == "" {
		o.Datasets.Train.Mode = DefaultDatasetMode
	}

	p := &o.Path
	if p.Root == "" {
		p.Root = "."
	}
	if p.Experiments == "" {
		p.Experiments = filepath.Join(p.Root, "experiments", o.Name)
	}
	if p.Models == "" {
		p.Models = filepath.Join(p.Experiments, "models")
	}
	if p.TrainingState == "" {
		p.TrainingState = filepath.Join(p.Experiments, "training_state")
	}
}

// Validate rejects structurally invalid options. Unknown network, loss and
// scheduler names are reported later by the components that interpret them.
func (o *Options) Validate() error {
	invalid := func(format string, args ...any) error {
		return errorsmod.Wrapf(types.ErrInvalidConfig, format, args...)
	}
	if o.Name == "" {
		return invalid("name is required")
	}
	if !SupportedScale(o.NetworkG.Scale) {
		return invalid("scale %d: must be 3 or a power of two", o.NetworkG.Scale)
	}
	g := o.NetworkG
	if g.InNC <= 0 || g.OutNC <= 0 || g.NF <= 0 || g.NB < 0 {
		return invalid("network_G: in_nc, out_nc and nf must be positive, nb non-negative")
	}
	if g.Mode != DefaultNetworkMode {
		return invalid("network_G: mode [%s], only %s is supported", g.Mode, DefaultNetworkMode)
	}
	if slices.ContainsFunc(o.GPUIDs, func(id int) bool { return id < 0 }) {
		return invalid("gpu_ids must be non-negative")
	}
	if !o.IsTrain {
		return nil
	}

	d := o.NetworkD
	if d.InNC <= 0 || d.NF <= 0 {
		return invalid("network_D: in_nc and nf must be positive")
	}
	if d.Mode != DefaultNetworkMode {
		return invalid("network_D: mode [%s], only %s is supported", d.Mode, DefaultNetworkMode)
	}
	t := o.Train
	if t.DUpdateRatio < 1 {
		return invalid("train.D_update_ratio %d must be at least 1", t.DUpdateRatio)
	}
	if t.DInitIters < 0 {
		return invalid("train.D_init_iters %d must be non-negative", t.DInitIters)
	}
	if t.LRG <= 0 || t.LRD <= 0 {
		return invalid("train.lr_G and train.lr_D must be positive")
	}
	if t.WeightDecayG < 0 || t.WeightDecayD < 0 {
		return invalid("weight decay must be non-negative")
	}
	if t.Beta1G < 0 || t.Beta1G >= 1 || t.Beta1D < 0 || t.Beta1D >= 1 {
		return invalid("beta1 must be in [0, 1)")
	}
	if !slices.IsSorted(t.LRSteps) {
		return invalid("train.lr_steps must be non-decreasing")
	}
	if o.Logger.PrintFreq < 1 || o.Logger.SaveCheckpointFreq < 1 {
		return invalid("logger frequencies must be positive")
	}

	ds := o.Datasets.Train
	if ds.BatchSize < 0 {
		return invalid("datasets.train.batch_size must be non-negative")
	}
	if ds.HRSize > 0 && ds.HRSize%o.NetworkG.Scale != 0 {
		return invalid("datasets.train.HR_size %d is not divisible by scale %d", ds.HRSize, o.NetworkG.Scale)
	}
	return nil
}

// SupportedScale reports whether the upsamplers can produce scale.
func SupportedScale(scale int) bool {
	if scale == 3 {
		return true
	}
	return scale >= 1 && scale&(scale-1) == 0
}

// Clone returns a deep copy so a run can keep options nobody else mutates.
func (o *Options) Clone() *Options {
	c := *o
	c.GPUIDs = slices.Clone(o.GPUIDs)
	c.Train.LRSteps = slices.Clone(o.Train.LRSteps)
	c.NetworkF.Cfg = slices.Clone(o.NetworkF.Cfg)
	return &c
}
