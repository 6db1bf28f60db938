// Package device selects where a training run executes.
//
// Tensor kernels always run on host memory through the cpu backend. When
// gpu_ids is set the run requires a WebGPU adapter to be present and records
// its name; without one, selection fails instead of silently training on the
// CPU.
package device

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"

	"github.com/born-ml/srgan/internal/autodiff"
	"github.com/born-ml/srgan/internal/backend/cpu"
	"github.com/born-ml/srgan/internal/logging"
	"github.com/born-ml/srgan/internal/parallel"
	"github.com/born-ml/srgan/internal/tensor"
	"github.com/born-ml/srgan/internal/types"
)

// AdapterInfo describes a GPU adapter found by the probe.
type AdapterInfo struct {
	Name    string
	Vendor  string
	Backend string
}

func (a AdapterInfo) String() string {
	if a.Vendor == "" {
		return a.Name
	}
	return fmt.Sprintf("%s (%s)", a.Name, a.Vendor)
}

// Probe reports the adapters usable by the process.
type Probe func() ([]AdapterInfo, error)

// DefaultProbe queries the platform WebGPU implementation.
var DefaultProbe Probe = probeAdapters

// Device is the execution target of a run.
type Device struct {
	name     string
	gpuIDs   []int
	adapters []AdapterInfo
	parallel parallel.Config
}

// CPU returns the host device using every core.
func CPU() *Device {
	return &Device{name: "cpu", parallel: parallel.DefaultConfig()}
}

// Select returns the device for gpuIDs. An empty list selects the CPU.
func Select(gpuIDs []int) (*Device, error) {
	return SelectWithProbe(gpuIDs, DefaultProbe)
}

// SelectWithProbe is Select with an explicit adapter probe.
func SelectWithProbe(gpuIDs []int, probe Probe) (*Device, error) {
	if len(gpuIDs) == 0 {
		d := CPU()
		logging.Info("Using device", types.Device, "device", d.name, "workers", d.parallel.NumWorkers)
		return d, nil
	}

	adapters, err := probe()
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrDeviceUnavailable, "gpu_ids %v: %v", gpuIDs, err)
	}
	for _, id := range gpuIDs {
		if id >= len(adapters) {
			return nil, errorsmod.Wrapf(types.ErrDeviceUnavailable,
				"gpu id %d requested, %d adapter(s) found", id, len(adapters))
		}
	}

	d := &Device{
		name:     fmt.Sprintf("gpu:%d", gpuIDs[0]),
		gpuIDs:   append([]int(nil), gpuIDs...),
		adapters: adapters,
		parallel: parallel.DefaultConfig(),
	}
	logging.Info("Using device", types.Device, "device", d.name, "adapter", adapters[gpuIDs[0]].String())
	return d, nil
}

// Name returns "cpu" or "gpu:<id>".
func (d *Device) Name() string {
	return d.name
}

// IsGPU reports whether an adapter was requested and found.
func (d *Device) IsGPU() bool {
	return len(d.gpuIDs) > 0
}

// Adapter returns the adapter of the first requested gpu id.
func (d *Device) Adapter() (AdapterInfo, bool) {
	if !d.IsGPU() {
		return AdapterInfo{}, false
	}
	return d.adapters[d.gpuIDs[0]], true
}

// Parallel returns the worker configuration of the kernels.
func (d *Device) Parallel() parallel.Config {
	return d.parallel
}

// Engine returns a new autodiff engine whose kernels run on d.
func (d *Device) Engine() *autodiff.Engine {
	return autodiff.New(cpu.NewWithConfig(d.parallel))
}

// ToHost returns a copy of raw that later updates on the device do not reach.
func (d *Device) ToHost(raw *tensor.RawTensor) *tensor.RawTensor {
	return raw.Clone()
}

func (d *Device) String() string {
	if a, ok := d.Adapter(); ok {
		return fmt.Sprintf("%s [%s]", d.name, a)
	}
	return d.name
}
