//go:build linux || darwin || windows

package device

import (
	"fmt"

	"github.com/go-webgpu/webgpu/wgpu"
)

// probeAdapters asks WebGPU for the default adapter. WebGPU has no way to
// enumerate every adapter, so at most one is reported.
func probeAdapters() (adapters []AdapterInfo, err error) {
	// Calls into wgpu_native panic when a symbol is missing from the library.
	defer func() {
		if r := recover(); r != nil {
			adapters = nil
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	if err := wgpu.Init(); err != nil {
		return nil, fmt.Errorf("webgpu: load native library: %w", err)
	}
	instance, err := wgpu.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("webgpu: create instance: %w", err)
	}
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return nil, fmt.Errorf("webgpu: no adapters available: %w", err)
	}
	defer adapter.Release()

	info, err := adapter.GetInfo()
	if err != nil {
		return nil, fmt.Errorf("webgpu: adapter info: %w", err)
	}
	return []AdapterInfo{{
		Name:    info.Device,
		Vendor:  info.Vendor,
		Backend: fmt.Sprint(info.BackendType),
	}}, nil
}
