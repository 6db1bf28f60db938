//go:build !linux && !darwin && !windows

package device

import (
	"fmt"
	"runtime"
)

func probeAdapters() ([]AdapterInfo, error) {
	return nil, fmt.Errorf("webgpu: no native library loader for %s", runtime.GOOS)
}
