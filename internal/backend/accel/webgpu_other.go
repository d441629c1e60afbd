//go:build !windows

package accel

import "github.com/born-ml/gplace/internal/placeerr"

func newWebGPUEngine() (engine, error) {
	return nil, &placeerr.CapabilityError{
		Op:     "accel.New",
		Device: "webgpu",
		Reason: "WebGPU kernels are only built on windows",
	}
}
