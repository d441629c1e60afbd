package tensor

import "fmt"

// Device identifies where a position array resides and therefore which
// kernels operate on it.
type Device int

// Supported residencies.
const (
	Host Device = iota
	Accelerator
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case Host:
		return "host"
	case Accelerator:
		return "accelerator"
	default:
		return "unknown"
	}
}

// ParseDevice converts "host" (or "cpu") and "accel" (or "accelerator",
// "gpu") into a Device.
func ParseDevice(s string) (Device, error) {
	switch s {
	case "host", "cpu":
		return Host, nil
	case "accel", "accelerator", "gpu":
		return Accelerator, nil
	default:
		return 0, fmt.Errorf("tensor: unknown device %q", s)
	}
}
