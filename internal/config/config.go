// Package config holds the placement parameter set and loads it from TOML.
package config

import (
	"fmt"
	"math"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/born-ml/gplace/internal/backend"
	"github.com/born-ml/gplace/internal/placeerr"
	"github.com/born-ml/gplace/internal/tensor"
)

// Optimizer names accepted in Params.Optimizer.
const (
	OptimizerNesterov = "nesterov"
	OptimizerCG       = "cg"
)

// Params is the full parameter set of a placement run.
type Params struct {
	// Wirelength
	Gamma           float64 `toml:"gamma"`
	IgnoreNetDegree int     `toml:"ignore_net_degree"`
	Algorithm       string  `toml:"wirelength_algorithm"`

	// Execution
	Device     string `toml:"device"`
	DType      string `toml:"dtype"`
	NumThreads int    `toml:"num_threads"`
	WebGPU     bool   `toml:"webgpu"`

	// Optimization
	Optimizer          string  `toml:"optimizer"`
	LearningRate       float64 `toml:"learning_rate"`
	Iterations         int     `toml:"iterations"`
	DensityWeight      float64 `toml:"density_weight"`
	StopRelImprovement float64 `toml:"stop_rel_improvement"`
	LineSearch         bool    `toml:"line_search"`
	MaxBacktracks      int     `toml:"max_backtracks"`
	ScaleFactor        float64 `toml:"scale_factor"`
	HPWLInterval       int     `toml:"hpwl_interval"`
	CheckpointPath     string  `toml:"checkpoint_path"`
	CheckpointInterval int     `toml:"checkpoint_interval"`
	ResumeFrom         string  `toml:"resume_from"`
	MetricsAddr        string  `toml:"metrics_addr"`

	// Synthetic benchmark
	Seed      uint64    `toml:"random_seed"`
	Synthetic Synthetic `toml:"synthetic"`
}

// Synthetic sizes the generated benchmark.
type Synthetic struct {
	Movable   int     `toml:"movable"`
	Fixed     int     `toml:"fixed"`
	Filler    int     `toml:"filler"`
	Nets      int     `toml:"nets"`
	MaxDegree int     `toml:"max_degree"`
	Width     float64 `toml:"width"`
	Height    float64 `toml:"height"`
	Noise     float64 `toml:"noise"`
}

// Default returns the parameter set used when no file is given.
func Default() Params {
	return Params{
		Gamma:              4.0,
		IgnoreNetDegree:    100,
		Algorithm:          backend.Sparse.String(),
		Device:             tensor.Host.String(),
		DType:              tensor.Float64.String(),
		NumThreads:         0,
		Optimizer:          OptimizerNesterov,
		LearningRate:       0.01,
		Iterations:         200,
		DensityWeight:      0,
		StopRelImprovement: 1e-5,
		MaxBacktracks:      10,
		ScaleFactor:        1,
		HPWLInterval:       10,
		CheckpointInterval: 0,
		Seed:               1,
		Synthetic: Synthetic{
			Movable:   1000,
			Fixed:     50,
			Filler:    100,
			Nets:      1200,
			MaxDegree: 8,
			Width:     1000,
			Height:    1000,
			Noise:     0.05,
		},
	}
}

// Load reads a TOML file over the defaults. Keys absent from the file keep
// their default values; unknown keys are rejected.
func Load(path string) (Params, error) {
	p := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("config: %w", err)
	}
	md, err := toml.Decode(string(data), &p)
	if err != nil {
		return p, fmt.Errorf("config: %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return p, placeerr.Configf("config.Load", undecoded[0].String(), "unknown key in %s", path)
	}
	return p, nil
}

// Validate checks every field and returns the first problem as a
// *placeerr.ConfigError.
func (p *Params) Validate() error {
	const op = "config.Validate"
	if !(p.Gamma > 0) || math.IsInf(p.Gamma, 0) {
		return placeerr.Configf(op, "gamma", "must be positive and finite, got %v", p.Gamma)
	}
	if p.IgnoreNetDegree < 0 {
		return placeerr.Configf(op, "ignore_net_degree", "must be >= 0, got %d", p.IgnoreNetDegree)
	}
	alg, err := backend.ParseAlgorithm(p.Algorithm)
	if err != nil {
		return err
	}
	dev, err := tensor.ParseDevice(p.Device)
	if err != nil {
		return placeerr.Configf(op, "device", "%v", err)
	}
	dt, err := tensor.ParseDataType(p.DType)
	if err != nil {
		return placeerr.Configf(op, "dtype", "%v", err)
	}
	if alg == backend.Atomic && dev != tensor.Accelerator {
		return placeerr.Configf(op, "wirelength_algorithm", "atomic requires device accel")
	}
	if p.WebGPU && (dev != tensor.Accelerator || dt != tensor.Float32) {
		return placeerr.Configf(op, "webgpu", "requires device accel and dtype float32")
	}
	if p.NumThreads < 0 {
		return placeerr.Configf(op, "num_threads", "must be >= 0, got %d", p.NumThreads)
	}
	switch p.Optimizer {
	case OptimizerNesterov, OptimizerCG:
	default:
		return placeerr.Configf(op, "optimizer", "unknown optimizer %q (want %s or %s)", p.Optimizer, OptimizerNesterov, OptimizerCG)
	}
	if math.IsNaN(p.LearningRate) || p.LearningRate < 0 {
		return placeerr.Configf(op, "learning_rate", "must be >= 0, got %v", p.LearningRate)
	}
	if p.Iterations < 0 {
		return placeerr.Configf(op, "iterations", "must be >= 0, got %d", p.Iterations)
	}
	if math.IsNaN(p.DensityWeight) || p.DensityWeight < 0 {
		return placeerr.Configf(op, "density_weight", "must be >= 0, got %v", p.DensityWeight)
	}
	if math.IsNaN(p.StopRelImprovement) || p.StopRelImprovement < 0 {
		return placeerr.Configf(op, "stop_rel_improvement", "must be >= 0, got %v", p.StopRelImprovement)
	}
	if p.MaxBacktracks < 1 {
		return placeerr.Configf(op, "max_backtracks", "must be >= 1, got %d", p.MaxBacktracks)
	}
	if !(p.ScaleFactor > 0) || math.IsInf(p.ScaleFactor, 0) {
		return placeerr.Configf(op, "scale_factor", "must be positive and finite, got %v", p.ScaleFactor)
	}
	if p.HPWLInterval < 0 || p.CheckpointInterval < 0 {
		return placeerr.Configf(op, "hpwl_interval/checkpoint_interval", "must be >= 0")
	}
	if p.CheckpointInterval > 0 && p.CheckpointPath == "" {
		return placeerr.Configf(op, "checkpoint_path", "required when checkpoint_interval > 0")
	}
	s := p.Synthetic
	if s.Movable < 1 || s.Fixed < 0 || s.Filler < 0 || s.Nets < 0 {
		return placeerr.Configf(op, "synthetic", "needs at least one movable object and non-negative counts")
	}
	if s.Movable+s.Fixed < 2 && s.Nets > 0 {
		return placeerr.Configf(op, "synthetic", "nets need at least two connectable objects")
	}
	if !(s.Width > 0) || !(s.Height > 0) {
		return placeerr.Configf(op, "synthetic", "region must have positive width and height")
	}
	return nil
}

// AlgorithmValue returns the parsed wirelength strategy. Call after Validate.
func (p *Params) AlgorithmValue() backend.Algorithm {
	a, _ := backend.ParseAlgorithm(p.Algorithm)
	return a
}

// DeviceValue returns the parsed device. Call after Validate.
func (p *Params) DeviceValue() tensor.Device {
	d, _ := tensor.ParseDevice(p.Device)
	return d
}

// DataTypeValue returns the parsed element type. Call after Validate.
func (p *Params) DataTypeValue() tensor.DataType {
	d, _ := tensor.ParseDataType(p.DType)
	return d
}
