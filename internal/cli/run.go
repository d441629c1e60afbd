package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/born-ml/gplace/internal/config"
	"github.com/born-ml/gplace/internal/metrics"
	"github.com/born-ml/gplace/internal/objective"
	"github.com/born-ml/gplace/internal/placedb"
	"github.com/born-ml/gplace/internal/placer"
	"github.com/born-ml/gplace/internal/tensor"
)

type runFlags struct {
	config string
	params config.Params
}

func newRunCmd() *cobra.Command {
	f := &runFlags{params: config.Default()}
	return f.command()
}

// command builds the run command with its flags bound to f.params.
func (f *runFlags) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Place a synthetic benchmark",
		Long: `Run generates a reproducible synthetic design and places it.

Parameters come from the defaults, then the optional --config TOML file, then
explicitly set flags.`,
		Example: `  gplace run --objects 5000 --nets 6000 --iterations 300
  gplace run --config place.toml --device accel --algorithm atomic
  gplace run --optimizer cg --line-search --metrics-addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := f.resolve(cmd.Flags())
			if err != nil {
				return err
			}
			return runPlacement(cmd.Context(), cmd.OutOrStdout(), params)
		},
	}

	p := &f.params
	fs := cmd.Flags()
	fs.StringVar(&f.config, "config", "", "TOML parameter file")
	fs.Float64Var(&p.Gamma, "gamma", p.Gamma, "log-sum-exp smoothing coefficient")
	fs.IntVar(&p.IgnoreNetDegree, "ignore-net-degree", p.IgnoreNetDegree, "exclude nets with at least this many pins (0 keeps all)")
	fs.StringVar(&p.Algorithm, "algorithm", p.Algorithm, "wirelength strategy: net-by-net, atomic or sparse")
	fs.StringVar(&p.Device, "device", p.Device, "compute device: host or accel")
	fs.StringVar(&p.DType, "dtype", p.DType, "working precision: float32 or float64")
	fs.IntVar(&p.NumThreads, "threads", p.NumThreads, "worker threads (0 uses every CPU)")
	fs.BoolVar(&p.WebGPU, "webgpu", p.WebGPU, "run accelerator kernels through WebGPU (float32 only)")
	fs.StringVar(&p.Optimizer, "optimizer", p.Optimizer, "optimizer: nesterov or cg")
	fs.Float64Var(&p.LearningRate, "lr", p.LearningRate, "learning rate")
	fs.IntVar(&p.Iterations, "iterations", p.Iterations, "iteration budget")
	fs.Float64Var(&p.DensityWeight, "density-weight", p.DensityWeight, "weight of the anchor penalty")
	fs.Float64Var(&p.StopRelImprovement, "stop-rel", p.StopRelImprovement, "stop when the relative objective change falls below this (0 disables)")
	fs.BoolVar(&p.LineSearch, "line-search", p.LineSearch, "use a backtracking line search with cg")
	fs.IntVar(&p.MaxBacktracks, "max-backtracks", p.MaxBacktracks, "nesterov step size refinement passes")
	fs.Float64Var(&p.ScaleFactor, "scale", p.ScaleFactor, "coordinate scale factor")
	fs.IntVar(&p.HPWLInterval, "hpwl-interval", p.HPWLInterval, "iterations between HPWL reports (0 disables)")
	fs.StringVar(&p.CheckpointPath, "checkpoint", p.CheckpointPath, "checkpoint file")
	fs.IntVar(&p.CheckpointInterval, "checkpoint-interval", p.CheckpointInterval, "iterations between checkpoints (0 writes only at the end)")
	fs.StringVar(&p.ResumeFrom, "resume", p.ResumeFrom, "resume from a checkpoint file")
	fs.StringVar(&p.MetricsAddr, "metrics-addr", p.MetricsAddr, "serve Prometheus metrics on this address")
	fs.Uint64Var(&p.Seed, "seed", p.Seed, "benchmark random seed")
	fs.IntVar(&p.Synthetic.Movable, "objects", p.Synthetic.Movable, "movable objects")
	fs.IntVar(&p.Synthetic.Fixed, "fixed", p.Synthetic.Fixed, "fixed objects")
	fs.IntVar(&p.Synthetic.Filler, "fillers", p.Synthetic.Filler, "filler objects")
	fs.IntVar(&p.Synthetic.Nets, "nets", p.Synthetic.Nets, "nets")
	fs.IntVar(&p.Synthetic.MaxDegree, "max-degree", p.Synthetic.MaxDegree, "largest generated net degree")
	return cmd
}

// resolve layers explicitly set flags over the config file over defaults.
func (f *runFlags) resolve(fs *pflag.FlagSet) (config.Params, error) {
	if f.config == "" {
		return f.params, f.params.Validate()
	}
	changed := make(map[string]string)
	fs.Visit(func(fl *pflag.Flag) {
		if fl.Name != "config" {
			changed[fl.Name] = fl.Value.String()
		}
	})
	loaded, err := config.Load(f.config)
	if err != nil {
		return loaded, err
	}
	// The flags are bound to f.params, so setting them again overlays the
	// command line on the file values.
	f.params = loaded
	for name, value := range changed {
		if err := fs.Set(name, value); err != nil {
			return f.params, err
		}
	}
	return f.params, f.params.Validate()
}

func runPlacement(ctx context.Context, out io.Writer, params config.Params) error {
	if params.DataTypeValue() == tensor.Float64 {
		return runTyped[float64](ctx, out, params)
	}
	return runTyped[float32](ctx, out, params)
}

func runTyped[T tensor.Float](ctx context.Context, out io.Writer, params config.Params) error {
	logger := loggerFromContext(ctx)
	runID := uuid.NewString()

	s := params.Synthetic
	design, err := placedb.Synthetic[T](placedb.SyntheticConfig{
		NumMovable: s.Movable,
		NumFixed:   s.Fixed,
		NumFiller:  s.Filler,
		NumNets:    s.Nets,
		MaxDegree:  s.MaxDegree,
		Width:      s.Width,
		Height:     s.Height,
		NoiseRatio: s.Noise,
	}, params.Seed)
	if err != nil {
		return err
	}
	problem := placer.Problem[T]{Design: design}
	if params.DensityWeight > 0 {
		problem.Density = objective.Anchor(design.Init)
	}

	opts := placer.Options{RunID: runID, Logger: logger}
	if params.MetricsAddr != "" {
		rec := metrics.NewRecorder(runID)
		opts.Metrics = rec
		stop := serveMetrics(ctx, logger, params.MetricsAddr, rec)
		defer stop()
	}

	res, err := placer.Run(ctx, params, problem, opts)
	if res != nil {
		fmt.Fprintf(out, "%s: %s\n", runID, res)
	}
	return err
}

// serveMetrics runs the metrics endpoint in the background and returns a
// function that shuts it down.
func serveMetrics(ctx context.Context, logger *log.Logger, addr string, rec *metrics.Recorder) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("serving metrics", "addr", addr)
		if err := metrics.Serve(ctx, addr, rec); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("metrics server stopped", "err", err)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
