package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/gplace/internal/config"
	"github.com/born-ml/gplace/internal/placeerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	root := NewRootCommand(&logs)
	root.SetOut(&out)
	root.SetErr(&logs)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), logs.String(), err
}

func TestVersion(t *testing.T) {
	SetVersion("v1.2.3", "abc123", "2026-01-01")
	defer SetVersion("dev", "none", "unknown")

	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "gplace v1.2.3")
	assert.Contains(t, out, "commit: abc123")
}

func TestRun(t *testing.T) {
	out, logs, err := execute(t, "run",
		"--objects", "30", "--fixed", "4", "--fillers", "2", "--nets", "30",
		"--iterations", "5", "--dtype", "float64", "--threads", "1", "--stop-rel", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "iterations after 5 iterations")
	assert.Contains(t, logs, "placement started")
	assert.Contains(t, logs, "placement finished")
}

func TestRun_Defaults(t *testing.T) {
	out, logs, err := execute(t, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "iterations")
	assert.Contains(t, logs, "placement finished")
	assert.NotContains(t, logs, "numerical degeneracy")
}

func TestRun_Float32OnDefaultRegion(t *testing.T) {
	_, _, err := execute(t, "run", "--dtype", "float32", "--iterations", "1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, placeerr.ErrConfig), "got %v", err)
	assert.Contains(t, err.Error(), "float32 overflows exp")
}

func TestRun_Verbose(t *testing.T) {
	_, logs, err := execute(t, "run", "-v",
		"--objects", "20", "--fixed", "2", "--fillers", "0", "--nets", "20",
		"--iterations", "2", "--dtype", "float64", "--optimizer", "cg", "--line-search", "--lr", "1")
	require.NoError(t, err)
	assert.Contains(t, logs, "line search")
}

func TestRun_InvalidFlags(t *testing.T) {
	_, _, err := execute(t, "run", "--algorithm", "atomic")
	assert.True(t, errors.Is(err, placeerr.ErrConfig), "got %v", err)

	_, _, err = execute(t, "run", "--optimizer", "adam")
	assert.True(t, errors.Is(err, placeerr.ErrConfig), "got %v", err)
}

func TestResolve_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "place.toml")
	require.NoError(t, os.WriteFile(path, []byte("gamma = 8.0\niterations = 3\noptimizer = \"cg\"\n"), 0o600))

	f := &runFlags{params: config.Default()}
	cmd := f.command()
	require.NoError(t, cmd.Flags().Parse([]string{"--config", path, "--iterations", "7"}))

	params, err := f.resolve(cmd.Flags())
	require.NoError(t, err)
	assert.Equal(t, 8.0, params.Gamma, "from file")
	assert.Equal(t, 7, params.Iterations, "flag wins")
	assert.Equal(t, "cg", params.Optimizer, "from file")
	assert.Equal(t, config.Default().LearningRate, params.LearningRate, "default")
}

func TestResolve_NoFile(t *testing.T) {
	f := &runFlags{params: config.Default()}
	cmd := f.command()
	require.NoError(t, cmd.Flags().Parse([]string{"--gamma", "0.5"}))

	params, err := f.resolve(cmd.Flags())
	require.NoError(t, err)
	assert.Equal(t, 0.5, params.Gamma)
}
