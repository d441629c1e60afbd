package metrics

import (
	"context"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/born-ml/gplace/internal/optim"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderOnStep(t *testing.T) {
	r := NewRecorder("run-1")
	r.OnStep("nesterov", optim.Stats{Iteration: 1, Evaluations: 3, Backtracks: 3, StepSize: 0.5, Momentum: 1.6, Objective: 10})
	r.OnStep("nesterov", optim.Stats{Iteration: 2, Evaluations: 4, Backtracks: 1, StepSize: 0.25, Momentum: 2.2, Objective: 8})

	assert.Equal(t, 2.0, testutil.ToFloat64(r.iteration.WithLabelValues("nesterov")))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.evaluations.WithLabelValues("nesterov")))
	assert.Equal(t, 0.25, testutil.ToFloat64(r.stepSize.WithLabelValues("nesterov")))
	assert.Equal(t, 2.2, testutil.ToFloat64(r.momentum.WithLabelValues("nesterov")))
	assert.Equal(t, 8.0, testutil.ToFloat64(r.objective.WithLabelValues("nesterov")))

	// Unknown objective keeps the last value.
	r.OnStep("conjugate-gradient", optim.Stats{Iteration: 1, StepSize: 1, Objective: math.NaN()})
	assert.Equal(t, 0.0, testutil.ToFloat64(r.objective.WithLabelValues("conjugate-gradient")))

	r.ObserveHPWL(123.5)
	assert.Equal(t, 123.5, testutil.ToFloat64(r.hpwl))
	r.ObserveFailure("numerical")
	assert.Equal(t, 1.0, testutil.ToFloat64(r.failures.WithLabelValues("numerical")))
}

func TestRouter(t *testing.T) {
	r := NewRecorder("run-2")
	r.OnStep("nesterov", optim.Stats{Iteration: 7, Evaluations: 9, StepSize: 1, Objective: 3})
	srv := httptest.NewServer(NewRouter(r))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", string(body))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	text := string(body)
	assert.True(t, strings.Contains(text, `gplace_iteration{optimizer="nesterov",run_id="run-2"} 7`), text)
	assert.Contains(t, text, "gplace_objective_evaluations_total")
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, "127.0.0.1:0", NewRecorder("run-3")) }()
	cancel()
	assert.NoError(t, <-done)
}
