package worker_test

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mdds/slaeworker/internal/jobworker/job"
	"github.com/mdds/slaeworker/internal/jobworker/worker"
)

// requireTestBinary skips this package's integration tests unless
// SLAEWORKER_TEST_BINARY names a built slaeworker executable, and points
// Spawn at it for the duration of the test: Spawn re-execs the current
// process's own executable by default, which under `go test` is the test
// binary itself, not slaeworker.
func requireTestBinary(t *testing.T) {
	bin := os.Getenv("SLAEWORKER_TEST_BINARY")
	if bin == "" {
		t.Skip("set SLAEWORKER_TEST_BINARY to a built slaeworker binary to run worker integration tests")
	}
	resolved, err := exec.LookPath(bin)
	if err != nil {
		t.Skipf("SLAEWORKER_TEST_BINARY %q not found: %s", bin, err)
	}

	worker.SetExecutableForTest(resolved)
	t.Cleanup(func() { worker.SetExecutableForTest("") })
}

func TestSpawnSolvesAndDelivers(t *testing.T) {
	requireTestBinary(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, err := worker.Spawn(ctx, worker.Request{
		Method: "numpy_exact",
		Matrix: [][]float64{{2, 0}, {0, 2}},
		RHS:    []float64{4, 6},
	})
	require.NoError(t, err)
	require.True(t, p.Pid() > 0)

	select {
	case res, ok := <-p.ResultChannel():
		require.True(t, ok)
		require.Equal(t, job.Done, res.Status)
		require.InDeltaSlice(t, []float64{2, 3}, res.Solution, 1e-6)
	case <-ctx.Done():
		t.Fatal("timed out waiting for worker result")
	}
}

func TestTerminateStopsRunningWorker(t *testing.T) {
	requireTestBinary(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// scipy_gmres on a well-conditioned system still takes measurable
	// time; Terminate is called immediately so this exercises the
	// SIGTERM path regardless of whether the solver would have finished.
	p, err := worker.Spawn(ctx, worker.Request{
		Method: "scipy_gmres",
		Matrix: [][]float64{{4, 1}, {1, 3}},
		RHS:    []float64{1, 2},
	})
	require.NoError(t, err)

	p.Terminate()

	deadline := time.After(5 * time.Second)
	for p.Alive() {
		select {
		case <-deadline:
			t.Fatal("worker still alive after Terminate")
		case <-time.After(50 * time.Millisecond):
		}
	}
}
