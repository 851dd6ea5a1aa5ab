package reexec_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mdds/slaeworker/internal/jobworker/job"
	"github.com/mdds/slaeworker/internal/jobworker/reexec"
)

// Exec hardcodes fd 3 and fd 4 via os.NewFile(uintptr(3|4), ...), so this
// test cannot substitute its own pipes. It checks only Exec's failure path
// when those fds are unusable, which returns before solve is reached;
// solver coverage comes from internal/jobworker/solver's own tests.
func TestExecFailsCleanlyWithoutPipes(t *testing.T) {
	// fd 3 and 4 are not open in the test process, so NewFile returns a
	// non-nil *os.File wrapping a bad fd; the first read must fail and
	// Exec must return ExitFailure rather than panic.
	code := reexec.Exec(context.Background(), []string{"numpy_exact"})
	require.Equal(t, reexec.ExitFailure, code)
}

// TestResultWireRoundTrip round-trips a local copy of the JSON shape Exec
// writes to fd 4. It declares its own struct and does not reference the
// worker package's decoder type or this package's encoder type.
func TestResultWireRoundTrip(t *testing.T) {
	type wire struct {
		Status   job.Status `json:"status"`
		Solution []float64  `json:"solution"`
		Message  string     `json:"message"`
	}

	b, err := json.Marshal(wire{Status: job.Done, Solution: []float64{1, 2}, Message: "Solved"})
	require.NoError(t, err)

	var decoded wire
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Equal(t, job.Done, decoded.Status)
	require.Equal(t, []float64{1, 2}, decoded.Solution)
}
