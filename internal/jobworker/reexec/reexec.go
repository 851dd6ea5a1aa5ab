// Package reexec is the child-process entrypoint a spawned worker runs:
// read one solve request off its input pipe, invoke the named solver, and
// write back exactly one result tuple.
package reexec

import (
	"bytes"
	"context"
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/mdds/slaeworker/internal/jobworker/job"
	"github.com/mdds/slaeworker/internal/jobworker/solver"
	"github.com/mdds/slaeworker/internal/log"
)

// logger is an object for logging package events to stdout.
var logger = log.New(os.Stdout, "reexec")

var (
	// ErrInputPipeNotFound indicates the parent process did not properly
	// configure the input pipe and pass it to the child process.
	ErrInputPipeNotFound = errors.New("input pipe not found")
	// ErrResultPipeNotFound indicates the parent process did not properly
	// configure the result pipe and pass it to the child process.
	ErrResultPipeNotFound = errors.New("result pipe not found")
)

const (
	// ExitSuccess indicates the reexec'd solve completed, successfully or
	// not -- the result tuple itself carries the outcome.
	ExitSuccess = 0
	// ExitFailure indicates the child could not even attempt the solve (a
	// malformed request, a missing pipe); it never got far enough to write
	// a result tuple.
	ExitFailure = 100
)

// request is the JSON envelope read from fd 3, mirroring
// worker.Request's wire shape.
type request struct {
	Method string      `json:"method"`
	Matrix [][]float64 `json:"matrix"`
	RHS    []float64   `json:"rhs"`
}

// result is the JSON envelope written to fd 4, mirroring the worker
// package's resultWire shape.
type result struct {
	Status   job.Status `json:"status"`
	Solution []float64  `json:"solution"`
	Message  string     `json:"message"`
}

// Exec reads the solve request from the parent-supplied input pipe,
// invokes the named solver, and writes the single result tuple to the
// parent-supplied result pipe.
func Exec(ctx context.Context, methods []string) int {
	// Parent process has set /proc/self/fd/3 to the input pipe receiver.
	cmdfd := os.NewFile(uintptr(3), "/proc/self/fd/3")
	if cmdfd == nil {
		logger.Errorf("reexec exec; error: %s", ErrInputPipeNotFound)
		return ExitFailure
	}

	// Parent process has set /proc/self/fd/4 to the result pipe sender.
	resultfd := os.NewFile(uintptr(4), "/proc/self/fd/4")
	if resultfd == nil {
		logger.Errorf("reexec exec; error: %s", ErrResultPipeNotFound)
		return ExitFailure
	}
	defer func() {
		if err := resultfd.Close(); err != nil {
			logger.Errorf("closing result fd; error: %s", err)
		}
	}()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(cmdfd); err != nil {
		logger.Errorf("reading input pipe; error: %s", errors.WithStack(err))
		return ExitFailure
	}

	var req request
	if err := json.Unmarshal(buf.Bytes(), &req); err != nil {
		logger.Errorf("decoding input pipe; error: %s", errors.WithStack(err))
		return ExitFailure
	}

	res := solve(methods, req)

	b, err := json.Marshal(res)
	if err != nil {
		logger.Errorf("marshal result; error: %s", errors.WithStack(err))
		return ExitFailure
	}
	if _, err := resultfd.Write(b); err != nil {
		logger.Errorf("writing result pipe; error: %s", errors.WithStack(err))
		return ExitFailure
	}

	return ExitSuccess
}

// solve runs the named solver against req, translating any failure into an
// ERROR result tuple rather than a process-level failure: once a request
// has been successfully decoded, this process always produces exactly one
// result tuple (the job-lifecycle engine's exactly-once result guarantee).
func solve(methods []string, req request) result {
	registry := solver.NewRegistry(methods)

	impl, ok := registry.Lookup(req.Method)
	if !ok {
		return result{
			Status:  job.Error,
			Message: errors.Errorf("Unknown method: %s", req.Method).Error(),
		}
	}

	solution, err := impl.Solve(req.Matrix, req.RHS)
	if err != nil {
		return result{
			Status:  job.Error,
			Message: err.Error(),
		}
	}

	return result{
		Status:   job.Done,
		Solution: solution,
		Message:  "Solved",
	}
}
