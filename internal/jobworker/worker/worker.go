// Package worker supervises a single solver invocation in an isolated
// child process, the Go rendering of multiprocessing.Process-style
// isolation built the way the teacher builds its own child-process
// isolation: a reexec of the current executable connected to its
// supervisor over a pair of anonymous pipes.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mdds/slaeworker/internal/jobworker/job"
	"github.com/mdds/slaeworker/internal/log"
)

// logger is an object for logging package events to stdout.
var logger = log.New(os.Stdout, "worker")

// GracePeriod is how long Terminate waits after SIGTERM before escalating
// to SIGKILL.
const GracePeriod = 3 * time.Second

// resolveExecutable returns the path Spawn re-execs with "reexec". It
// defaults to os.Executable, overridable so tests can point Spawn at a
// real built slaeworker binary instead of the test binary itself.
var resolveExecutable = os.Executable

// SetExecutableForTest overrides the executable Spawn re-execs; passing
// an empty string restores the os.Executable default. For use by
// integration tests only.
func SetExecutableForTest(path string) {
	if path == "" {
		resolveExecutable = os.Executable
		return
	}
	resolveExecutable = func() (string, error) { return path, nil }
}

// Request is the JSON envelope written to the worker's input pipe.
type Request struct {
	Method string      `json:"method"`
	Matrix [][]float64 `json:"matrix"`
	RHS    []float64   `json:"rhs"`
}

// resultWire is the JSON envelope read from the worker's result pipe; it
// mirrors job.Result but keeps wire concerns (JSON tags) out of the job
// package.
type resultWire struct {
	Status   job.Status `json:"status"`
	Solution []float64  `json:"solution"`
	Message  string     `json:"message"`
}

// Process supervises one reexec'd solver child, satisfying job.Worker.
type Process struct {
	id  uuid.UUID
	cmd *exec.Cmd

	cmdOut, cmdIn       *os.File
	resultOut, resultIn *os.File
	resultChannel       chan job.Result

	mu       sync.Mutex
	exited   bool
	exitCode int

	terminateOnce sync.Once
}

// Spawn starts a new worker process and sends it req over the input pipe.
// The returned Process implements job.Worker; its ResultChannel delivers
// exactly one job.Result and is then closed, or is closed with no value if
// the worker dies before producing one.
func Spawn(ctx context.Context, req Request) (*Process, error) {
	var closers []io.Closer
	cleanup := func() {
		for _, c := range closers {
			c.Close()
		}
	}

	cmdOut, cmdIn, err := os.Pipe()
	if err != nil {
		return nil, errors.Wrap(err, "new worker input pipe")
	}
	closers = append(closers, cmdOut, cmdIn)

	resultOut, resultIn, err := os.Pipe()
	if err != nil {
		cleanup()
		return nil, errors.Wrap(err, "new worker result pipe")
	}
	closers = append(closers, resultOut, resultIn)

	executable, err := resolveExecutable()
	if err != nil {
		cleanup()
		return nil, errors.Wrap(err, "resolve current executable")
	}

	cmd := exec.CommandContext(ctx, executable, "reexec")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.ExtraFiles = []*os.File{cmdOut, resultIn}
	cmd.Stderr = os.Stderr
	// Spawn-style isolation: the child receives only its inherited
	// environment plus the one method identifier it needs to look up,
	// rather than any mutable in-process supervisor state (e.g. the full
	// solver.Registry).
	cmd.Env = append(os.Environ(), "SLAEWORKER_METHODS="+req.Method)

	id := uuid.New()
	p := &Process{
		id:            id,
		cmd:           cmd,
		cmdOut:        cmdOut,
		cmdIn:         cmdIn,
		resultOut:     resultOut,
		resultIn:      resultIn,
		resultChannel: make(chan job.Result, 1),
		exitCode:      -1,
	}

	if err := cmd.Start(); err != nil {
		cleanup()
		return nil, errors.Wrap(err, "start worker child process")
	}

	// The supervisor only uses the write end of the input pipe and the
	// read end of the result pipe; the ends handed to the child are
	// closed here so EOF propagates correctly.
	if err := cmdOut.Close(); err != nil {
		logger.Warnf("closing input pipe child end; worker: %s, error: %s", id, err)
	}
	if err := resultIn.Close(); err != nil {
		logger.Warnf("closing result pipe child end; worker: %s, error: %s", id, err)
	}

	go p.writeRequest(req)
	go p.readResult()
	go p.wait()

	logger.Infof("spawned worker; id: %s, pid: %d, method: %s", id, cmd.Process.Pid, req.Method)
	return p, nil
}

// writeRequest marshals req to the input pipe and closes the supervisor's
// write end, signaling EOF to the child.
func (p *Process) writeRequest(req Request) {
	defer func() {
		if err := p.cmdIn.Close(); err != nil {
			logger.Warnf("closing input pipe; worker: %s, error: %s", p.id, err)
		}
	}()

	b, err := json.Marshal(req)
	if err != nil {
		logger.Errorf("marshal worker request; worker: %s, error: %s", p.id, err)
		return
	}
	if _, err := p.cmdIn.Write(b); err != nil {
		logger.Errorf("write worker request; worker: %s, error: %s", p.id, err)
	}
}

// readResult blocks reading the result pipe to EOF, decodes the single
// JSON tuple the child wrote, and delivers it on resultChannel before
// closing it. If the child produced no parseable result (died before
// writing, or was killed), the channel is closed with no value.
func (p *Process) readResult() {
	defer close(p.resultChannel)
	defer p.resultOut.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(p.resultOut); err != nil {
		logger.Warnf("reading worker result pipe; worker: %s, error: %s", p.id, err)
		return
	}
	if buf.Len() == 0 {
		return
	}

	var wire resultWire
	if err := json.Unmarshal(buf.Bytes(), &wire); err != nil {
		logger.Errorf("decode worker result; worker: %s, error: %s", p.id, err)
		return
	}

	p.resultChannel <- job.Result{
		Status:   wire.Status,
		Solution: wire.Solution,
		Message:  wire.Message,
	}
}

// wait blocks until the child process exits and records its exit code.
func (p *Process) wait() {
	err := p.cmd.Wait()

	code := -1
	if p.cmd.ProcessState != nil {
		code = p.cmd.ProcessState.ExitCode()
	}
	if err != nil && code == -1 {
		logger.Warnf("worker wait; worker: %s, error: %s", p.id, err)
	}

	p.mu.Lock()
	p.exited = true
	p.exitCode = code
	p.mu.Unlock()

	// resultOut is left to readResult, which closes it after reading to EOF.
	for _, c := range []io.Closer{p.cmdOut, p.cmdIn, p.resultIn} {
		_ = c.Close()
	}
}

// Alive implements job.Worker.
func (p *Process) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.exited
}

// Pid implements job.Worker.
func (p *Process) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// ExitCode implements job.Worker.
func (p *Process) ExitCode() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, p.exited
}

// ResultChannel implements job.Worker.
func (p *Process) ResultChannel() <-chan job.Result {
	return p.resultChannel
}

// Terminate implements job.Worker: SIGTERM the worker's process group,
// wait GracePeriod, and escalate to SIGKILL if it is still alive -- the Go
// rendering of terminate-then-join-then-kill.
func (p *Process) Terminate() {
	p.terminateOnce.Do(func() {
		pid := p.Pid()
		if pid == 0 {
			return
		}

		if err := signalGroup(pid, unix.SIGTERM); err != nil {
			logger.Warnf("SIGTERM worker; worker: %s, pid: %d, error: %s", p.id, pid, err)
		}

		deadline := time.NewTimer(GracePeriod)
		defer deadline.Stop()
		for {
			if !p.Alive() {
				return
			}
			select {
			case <-deadline.C:
				if p.Alive() {
					logger.Warnf("worker did not exit after SIGTERM, escalating to SIGKILL; worker: %s, pid: %d", p.id, pid)
					if err := signalGroup(pid, unix.SIGKILL); err != nil {
						logger.Errorf("SIGKILL worker; worker: %s, pid: %d, error: %s", p.id, pid, err)
					}
				}
				return
			case <-time.After(20 * time.Millisecond):
			}
		}
	})
}

func signalGroup(pid int, sig unix.Signal) error {
	pgid, err := unix.Getpgid(pid)
	if err != nil {
		return errors.Wrap(err, "resolve process group")
	}
	if err := unix.Kill(-pgid, sig); err != nil {
		return errors.Wrap(err, fmt.Sprintf("signal process group %d", pgid))
	}
	return nil
}
