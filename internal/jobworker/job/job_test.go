package job_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdds/slaeworker/internal/jobworker/job"
)

// fakeWorker is a minimal job.Worker double for unit-testing Record in
// isolation from the real process-spawning worker package.
type fakeWorker struct {
	alive    bool
	pid      int
	exitCode int
	exited   bool
	result   chan job.Result
}

func newFakeWorker() *fakeWorker {
	return &fakeWorker{alive: true, pid: 4242, result: make(chan job.Result, 1)}
}

func (w *fakeWorker) Alive() bool                      { return w.alive }
func (w *fakeWorker) Pid() int                         { return w.pid }
func (w *fakeWorker) ExitCode() (int, bool)            { return w.exitCode, w.exited }
func (w *fakeWorker) ResultChannel() <-chan job.Result { return w.result }
func (w *fakeWorker) Terminate()                       { w.alive = false }

func TestNewRecordIsInProgress(t *testing.T) {
	w := newFakeWorker()
	start := time.Now()
	r := job.New(w, start)

	snap := r.Snapshot()
	assert.Equal(t, job.InProgress, snap.Status)
	assert.Empty(t, snap.Solution)
	assert.Equal(t, "Job submitted and is in progress", snap.Message)
	assert.True(t, snap.EndTime.IsZero())
	assert.False(t, snap.Delivered)
}

func TestApplyResultTransitionsOnce(t *testing.T) {
	w := newFakeWorker()
	r := job.New(w, time.Now())

	now := time.Now()
	r.ApplyResult(job.Result{Status: job.Done, Solution: []float64{1, 2}, Message: "Solved"}, now)

	snap := r.Snapshot()
	assert.Equal(t, job.Done, snap.Status)
	assert.Equal(t, []float64{1, 2}, snap.Solution)
	assert.False(t, snap.EndTime.IsZero())

	// A second terminal transition must be a no-op (at most one terminal
	// transition per job, per spec.md 8).
	later := now.Add(time.Second)
	r.ApplyResult(job.Result{Status: job.Error, Message: "should be ignored"}, later)
	snap2 := r.Snapshot()
	assert.Equal(t, job.Done, snap2.Status)
	assert.Equal(t, snap.EndTime, snap2.EndTime)
}

func TestCancelDeclinesWhenNotInProgress(t *testing.T) {
	w := newFakeWorker()
	r := job.New(w, time.Now())
	r.ApplyResult(job.Result{Status: job.Done, Solution: []float64{1}, Message: "Solved"}, time.Now())

	ok, status := r.Cancel(time.Now())
	require.False(t, ok)
	assert.Equal(t, job.Done, status)
}

func TestCancelSucceedsWhenInProgress(t *testing.T) {
	w := newFakeWorker()
	r := job.New(w, time.Now())

	ok, status := r.Cancel(time.Now())
	require.True(t, ok)
	assert.Equal(t, job.Cancelled, status)

	snap := r.Snapshot()
	assert.Equal(t, job.Cancelled, snap.Status)
	assert.Equal(t, "Cancelled by request", snap.Message)
	assert.False(t, snap.EndTime.IsZero())
}

func TestObserveForDeliveryMarksDeliveredOnlyWhenTerminal(t *testing.T) {
	w := newFakeWorker()
	r := job.New(w, time.Now())

	snap := r.ObserveForDelivery()
	assert.False(t, snap.Delivered, "in-progress observation must not mark delivered")

	r.ApplyResult(job.Result{Status: job.Error, Message: "boom"}, time.Now())
	snap = r.ObserveForDelivery()
	assert.True(t, snap.Delivered)
}

func TestEvictionEligibility(t *testing.T) {
	w := newFakeWorker()
	r := job.New(w, time.Now())

	// Still in progress: never evictable.
	assert.False(t, r.EvictionEligible(time.Now(), time.Hour))

	r.ApplyResult(job.Result{Status: job.Done, Solution: []float64{1}, Message: "Solved"}, time.Now())

	// Terminal, but worker still alive: not evictable yet.
	assert.False(t, r.EvictionEligible(time.Now(), time.Hour))

	w.alive = false

	// Terminal, worker dead, not delivered, within TTL: not evictable.
	assert.False(t, r.EvictionEligible(time.Now(), time.Hour))

	// Terminal, worker dead, delivered: evictable immediately regardless
	// of TTL (spec.md 9 Open Question resolution).
	r.ObserveForDelivery()
	assert.True(t, r.EvictionEligible(time.Now(), time.Hour))
}

func TestEvictionEligibleAfterTTLWithoutDelivery(t *testing.T) {
	w := newFakeWorker()
	w.alive = false
	r := job.New(w, time.Now())
	past := time.Now().Add(-time.Hour)
	r.ApplyResult(job.Result{Status: job.Error, Message: "boom"}, past)

	assert.False(t, r.EvictionEligible(time.Now(), time.Hour*2))
	assert.True(t, r.EvictionEligible(time.Now(), time.Minute))
}

func TestTimedOut(t *testing.T) {
	w := newFakeWorker()
	start := time.Now().Add(-time.Minute)
	r := job.New(w, start)

	assert.True(t, r.TimedOut(time.Now(), 30*time.Second))
	assert.False(t, r.TimedOut(time.Now(), 2*time.Minute))

	r.ApplyResult(job.Result{Status: job.Done, Solution: []float64{0}}, time.Now())
	assert.False(t, r.TimedOut(time.Now(), 0), "terminal jobs are never timed out")
}
