// Package registry owns the in-memory job map and the watcher/cleaner
// background loops that keep it consistent. It is constructed explicitly
// by its caller (see spec.md design note 9's non-global-singleton
// resolution in DESIGN.md) rather than held in a package-level variable.
package registry

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mdds/slaeworker/internal/jobworker/job"
	"github.com/mdds/slaeworker/internal/log"
	"github.com/mdds/slaeworker/internal/metrics"
	"github.com/mdds/slaeworker/internal/syncmap"
)

// logger is an object for logging package events to stdout.
var logger = log.New(os.Stdout, "registry")

// JoinTimeout bounds how long Stop waits for the watcher and cleaner loops
// to exit after the stop signal is sent.
const JoinTimeout = time.Second

// Registry is the job-lifecycle engine's lifecycle owner: the active job
// map plus the watcher and cleaner loops that keep it consistent. Callers
// construct exactly one Registry and share it; Registry itself holds no
// package-level mutable state.
type Registry struct {
	active *syncmap.Map[job.ID, *job.Record]

	pollInterval time.Duration
	jobTimeout   time.Duration
	resultTTL    time.Duration

	metrics *metrics.Metrics

	mu      sync.Mutex
	started bool
	stop    chan struct{}
	done    chan struct{}
}

// New constructs a Registry. It must be Start'd before use.
func New(pollInterval, jobTimeout, resultTTL time.Duration, m *metrics.Metrics) *Registry {
	return &Registry{
		active:       syncmap.New[job.ID, *job.Record](),
		pollInterval: pollInterval,
		jobTimeout:   jobTimeout,
		resultTTL:    resultTTL,
		metrics:      m,
	}
}

// Start spawns the watcher and cleaner loops. Idempotent: calling Start on
// an already-started Registry is a no-op.
func (r *Registry) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}

	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.started = true

	go r.run(ctx)

	logger.Infof("registry started; poll interval: %s", r.pollInterval)
}

// run drives the watcher and cleaner loops until the stop signal fires,
// then terminates all remaining workers and clears the map.
func (r *Registry) run(ctx context.Context) {
	defer close(r.done)

	var wg sync.WaitGroup
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	wg.Add(2)
	go func() {
		defer wg.Done()
		r.watchLoop(loopCtx)
	}()
	go func() {
		defer wg.Done()
		r.cleanLoop(loopCtx)
	}()

	select {
	case <-r.stop:
	case <-ctx.Done():
	}
	cancel()
	wg.Wait()

	r.terminateAll()
	r.active.Clear()
}

// Stop signals the watcher and cleaner loops, joins them (bounded by
// JoinTimeout), and terminates every remaining worker. Safe to call on a
// Registry that was never started.
func (r *Registry) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	stop := r.stop
	done := r.done
	r.started = false
	r.mu.Unlock()

	close(stop)

	select {
	case <-done:
	case <-time.After(JoinTimeout):
		logger.Warnf("registry stop; watcher/cleaner did not join within %s", JoinTimeout)
	}

	logger.Infof("registry stopped")
}

// terminateAll issues Terminate to every worker still referenced by the
// map. Called only from run, after both loops have exited, outside any
// per-record lock, matching spec.md 5's "process termination never
// happens under any lock".
func (r *Registry) terminateAll() {
	for _, id := range r.active.Keys() {
		rec, ok := r.active.Get(id)
		if !ok {
			continue
		}
		rec.Worker().Terminate()
	}
}

// Put inserts rec keyed by id. Used by the service layer on a successful
// SubmitJob.
func (r *Registry) Put(id job.ID, rec *job.Record) {
	r.active.Put(id, rec)
}

// Get returns the record keyed by id, if present.
func (r *Registry) Get(id job.ID) (*job.Record, bool) {
	return r.active.Get(id)
}

// Has reports whether id is present in the active map.
func (r *Registry) Has(id job.ID) bool {
	_, ok := r.active.Get(id)
	return ok
}

// Size returns the number of active jobs, used to build CancelJob's
// "not found" decline detail.
func (r *Registry) Size() int {
	return r.active.Size()
}

// watchLoop polls every active job's result channel and worker liveness
// every pollInterval, implementing spec.md 4.3 exactly.
func (r *Registry) watchLoop(ctx context.Context) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.watchPass()
		}
	}
}

func (r *Registry) watchPass() {
	keys := r.active.Keys()
	if r.metrics != nil {
		r.metrics.SetActive(len(keys))
	}
	for _, id := range keys {
		rec, ok := r.active.Get(id)
		if !ok {
			continue
		}
		r.watchOne(id, rec)
	}
}

// watchOne inspects a single record, guarding against any panic so one
// bad record can never abort the loop: a panic mid-pass marks the record
// ERROR (if still IN_PROGRESS) rather than leaving it stuck, per spec.md
// 4.3/7's "watcher error" containment.
func (r *Registry) watchOne(id job.ID, rec *job.Record) {
	defer func() {
		if p := recover(); p != nil {
			logger.Errorf("watcher panic recovered; job: %s, panic: %v", id, p)
			rec.MarkError(fmt.Sprintf("Watcher error: %v", p), time.Now())
		}
	}()

	if rec.Status() != job.InProgress {
		return
	}

	select {
	case res, ok := <-rec.ResultChannel():
		if ok {
			rec.ApplyResult(res, time.Now())
			if r.metrics != nil {
				r.metrics.JobTerminal(string(res.Status), time.Since(rec.StartTime()).Seconds())
			}
			return
		}
		// Closed with no value: the worker produced no result, so fall
		// through to the liveness check below.
	default:
	}

	if !rec.Worker().Alive() {
		code, _ := rec.Worker().ExitCode()
		now := time.Now()
		rec.MarkError(fmt.Sprintf("Worker exited, exitcode=%d", code), now)
		if r.metrics != nil {
			r.metrics.JobTerminal(string(job.Error), time.Since(rec.StartTime()).Seconds())
			r.metrics.WorkerDied()
		}
	}
}

// cleanLoop evicts delivered-terminal or TTL-expired records and
// force-terminates timed-out workers, every pollInterval, implementing
// spec.md 4.4 exactly.
func (r *Registry) cleanLoop(ctx context.Context) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.cleanPass()
		}
	}
}

func (r *Registry) cleanPass() {
	now := time.Now()
	for _, id := range r.active.Keys() {
		rec, ok := r.active.Get(id)
		if !ok {
			continue
		}
		r.cleanOne(id, rec, now)
	}
}

func (r *Registry) cleanOne(id job.ID, rec *job.Record, now time.Time) {
	defer func() {
		if p := recover(); p != nil {
			logger.Errorf("cleaner panic recovered; job: %s, panic: %v", id, p)
		}
	}()

	if rec.EvictionEligible(now, r.resultTTL) {
		r.evict(id, rec)
		return
	}

	if rec.TimedOut(now, r.jobTimeout) {
		rec.MarkError(fmt.Sprintf("Timeout for job %s", id), now)
		// Terminate outside any lock Record holds internally; MarkError
		// already released it before returning.
		rec.Worker().Terminate()
		if r.metrics != nil {
			r.metrics.JobTerminal(string(job.Error), now.Sub(rec.StartTime()).Seconds())
		}
	}
}

// evict removes id from the map and calls Terminate on its worker (a
// no-op if already dead). It does not wait on the worker.
func (r *Registry) evict(id job.ID, rec *job.Record) {
	r.active.Pop(id)
	rec.Worker().Terminate()
	logger.Infof("evicted job; job: %s", id)
}
