// Package service implements the three request-serving operations --
// SubmitJob, CancelJob, GetJobStatus -- that mutate a registry.Registry
// under concurrency and return a response envelope.
package service

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/mdds/slaeworker/internal/jobworker/job"
	"github.com/mdds/slaeworker/internal/jobworker/registry"
	"github.com/mdds/slaeworker/internal/jobworker/solver"
	"github.com/mdds/slaeworker/internal/jobworker/worker"
	"github.com/mdds/slaeworker/internal/log"
	"github.com/mdds/slaeworker/internal/metrics"
	"github.com/mdds/slaeworker/internal/validator"
)

// logger is an object for logging package events to stdout.
var logger = log.New(os.Stdout, "service")

// Response is the envelope every operation returns.
type Response struct {
	RequestStatus        job.RequestStatus
	RequestStatusDetails string
	JobID                job.ID

	// Populated only by GetJobStatus.
	StartTime time.Time
	EndTime   time.Time
	Progress  int
	Status    job.Status
	Solution  []float64
	Message   string
}

// Spawner starts an isolated worker process for one solve request. It is
// satisfied by worker.Spawn; tests substitute a deterministic fake so
// SubmitJob can be exercised without forking a real OS process.
type Spawner func(ctx context.Context, req worker.Request) (job.Worker, error)

// spawnProcess adapts worker.Spawn to the Spawner signature.
func spawnProcess(ctx context.Context, req worker.Request) (job.Worker, error) {
	return worker.Spawn(ctx, req)
}

// Service wires a registry.Registry and a solver.Registry together behind
// the three request-serving operations. JobTimeout is duplicated here
// (rather than read off the registry) because the progress calculation in
// GetJobStatus needs it directly.
type Service struct {
	registry   *registry.Registry
	solvers    *solver.Registry
	jobTimeout time.Duration
	metrics    *metrics.Metrics
	spawn      Spawner
}

// New constructs a Service that spawns real worker processes.
func New(reg *registry.Registry, solvers *solver.Registry, jobTimeout time.Duration, m *metrics.Metrics) *Service {
	return NewWithSpawner(reg, solvers, jobTimeout, m, spawnProcess)
}

// NewWithSpawner constructs a Service using spawn in place of
// worker.Spawn, letting tests and alternate transports substitute their
// own worker-process strategy.
func NewWithSpawner(reg *registry.Registry, solvers *solver.Registry, jobTimeout time.Duration, m *metrics.Metrics, spawn Spawner) *Service {
	return &Service{registry: reg, solvers: solvers, jobTimeout: jobTimeout, metrics: m, spawn: spawn}
}

func declined(id job.ID, detail string) Response {
	return Response{RequestStatus: job.Declined, RequestStatusDetails: detail, JobID: id}
}

// SubmitJob implements spec.md 4.6.1 exactly: jobId/method preconditions,
// spawn-style worker isolation, and registry insertion on success.
func (s *Service) SubmitJob(ctx context.Context, id job.ID, method string, matrix [][]float64, rhs []float64) Response {
	v := validator.Validator{}
	v.Assert(string(id) != "", "jobId")
	if v.Err() != nil {
		s.declineMetric("submit")
		return declined(id, "Job id is invalid: empty or null")
	}

	if s.registry.Has(id) {
		s.declineMetric("submit")
		return declined(id, "Job already submitted")
	}

	if !s.solvers.Known(method) {
		s.declineMetric("submit")
		return declined(id, fmt.Sprintf("Unknown method: %s", method))
	}

	w, err := s.spawn(ctx, worker.Request{Method: method, Matrix: matrix, RHS: rhs})
	if err != nil {
		logger.Errorf("spawn worker; job: %s, error: %s", id, err)
		s.declineMetric("submit")
		return declined(id, fmt.Sprintf("Unable to start worker: %s", err))
	}

	rec := job.New(w, time.Now())
	s.registry.Put(id, rec)
	if s.metrics != nil {
		s.metrics.JobSubmitted()
	}

	logger.Infof("job submitted; job: %s, method: %s", id, method)
	return Response{
		RequestStatus:        job.Completed,
		RequestStatusDetails: fmt.Sprintf("Successfully submitted job %s", id),
		JobID:                id,
	}
}

func (s *Service) declineMetric(operation string) {
	if s.metrics != nil {
		s.metrics.JobDeclined(operation)
	}
}

// CancelJob implements spec.md 4.6.2 exactly.
func (s *Service) CancelJob(id job.ID) Response {
	if string(id) == "" {
		s.declineMetric("cancel")
		return declined(id, "Job id is empty")
	}

	rec, ok := s.registry.Get(id)
	if !ok {
		s.declineMetric("cancel")
		return declined(id, fmt.Sprintf("Job %s is not found. Total active jobs count: %d", id, s.registry.Size()))
	}

	ok, status := rec.Cancel(time.Now())
	if !ok {
		s.declineMetric("cancel")
		return declined(id, fmt.Sprintf("Job %s is not in IN_PROGRESS state. Job status is %s", id, status))
	}

	// Terminate outside any lock rec holds internally -- Cancel has
	// already released it by the time it returns.
	rec.Worker().Terminate()
	if s.metrics != nil {
		s.metrics.JobTerminal(string(job.Cancelled), time.Since(rec.StartTime()).Seconds())
	}

	logger.Infof("job cancelled; job: %s", id)
	return Response{
		RequestStatus:        job.Completed,
		RequestStatusDetails: fmt.Sprintf("Successfully cancelled job %s", id),
		JobID:                id,
	}
}

// GetJobStatus implements spec.md 4.6.3 exactly, including the progress
// table and the delivered-on-observe side effect.
func (s *Service) GetJobStatus(id job.ID) Response {
	if string(id) == "" {
		s.declineMetric("status")
		return declined(id, "Job id is empty")
	}

	rec, ok := s.registry.Get(id)
	if !ok {
		s.declineMetric("status")
		return declined(id, fmt.Sprintf("Job %s is not found. Total active jobs count: %d", id, s.registry.Size()))
	}

	snap := rec.ObserveForDelivery()

	endTime := snap.EndTime
	if endTime.IsZero() {
		endTime = time.Now()
	}

	return Response{
		RequestStatus:        job.Completed,
		RequestStatusDetails: fmt.Sprintf("Successfully retrieved status for job %s", id),
		JobID:                id,
		StartTime:            snap.StartTime,
		EndTime:              endTime,
		Progress:             s.progress(snap),
		Status:               snap.Status,
		Solution:             snap.Solution,
		Message:              snap.Message,
	}
}

// progress implements spec.md 4.6.3's progress table.
func (s *Service) progress(snap job.Snapshot) int {
	switch snap.Status {
	case job.Done:
		return 100
	case job.InProgress:
		if s.jobTimeout <= 0 {
			return 0
		}
		elapsed := time.Since(snap.StartTime)
		pct := int(math.Floor(float64(elapsed) / float64(s.jobTimeout) * 100))
		return clamp(pct, 0, 99)
	case job.Error, job.Cancelled:
		return 70
	default:
		return 0
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
