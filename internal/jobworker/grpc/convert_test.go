package grpc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdds/slaeworker/internal/jobworker/job"
	"github.com/mdds/slaeworker/internal/jobworker/service"
)

func TestToTimestampNilOnZeroValue(t *testing.T) {
	assert.Nil(t, toTimestamp(time.Time{}))
}

func TestToTimestampConvertsNonZeroValue(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ts := toTimestamp(now)
	require.NotNil(t, ts)
	assert.Equal(t, now.Unix(), ts.AsTime().Unix())
}

func TestToJobStatusResponseConvertsFields(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Minute)
	resp := service.Response{
		RequestStatus:        job.Completed,
		RequestStatusDetails: "Successfully retrieved status for job job-1",
		JobID:                "job-1",
		StartTime:            start,
		EndTime:              end,
		Progress:             100,
		Status:               job.Done,
		Solution:             []float64{1, 2},
		Message:              "Solved",
	}

	wire := toJobStatusResponse(resp)
	assert.Equal(t, "COMPLETED", wire.RequestStatus)
	assert.Equal(t, "job-1", wire.JobID)
	assert.Equal(t, int32(100), wire.Progress)
	assert.Equal(t, "DONE", wire.Status)
	assert.Equal(t, []float64{1, 2}, wire.Solution)
	require.NotNil(t, wire.StartTime)
	require.NotNil(t, wire.EndTime)
}

func TestToSubmitResponseConvertsFields(t *testing.T) {
	resp := service.Response{RequestStatus: job.Declined, RequestStatusDetails: "Job already submitted", JobID: "job-1"}
	wire := toSubmitResponse(resp)
	assert.Equal(t, "DECLINED", wire.RequestStatus)
	assert.Equal(t, "Job already submitted", wire.RequestStatusDetails)
	assert.Equal(t, "job-1", wire.JobID)
}
