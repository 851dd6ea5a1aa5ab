package grpc

import (
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/mdds/slaeworker/internal/jobworker/service"
)

// toRequestStatus renders a job.RequestStatus as its wire string -- a
// direct passthrough today, kept as a named conversion point the way the
// teacher's own convert.go isolates enum translation from the handler
// bodies.
func toRequestStatus(s string) string {
	return s
}

// toJobStatusResponse builds the wire response for GetJobStatus from a
// service.Response.
func toJobStatusResponse(resp service.Response) *JobStatusResponse {
	return &JobStatusResponse{
		RequestStatus:        toRequestStatus(string(resp.RequestStatus)),
		RequestStatusDetails: resp.RequestStatusDetails,
		JobID:                string(resp.JobID),
		StartTime:            toTimestamp(resp.StartTime),
		EndTime:              toTimestamp(resp.EndTime),
		Progress:             int32(resp.Progress),
		Status:               string(resp.Status),
		Solution:             resp.Solution,
		Message:              resp.Message,
	}
}

// toSubmitResponse builds the wire response shared by SubmitJob and
// CancelJob from a service.Response.
func toSubmitResponse(resp service.Response) *SubmitResponse {
	return &SubmitResponse{
		RequestStatus:        toRequestStatus(string(resp.RequestStatus)),
		RequestStatusDetails: resp.RequestStatusDetails,
		JobID:                string(resp.JobID),
	}
}

// toTimestamp converts t to its protobuf well-known Timestamp, or nil for
// the zero value.
func toTimestamp(t time.Time) *timestamppb.Timestamp {
	if t.IsZero() {
		return nil
	}
	return timestamppb.New(t)
}
