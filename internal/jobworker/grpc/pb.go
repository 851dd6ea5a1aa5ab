package grpc

import (
	"google.golang.org/protobuf/types/known/timestamppb"
)

// The types below are the wire messages for the three job-lifecycle
// operations. They are hand-written rather than protoc-generated: the
// service registers its grpc.ServiceDesc directly (the same mechanical
// shape protoc-gen-go-grpc emits) and negotiates jsonCodecName instead of the
// binary protobuf wire format, so no .proto compilation step is needed.
// See codec.go.

// SubmitJobRequest is the wire request for SubmitJob.
type SubmitJobRequest struct {
	JobID  string      `json:"jobId"`
	Method string      `json:"method"`
	Matrix [][]float64 `json:"matrix"`
	RHS    []float64   `json:"rhs"`
}

// CancelJobRequest is the wire request for CancelJob.
type CancelJobRequest struct {
	JobID string `json:"jobId"`
}

// GetJobStatusRequest is the wire request for GetJobStatus.
type GetJobStatusRequest struct {
	JobID string `json:"jobId"`
}

// SubmitResponse is the wire response shared by SubmitJob and CancelJob.
type SubmitResponse struct {
	RequestStatus        string `json:"requestStatus"`
	RequestStatusDetails string `json:"requestStatusDetails"`
	JobID                string `json:"jobId"`
}

// JobStatusResponse is the wire response for GetJobStatus.
type JobStatusResponse struct {
	RequestStatus        string                 `json:"requestStatus"`
	RequestStatusDetails string                 `json:"requestStatusDetails"`
	JobID                string                 `json:"jobId"`
	StartTime            *timestamppb.Timestamp `json:"startTime"`
	EndTime              *timestamppb.Timestamp `json:"endTime"`
	Progress             int32                  `json:"progress"`
	Status               string                 `json:"status"`
	Solution             []float64              `json:"solution"`
	Message              string                 `json:"message"`
}
