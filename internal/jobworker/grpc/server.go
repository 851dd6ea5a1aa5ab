// Package grpc exposes the job-lifecycle service's three operations over
// google.golang.org/grpc. The wire messages (pb.go) are hand-written and
// transported with a JSON encoding.Codec (codec.go) rather than generated
// protobuf, so no protoc step is required to build this adapter.
package grpc

import (
	"context"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mdds/slaeworker/internal/jobworker/job"
	"github.com/mdds/slaeworker/internal/jobworker/service"
	"github.com/mdds/slaeworker/internal/log"
	"github.com/mdds/slaeworker/internal/validator"
)

// logger is an object for logging package events to stdout.
var logger = log.New(os.Stdout, "grpc")

// ServiceName is the fully-qualified service name advertised in the
// ServiceDesc, the same form protoc-gen-go-grpc would emit for a
// "jobworker.v1.JobWorkerService" service.
const ServiceName = "jobworker.v1.JobWorkerService"

// NewJobWorker creates a JobWorker instance wrapping svc.
func NewJobWorker(svc *service.Service) *JobWorker {
	return &JobWorker{svc: svc}
}

// JobWorker implements the three job-lifecycle operations as gRPC
// handlers. It holds no state of its own beyond the wrapped service.
type JobWorker struct {
	svc *service.Service
}

// SubmitJob handles a SubmitJobRequest.
func (jw *JobWorker) SubmitJob(ctx context.Context, req *SubmitJobRequest) (*SubmitResponse, error) {
	v := validator.New()
	v.AssertFunc(func() bool { return req != nil }, "request empty")
	if err := v.Err(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	logger.Infof("SubmitJob; peer: %s, job: %s, method: %s", peerAddr(ctx), req.JobID, req.Method)
	resp := jw.svc.SubmitJob(ctx, job.ID(req.JobID), req.Method, req.Matrix, req.RHS)
	return toSubmitResponse(resp), nil
}

// CancelJob handles a CancelJobRequest.
func (jw *JobWorker) CancelJob(ctx context.Context, req *CancelJobRequest) (*SubmitResponse, error) {
	logger.Infof("CancelJob; peer: %s, job: %s", peerAddr(ctx), req.JobID)
	resp := jw.svc.CancelJob(job.ID(req.JobID))
	return toSubmitResponse(resp), nil
}

// GetJobStatus handles a GetJobStatusRequest.
func (jw *JobWorker) GetJobStatus(ctx context.Context, req *GetJobStatusRequest) (*JobStatusResponse, error) {
	resp := jw.svc.GetJobStatus(job.ID(req.JobID))
	return toJobStatusResponse(resp), nil
}

// submitJobHandler adapts JobWorker.SubmitJob to grpc.MethodHandler.
func submitJobHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(SubmitJobRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*JobWorker).SubmitJob(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/SubmitJob"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*JobWorker).SubmitJob(ctx, req.(*SubmitJobRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// cancelJobHandler adapts JobWorker.CancelJob to grpc.MethodHandler.
func cancelJobHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(CancelJobRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*JobWorker).CancelJob(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/CancelJob"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*JobWorker).CancelJob(ctx, req.(*CancelJobRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// getJobStatusHandler adapts JobWorker.GetJobStatus to grpc.MethodHandler.
func getJobStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(GetJobStatusRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*JobWorker).GetJobStatus(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/GetJobStatus"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*JobWorker).GetJobStatus(ctx, req.(*GetJobStatusRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// ServiceDesc is the hand-written equivalent of what protoc-gen-go-grpc
// would emit for a three-method unary service. Constructing this directly
// is the officially supported, mechanical path to registering a
// grpc.Server without a .proto/protoc toolchain step.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SubmitJob", Handler: submitJobHandler},
		{MethodName: "CancelJob", Handler: cancelJobHandler},
		{MethodName: "GetJobStatus", Handler: getJobStatusHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "jobworker/v1/jobworker.proto",
}

// Register registers the JobWorker service on srv using ServiceDesc.
func Register(srv *grpc.Server, jw *JobWorker) {
	srv.RegisterService(&ServiceDesc, jw)
}
