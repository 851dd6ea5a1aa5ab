package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

// TestServerRoundTripsOverTheWire dials a real grpc.Server (in-memory
// transport via bufconn, real HTTP/2 framing otherwise) and invokes
// SubmitJob/GetJobStatus through conn.Invoke, the same path a real client
// takes. This exists because server_test.go calls JobWorker's methods
// directly, which never exercises (de)serialization -- the bug this test
// guards against is the server being constructed with the default "proto"
// codec while the wire messages in pb.go are not proto.Message.
func TestServerRoundTripsOverTheWire(t *testing.T) {
	lis := bufconn.Listen(1024 * 1024)
	t.Cleanup(func() { _ = lis.Close() })

	jw := newTestJobWorker(t)
	srv := grpc.NewServer(grpc.ForceServerCodec(Codec()))
	Register(srv, jw)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, _ string) (net.Conn, error) { return lis.Dial() }
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(Codec())),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	submitResp := new(SubmitResponse)
	err = conn.Invoke(ctx, "/"+ServiceName+"/SubmitJob", &SubmitJobRequest{
		JobID:  "job-1",
		Method: "numpy_exact",
		Matrix: [][]float64{{1}},
		RHS:    []float64{1},
	}, submitResp)
	require.NoError(t, err)
	require.Equal(t, "COMPLETED", submitResp.RequestStatus)

	statusResp := new(JobStatusResponse)
	err = conn.Invoke(ctx, "/"+ServiceName+"/GetJobStatus", &GetJobStatusRequest{JobID: "job-1"}, statusResp)
	require.NoError(t, err)
	require.Equal(t, "IN_PROGRESS", statusResp.Status)
}
