package grpc

import (
	"context"

	"google.golang.org/grpc/peer"
)

// peerAddr extracts the remote address from ctx for logging, the Go
// rendering of the teacher's user.go peer-extraction pattern, adapted
// here since this service has no per-user authorization concept.
func peerAddr(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok {
		return "unknown"
	}
	return p.Addr.String()
}
