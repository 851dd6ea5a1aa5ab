// Package queue is a Redis-backed ingestion adapter: it BLPOPs
// JSON-encoded submit envelopes off a list and forwards them to the
// job-lifecycle service, the second of the two historical transport
// variants (the other being the gRPC adapter in internal/jobworker/grpc).
package queue

import (
	"context"
	"encoding/json"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mdds/slaeworker/internal/jobworker/job"
	"github.com/mdds/slaeworker/internal/jobworker/service"
	"github.com/mdds/slaeworker/internal/log"
)

// logger is an object for logging package events to stdout.
var logger = log.New(os.Stdout, "queue")

// DefaultListKey is the Redis list this adapter BLPOPs submit envelopes
// from.
const DefaultListKey = "slaeworker:submit"

// blpopTimeout bounds each individual BLPOP call so the listener loop can
// still observe context cancellation promptly.
const blpopTimeout = 2 * time.Second

// submitEnvelope is the JSON shape expected on DefaultListKey.
type submitEnvelope struct {
	JobID  string      `json:"jobId"`
	Method string      `json:"method"`
	Matrix [][]float64 `json:"matrix"`
	RHS    []float64   `json:"rhs"`
}

// Listener connects to Redis and forwards submit envelopes to a
// service.Service.
type Listener struct {
	rdb     *goredis.Client
	svc     *service.Service
	listKey string
}

// NewListener dials addr and returns a Listener ready to Run. It pings the
// connection before returning so configuration errors surface immediately
// rather than on the first submit.
func NewListener(ctx context.Context, addr string, svc *service.Service) (*Listener, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return &Listener{rdb: rdb, svc: svc, listKey: DefaultListKey}, nil
}

// Run blocks, BLPOPing submit envelopes and forwarding each to SubmitJob,
// until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	logger.Infof("queue listener started; list: %s", l.listKey)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		result, err := l.rdb.BLPop(ctx, blpopTimeout, l.listKey).Result()
		if err == goredis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Errorf("blpop; error: %s", err)
			continue
		}

		// result is [listKey, value].
		if len(result) != 2 {
			continue
		}
		l.handle(ctx, result[1])
	}
}

func (l *Listener) handle(ctx context.Context, payload string) {
	var env submitEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		logger.Errorf("decode submit envelope; error: %s", err)
		return
	}

	resp := l.svc.SubmitJob(ctx, job.ID(env.JobID), env.Method, env.Matrix, env.RHS)
	if resp.RequestStatus == job.Declined {
		logger.Warnf("queue submit declined; job: %s, detail: %s", env.JobID, resp.RequestStatusDetails)
		return
	}
	logger.Infof("queue submit accepted; job: %s", env.JobID)
}

// Close closes the underlying Redis client.
func (l *Listener) Close() error {
	return l.rdb.Close()
}
