package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/mdds/slaeworker/internal/config"
	grpcadapter "github.com/mdds/slaeworker/internal/jobworker/grpc"
	"github.com/mdds/slaeworker/internal/jobworker/queue"
	"github.com/mdds/slaeworker/internal/jobworker/registry"
	"github.com/mdds/slaeworker/internal/jobworker/service"
	"github.com/mdds/slaeworker/internal/jobworker/solver"
	"github.com/mdds/slaeworker/internal/log"
	"github.com/mdds/slaeworker/internal/metrics"
)

// logger is an object for logging package events to stdout.
var logger = log.New(os.Stdout, "cmd")

func buildServeCommand() *cobra.Command {
	var configPath string
	var enableQueue bool
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the registry and its transport adapters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, enableQueue, metricsAddr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	cmd.Flags().BoolVar(&enableQueue, "queue", false, "also start the Redis-backed ingestion adapter")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address to serve Prometheus metrics on")

	return cmd
}

// runServe wires exactly one registry.Registry and threads it explicitly
// into the gRPC adapter and, if enabled, the Redis queue adapter -- there
// is no package-level mutable singleton anywhere in this repo (spec.md
// design note 9).
func runServe(ctx context.Context, configPath string, enableQueue bool, metricsAddr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	solvers := solver.NewRegistry(cfg.Methods)
	jobRegistry := registry.New(cfg.PollInterval, cfg.JobTimeout, cfg.ResultTTL, m)
	jobRegistry.Start(ctx)
	defer jobRegistry.Stop()

	svc := service.New(jobRegistry, solvers, cfg.JobTimeout, m)

	go serveMetrics(metricsAddr, reg)

	if enableQueue {
		listener, err := queue.NewListener(ctx, cfg.RedisAddr, svc)
		if err != nil {
			return fmt.Errorf("connect queue adapter: %w", err)
		}
		defer listener.Close()
		go func() {
			if err := listener.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Errorf("queue listener exited; error: %s", err)
			}
		}()
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.GRPCAddr, err)
	}

	// ForceServerCodec installs the JSON codec in place of grpc-go's
	// default "proto" codec -- the hand-written wire messages in
	// internal/jobworker/grpc/pb.go are plain structs, not proto.Message,
	// so the server must be told to (de)serialize them with encoding/json.
	grpcServer := grpc.NewServer(grpc.ForceServerCodec(grpcadapter.Codec()))
	grpcadapter.Register(grpcServer, grpcadapter.NewJobWorker(svc))

	go func() {
		<-ctx.Done()
		logger.Infof("shutting down")
		grpcServer.GracefulStop()
	}()

	logger.Infof("serving gRPC on %s", cfg.GRPCAddr)
	if err := grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("serve gRPC: %w", err)
	}
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Errorf("metrics server; error: %s", err)
	}
}
