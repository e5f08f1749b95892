// Package api exposes a running ranking over HTTP and reports its health over gRPC.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"

	"FlowRank/internal/config"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service reporting on ingestion.
const ServiceName = "flowrank.Ranking"

// Server runs the HTTP API and the gRPC health service.
type Server struct {
	cfg     config.APIConfig
	backend Backend
	http    *http.Server
	grpc    *grpc.Server
	health  *health.Server
}

// NewServer creates a server. Nothing listens until Start.
func NewServer(cfg config.APIConfig, backend Backend) *Server {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{
		cfg:     cfg,
		backend: backend,
		http:    &http.Server{Addr: cfg.ListenAddr, Handler: NewRouter(backend)},
		grpc:    gs,
		health:  hs,
	}
}

// Health returns the gRPC health service.
func (s *Server) Health() healthpb.HealthServer { return s.health }

// Start listens on both addresses and serves in the background.
func (s *Server) Start() error {
	httpLis, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}
	grpcLis, err := net.Listen("tcp", s.cfg.GrpcListenAddr)
	if err != nil {
		httpLis.Close()
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.GrpcListenAddr, err)
	}

	go func() {
		log.Printf("gRPC health server starting on %s", grpcLis.Addr())
		if err := s.grpc.Serve(grpcLis); err != nil {
			log.Printf("Error serving gRPC: %v", err)
		}
	}()
	go func() {
		log.Printf("HTTP API server starting on %s", httpLis.Addr())
		if err := s.http.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
		}
	}()
	go s.watch()
	return nil
}

// watch flips the health status once ingestion stops with an error.
func (s *Server) watch() {
	<-s.backend.Done()
	if err := s.backend.Err(); err != nil {
		log.Printf("Ingestion stopped: %v", err)
		s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	}
}

// Shutdown stops both servers, waiting for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.Shutdown()
	s.grpc.GracefulStop()
	return s.http.Shutdown(ctx)
}
