// Package rpc serves the gRPC side of the listener: the standard health
// service, so load balancers and orchestrators can probe the process over
// HTTP/2 on the same port as the JSON API.
package rpc

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ServiceName is the health service key reported alongside the overall ("")
// status. It tracks database reachability.
const ServiceName = "smokefree.assessment"

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger *slog.Logger
}

// New builds the gRPC server with the health service registered. Both the
// overall status and ServiceName start as SERVING.
func New(logger *slog.Logger) *Server {
	s := &Server{
		health: health.NewServer(),
		logger: logger,
	}
	s.grpc = grpc.NewServer(grpc.ChainUnaryInterceptor(s.logUnary))
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.SetServing(true)
	return s
}

// Serve accepts connections on l until Stop. cmd/api hands it the gRPC
// branch of the cmux listener.
func (s *Server) Serve(l net.Listener) error {
	return s.grpc.Serve(l)
}

// SetServing flips both the overall and the ServiceName status.
func (s *Server) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Stop reports NOT_SERVING to watchers, then drains in-flight RPCs.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

// MonitorDB pings db every interval and reports ServiceName as NOT_SERVING
// while the ping fails. Blocks until ctx is cancelled.
func (s *Server) MonitorDB(ctx context.Context, db Pinger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pingCtx, cancel := context.WithTimeout(ctx, interval/2)
		err := db.PingContext(pingCtx)
		cancel()

		switch {
		case err != nil && healthy:
			s.logger.Warn("rpc: database unreachable, reporting NOT_SERVING", "error", err)
			s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
			healthy = false
		case err == nil && !healthy:
			s.logger.Info("rpc: database reachable again, reporting SERVING")
			s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
			healthy = true
		}
	}
}

// logUnary logs every unary call with its method, code and duration.
func (s *Server) logUnary(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "grpc",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, err
}
