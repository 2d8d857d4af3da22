package api

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"

	"hallbook/internal/config"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// GRPCServer публикует AvailabilityService и стандартный health-сервис.
type GRPCServer struct {
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	log      zerolog.Logger
}

func NewGRPCServer(cfg *config.APIConfig, svc AvailabilityServer, logger *zerolog.Logger) (*GRPCServer, error) {
	addr := fmt.Sprintf(":%d", cfg.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen %s: %w", addr, err)
	}

	srv, err := NewGRPCServerWithListener(cfg, svc, lis, logger)
	if err != nil {
		_ = lis.Close()
		return nil, err
	}
	return srv, nil
}

// NewGRPCServerWithListener serves on an existing listener (bufconn in tests).
func NewGRPCServerWithListener(cfg *config.APIConfig, svc AvailabilityServer, lis net.Listener, logger *zerolog.Logger) (*GRPCServer, error) {
	opts, err := serverOptions(cfg, logger)
	if err != nil {
		return nil, err
	}

	server := grpc.NewServer(opts...)
	RegisterAvailabilityServer(server, svc)

	hs := health.NewServer()
	hs.SetServingStatus(availabilityServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, hs)

	if cfg.GRPC.Reflection {
		reflection.Register(server)
	}

	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "grpc").Logger()
	}
	return &GRPCServer{server: server, health: hs, listener: lis, log: log}, nil
}

func serverOptions(cfg *config.APIConfig, logger *zerolog.Logger) ([]grpc.ServerOption, error) {
	opts := []grpc.ServerOption{
		grpc.UnaryInterceptor(ChainUnaryInterceptors(
			RecoveryUnaryInterceptor(logger),
			LoggingUnaryInterceptor(logger),
			NewAuthInterceptor(cfg).Unary(),
		)),
	}
	if !cfg.GRPC.TLS.Enabled {
		return opts, nil
	}

	creds, err := loadTLSCredentials(cfg.GRPC.TLS)
	if err != nil {
		return nil, err
	}
	return append(opts, grpc.Creds(creds)), nil
}

// loadTLSCredentials: серверный сертификат, при require_client_cert еще и mTLS.
func loadTLSCredentials(cfg config.APITLSConfig) (credentials.TransportCredentials, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, errors.New("grpc tls: cert_file and key_file are required")
	}
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("grpc tls: load keypair: %w", err)
	}
	tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}

	if cfg.RequireClientCert {
		if cfg.ClientCAFile == "" {
			return nil, errors.New("grpc tls: client_ca_file is required for client certs")
		}
		caPEM, err := os.ReadFile(cfg.ClientCAFile)
		if err != nil {
			return nil, fmt.Errorf("grpc tls: read client ca: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, errors.New("grpc tls: client ca has no PEM certificates")
		}
		tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
		tlsCfg.ClientCAs = pool
	}
	return credentials.NewTLS(tlsCfg), nil
}

func (s *GRPCServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *GRPCServer) Serve() error {
	s.log.Info().Str("addr", s.Addr()).Msg("gRPC API listening")
	return s.server.Serve(s.listener)
}

// Shutdown переводит health в NOT_SERVING и ждет текущие вызовы до ctx.
func (s *GRPCServer) Shutdown(ctx context.Context) {
	if s.server == nil {
		return
	}
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		s.log.Warn().Msg("gRPC graceful shutdown timed out; forcing stop")
		s.server.Stop()
	}
}
