package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/docforge/internal/app"
	"github.com/joseph-ayodele/docforge/internal/common"
	"github.com/joseph-ayodele/docforge/internal/ingest"
	"github.com/joseph-ayodele/docforge/internal/repository"
	"github.com/joseph-ayodele/docforge/internal/server"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := common.LoadConfig()
	logger := app.NewLogger(cfg.SlogLevel())
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer a.Close(shutdownTimeout)

	var opts []server.Option
	if p, ok := a.Repo.(repository.Pinger); ok {
		opts = append(opts, server.WithPinger(p))
	}
	srv := server.New(server.Config{
		UploadDir:   cfg.Storage.UploadDir,
		MaxFiles:    cfg.Server.MaxUploadFiles,
		MaxBytes:    cfg.Server.MaxUploadBytes,
		CORSOrigins: cfg.Server.CORSOrigins,
	}, a.Orchestrator, logger, opts...)
	httpServer := srv.HTTPServer(cfg.Server.HTTPAddr)

	// gRPC health for orchestrators that probe over gRPC
	var grpcServer *grpc.Server
	healthServer := health.NewServer()
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
			os.Exit(1)
		}
		grpcServer = grpc.NewServer()
		grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
		go func() {
			logger.Info("grpc health listening", "addr", cfg.Server.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("grpc server stopped", "error", err)
			}
		}()
	}

	if cfg.Inbox.Dir != "" {
		inbox := ingest.NewInbox(ingest.NewStore(cfg.Storage.UploadDir), a.Orchestrator, logger)
		go func() {
			err := inbox.Run(ctx, ingest.WatchConfig{
				Roots:       []string{cfg.Inbox.Dir},
				InitialScan: cfg.Inbox.InitialScan,
				SkipHidden:  true,
				Debounce:    cfg.Inbox.Debounce,
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("inbox watcher stopped", "dir", cfg.Inbox.Dir, "error", err)
			}
		}()
	}

	go func() {
		logger.Info("docforge listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	logger.Info("stopped")
}
