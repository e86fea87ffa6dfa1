package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	grpcapi "teamnet-backend/internal/api/grpc"
	httpapi "teamnet-backend/internal/api/http"
	"teamnet-backend/internal/app"
	"teamnet-backend/internal/config"
	"teamnet-backend/internal/logger"
	"teamnet-backend/internal/security"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Optional dotenv file loaded before the configuration")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		log.Printf("No dotenv file loaded: %v", err)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	lg := logger.New(cfg.Log.Level, cfg.Log.Format)
	lg.Info("Starting TeamNet backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	lg.Info("Server configuration", "http_address", cfg.GetHTTPAddress(), "grpc_address", cfg.GetGRPCAddress())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.InitializeDependencies(ctx, cfg, lg)
	if err != nil {
		lg.Error("Failed to initialize dependencies", "error", err)
		log.Fatalf("Failed to initialize dependencies: %v", err)
	}
	defer deps.Close()

	services, err := app.InitializeServices(deps)
	if err != nil {
		lg.Error("Failed to initialize services", "error", err)
		log.Fatalf("Failed to initialize services: %v", err)
	}

	// Initialize Security
	tokenManager := security.NewTokenManager(cfg.JWT.Secret, time.Duration(cfg.JWT.AccessTokenExpiry)*time.Minute)

	router := httpapi.NewRouter(httpapi.Services{
		Hierarchy: services.Hierarchy,
		Teams:     services.Teams,
		Payments:  services.Payments,
		Members:   services.Members,
	}, tokenManager, httpapi.Options{
		DefaultDepth: cfg.Hierarchy.DefaultDepth,
		Readiness:    deps.DB,
		Metrics:      deps.Metrics,
	}, lg)

	httpServer := &http.Server{
		Addr:              cfg.GetHTTPAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Set up gRPC health server
	health := grpcapi.NewHealthServer(deps.DB, 15*time.Second, lg)
	lis, err := net.Listen("tcp", cfg.GetGRPCAddress())
	if err != nil {
		lg.Error("Failed to listen", "error", err, "address", cfg.GetGRPCAddress())
		log.Fatalf("Failed to listen: %v", err)
	}
	go health.Watch(ctx)

	errCh := make(chan error, 2)
	go func() {
		lg.Info("gRPC health server listening", "address", cfg.GetGRPCAddress())
		if err := health.Server().Serve(lis); err != nil {
			errCh <- err
		}
	}()
	go func() {
		lg.Info("HTTP server listening", "address", cfg.GetHTTPAddress())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		lg.Info("Shutdown signal received")
	case err := <-errCh:
		lg.Error("Server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		lg.Error("HTTP shutdown failed", "error", err)
	}
	health.Server().GracefulStop()
	lg.Info("Server stopped")
}
