package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"teamnet-backend/internal/app"
	"teamnet-backend/internal/config"
	"teamnet-backend/internal/jobs"
	"teamnet-backend/internal/logger"
	"teamnet-backend/internal/scheduler"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Optional dotenv file loaded before the configuration")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'refresh-pending-payments', 'all')")
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
	lg.Info("Starting TeamNet cronjob runner...", "log_level", cfg.Log.Level)

	deps, err := app.InitializeDependencies(context.Background(), cfg, lg)
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

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(&jobs.Services{
		Payments:     services.Payments,
		Entitlements: services.Entitlements,
	}, cfg, deps.Metrics, lg)

	// Check if running a single job
	if *runOnce != "" {
		lg.Info("Running job once", "job", *runOnce)
		if err := jobRunner.RunJob(*runOnce); err != nil {
			lg.Error("Job failed", "job", *runOnce, "error", err)
			fmt.Printf("Available jobs:\n")
			for _, name := range []string{jobs.JobRefreshPendingPayments, jobs.JobExpireSubscriptions, jobs.JobSendExpiryReminders, jobs.JobAll} {
				fmt.Printf("  - %s\n", name)
			}
			deps.Close()
			os.Exit(1)
		}
		lg.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler := scheduler.NewScheduler(jobRunner, lg)
	cronScheduler.Start()
	lg.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	lg.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	lg.Info("Cronjob scheduler stopped. Goodbye!")
}
