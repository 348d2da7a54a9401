package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"todohub/config"
	"todohub/internal/api"
	"todohub/internal/graph"
	"todohub/internal/logging"
	"todohub/internal/msauth"
	"todohub/internal/ops"
	"todohub/internal/scheduler"
	"todohub/internal/storage/sqlite"
)

const (
	shutdownTimeout   = 10 * time.Second
	defaultConfigPath = "config.json"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "todohub: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Parse command-line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	useEnv := flag.Bool("env", false, "Load configuration from environment variables")
	logFormat := flag.String("log-format", "json", "Log format (json or text)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	logger := logging.NewLogger(logging.LoggerConfig{
		Format: *logFormat,
		Level:  logging.ParseLevel(*logLevel),
	})

	// Load configuration
	var cfg *config.Config
	var err error
	if *useEnv {
		cfg, err = config.LoadFromEnv()
	} else {
		cfg, err = config.Load(*configPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("Starting todohub device API",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Backend,
	)

	// Credential storage
	var store msauth.Store
	switch cfg.Storage.Backend {
	case config.StorageSQLite:
		db, err := sqlite.New(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("failed to open credential database: %w", err)
		}
		defer db.Close()
		store = db
	case config.StorageFile:
		store = msauth.NewFileStore(cfg.Storage.Path)
	}

	// Token refresh stack
	flow, err := msauth.NewFlow(msauth.FlowConfig{
		ClientID:     cfg.Graph.ClientID,
		ClientSecret: cfg.Graph.ClientSecret,
		TenantID:     cfg.Graph.TenantID,
		RedirectURL:  cfg.Graph.RedirectURL,
	})
	if err != nil {
		return fmt.Errorf("failed to build auth flow: %w", err)
	}
	coordinator := msauth.NewCoordinator(store, flow, "default", logger)

	// Graph task client, wrapped with logging
	tasks := ops.TaskService(graph.NewClient(graph.Config{
		BaseURL: cfg.Graph.BaseURL,
	}, coordinator, logger))
	tasks = logging.NewTaskServiceLogger(tasks, logger)

	// Proactive token refresh in the background
	sched := scheduler.NewScheduler(coordinator, scheduler.DefaultInterval, logger)
	go sched.Start()

	router := api.NewRouter(api.RouterConfig{
		Tasks:  tasks,
		APIKey: cfg.Security.APIKey,
		Logger: logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info("Starting graceful shutdown", "signal", sig.String())

		sched.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		logger.Info("Graceful shutdown complete")
	}

	return nil
}
