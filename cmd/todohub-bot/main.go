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
	"todohub/internal/bot"
	"todohub/internal/graph"
	"todohub/internal/logging"
	"todohub/internal/msauth"
	"todohub/internal/nlu"
	"todohub/internal/ops"
	"todohub/internal/scheduler"
	"todohub/internal/storage/sqlite"
)

const (
	shutdownTimeout   = 5 * time.Second
	defaultConfigPath = "bot-config.json"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "todohub-bot: %v\n", err)
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
	var cfg *config.BotConfig
	var err error
	if *useEnv {
		cfg, err = config.LoadBotConfigFromEnv()
	} else {
		cfg, err = config.LoadBotConfig(*configPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Info("Starting todohub Telegram bot",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"webhook_url", cfg.Telegram.WebhookURL,
		"allowed_users", len(cfg.Telegram.AllowedUsers),
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

	// Graph task client, logging decorator, operation facade
	tasks := ops.TaskService(graph.NewClient(graph.Config{
		BaseURL: cfg.Graph.BaseURL,
	}, coordinator, logger))
	tasks = logging.NewTaskServiceLogger(tasks, logger)
	facade := ops.NewFacade(tasks, logger)

	// Free-text parser
	parser := nlu.NewClient(nlu.Config{
		BaseURL: cfg.OpenAI.BaseURL,
		APIKey:  cfg.OpenAI.APIKey,
		Model:   cfg.OpenAI.Model,
	}, logger)

	// Create bot instance
	telegramBot, err := bot.NewBot(cfg, facade, parser, coordinator, logger)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	// Configure webhook
	if err := telegramBot.SetWebhook(); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}

	logger.Info("Webhook configured successfully")

	// Proactive token refresh in the background
	sched := scheduler.NewScheduler(coordinator, scheduler.DefaultInterval, logger)
	go sched.Start()

	router := bot.NewRouter(bot.RouterConfig{
		Bot:           telegramBot,
		WebhookSecret: cfg.Telegram.WebhookSecret,
		Logger:        logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info("Shutting down bot", "signal", sig.String())

		sched.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		logger.Info("Bot stopped")
	}

	return nil
}
