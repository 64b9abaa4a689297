package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pagesmith/app/config"
	"pagesmith/app/usecase"
	"pagesmith/internal/domain/repository"
	"pagesmith/internal/infrastructure/events"
	"pagesmith/internal/infrastructure/github"
	"pagesmith/internal/infrastructure/llm"
	"pagesmith/internal/infrastructure/metrics"
	"pagesmith/internal/infrastructure/notify"
	"pagesmith/internal/infrastructure/store/filesystem"
	mongorepo "pagesmith/internal/infrastructure/store/mongodb"
	"pagesmith/internal/infrastructure/transport"
	"pagesmith/internal/infrastructure/validator"
)

func main() {
	// logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	configPath := flag.String("config", "", "optional HCL config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config load failed", "err", err)
		log.Fatalf("config: %v", err)
	}

	// Connect to MongoDB
	mongoCtx, mongoCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer mongoCancel()
	mongoClient, err := mongo.Connect(mongoCtx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		logger.Error("mongo connect failed", "err", err)
		log.Fatalf("mongo connect: %v", err)
	}
	if err := mongoClient.Ping(mongoCtx, nil); err != nil {
		logger.Error("mongo ping failed", "err", err)
		log.Fatalf("mongo ping: %v", err)
	}
	logger.Info("connected to mongo", "uri", cfg.Mongo.URI)
	db := mongoClient.Database(cfg.Mongo.Database)

	// Repositories
	buildRepo := mongorepo.NewMongoBuildRepo(db)
	fileRepo := mongorepo.NewMongoSiteFileRepo(db)
	workspace, err := filesystem.NewWorkspace(cfg.Workspace.Dir)
	if err != nil {
		logger.Error("workspace init failed", "err", err)
		log.Fatalf("workspace init: %v", err)
	}

	// Generation backend
	generator, err := newGenerator(cfg, logger)
	if err != nil {
		logger.Error("generator init failed", "err", err)
		log.Fatalf("generator init: %v", err)
	}

	// Hosting client
	publisher := github.NewClient(cfg.GitHub.Token, cfg.GitHub.Owner, cfg.GitHub.BaseURL, cfg.GitHub.Timeout)

	// Notifier and event hub
	notifier := notify.NewClient(30 * time.Second)
	hub := events.NewHub()

	// Usecases / services
	buildSvc := usecase.NewBuildService(buildRepo, fileRepo, notifier)
	filesSvc := usecase.NewSiteFilesService(fileRepo)

	pipeline := usecase.NewBuildPipelineService(
		buildRepo,
		fileRepo,
		workspace,
		generator,
		publisher,
		*validator.NewSiteAnalyzer(),
		notifier,
		hub,
		logger,
		cfg.SharedSecret,
		cfg.GitHub.Owner,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipeline.Start(ctx) // фоновый воркер

	// Transport (HTTP handlers)
	handler := transport.NewWebhookHandler(
		buildSvc,
		filesSvc,
		hub,
		cfg.SharedSecret,
		logger,
	)

	// Router and server
	r := mux.NewRouter()
	handler.RegisterRoutes(r)
	corsHandler := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      corsHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("starting metrics server", "addr", cfg.Server.MetricsAddr)
		metrics.StartMetricsServer(cfg.Server.MetricsAddr)
	}()

	// Start HTTP server
	go func() {
		logger.Info("starting HTTP server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "err", err)
			cancel()
		}
	}()

	// OS signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutdown signal received")
	case <-ctx.Done():
		logger.Info("context cancelled")
	}

	// Shutdown sequence
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}

	logger.Info("stopping pipeline")
	cancel()

	logger.Info("disconnecting mongo")
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		logger.Error("mongo disconnect error", "err", err)
	}

	logger.Info("service stopped")
}

func newGenerator(cfg *config.Config, logger *slog.Logger) (repository.CodeGenerator, error) {
	switch cfg.LLM.Provider {
	case "gemini":
		logger.Info("using gemini generation backend", "model", cfg.LLM.Model)
		return llm.NewGeminiGenerator(context.Background(), cfg.LLM.APIKey, cfg.LLM.Model)
	case "openai", "":
		logger.Info("using openai-compatible generation backend", "model", cfg.LLM.Model)
		return llm.NewOpenAIGenerator(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model, cfg.LLM.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}
