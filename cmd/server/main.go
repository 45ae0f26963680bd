package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pesio-ai/be-agency-projects/internal/client"
	"github.com/pesio-ai/be-agency-projects/internal/handler"
	"github.com/pesio-ai/be-agency-projects/internal/platform/config"
	"github.com/pesio-ai/be-agency-projects/internal/platform/database"
	"github.com/pesio-ai/be-agency-projects/internal/platform/logger"
	"github.com/pesio-ai/be-agency-projects/internal/platform/middleware"
	"github.com/pesio-ai/be-agency-projects/internal/platform/natsclient"
	"github.com/pesio-ai/be-agency-projects/internal/repository"
	"github.com/pesio-ai/be-agency-projects/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       os.Getenv("LOG_LEVEL"),
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting Agency Projects Service")

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, database.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		Database:    cfg.Database.Database,
		SSLMode:     cfg.Database.SSLMode,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnTime: cfg.Database.MaxConnTime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
		HealthCheck: cfg.Database.HealthCheck,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Initialize repositories
	pipelineRepo := repository.NewPipelineRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	budgetEventRepo := repository.NewBudgetEventRepository(db)
	phaseRepo := repository.NewPhaseRepository(db)
	briefRepo := repository.NewBriefRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	userRepo := repository.NewUserRepository(db)

	// Initialize NATS notification publisher. The service runs without
	// notifications when NATS is disabled or unreachable.
	var natsConn *natsclient.Client
	if cfg.Nats.Enabled {
		natsConn, err = natsclient.Connect(cfg.Nats.URL, cfg.Service.Name)
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.Nats.URL).Msg("NATS unavailable, notifications disabled")
			natsConn = nil
		} else {
			defer natsConn.Close()
			log.Info().Str("url", cfg.Nats.URL).Msg("NATS connection established")
		}
	}
	notifier := client.NewNotificationPublisher(natsConn, log.Logger)

	// Initialize services
	pipelineService := service.NewPipelineService(pipelineRepo, log)
	conversionService := service.NewConversionService(pipelineRepo, projectRepo, notifier, log)
	projectService := service.NewProjectService(projectRepo, phaseRepo, log)
	budgetService := service.NewBudgetService(projectRepo, budgetEventRepo, log)
	progressService := service.NewProgressService(phaseRepo, projectRepo, log)
	briefService := service.NewBriefService(briefRepo, log)
	approvalService := service.NewApprovalService(approvalRepo, projectRepo, notifier, log)
	escalationService := service.NewEscalationService(approvalRepo, projectRepo, userRepo, notifier, log)

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(
		pipelineService,
		conversionService,
		projectService,
		budgetService,
		progressService,
		briefService,
		approvalService,
		escalationService,
		log,
	)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Pipeline routes
	mux.HandleFunc("/api/v1/pipelines", httpHandler.CreatePipeline)
	mux.HandleFunc("/api/v1/pipelines/get", httpHandler.GetPipeline)
	mux.HandleFunc("/api/v1/pipelines/stage", httpHandler.UpdatePipelineStage)
	mux.HandleFunc("/api/v1/pipelines/evaluation", httpHandler.UpdatePipelineEvaluation)
	mux.HandleFunc("/api/v1/pipelines/notes", httpHandler.PipelineNotes)
	mux.HandleFunc("/api/v1/pipelines/accept", httpHandler.AcceptPipeline)
	mux.HandleFunc("/api/v1/pipelines/decline", httpHandler.DeclinePipeline)

	// Project routes
	mux.HandleFunc("/api/v1/projects/get", httpHandler.GetProject)

	// Budget routes
	mux.HandleFunc("/api/v1/budget/events", httpHandler.BudgetEvents)
	mux.HandleFunc("/api/v1/budget/events/status", httpHandler.UpdateBudgetEventStatus)
	mux.HandleFunc("/api/v1/budget/threshold", httpHandler.GetBudgetThreshold)

	// Phase checklist routes
	mux.HandleFunc("/api/v1/phases/items", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			httpHandler.CreatePhaseItem(w, r)
		case http.MethodDelete:
			httpHandler.DeletePhaseItem(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/phases/items/update", httpHandler.UpdatePhaseItem)

	// Strategic brief routes
	mux.HandleFunc("/api/v1/briefs/get", httpHandler.GetBrief)
	mux.HandleFunc("/api/v1/briefs/sections", httpHandler.GetBriefSections)
	mux.HandleFunc("/api/v1/briefs/sections/update", httpHandler.UpdateBriefSection)
	mux.HandleFunc("/api/v1/briefs/submit", httpHandler.SubmitBrief)
	mux.HandleFunc("/api/v1/briefs/approve", httpHandler.ApproveBrief)
	mux.HandleFunc("/api/v1/briefs/revision", httpHandler.RequestBriefRevision)

	// Approval routes
	mux.HandleFunc("/api/v1/approvals", httpHandler.SubmitApproval)
	mux.HandleFunc("/api/v1/approvals/get", httpHandler.GetApproval)
	mux.HandleFunc("/api/v1/approvals/decide", httpHandler.DecideApproval)
	mux.HandleFunc("/api/v1/approvals/history", httpHandler.GetApprovalHistory)
	mux.HandleFunc("/api/v1/approvals/escalation-check", httpHandler.TriggerEscalationCheck)

	// Apply middleware
	var h http.Handler = mux
	h = middleware.RequestID(h)
	h = middleware.Logger(&log.Logger)(h)
	h = middleware.Recovery(&log.Logger)(h)
	h = middleware.Timeout(30 * time.Second)(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
