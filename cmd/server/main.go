// RevReach - AI Sales Campaign Agent Server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/ashureev/revreach/internal/api"
	"github.com/ashureev/revreach/internal/campaign"
	"github.com/ashureev/revreach/internal/checkpoint"
	"github.com/ashureev/revreach/internal/collab"
	"github.com/ashureev/revreach/internal/config"
	"github.com/ashureev/revreach/internal/middleware"
	"github.com/ashureev/revreach/internal/safety"
	"github.com/ashureev/revreach/internal/state"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "org", cfg.OrgName)

	// Campaign goroutines live until shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize collaborators.
	llm, err := collab.NewLLM(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.OrgName)
	if err != nil {
		slog.Error("Failed to initialize Gemini client", "error", err)
		os.Exit(1)
	}
	research := &collab.Research{
		Market:    collab.NewMarketClient(cfg.MarketAPIURL, cfg.MarketAPIKey, cfg.MarketModel),
		Knowledge: collab.NewKnowledgeClient(cfg.KnowledgeURL, cfg.KnowledgeAPIKey, cfg.KnowledgeTopK),
	}
	mailer, err := collab.NewMailer(cfg.SMTPAddr, cfg.FromEmail, cfg.EmailPassword, cfg.SignerName, cfg.OrgName)
	if err != nil {
		slog.Error("Failed to initialize mailer", "error", err)
		os.Exit(1)
	}
	slog.Info("Collaborators initialized", "gemini_model", cfg.GeminiModel, "smtp", cfg.SMTPAddr)

	// Initialize services.
	store := state.NewStore()
	checkpoints := checkpoint.NewManager()
	safetyCtrl := safety.NewController(safety.Limits{
		DailyEmails:         cfg.DailyEmailLimit,
		DailyCampaigns:      cfg.DailyCampaignLimit,
		ConcurrentCampaigns: cfg.ConcurrentCampaignLimit,
		EmailsPerCampaign:   cfg.EmailsPerCampaignLimit,
	})
	campaigns := campaign.NewService(ctx, store, checkpoints, safetyCtrl, campaign.Collaborators{
		Discoverer: llm,
		Contexts:   research,
		Generator:  llm,
		Notifier:   mailer,
	}, campaign.Options{
		MaxCompanies:  cfg.MaxCompanies,
		ContextFanOut: cfg.ContextFanOut,
		SenderOrg:     cfg.OrgName,
	}, logger)

	// Initialize handlers.
	baseHandler := api.NewHandler(store, checkpoints, safetyCtrl, campaigns)
	campaignHandler := api.NewCampaignHandler(baseHandler)
	dashboardStream := api.NewDashboardStream(campaignHandler, 2*time.Second)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	campaignHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/dashboard", dashboardStream.ServeHTTP)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming dashboard connections stay open
		IdleTimeout:  120 * time.Second,
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
