package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/booking-analytics/internal/api/middleware"
	"github.com/dvloznov/booking-analytics/internal/dashboard"
	infraBQ "github.com/dvloznov/booking-analytics/internal/infra/bigquery"
	"github.com/dvloznov/booking-analytics/internal/insights"
	"github.com/dvloznov/booking-analytics/internal/logger"
)

func main() {
	// Parse command-line flags
	var (
		port      = flag.String("port", "8080", "HTTP server port")
		cacheTTL  = flag.Duration("cache-ttl", dashboard.DefaultCacheTTL, "How long chart results stay cached")
		withGenAI = flag.Bool("insights", true, "Serve /api/insights (requires Gemini credentials)")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New()

	ctx := context.Background()

	repo, err := infraBQ.NewRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
	}
	defer repo.Close()

	var summarizer dashboard.Summarizer
	if *withGenAI {
		summarizer = insights.NewGenerator(repo)
	}

	chartsHandler := dashboard.NewChartsHandler(repo, dashboard.NewCache(*cacheTTL), summarizer, log)

	// Create router
	mux := http.NewServeMux()
	chartsHandler.Register(mux)

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Dur("cache_ttl", *cacheTTL).Msg("Starting dashboard API")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
