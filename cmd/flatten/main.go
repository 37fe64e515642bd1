package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/dvloznov/booking-analytics/internal/api/handlers"
	"github.com/dvloznov/booking-analytics/internal/api/middleware"
	"github.com/dvloznov/booking-analytics/internal/flatten"
	"github.com/dvloznov/booking-analytics/internal/gcsstore"
	infraBQ "github.com/dvloznov/booking-analytics/internal/infra/bigquery"
	"github.com/dvloznov/booking-analytics/internal/jobs"
	"github.com/dvloznov/booking-analytics/internal/jobs/inmemory"
	"github.com/dvloznov/booking-analytics/internal/logger"
)

func main() {
	// Parse command-line flags
	var (
		bucket  = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket holding raw webhook deliveries (or set GCS_BUCKET env)")
		serve   = flag.Bool("serve", false, "Run as an HTTP job server instead of a one-shot batch pass")
		port    = flag.String("port", "8080", "HTTP server port (serve mode)")
		workers = flag.Int("workers", 2, "Concurrent flatten workers (serve mode)")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New()

	if *bucket == "" {
		log.Fatal().Msg("Error: --bucket is required (or set GCS_BUCKET)")
	}

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	store, err := gcsstore.NewStore(ctx, *bucket)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer store.Close()

	repo, err := infraBQ.NewRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
	}
	defer repo.Close()

	job := flatten.NewJob(store, repo, log)

	if !*serve {
		runCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
		defer cancel()

		log.Info().Str("bucket", *bucket).Msg("Starting flatten batch pass")
		if err := job.Run(runCtx); err != nil {
			log.Fatal().Err(err).Msg("Flatten pass failed")
		}
		fmt.Println("Flatten pass completed successfully.")
		return
	}

	runServer(ctx, job, *port, *workers, log)
}

// runServer exposes the flatten job behind the in-memory queue: POST
// /jobs/flatten enqueues one date, workers drain the queue, GET /jobs
// reports status.
func runServer(ctx context.Context, job *flatten.Job, port string, workers int, log zerolog.Logger) {
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, workers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, j jobs.Job) error {
		flattenJob, ok := j.(*jobs.FlattenDateJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", j)
		}

		date, err := civil.ParseDate(flattenJob.EventDate)
		if err != nil {
			return fmt.Errorf("invalid event date %q: %w", flattenJob.EventDate, err)
		}

		log.Info().
			Str("job_id", flattenJob.JobID).
			Str("event_date", flattenJob.EventDate).
			Msg("Processing flatten job")

		if err := job.ProcessDate(ctx, date); err != nil {
			log.Error().
				Err(err).
				Str("job_id", flattenJob.JobID).
				Str("event_date", flattenJob.EventDate).
				Msg("Flatten job failed")
			return err
		}

		log.Info().
			Str("job_id", flattenJob.JobID).
			Str("event_date", flattenJob.EventDate).
			Msg("Flatten job completed")
		return nil
	}

	go func() {
		log.Info().Int("workers", workers).Msg("Starting flatten workers")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Flatten workers stopped with error")
		}
	}()

	jobsHandler := handlers.NewJobsHandler(jobQueue, jobStore, log)

	// Create router
	mux := http.NewServeMux()

	mux.HandleFunc("/jobs/flatten", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			jobsHandler.EnqueueFlatten(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

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
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", port).Msg("Starting flatten job server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
