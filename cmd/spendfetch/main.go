package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/booking-analytics/internal/gcsstore"
	infraBQ "github.com/dvloznov/booking-analytics/internal/infra/bigquery"
	"github.com/dvloznov/booking-analytics/internal/logger"
	"github.com/dvloznov/booking-analytics/internal/spend"
)

func main() {
	// Initialize structured logger
	log := logger.New()

	// Parse CLI flags
	bucket := flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for spend extracts (or set GCS_BUCKET env)")
	indexURL := flag.String("index-url", spend.DefaultIndexURL, "URL of the spend feed file index")
	skipLoad := flag.Bool("skip-load", false, "Write the GCS extract but skip the BigQuery load")
	flag.Parse()

	if *bucket == "" {
		log.Fatal().Msg("Error: --bucket is required (or set GCS_BUCKET)")
	}

	// Create context with timeout so the job doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store, err := gcsstore.NewStore(ctx, *bucket)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer store.Close()

	var fetcher *spend.Fetcher
	if *skipLoad {
		fetcher = spend.NewFetcher(store, nil, *indexURL, log)
	} else {
		repo, err := infraBQ.NewRepository(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
		}
		defer repo.Close()
		fetcher = spend.NewFetcher(store, repo, *indexURL, log)
	}

	log.Info().Str("index_url", *indexURL).Msg("Starting spend fetch")

	// Any failure exits non-zero so the invoking scheduler retries.
	if err := fetcher.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Spend fetch failed")
	}

	fmt.Println("Spend fetch completed successfully.")
}
