package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	infraBQ "github.com/dvloznov/booking-analytics/internal/infra/bigquery"
	"github.com/dvloznov/booking-analytics/internal/logger"
	"github.com/dvloznov/booking-analytics/internal/notionsync"
)

func main() {
	// Initialize structured logger
	log := logger.New()

	// Parse CLI flags
	notionToken := flag.String("notion-token", os.Getenv("NOTION_TOKEN"), "Notion API token (or set NOTION_TOKEN env)")
	notionDBID := flag.String("notion-db-id", os.Getenv("NOTION_DB_ID"), "Notion database ID (or set NOTION_DB_ID env)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	// Validate required flags
	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token is required (or set NOTION_TOKEN)")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id is required (or set NOTION_DB_ID)")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo, err := infraBQ.NewRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
	}
	defer repo.Close()

	notionClient := notionsync.NewNotionClient(*notionToken)

	if err := notionsync.SyncLeaderboard(ctx, repo, notionClient, *notionDBID, *dryRun); err != nil {
		log.Fatal().Err(err).Msg("Leaderboard sync failed")
	}

	fmt.Println("Leaderboard sync completed successfully.")
}
