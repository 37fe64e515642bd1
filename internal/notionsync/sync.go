package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"

	bq "github.com/dvloznov/booking-analytics/internal/bigquery"
	"github.com/dvloznov/booking-analytics/internal/logger"
)

// SyncLeaderboard pushes the channel leaderboard to a Notion database, one
// page per channel. Existing pages are updated in place, channels that left
// the leaderboard are archived, and pages without a Channel title are
// treated as stale. dryRun logs what would happen without touching Notion.
func SyncLeaderboard(ctx context.Context, repo bq.DashboardRepository, notionClient NotionService, notionDBID string, dryRun bool) error {
	log := logger.FromContext(ctx)

	log.Info().Bool("dry_run", dryRun).Msg("Starting leaderboard sync to Notion")

	rows, err := repo.ChannelLeaderboard(ctx)
	if err != nil {
		return fmt.Errorf("failed to query leaderboard: %w", err)
	}

	log.Info().Int("channel_count", len(rows)).Msg("Retrieved leaderboard from BigQuery")

	validChannels := make(map[string]bool)
	for _, row := range rows {
		validChannels[row.Channel] = true
	}

	pages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return fmt.Errorf("failed to query Notion pages: %w", err)
	}

	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	// Existing channel -> page ID, for in-place updates.
	existingPages := make(map[string]string)

	var deleted int
	for _, page := range pages {
		channel := extractChannel(page)
		if channel != "" && validChannels[channel] {
			existingPages[channel] = string(page.ID)
			continue
		}

		if dryRun {
			log.Info().
				Str("channel", channel).
				Str("page_id", string(page.ID)).
				Msg("[DRY RUN] Would archive stale Notion page")
			deleted++
			continue
		}

		if err := notionClient.DeletePage(ctx, string(page.ID)); err != nil {
			log.Warn().
				Err(err).
				Str("channel", channel).
				Str("page_id", string(page.ID)).
				Msg("Failed to archive stale Notion page")
			continue
		}
		deleted++
	}

	syncedAt := time.Now()

	var created, updated int
	for _, row := range rows {
		props := LeaderboardToNotionProperties(row, syncedAt)

		pageID, exists := existingPages[row.Channel]

		if dryRun {
			if exists {
				log.Info().Str("channel", row.Channel).Msg("[DRY RUN] Would update Notion page")
				updated++
			} else {
				log.Info().Str("channel", row.Channel).Msg("[DRY RUN] Would create Notion page")
				created++
			}
			continue
		}

		if exists {
			if _, err := notionClient.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().
					Err(err).
					Str("channel", row.Channel).
					Str("page_id", pageID).
					Msg("Failed to update Notion page")
				continue
			}
			updated++
		} else {
			if _, err := notionClient.CreatePage(ctx, notionDBID, props); err != nil {
				log.Warn().
					Err(err).
					Str("channel", row.Channel).
					Msg("Failed to create Notion page")
				continue
			}
			created++
		}
	}

	log.Info().
		Int("created", created).
		Int("updated", updated).
		Int("deleted", deleted).
		Msg("Leaderboard sync to Notion complete")

	return nil
}

// queryAllNotionPages pages through the database with the standard cursor loop.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
