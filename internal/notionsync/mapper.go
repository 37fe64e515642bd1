package notionsync

import (
	"time"

	"github.com/jomei/notionapi"

	bq "github.com/dvloznov/booking-analytics/internal/bigquery"
)

// LeaderboardToNotionProperties converts one leaderboard row to Notion page
// properties. The Channel title is the upsert key.
func LeaderboardToNotionProperties(row *bq.LeaderboardRow, syncedAt time.Time) notionapi.Properties {
	props := notionapi.Properties{
		"Channel": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: row.Channel,
					},
				},
			},
		},
		"Spend": notionapi.NumberProperty{
			Number: row.Spend,
		},
		"Bookings": notionapi.NumberProperty{
			Number: float64(row.Bookings),
		},
		"Cost per Lead": notionapi.NumberProperty{
			Number: row.CostPerLead,
		},
	}

	props["Synced At"] = notionapi.DateProperty{
		Date: &notionapi.DateObject{
			Start: func() *notionapi.Date {
				d := notionapi.Date(syncedAt.UTC())
				return &d
			}(),
		},
	}

	return props
}

// extractChannel extracts the channel name from a Notion page's title
// property. Returns empty string if not found.
func extractChannel(page notionapi.Page) string {
	if prop, ok := page.Properties["Channel"]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			if len(title.Title) > 0 {
				return title.Title[0].PlainText
			}
		}
	}
	return ""
}
