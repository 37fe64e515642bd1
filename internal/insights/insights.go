package insights

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	bq "github.com/dvloznov/booking-analytics/internal/bigquery"
)

// DefaultModelName is the Gemini model used for leaderboard summaries.
const DefaultModelName = "gemini-2.5-flash"

// Generator turns the channel leaderboard into a short natural-language
// summary via Gemini. API credentials come from the environment
// (GOOGLE_API_KEY / application default credentials), same as the rest of
// the GCP clients.
type Generator struct {
	repo  bq.DashboardRepository
	model string
}

// NewGenerator creates an insights generator over the given repository.
func NewGenerator(repo bq.DashboardRepository) *Generator {
	return &Generator{repo: repo, model: DefaultModelName}
}

// Summarize queries the channel leaderboard and asks the model for a short
// plain-text read of it.
func (g *Generator) Summarize(ctx context.Context) (string, error) {
	rows, err := g.repo.ChannelLeaderboard(ctx)
	if err != nil {
		return "", fmt.Errorf("Summarize: loading leaderboard: %w", err)
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("Summarize: leaderboard is empty")
	}

	prompt := buildPrompt(rows)

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return "", fmt.Errorf("Summarize: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("Summarize: generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("Summarize: empty response from model")
	}
	return text, nil
}

// buildPrompt renders the leaderboard as a plain table inside fixed
// instructions. Plain text out, no Markdown, so the response can go straight
// into a JSON string field.
func buildPrompt(rows []*bq.LeaderboardRow) string {
	var b strings.Builder
	b.WriteString("You are a marketing analyst. Below is a channel leaderboard for a\n")
	b.WriteString("meeting-booking funnel: total ad spend, number of booked meetings and\n")
	b.WriteString("cost per lead, per marketing channel.\n\n")
	b.WriteString("channel | spend | bookings | cost_per_lead\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%s | %.0f | %d | %.0f\n", r.Channel, r.Spend, r.Bookings, r.CostPerLead)
	}
	b.WriteString("\nWrite a summary of at most four sentences: which channel is the most\n")
	b.WriteString("efficient, which is the most expensive per lead, and one suggestion.\n")
	b.WriteString("Plain text only. No Markdown, no bullet points, no headings.\n")
	return b.String()
}
