package dashboard

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/booking-analytics/internal/api/middleware"
	"github.com/dvloznov/booking-analytics/internal/bigquery"
)

// Summarizer produces a natural-language read of the current leaderboard.
type Summarizer interface {
	Summarize(ctx context.Context) (string, error)
}

// ChartsHandler serves the dashboard chart endpoints. Each endpoint is one
// fixed aggregate query; results are cached so repeat page loads within the
// TTL never touch the warehouse.
type ChartsHandler struct {
	repo       bigquery.DashboardRepository
	cache      *Cache
	summarizer Summarizer
	log        zerolog.Logger
}

// NewChartsHandler creates a charts handler over the given repository.
// summarizer may be nil, in which case /api/insights answers 503.
func NewChartsHandler(repo bigquery.DashboardRepository, cache *Cache, summarizer Summarizer, log zerolog.Logger) *ChartsHandler {
	return &ChartsHandler{
		repo:       repo,
		cache:      cache,
		summarizer: summarizer,
		log:        log,
	}
}

// Register attaches all chart routes to the mux.
func (h *ChartsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/charts/cost-per-lead", h.CostPerLead)
	mux.HandleFunc("/api/charts/daily-leads", h.DailyLeads)
	mux.HandleFunc("/api/charts/leaderboard", h.Leaderboard)
	mux.HandleFunc("/api/charts/bookings-by-day", h.BookingsByDay)
	mux.HandleFunc("/api/charts/bookings-by-hour", h.BookingsByHour)
	mux.HandleFunc("/api/charts/meetings-by-day", h.MeetingsByDay)
	mux.HandleFunc("/api/charts/meetings-by-hour", h.MeetingsByHour)
	mux.HandleFunc("/api/charts/meetings-per-employee", h.MeetingsPerEmployee)
	mux.HandleFunc("/api/insights", h.Insights)
	mux.HandleFunc("/api/refresh", h.Refresh)
}

// serveChart answers one chart request from the cache, falling back to the
// query function on a miss.
func (h *ChartsHandler) serveChart(w http.ResponseWriter, r *http.Request, key string, query func(context.Context) (interface{}, error)) {
	if r.Method != http.MethodGet {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if cached, ok := h.cache.Get(key); ok {
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"rows":   cached,
			"cached": true,
		})
		return
	}

	rows, err := query(r.Context())
	if err != nil {
		h.log.Error().Err(err).Str("chart", key).Msg("Chart query failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query chart data")
		return
	}

	h.cache.Set(key, rows)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"rows":   rows,
		"cached": false,
	})
}

// CostPerLead handles GET /api/charts/cost-per-lead
func (h *ChartsHandler) CostPerLead(w http.ResponseWriter, r *http.Request) {
	h.serveChart(w, r, "cost-per-lead", func(ctx context.Context) (interface{}, error) {
		return h.repo.CostPerLeadByChannel(ctx)
	})
}

// DailyLeads handles GET /api/charts/daily-leads
func (h *ChartsHandler) DailyLeads(w http.ResponseWriter, r *http.Request) {
	h.serveChart(w, r, "daily-leads", func(ctx context.Context) (interface{}, error) {
		return h.repo.DailyLeadsByChannel(ctx)
	})
}

// Leaderboard handles GET /api/charts/leaderboard
func (h *ChartsHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	h.serveChart(w, r, "leaderboard", func(ctx context.Context) (interface{}, error) {
		return h.repo.ChannelLeaderboard(ctx)
	})
}

// BookingsByDay handles GET /api/charts/bookings-by-day
func (h *ChartsHandler) BookingsByDay(w http.ResponseWriter, r *http.Request) {
	h.serveChart(w, r, "bookings-by-day", func(ctx context.Context) (interface{}, error) {
		return h.repo.BookingsByWeekday(ctx)
	})
}

// BookingsByHour handles GET /api/charts/bookings-by-hour
func (h *ChartsHandler) BookingsByHour(w http.ResponseWriter, r *http.Request) {
	h.serveChart(w, r, "bookings-by-hour", func(ctx context.Context) (interface{}, error) {
		return h.repo.BookingsByHour(ctx)
	})
}

// MeetingsByDay handles GET /api/charts/meetings-by-day
func (h *ChartsHandler) MeetingsByDay(w http.ResponseWriter, r *http.Request) {
	h.serveChart(w, r, "meetings-by-day", func(ctx context.Context) (interface{}, error) {
		return h.repo.MeetingsByWeekday(ctx)
	})
}

// MeetingsByHour handles GET /api/charts/meetings-by-hour
func (h *ChartsHandler) MeetingsByHour(w http.ResponseWriter, r *http.Request) {
	h.serveChart(w, r, "meetings-by-hour", func(ctx context.Context) (interface{}, error) {
		return h.repo.MeetingsByHour(ctx)
	})
}

// MeetingsPerEmployee handles GET /api/charts/meetings-per-employee
func (h *ChartsHandler) MeetingsPerEmployee(w http.ResponseWriter, r *http.Request) {
	h.serveChart(w, r, "meetings-per-employee", func(ctx context.Context) (interface{}, error) {
		return h.repo.MeetingsPerEmployee(ctx)
	})
}

// Insights handles GET /api/insights. The summary rides the same cache as
// the charts, so the model is called at most once per TTL window.
func (h *ChartsHandler) Insights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if h.summarizer == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Insights are not configured")
		return
	}

	if cached, ok := h.cache.Get("insights"); ok {
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"summary": cached,
			"cached":  true,
		})
		return
	}

	summary, err := h.summarizer.Summarize(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Insights generation failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to generate insights")
		return
	}

	h.cache.Set("insights", summary)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"summary": summary,
		"cached":  false,
	})
}

// Refresh handles POST /api/refresh. It drops every cached chart so the next
// request of each re-queries the warehouse.
func (h *ChartsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	h.cache.Clear()
	h.log.Info().Msg("Dashboard cache cleared")
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"message": "Cache cleared"})
}
