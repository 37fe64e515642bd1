package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/booking-analytics/internal/bigquery"
	"github.com/dvloznov/booking-analytics/internal/logger"
)

// fakeRepository counts queries so tests can observe cache behavior.
type fakeRepository struct {
	leaderboardCalls int
	costCalls        int
	queryErr         error
}

func (f *fakeRepository) CostPerLeadByChannel(ctx context.Context) ([]*bigquery.ChannelCostRow, error) {
	f.costCalls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return []*bigquery.ChannelCostRow{
		{Channel: "google", CostPerLead: 42},
		{Channel: "meta", CostPerLead: 57},
	}, nil
}

func (f *fakeRepository) DailyLeadsByChannel(ctx context.Context) ([]*bigquery.DailyLeadsRow, error) {
	return nil, f.queryErr
}

func (f *fakeRepository) ChannelLeaderboard(ctx context.Context) ([]*bigquery.LeaderboardRow, error) {
	f.leaderboardCalls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return []*bigquery.LeaderboardRow{
		{Channel: "google", Spend: 1200, Bookings: 30, CostPerLead: 40},
	}, nil
}

func (f *fakeRepository) BookingsByWeekday(ctx context.Context) ([]*bigquery.WeekdayRow, error) {
	return []*bigquery.WeekdayRow{{Day: "Monday", Bookings: 5}}, f.queryErr
}

func (f *fakeRepository) BookingsByHour(ctx context.Context) ([]*bigquery.HourRow, error) {
	return []*bigquery.HourRow{{Hour: 9, Bookings: 3}}, f.queryErr
}

func (f *fakeRepository) MeetingsByWeekday(ctx context.Context) ([]*bigquery.WeekdayRow, error) {
	return nil, f.queryErr
}

func (f *fakeRepository) MeetingsByHour(ctx context.Context) ([]*bigquery.HourRow, error) {
	return nil, f.queryErr
}

func (f *fakeRepository) MeetingsPerEmployee(ctx context.Context) ([]*bigquery.EmployeeLoadRow, error) {
	return []*bigquery.EmployeeLoadRow{{EmployeeName: "Dana", MeetingsPerDay: 3.5}}, f.queryErr
}

type fakeSummarizer struct {
	calls int
	err   error
}

func (f *fakeSummarizer) Summarize(ctx context.Context) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "google is the most efficient channel", nil
}

func newTestHandler(repo *fakeRepository, cache *Cache) *ChartsHandler {
	return NewChartsHandler(repo, cache, nil, logger.NewWithWriter(&strings.Builder{}))
}

func getChart(t *testing.T, h *ChartsHandler, path string) map[string]interface{} {
	t.Helper()

	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET %s: status = %d (body: %s)", path, rec.Code, rec.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("GET %s: response is not JSON: %v", path, err)
	}
	return resp
}

func TestCostPerLeadReturnsRows(t *testing.T) {
	repo := &fakeRepository{}
	h := newTestHandler(repo, NewCache(DefaultCacheTTL))

	resp := getChart(t, h, "/api/charts/cost-per-lead")

	rows, ok := resp["rows"].([]interface{})
	if !ok || len(rows) != 2 {
		t.Fatalf("rows = %v, want 2 entries", resp["rows"])
	}
	if resp["cached"] != false {
		t.Errorf("first hit should not be cached")
	}
}

func TestChartResultIsCached(t *testing.T) {
	repo := &fakeRepository{}
	h := newTestHandler(repo, NewCache(DefaultCacheTTL))

	first := getChart(t, h, "/api/charts/leaderboard")
	second := getChart(t, h, "/api/charts/leaderboard")

	if repo.leaderboardCalls != 1 {
		t.Errorf("repository queried %d times, want 1", repo.leaderboardCalls)
	}
	if first["cached"] != false || second["cached"] != true {
		t.Errorf("cached flags = %v, %v; want false then true", first["cached"], second["cached"])
	}
}

func TestRefreshClearsCache(t *testing.T) {
	repo := &fakeRepository{}
	h := newTestHandler(repo, NewCache(DefaultCacheTTL))
	mux := http.NewServeMux()
	h.Register(mux)

	getChart(t, h, "/api/charts/leaderboard")

	req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d", rec.Code)
	}

	getChart(t, h, "/api/charts/leaderboard")
	if repo.leaderboardCalls != 2 {
		t.Errorf("repository queried %d times, want 2 after refresh", repo.leaderboardCalls)
	}
}

func TestRefreshRejectsGet(t *testing.T) {
	h := newTestHandler(&fakeRepository{}, NewCache(DefaultCacheTTL))
	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/refresh", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestChartQueryFailure(t *testing.T) {
	repo := &fakeRepository{queryErr: fmt.Errorf("query exploded")}
	h := newTestHandler(repo, NewCache(DefaultCacheTTL))
	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/charts/cost-per-lead", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestInsightsCachedPerTTLWindow(t *testing.T) {
	summarizer := &fakeSummarizer{}
	h := NewChartsHandler(&fakeRepository{}, NewCache(DefaultCacheTTL), summarizer, logger.NewWithWriter(&strings.Builder{}))

	first := getChart(t, h, "/api/insights")
	second := getChart(t, h, "/api/insights")

	if summarizer.calls != 1 {
		t.Errorf("summarizer called %d times, want 1", summarizer.calls)
	}
	if first["summary"] != "google is the most efficient channel" {
		t.Errorf("summary = %v", first["summary"])
	}
	if second["cached"] != true {
		t.Error("second hit should come from the cache")
	}
}

func TestInsightsUnconfigured(t *testing.T) {
	h := newTestHandler(&fakeRepository{}, NewCache(DefaultCacheTTL))
	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/insights", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestCacheExpiry(t *testing.T) {
	cache := NewCache(time.Hour)
	current := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return current }

	cache.Set("k", "v")
	if _, ok := cache.Get("k"); !ok {
		t.Fatal("entry should be present before expiry")
	}

	current = current.Add(2 * time.Hour)
	if _, ok := cache.Get("k"); ok {
		t.Error("entry should have expired")
	}
}
