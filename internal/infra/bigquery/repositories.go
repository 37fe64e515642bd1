package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	bq "github.com/dvloznov/booking-analytics/internal/bigquery"
)

const (
	projectID = "studious-union-470122-v7"
	datasetID = "calendly"

	eventsTable      = "events"
	spendsTable      = "daily_spends"
	partitionsTable  = "event_partitions"
	channelsTable    = "event_type_channels"
	employeesTable   = "employees"
	membershipsTable = "event_memberships"
)

// Repository is the concrete implementation of the warehouse interfaces.
// It holds a shared BigQuery client to avoid creating a new connection
// for each operation.
type Repository struct {
	client *bigquery.Client
}

// NewRepository creates a Repository with a shared BigQuery client.
func NewRepository(ctx context.Context) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{client: client}, nil
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// InsertEvents delegates to InsertEventsWithClient with the shared client.
func (r *Repository) InsertEvents(ctx context.Context, rows []*bq.EventRow) error {
	return InsertEventsWithClient(ctx, r.client, rows)
}

// RegisterEventPartition delegates to RegisterEventPartitionWithClient.
func (r *Repository) RegisterEventPartition(ctx context.Context, eventDate civil.Date, location string) error {
	return RegisterEventPartitionWithClient(ctx, r.client, eventDate, location)
}

// LoadSpendPartition delegates to LoadSpendPartitionWithClient.
func (r *Repository) LoadSpendPartition(ctx context.Context, fileDate civil.Date, gcsURI string) error {
	return LoadSpendPartitionWithClient(ctx, r.client, fileDate, gcsURI)
}

// CostPerLeadByChannel delegates to the shared-client query function.
func (r *Repository) CostPerLeadByChannel(ctx context.Context) ([]*bq.ChannelCostRow, error) {
	return CostPerLeadByChannelWithClient(ctx, r.client)
}

// DailyLeadsByChannel delegates to the shared-client query function.
func (r *Repository) DailyLeadsByChannel(ctx context.Context) ([]*bq.DailyLeadsRow, error) {
	return DailyLeadsByChannelWithClient(ctx, r.client)
}

// ChannelLeaderboard delegates to the shared-client query function.
func (r *Repository) ChannelLeaderboard(ctx context.Context) ([]*bq.LeaderboardRow, error) {
	return ChannelLeaderboardWithClient(ctx, r.client)
}

// BookingsByWeekday delegates to the shared-client query function.
func (r *Repository) BookingsByWeekday(ctx context.Context) ([]*bq.WeekdayRow, error) {
	return BookingsByWeekdayWithClient(ctx, r.client)
}

// BookingsByHour delegates to the shared-client query function.
func (r *Repository) BookingsByHour(ctx context.Context) ([]*bq.HourRow, error) {
	return BookingsByHourWithClient(ctx, r.client)
}

// MeetingsByWeekday delegates to the shared-client query function.
func (r *Repository) MeetingsByWeekday(ctx context.Context) ([]*bq.WeekdayRow, error) {
	return MeetingsByWeekdayWithClient(ctx, r.client)
}

// MeetingsByHour delegates to the shared-client query function.
func (r *Repository) MeetingsByHour(ctx context.Context) ([]*bq.HourRow, error) {
	return MeetingsByHourWithClient(ctx, r.client)
}

// MeetingsPerEmployee delegates to the shared-client query function.
func (r *Repository) MeetingsPerEmployee(ctx context.Context) ([]*bq.EmployeeLoadRow, error) {
	return MeetingsPerEmployeeWithClient(ctx, r.client)
}

// Ensure Repository satisfies the warehouse interfaces.
var _ bq.EventSink = (*Repository)(nil)
var _ bq.SpendSink = (*Repository)(nil)
var _ bq.DashboardRepository = (*Repository)(nil)
