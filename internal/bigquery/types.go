package bigquery

import (
	"context"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

// EventSink provides an interface for writing flattened webhook events.
type EventSink interface {
	// InsertEvents appends a batch of EventRow to the events table.
	// Appends accumulate across runs for the same date (at-least-once).
	InsertEvents(ctx context.Context, rows []*EventRow) error

	// RegisterEventPartition records (event_date, storage path) in the
	// partition registry if not already present. Safe to repeat.
	RegisterEventPartition(ctx context.Context, eventDate civil.Date, location string) error
}

// SpendSink provides an interface for loading daily ad-spend partitions.
type SpendSink interface {
	// LoadSpendPartition loads the NDJSON object at gcsURI into the
	// daily_spends partition for fileDate, replacing any previous load for
	// that date so reruns stay idempotent.
	LoadSpendPartition(ctx context.Context, fileDate civil.Date, gcsURI string) error
}

// DashboardRepository provides the read-only aggregate queries behind the
// dashboard charts. Every method is parameterless by design: each chart is
// one fixed SQL statement over events, channel mappings and spends.
type DashboardRepository interface {
	CostPerLeadByChannel(ctx context.Context) ([]*ChannelCostRow, error)
	DailyLeadsByChannel(ctx context.Context) ([]*DailyLeadsRow, error)
	ChannelLeaderboard(ctx context.Context) ([]*LeaderboardRow, error)
	BookingsByWeekday(ctx context.Context) ([]*WeekdayRow, error)
	BookingsByHour(ctx context.Context) ([]*HourRow, error)
	MeetingsByWeekday(ctx context.Context) ([]*WeekdayRow, error)
	MeetingsByHour(ctx context.Context) ([]*HourRow, error)
	MeetingsPerEmployee(ctx context.Context) ([]*EmployeeLoadRow, error)
}

// QuestionAnswer is one entry of an invitee's questions_and_answers list.
type QuestionAnswer struct {
	Answer   string             `bigquery:"answer" json:"answer"`
	Position bigquery.NullInt64 `bigquery:"position" json:"position"`
	Question string             `bigquery:"question" json:"question"`
}

// EventMembership is one entry of scheduled_event.event_memberships.
type EventMembership struct {
	User      string `bigquery:"user" json:"user"`
	UserEmail string `bigquery:"user_email" json:"user_email"`
	UserName  string `bigquery:"user_name" json:"user_name"`
}

// EventRow is one flattened webhook delivery in the events table. Every
// column is nullable except event_date, which comes from the raw folder the
// delivery was sourced from, not from any timestamp inside the payload.
type EventRow struct {
	CancelURL          bigquery.NullString    `bigquery:"cancel_url"`
	CreatedAt          bigquery.NullTimestamp `bigquery:"created_at"`
	Email              bigquery.NullString    `bigquery:"email"`
	Event              bigquery.NullString    `bigquery:"event"`
	FirstName          bigquery.NullString    `bigquery:"first_name"`
	InviteeScheduledBy bigquery.NullString    `bigquery:"invitee_scheduled_by"`
	LastName           bigquery.NullString    `bigquery:"last_name"`
	Name               bigquery.NullString    `bigquery:"name"`
	NewInvitee         bigquery.NullString    `bigquery:"new_invitee"`
	NoShow             bigquery.NullString    `bigquery:"no_show"`
	OldInvitee         bigquery.NullString    `bigquery:"old_invitee"`
	Payment            bigquery.NullString    `bigquery:"payment"`

	QuestionsAndAnswers []QuestionAnswer `bigquery:"questions_and_answers"`

	Reconfirmation        bigquery.NullString `bigquery:"reconfirmation"`
	RescheduleURL         bigquery.NullString `bigquery:"reschedule_url"`
	Rescheduled           bigquery.NullBool   `bigquery:"rescheduled"`
	RoutingFormSubmission bigquery.NullString `bigquery:"routing_form_submission"`

	ScheduledEventCreatedAt        bigquery.NullTimestamp `bigquery:"scheduled_event_created_at"`
	ScheduledEventEndTime          bigquery.NullTimestamp `bigquery:"scheduled_event_end_time"`
	ScheduledEventEventGuests      []string               `bigquery:"scheduled_event_event_guests"`
	ScheduledEventEventMemberships []EventMembership      `bigquery:"scheduled_event_event_memberships"`
	ScheduledEventEventType        bigquery.NullString    `bigquery:"scheduled_event_event_type"`

	ScheduledEventInviteesCounterTotal  bigquery.NullInt64 `bigquery:"scheduled_event_invitees_counter_total"`
	ScheduledEventInviteesCounterActive bigquery.NullInt64 `bigquery:"scheduled_event_invitees_counter_active"`
	ScheduledEventInviteesCounterLimit  bigquery.NullInt64 `bigquery:"scheduled_event_invitees_counter_limit"`

	ScheduledEventLocationLocation  bigquery.NullString `bigquery:"scheduled_event_location_location"`
	ScheduledEventLocationType      bigquery.NullString `bigquery:"scheduled_event_location_type"`
	ScheduledEventMeetingNotesHTML  bigquery.NullString `bigquery:"scheduled_event_meeting_notes_html"`
	ScheduledEventMeetingNotesPlain bigquery.NullString `bigquery:"scheduled_event_meeting_notes_plain"`

	ScheduledEventName      bigquery.NullString    `bigquery:"scheduled_event_name"`
	ScheduledEventStartTime bigquery.NullTimestamp `bigquery:"scheduled_event_start_time"`
	ScheduledEventStatus    bigquery.NullString    `bigquery:"scheduled_event_status"`
	ScheduledEventUpdatedAt bigquery.NullTimestamp `bigquery:"scheduled_event_updated_at"`
	ScheduledEventURI       bigquery.NullString    `bigquery:"scheduled_event_uri"`

	SchedulingMethod   bigquery.NullString `bigquery:"scheduling_method"`
	Status             bigquery.NullString `bigquery:"status"`
	TextReminderNumber bigquery.NullString `bigquery:"text_reminder_number"`
	Timezone           bigquery.NullString `bigquery:"timezone"`

	TrackingUTMCampaign    bigquery.NullString `bigquery:"tracking_utm_campaign"`
	TrackingUTMSource      bigquery.NullString `bigquery:"tracking_utm_source"`
	TrackingUTMMedium      bigquery.NullString `bigquery:"tracking_utm_medium"`
	TrackingUTMContent     bigquery.NullString `bigquery:"tracking_utm_content"`
	TrackingUTMTerm        bigquery.NullString `bigquery:"tracking_utm_term"`
	TrackingSalesforceUUID bigquery.NullString `bigquery:"tracking_salesforce_uuid"`

	UpdatedAt bigquery.NullTimestamp `bigquery:"updated_at"`
	URI       bigquery.NullString    `bigquery:"uri"`

	EventDate civil.Date `bigquery:"event_date"`
}

// SpendRow is one (channel, date) record of the third-party spend feed.
// FileDate is the date embedded in the feed filename; all retained records
// of an ingestion run share Date == FileDate.
type SpendRow struct {
	Channel string     `bigquery:"channel" json:"channel"`
	Date    civil.Date `bigquery:"date" json:"date"`
	Spend   float64    `bigquery:"spend" json:"spend"`

	FileDate civil.Date `bigquery:"file_date" json:"file_date"`
}

// PartitionRow records a registered (event_date, storage path) pair.
type PartitionRow struct {
	EventDate    civil.Date `bigquery:"event_date"`
	Location     string     `bigquery:"location"`
	RegisteredTS time.Time  `bigquery:"registered_ts"`
}

// ChannelRow maps a scheduling event type URI to a marketing channel.
type ChannelRow struct {
	EventType   string `bigquery:"event_type"`
	ChannelName string `bigquery:"channel_name"`
}

// EmployeeRow is one employee in the static employees mapping table.
type EmployeeRow struct {
	EmployeeID   string `bigquery:"employee_id"`
	EmployeeName string `bigquery:"employee_name"`
}

// ChannelCostRow backs the cost-per-lead chart.
type ChannelCostRow struct {
	Channel     string  `bigquery:"channel" json:"channel"`
	CostPerLead float64 `bigquery:"cost_per_lead" json:"cost_per_lead"`
}

// DailyLeadsRow backs the daily-leads-by-channel chart.
type DailyLeadsRow struct {
	Channel     string     `bigquery:"channel" json:"channel"`
	BookingDate civil.Date `bigquery:"booking_date" json:"booking_date"`
	Events      int64      `bigquery:"n_events" json:"n_events"`
}

// LeaderboardRow backs the channel leaderboard table.
type LeaderboardRow struct {
	Channel     string  `bigquery:"channel" json:"channel"`
	Spend       float64 `bigquery:"spend" json:"spend"`
	Bookings    int64   `bigquery:"bookings" json:"bookings"`
	CostPerLead float64 `bigquery:"cost_per_lead" json:"cost_per_lead"`
}

// WeekdayRow backs the by-day-of-week charts.
type WeekdayRow struct {
	Day      string `bigquery:"day" json:"day"`
	Bookings int64  `bigquery:"bookings" json:"bookings"`
}

// HourRow backs the by-hour charts.
type HourRow struct {
	Hour     int64 `bigquery:"hour" json:"hour"`
	Bookings int64 `bigquery:"bookings" json:"bookings"`
}

// EmployeeLoadRow backs the meetings-per-employee chart.
type EmployeeLoadRow struct {
	EmployeeName   string  `bigquery:"employee_name" json:"employee_name"`
	MeetingsPerDay float64 `bigquery:"meetings_per_day" json:"meetings_per_day"`
}
