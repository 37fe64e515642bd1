package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	bq "github.com/dvloznov/booking-analytics/internal/bigquery"
)

// The dashboard queries join events to channel mappings and spends the same
// way the original dashboard did: event_type URIs map to channel names via
// event_type_channels, and channel names join daily_spends. booking time is
// created_at (when the invitee booked), meeting time is
// scheduled_event_start_time (when the meeting happens).

// CostPerLeadByChannelWithClient returns total spend divided by bookings per
// channel, cheapest channel first.
func CostPerLeadByChannelWithClient(ctx context.Context, client *bigquery.Client) ([]*bq.ChannelCostRow, error) {
	query := fmt.Sprintf(`
		SELECT
			s.channel AS channel,
			ROUND(SUM(s.spend) / COUNT(e.uri), 0) AS cost_per_lead
		FROM `+"`%[1]s.%[2]s.%[3]s`"+` e
		INNER JOIN `+"`%[1]s.%[2]s.%[4]s`"+` c
		  ON e.scheduled_event_event_type = c.event_type
		INNER JOIN `+"`%[1]s.%[2]s.%[5]s`"+` s
		  ON c.channel_name = s.channel
		GROUP BY channel
		ORDER BY cost_per_lead
	`, projectID, datasetID, eventsTable, channelsTable, spendsTable)

	q := client.Query(query)
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("CostPerLeadByChannel: reading query: %w", err)
	}

	var rows []*bq.ChannelCostRow
	for {
		var r bq.ChannelCostRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("CostPerLeadByChannel: iterating: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}

// DailyLeadsByChannelWithClient returns booking counts per channel per day.
func DailyLeadsByChannelWithClient(ctx context.Context, client *bigquery.Client) ([]*bq.DailyLeadsRow, error) {
	query := fmt.Sprintf(`
		SELECT
			s.channel AS channel,
			DATE(e.created_at) AS booking_date,
			COUNT(e.uri) AS n_events
		FROM `+"`%[1]s.%[2]s.%[3]s`"+` e
		INNER JOIN `+"`%[1]s.%[2]s.%[4]s`"+` c
		  ON e.scheduled_event_event_type = c.event_type
		INNER JOIN `+"`%[1]s.%[2]s.%[5]s`"+` s
		  ON c.channel_name = s.channel
		WHERE e.created_at IS NOT NULL
		GROUP BY channel, booking_date
		ORDER BY channel
	`, projectID, datasetID, eventsTable, channelsTable, spendsTable)

	q := client.Query(query)
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("DailyLeadsByChannel: reading query: %w", err)
	}

	var rows []*bq.DailyLeadsRow
	for {
		var r bq.DailyLeadsRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("DailyLeadsByChannel: iterating: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}

// ChannelLeaderboardWithClient returns spend, bookings and cost per lead per
// channel.
func ChannelLeaderboardWithClient(ctx context.Context, client *bigquery.Client) ([]*bq.LeaderboardRow, error) {
	query := fmt.Sprintf(`
		SELECT
			s.channel AS channel,
			ROUND(SUM(s.spend), 0) AS spend,
			COUNT(e.uri) AS bookings,
			ROUND(SUM(s.spend) / COUNT(e.uri), 0) AS cost_per_lead
		FROM `+"`%[1]s.%[2]s.%[3]s`"+` e
		INNER JOIN `+"`%[1]s.%[2]s.%[4]s`"+` c
		  ON e.scheduled_event_event_type = c.event_type
		INNER JOIN `+"`%[1]s.%[2]s.%[5]s`"+` s
		  ON c.channel_name = s.channel
		GROUP BY channel
		ORDER BY spend
	`, projectID, datasetID, eventsTable, channelsTable, spendsTable)

	q := client.Query(query)
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ChannelLeaderboard: reading query: %w", err)
	}

	var rows []*bq.LeaderboardRow
	for {
		var r bq.LeaderboardRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ChannelLeaderboard: iterating: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}

// BookingsByWeekdayWithClient returns booking counts by day of week, ordered
// Sunday through Saturday.
func BookingsByWeekdayWithClient(ctx context.Context, client *bigquery.Client) ([]*bq.WeekdayRow, error) {
	return bookingsByWeekday(ctx, client, "created_at", "BookingsByWeekday")
}

// MeetingsByWeekdayWithClient returns meeting counts by day of week.
func MeetingsByWeekdayWithClient(ctx context.Context, client *bigquery.Client) ([]*bq.WeekdayRow, error) {
	return bookingsByWeekday(ctx, client, "scheduled_event_start_time", "MeetingsByWeekday")
}

func bookingsByWeekday(ctx context.Context, client *bigquery.Client, tsColumn, op string) ([]*bq.WeekdayRow, error) {
	query := fmt.Sprintf(`
		SELECT
			FORMAT_TIMESTAMP('%%A', e.%[6]s) AS day,
			COUNT(e.uri) AS bookings
		FROM `+"`%[1]s.%[2]s.%[3]s`"+` e
		INNER JOIN `+"`%[1]s.%[2]s.%[4]s`"+` c
		  ON e.scheduled_event_event_type = c.event_type
		INNER JOIN `+"`%[1]s.%[2]s.%[5]s`"+` s
		  ON c.channel_name = s.channel
		WHERE e.%[6]s IS NOT NULL
		GROUP BY day, EXTRACT(DAYOFWEEK FROM e.%[6]s)
		ORDER BY EXTRACT(DAYOFWEEK FROM e.%[6]s)
	`, projectID, datasetID, eventsTable, channelsTable, spendsTable, tsColumn)

	q := client.Query(query)
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: reading query: %w", op, err)
	}

	var rows []*bq.WeekdayRow
	for {
		var r bq.WeekdayRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: iterating: %w", op, err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}

// BookingsByHourWithClient returns booking counts by hour of day.
func BookingsByHourWithClient(ctx context.Context, client *bigquery.Client) ([]*bq.HourRow, error) {
	return bookingsByHour(ctx, client, "created_at", "BookingsByHour")
}

// MeetingsByHourWithClient returns meeting counts by hour of day.
func MeetingsByHourWithClient(ctx context.Context, client *bigquery.Client) ([]*bq.HourRow, error) {
	return bookingsByHour(ctx, client, "scheduled_event_start_time", "MeetingsByHour")
}

func bookingsByHour(ctx context.Context, client *bigquery.Client, tsColumn, op string) ([]*bq.HourRow, error) {
	query := fmt.Sprintf(`
		SELECT
			EXTRACT(HOUR FROM e.%[6]s) AS hour,
			COUNT(e.uri) AS bookings
		FROM `+"`%[1]s.%[2]s.%[3]s`"+` e
		INNER JOIN `+"`%[1]s.%[2]s.%[4]s`"+` c
		  ON e.scheduled_event_event_type = c.event_type
		INNER JOIN `+"`%[1]s.%[2]s.%[5]s`"+` s
		  ON c.channel_name = s.channel
		WHERE e.%[6]s IS NOT NULL
		GROUP BY hour
		ORDER BY hour
	`, projectID, datasetID, eventsTable, channelsTable, spendsTable, tsColumn)

	q := client.Query(query)
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: reading query: %w", op, err)
	}

	var rows []*bq.HourRow
	for {
		var r bq.HourRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: iterating: %w", op, err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}

// MeetingsPerEmployeeWithClient returns average meetings per active day per
// employee, busiest first.
func MeetingsPerEmployeeWithClient(ctx context.Context, client *bigquery.Client) ([]*bq.EmployeeLoadRow, error) {
	query := fmt.Sprintf(`
		SELECT
			emp.employee_name AS employee_name,
			COUNT(DISTINCT e.uri) / COUNT(DISTINCT DATE(e.scheduled_event_start_time)) AS meetings_per_day
		FROM `+"`%[1]s.%[2]s.%[3]s`"+` e
		INNER JOIN `+"`%[1]s.%[2]s.%[4]s`"+` m
		  ON e.uri = m.event_id
		INNER JOIN `+"`%[1]s.%[2]s.%[5]s`"+` emp
		  ON m.employee_id = emp.employee_id
		WHERE e.scheduled_event_start_time IS NOT NULL
		GROUP BY employee_name
		ORDER BY meetings_per_day DESC
	`, projectID, datasetID, eventsTable, membershipsTable, employeesTable)

	q := client.Query(query)
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("MeetingsPerEmployee: reading query: %w", err)
	}

	var rows []*bq.EmployeeLoadRow
	for {
		var r bq.EmployeeLoadRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("MeetingsPerEmployee: iterating: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
