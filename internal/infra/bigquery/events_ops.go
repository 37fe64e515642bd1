package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	bq "github.com/dvloznov/booking-analytics/internal/bigquery"
)

// InsertEvents appends a batch of EventRow into calendly.events.
func InsertEvents(ctx context.Context, rows []*bq.EventRow) error {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return fmt.Errorf("InsertEvents: bigquery client: %w", err)
	}
	defer client.Close()

	return InsertEventsWithClient(ctx, client, rows)
}

// InsertEventsWithClient appends a batch of EventRow into calendly.events
// using the provided BigQuery client. Appends accumulate: a rerun over raw
// objects that were already processed inserts the same rows again.
func InsertEventsWithClient(ctx context.Context, client *bigquery.Client, rows []*bq.EventRow) error {
	if len(rows) == 0 {
		return nil
	}

	// Use fully qualified table name to avoid project ID issues
	table := client.DatasetInProject(projectID, datasetID).Table(eventsTable)
	inserter := table.Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertEvents: inserting rows: %w", err)
	}

	return nil
}

// RegisterEventPartition records an (event_date, storage location) pair in
// the partition registry.
func RegisterEventPartition(ctx context.Context, eventDate civil.Date, location string) error {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return fmt.Errorf("RegisterEventPartition: bigquery client: %w", err)
	}
	defer client.Close()

	return RegisterEventPartitionWithClient(ctx, client, eventDate, location)
}

// RegisterEventPartitionWithClient records the pair using the provided
// client. The MERGE only inserts when the date is not registered yet, so
// repeating the call for the same date is a no-op.
func RegisterEventPartitionWithClient(ctx context.Context, client *bigquery.Client, eventDate civil.Date, location string) error {
	query := fmt.Sprintf(`
		MERGE `+"`%s.%s.%s`"+` p
		USING (SELECT @event_date AS event_date, @location AS location) s
		ON p.event_date = s.event_date
		WHEN NOT MATCHED THEN
		  INSERT (event_date, location, registered_ts)
		  VALUES (s.event_date, s.location, CURRENT_TIMESTAMP())
	`, projectID, datasetID, partitionsTable)

	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "event_date", Value: eventDate},
		{Name: "location", Value: location},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("RegisterEventPartition: running merge: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("RegisterEventPartition: waiting for merge: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("RegisterEventPartition: merge failed: %w", err)
	}

	return nil
}
