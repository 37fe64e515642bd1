package flatten

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/booking-analytics/internal/bigquery"
	"github.com/dvloznov/booking-analytics/internal/events"
	"github.com/dvloznov/booking-analytics/internal/gcs"
)

const (
	// RawPrefix is where the webhook receiver lands deliveries, one folder
	// per UTC date.
	RawPrefix = "raw"

	// ProcessedPrefix is where flattened partitions are staged, Hive-style.
	ProcessedPrefix = "processed/events"
)

// Job drains raw webhook date folders: flatten every delivery, stage the
// partition as NDJSON, append the rows to the events table, register the
// partition, then delete the raw objects that made it through.
//
// The delete comes last, so a crash between the append and the delete means
// the next run re-processes the folder and appends the same rows again.
// That at-least-once tradeoff is deliberate; dedup belongs to the queries.
type Job struct {
	store gcs.ObjectStore
	sink  bigquery.EventSink
	log   zerolog.Logger
	newID func() string
}

// NewJob creates a flatten job over the given store and warehouse sink.
func NewJob(store gcs.ObjectStore, sink bigquery.EventSink, log zerolog.Logger) *Job {
	return &Job{
		store: store,
		sink:  sink,
		log:   log,
		newID: uuid.NewString,
	}
}

// Run processes every raw date folder currently in the bucket. Folders are
// independent: one folder failing does not stop the others, and the error
// returned at the end names each folder that failed.
func (j *Job) Run(ctx context.Context) error {
	folders, err := j.store.ListFolders(ctx, RawPrefix+"/")
	if err != nil {
		return fmt.Errorf("Run: listing raw folders: %w", err)
	}
	if len(folders) == 0 {
		j.log.Info().Msg("No raw folders to process")
		return nil
	}

	var failed []string
	for _, folder := range folders {
		date, err := folderDate(folder)
		if err != nil {
			j.log.Error().Err(err).Str("folder", folder).Msg("Skipping unparseable raw folder")
			failed = append(failed, folder)
			continue
		}
		if err := j.processFolder(ctx, folder, date); err != nil {
			j.log.Error().Err(err).Str("folder", folder).Msg("Failed to process raw folder")
			failed = append(failed, folder)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("Run: %d of %d folders failed: %s", len(failed), len(folders), strings.Join(failed, ", "))
	}
	return nil
}

// ProcessDate processes the raw folder for a single event date. Used by the
// queue consumer, where each job carries one date.
func (j *Job) ProcessDate(ctx context.Context, date civil.Date) error {
	folder := fmt.Sprintf("%s/%s/", RawPrefix, date.String())
	return j.processFolder(ctx, folder, date)
}

// processFolder flattens one raw date folder end to end.
func (j *Job) processFolder(ctx context.Context, folder string, date civil.Date) error {
	objects, err := j.store.ListObjects(ctx, folder)
	if err != nil {
		return fmt.Errorf("processFolder: listing %s: %w", folder, err)
	}

	// Only .json objects are deliveries; anything else in the folder is
	// left alone.
	var deliveries []string
	for _, name := range objects {
		if strings.HasSuffix(name, ".json") {
			deliveries = append(deliveries, name)
		}
	}
	if len(deliveries) == 0 {
		j.log.Info().Str("folder", folder).Msg("Raw folder has no deliveries, nothing to do")
		return nil
	}

	var (
		rows      []*bigquery.EventRow
		flattened []map[string]interface{}
		processed []string
		skipped   int
	)
	for _, name := range deliveries {
		rec, err := j.flattenObject(ctx, name)
		if err != nil {
			// A malformed delivery must not block the rest of the folder.
			// It stays in raw/ for inspection.
			j.log.Warn().Err(err).Str("object", name).Msg("Skipping malformed raw delivery")
			skipped++
			continue
		}
		rows = append(rows, events.BuildRow(rec, date))
		flattened = append(flattened, rec)
		processed = append(processed, name)
	}

	if len(rows) == 0 {
		j.log.Warn().Str("folder", folder).Int("skipped", skipped).Msg("No valid deliveries in folder, leaving it in place")
		return nil
	}

	stagingName, err := j.stagePartition(ctx, date, flattened)
	if err != nil {
		return err
	}

	if err := j.sink.InsertEvents(ctx, rows); err != nil {
		return fmt.Errorf("processFolder: inserting %d rows for %s: %w", len(rows), date, err)
	}

	partitionLocation := j.store.URI(fmt.Sprintf("%s/event_date=%s/", ProcessedPrefix, date))
	if err := j.sink.RegisterEventPartition(ctx, date, partitionLocation); err != nil {
		return fmt.Errorf("processFolder: registering partition %s: %w", date, err)
	}

	// Raw objects go away only after everything above has succeeded.
	if err := j.store.DeleteObjects(ctx, processed); err != nil {
		return fmt.Errorf("processFolder: deleting raw objects for %s: %w", date, err)
	}

	j.log.Info().
		Str("event_date", date.String()).
		Str("staged", stagingName).
		Int("rows", len(rows)).
		Int("skipped", skipped).
		Msg("Raw folder processed")

	return nil
}

// flattenObject reads one raw delivery and flattens its payload into the
// fixed event schema. A delivery without a payload object flattens to an
// all-null row.
func (j *Job) flattenObject(ctx context.Context, name string) (map[string]interface{}, error) {
	data, err := j.store.ReadObject(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("flattenObject: reading %s: %w", name, err)
	}

	var envelope map[string]interface{}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("flattenObject: parsing %s: %w", name, err)
	}

	payload, _ := envelope["payload"].(map[string]interface{})
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return events.FlattenPayload(payload), nil
}

// stagePartition writes the flattened records as one NDJSON object under the
// processed partition folder.
func (j *Job) stagePartition(ctx context.Context, date civil.Date, records []map[string]interface{}) (string, error) {
	var b strings.Builder
	for i, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			return "", fmt.Errorf("stagePartition: record %d: %w", i, err)
		}
		b.Write(line)
		b.WriteByte('\n')
	}

	name := fmt.Sprintf("%s/event_date=%s/%s.json", ProcessedPrefix, date, j.newID())
	if err := j.store.PutObject(ctx, name, []byte(b.String()), "application/json"); err != nil {
		return "", fmt.Errorf("stagePartition: writing %s: %w", name, err)
	}
	return name, nil
}

// folderDate extracts the civil date from a raw folder prefix like
// "raw/2024-02-01/".
func folderDate(folder string) (civil.Date, error) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(folder, RawPrefix+"/"), "/")
	date, err := civil.ParseDate(trimmed)
	if err != nil {
		return civil.Date{}, fmt.Errorf("folderDate: %q: %w", folder, err)
	}
	return date, nil
}
