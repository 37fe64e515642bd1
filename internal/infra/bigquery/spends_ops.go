package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

// LoadSpendPartition loads an NDJSON spend extract from GCS into the
// daily_spends partition for fileDate.
func LoadSpendPartition(ctx context.Context, fileDate civil.Date, gcsURI string) error {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return fmt.Errorf("LoadSpendPartition: bigquery client: %w", err)
	}
	defer client.Close()

	return LoadSpendPartitionWithClient(ctx, client, fileDate, gcsURI)
}

// LoadSpendPartitionWithClient loads the extract using the provided client.
// The load targets the single partition decorator for fileDate with
// WRITE_TRUNCATE, so reloading the same date replaces the previous load
// instead of stacking duplicates. Matches the overwrite semantics of the
// deterministic GCS object key.
func LoadSpendPartitionWithClient(ctx context.Context, client *bigquery.Client, fileDate civil.Date, gcsURI string) error {
	gcsRef := bigquery.NewGCSReference(gcsURI)
	gcsRef.SourceFormat = bigquery.JSON

	partition := fmt.Sprintf("%s$%04d%02d%02d", spendsTable, fileDate.Year, fileDate.Month, fileDate.Day)
	loader := client.DatasetInProject(projectID, datasetID).Table(partition).LoaderFrom(gcsRef)
	loader.WriteDisposition = bigquery.WriteTruncate

	job, err := loader.Run(ctx)
	if err != nil {
		return fmt.Errorf("LoadSpendPartition: starting load of %s: %w", gcsURI, err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("LoadSpendPartition: waiting for load of %s: %w", gcsURI, err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("LoadSpendPartition: load of %s failed: %w", gcsURI, err)
	}

	return nil
}
