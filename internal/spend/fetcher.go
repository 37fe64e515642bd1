package spend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/dvloznov/booking-analytics/internal/bigquery"
	"github.com/dvloznov/booking-analytics/internal/gcs"
)

// SpendPrefix is the bucket folder daily spend extracts are written under.
const SpendPrefix = "daily_spends"

// DefaultIndexURL is the public index of the third-party spend feed.
const DefaultIndexURL = "https://dea-data-bucket.storage.googleapis.com/calendly_spend_data/file_index.json"

var fileDatePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// Fetcher pulls the newest dated file from the spend feed, keeps the records
// matching that date and writes them as NDJSON to a deterministic partition
// key. Every failure propagates as an error so the invoking platform's retry
// policy applies; nothing here retries internally.
type Fetcher struct {
	httpClient *http.Client
	store      gcs.ObjectStore
	sink       bigquery.SpendSink
	indexURL   string
	log        zerolog.Logger
}

// NewFetcher creates a spend fetcher. sink may be nil to skip the warehouse
// load and only write the GCS extract.
func NewFetcher(store gcs.ObjectStore, sink bigquery.SpendSink, indexURL string, log zerolog.Logger) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		store:      store,
		sink:       sink,
		indexURL:   indexURL,
		log:        log,
	}
}

// Run performs one fetch cycle. Re-running for the same feed date overwrites
// the same object key, so the GCS write is idempotent by construction.
func (f *Fetcher) Run(ctx context.Context) error {
	files, err := f.fetchIndex(ctx)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("Run: no files listed in spend index")
	}

	latest := latestFile(files)
	fileDate, err := extractFileDate(latest)
	if err != nil {
		return fmt.Errorf("Run: %w", err)
	}

	records, err := f.fetchDataFile(ctx, latest)
	if err != nil {
		return err
	}

	kept := filterByDate(records, fileDate)
	if len(kept) == 0 {
		// An index pointing at a file with no same-date records is an
		// anomaly worth surfacing, not something to skip silently.
		return fmt.Errorf("Run: no records for date %s in file %s", fileDate, latest)
	}

	f.log.Info().
		Str("file", latest).
		Str("file_date", fileDate).
		Int("records_total", len(records)).
		Int("records_kept", len(kept)).
		Msg("Fetched spend feed")

	objectName := fmt.Sprintf("%s/file_date=%s/spend_data_%s.json", SpendPrefix, fileDate, fileDate)
	ndjson, err := toNDJSON(kept)
	if err != nil {
		return fmt.Errorf("Run: %w", err)
	}
	if err := f.store.PutObject(ctx, objectName, ndjson, "application/json"); err != nil {
		return fmt.Errorf("Run: writing spend extract: %w", err)
	}

	f.log.Info().Str("object", objectName).Msg("Spend extract written")

	if f.sink != nil {
		date, err := civil.ParseDate(fileDate)
		if err != nil {
			return fmt.Errorf("Run: parsing file date %q: %w", fileDate, err)
		}
		if err := f.sink.LoadSpendPartition(ctx, date, f.store.URI(objectName)); err != nil {
			return fmt.Errorf("Run: loading spend partition: %w", err)
		}
		f.log.Info().Str("file_date", fileDate).Msg("Spend partition loaded")
	}

	return nil
}

// fetchIndex downloads the {"files": [...]} index document.
func (f *Fetcher) fetchIndex(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.indexURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetchIndex: building request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetchIndex: fetching %s: %w", f.indexURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetchIndex: unexpected status %d from %s", resp.StatusCode, f.indexURL)
	}

	var index struct {
		Files []string `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&index); err != nil {
		return nil, fmt.Errorf("fetchIndex: decoding index: %w", err)
	}
	return index.Files, nil
}

// fetchDataFile downloads one feed file living next to the index document.
func (f *Fetcher) fetchDataFile(ctx context.Context, filename string) ([]map[string]interface{}, error) {
	dataURL := f.indexURL
	if idx := strings.LastIndex(dataURL, "/"); idx != -1 {
		dataURL = dataURL[:idx+1] + filename
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dataURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetchDataFile: building request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetchDataFile: fetching %s: %w", dataURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetchDataFile: unexpected status %d from %s", resp.StatusCode, dataURL)
	}

	var records []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("fetchDataFile: decoding %s: %w", filename, err)
	}
	return records, nil
}

// latestFile picks the lexicographically last filename. This assumes the
// feed embeds zero-padded ISO dates so name order matches recency; a feed
// that stops padding dates would break this silently.
func latestFile(files []string) string {
	sorted := make([]string, len(files))
	copy(sorted, files)
	sort.Strings(sorted)
	return sorted[len(sorted)-1]
}

// extractFileDate pulls the YYYY-MM-DD token out of a feed filename.
func extractFileDate(filename string) (string, error) {
	date := fileDatePattern.FindString(filename)
	if date == "" {
		return "", fmt.Errorf("extractFileDate: no date in filename %q", filename)
	}
	return date, nil
}

// filterByDate keeps records whose own date field equals the filename date.
func filterByDate(records []map[string]interface{}, fileDate string) []map[string]interface{} {
	var kept []map[string]interface{}
	for _, rec := range records {
		if d, _ := rec["date"].(string); d == fileDate {
			kept = append(kept, rec)
		}
	}
	return kept
}

// toNDJSON serializes records as one JSON object per line.
func toNDJSON(records []map[string]interface{}) ([]byte, error) {
	var b strings.Builder
	for i, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("toNDJSON: record %d: %w", i, err)
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return []byte(b.String()), nil
}
