package spend

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/booking-analytics/internal/logger"
)

type fakeStore struct {
	objects map[string][]byte
	putErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) PutObject(ctx context.Context, name string, data []byte, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[name] = data
	return nil
}

func (f *fakeStore) ReadObject(ctx context.Context, name string) ([]byte, error) {
	data, ok := f.objects[name]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", name)
	}
	return data, nil
}

func (f *fakeStore) ListFolders(ctx context.Context, prefix string) ([]string, error) {
	return nil, nil
}

func (f *fakeStore) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	return nil, nil
}

func (f *fakeStore) DeleteObjects(ctx context.Context, names []string) error {
	for _, n := range names {
		delete(f.objects, n)
	}
	return nil
}

func (f *fakeStore) URI(name string) string { return "gs://test-bucket/" + name }

type fakeSpendSink struct {
	loadedDate civil.Date
	loadedURI  string
	calls      int
	err        error
}

func (f *fakeSpendSink) LoadSpendPartition(ctx context.Context, fileDate civil.Date, sourceURI string) error {
	f.calls++
	f.loadedDate = fileDate
	f.loadedURI = sourceURI
	return f.err
}

func spendFeedServer(t *testing.T, index string, files map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/feed/file_index.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, index)
	})
	for name, body := range files {
		b := body
		mux.HandleFunc("/feed/"+name, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, b)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestFetcher(srv *httptest.Server, store *fakeStore, sink *fakeSpendSink) *Fetcher {
	f := NewFetcher(store, nil, srv.URL+"/feed/file_index.json", logger.NewWithWriter(&strings.Builder{}))
	if sink != nil {
		f.sink = sink
	}
	f.httpClient = srv.Client()
	return f
}

func TestLatestFilePicksLexicographicLast(t *testing.T) {
	files := []string{
		"spend_data_2024-02-01.json",
		"spend_data_2024-01-01.json",
		"spend_data_2024-01-15.json",
	}
	if got := latestFile(files); got != "spend_data_2024-02-01.json" {
		t.Errorf("latestFile = %q, want spend_data_2024-02-01.json", got)
	}
}

func TestExtractFileDate(t *testing.T) {
	tests := []struct {
		filename string
		want     string
		wantErr  bool
	}{
		{"spend_data_2024-02-01.json", "2024-02-01", false},
		{"2023-12-31_extract.json", "2023-12-31", false},
		{"spend_data.json", "", true},
	}
	for _, tt := range tests {
		got, err := extractFileDate(tt.filename)
		if tt.wantErr {
			if err == nil {
				t.Errorf("extractFileDate(%q): expected error", tt.filename)
			}
			continue
		}
		if err != nil {
			t.Errorf("extractFileDate(%q): %v", tt.filename, err)
			continue
		}
		if got != tt.want {
			t.Errorf("extractFileDate(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

func TestFilterByDateKeepsOnlyMatchingRecords(t *testing.T) {
	records := []map[string]interface{}{
		{"date": "2024-02-01", "channel": "google", "spend": 12.5},
		{"date": "2024-01-31", "channel": "google", "spend": 9.0},
		{"channel": "meta", "spend": 3.0},
		{"date": "2024-02-01", "channel": "meta", "spend": 7.25},
	}
	kept := filterByDate(records, "2024-02-01")
	if len(kept) != 2 {
		t.Fatalf("kept %d records, want 2", len(kept))
	}
	for _, rec := range kept {
		if rec["date"] != "2024-02-01" {
			t.Errorf("kept record with date %v", rec["date"])
		}
	}
}

func TestRunWritesFilteredNDJSONAndLoads(t *testing.T) {
	index := `{"files": ["spend_data_2024-01-01.json", "spend_data_2024-02-01.json"]}`
	data := `[
		{"date": "2024-02-01", "channel": "google", "spend": 100.5},
		{"date": "2024-01-31", "channel": "google", "spend": 50.0},
		{"date": "2024-02-01", "channel": "meta", "spend": 80.0}
	]`
	srv := spendFeedServer(t, index, map[string]string{"spend_data_2024-02-01.json": data})

	store := newFakeStore()
	sink := &fakeSpendSink{}
	f := newTestFetcher(srv, store, sink)

	if err := f.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantKey := "daily_spends/file_date=2024-02-01/spend_data_2024-02-01.json"
	body, ok := store.objects[wantKey]
	if !ok {
		t.Fatalf("extract not written under %s; objects: %v", wantKey, store.objects)
	}

	lines := strings.Split(strings.TrimRight(string(body), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("extract has %d lines, want 2:\n%s", len(lines), body)
	}
	for _, line := range lines {
		if !strings.Contains(line, `"2024-02-01"`) {
			t.Errorf("line %q does not carry the file date", line)
		}
	}

	if sink.calls != 1 {
		t.Fatalf("sink called %d times, want 1", sink.calls)
	}
	if want := (civil.Date{Year: 2024, Month: 2, Day: 1}); sink.loadedDate != want {
		t.Errorf("loaded date = %v, want %v", sink.loadedDate, want)
	}
	if sink.loadedURI != "gs://test-bucket/"+wantKey {
		t.Errorf("loaded URI = %q", sink.loadedURI)
	}
}

func TestRunWithoutSinkSkipsLoad(t *testing.T) {
	index := `{"files": ["spend_data_2024-02-01.json"]}`
	data := `[{"date": "2024-02-01", "channel": "google", "spend": 1.0}]`
	srv := spendFeedServer(t, index, map[string]string{"spend_data_2024-02-01.json": data})

	store := newFakeStore()
	f := newTestFetcher(srv, store, nil)

	if err := f.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.objects) != 1 {
		t.Errorf("expected one object written, got %d", len(store.objects))
	}
}

func TestRunEmptyIndexFails(t *testing.T) {
	srv := spendFeedServer(t, `{"files": []}`, nil)
	f := newTestFetcher(srv, newFakeStore(), nil)

	if err := f.Run(context.Background()); err == nil {
		t.Fatal("expected an error for an empty index")
	}
}

func TestRunUndatedFilenameFails(t *testing.T) {
	srv := spendFeedServer(t, `{"files": ["spend_data_latest.json"]}`, nil)
	f := newTestFetcher(srv, newFakeStore(), nil)

	err := f.Run(context.Background())
	if err == nil {
		t.Fatal("expected an error for a filename without a date")
	}
	if !strings.Contains(err.Error(), "no date in filename") {
		t.Errorf("err = %v, want a no-date message", err)
	}
}

func TestRunNoMatchingRecordsFails(t *testing.T) {
	index := `{"files": ["spend_data_2024-02-01.json"]}`
	data := `[{"date": "2024-01-31", "channel": "google", "spend": 1.0}]`
	srv := spendFeedServer(t, index, map[string]string{"spend_data_2024-02-01.json": data})

	f := newTestFetcher(srv, newFakeStore(), nil)
	err := f.Run(context.Background())
	if err == nil {
		t.Fatal("expected an error when no records match the file date")
	}
	if !strings.Contains(err.Error(), "no records for date") {
		t.Errorf("err = %v, want a no-records message", err)
	}
}

func TestRunIndexFetchFailureFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	f := NewFetcher(newFakeStore(), nil, srv.URL+"/feed/file_index.json", logger.NewWithWriter(&strings.Builder{}))
	f.httpClient = srv.Client()

	if err := f.Run(context.Background()); err == nil {
		t.Fatal("expected an error when the index endpoint fails")
	}
}

func TestRunStorageFailureFails(t *testing.T) {
	index := `{"files": ["spend_data_2024-02-01.json"]}`
	data := `[{"date": "2024-02-01", "channel": "google", "spend": 1.0}]`
	srv := spendFeedServer(t, index, map[string]string{"spend_data_2024-02-01.json": data})

	store := newFakeStore()
	store.putErr = fmt.Errorf("bucket unavailable")
	f := newTestFetcher(srv, store, nil)

	err := f.Run(context.Background())
	if err == nil {
		t.Fatal("expected the storage failure to propagate")
	}
	if !strings.Contains(err.Error(), "bucket unavailable") {
		t.Errorf("err = %v, want the storage error surfaced", err)
	}
}
