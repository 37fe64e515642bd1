package flatten

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/booking-analytics/internal/bigquery"
	"github.com/dvloznov/booking-analytics/internal/logger"
)

type fakeStore struct {
	objects   map[string][]byte
	putErr    error
	deleteErr error
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
	seen := make(map[string]bool)
	for name := range f.objects {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		if idx := strings.Index(rest, "/"); idx != -1 {
			seen[prefix+rest[:idx+1]] = true
		}
	}
	folders := make([]string, 0, len(seen))
	for folder := range seen {
		folders = append(folders, folder)
	}
	sort.Strings(folders)
	return folders, nil
}

func (f *fakeStore) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	for name := range f.objects {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if strings.Contains(strings.TrimPrefix(name, prefix), "/") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeStore) DeleteObjects(ctx context.Context, names []string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for _, n := range names {
		delete(f.objects, n)
	}
	return nil
}

func (f *fakeStore) URI(name string) string { return "gs://test-bucket/" + name }

type fakeEventSink struct {
	rows       []*bigquery.EventRow
	partitions map[string]string
	insertErr  error
}

func newFakeEventSink() *fakeEventSink {
	return &fakeEventSink{partitions: make(map[string]string)}
}

func (f *fakeEventSink) InsertEvents(ctx context.Context, rows []*bigquery.EventRow) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.rows = append(f.rows, rows...)
	return nil
}

func (f *fakeEventSink) RegisterEventPartition(ctx context.Context, eventDate civil.Date, location string) error {
	f.partitions[eventDate.String()] = location
	return nil
}

func rawDelivery(email string) []byte {
	return []byte(fmt.Sprintf(`{
		"created_at": "2024-02-01T10:00:00.000000Z",
		"event": "invitee.created",
		"payload": {
			"email": %q,
			"name": "Test Invitee",
			"status": "active",
			"scheduled_event": {
				"start_time": "2024-02-01T15:00:00.000000Z",
				"event_type": "https://api.calendly.com/event_types/abc"
			}
		}
	}`, email))
}

func newTestJob(store *fakeStore, sink *fakeEventSink) *Job {
	j := NewJob(store, sink, logger.NewWithWriter(&strings.Builder{}))
	n := 0
	j.newID = func() string {
		n++
		return fmt.Sprintf("id-%04d", n)
	}
	return j
}

func TestRunProcessesFolderEndToEnd(t *testing.T) {
	store := newFakeStore()
	store.objects["raw/2024-02-01/a.json"] = rawDelivery("a@example.com")
	store.objects["raw/2024-02-01/b.json"] = rawDelivery("b@example.com")
	sink := newFakeEventSink()

	if err := newTestJob(store, sink).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sink.rows) != 2 {
		t.Fatalf("inserted %d rows, want 2", len(sink.rows))
	}
	wantDate := civil.Date{Year: 2024, Month: 2, Day: 1}
	for _, row := range sink.rows {
		if row.EventDate != wantDate {
			t.Errorf("row event date = %v, want %v", row.EventDate, wantDate)
		}
		if !row.Email.Valid {
			t.Error("row email should be set")
		}
	}

	loc, ok := sink.partitions["2024-02-01"]
	if !ok {
		t.Fatal("partition 2024-02-01 not registered")
	}
	if want := "gs://test-bucket/processed/events/event_date=2024-02-01/"; loc != want {
		t.Errorf("partition location = %q, want %q", loc, want)
	}

	staged, err := store.ReadObject(context.Background(), "processed/events/event_date=2024-02-01/id-0001.json")
	if err != nil {
		t.Fatalf("staged partition missing: %v", err)
	}
	if lines := strings.Count(string(staged), "\n"); lines != 2 {
		t.Errorf("staged NDJSON has %d lines, want 2", lines)
	}

	for _, name := range []string{"raw/2024-02-01/a.json", "raw/2024-02-01/b.json"} {
		if _, ok := store.objects[name]; ok {
			t.Errorf("raw object %s should have been deleted", name)
		}
	}
}

func TestRunSkipsMalformedObjectAndKeepsIt(t *testing.T) {
	store := newFakeStore()
	store.objects["raw/2024-02-01/good.json"] = rawDelivery("a@example.com")
	store.objects["raw/2024-02-01/bad.json"] = []byte("{not json")
	sink := newFakeEventSink()

	if err := newTestJob(store, sink).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sink.rows) != 1 {
		t.Fatalf("inserted %d rows, want 1", len(sink.rows))
	}
	if _, ok := store.objects["raw/2024-02-01/bad.json"]; !ok {
		t.Error("malformed object should stay in raw/ for inspection")
	}
	if _, ok := store.objects["raw/2024-02-01/good.json"]; ok {
		t.Error("processed object should have been deleted")
	}
}

func TestRunMissingPayloadYieldsNullRow(t *testing.T) {
	store := newFakeStore()
	store.objects["raw/2024-02-01/a.json"] = []byte(`{"event": "invitee.created"}`)
	sink := newFakeEventSink()

	if err := newTestJob(store, sink).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sink.rows) != 1 {
		t.Fatalf("inserted %d rows, want 1 all-null row", len(sink.rows))
	}
	row := sink.rows[0]
	if row.Email.Valid {
		t.Error("email should be null for a payload-less delivery")
	}
	if want := (civil.Date{Year: 2024, Month: 2, Day: 1}); row.EventDate != want {
		t.Errorf("row event date = %v, want %v", row.EventDate, want)
	}
	if _, ok := store.objects["raw/2024-02-01/a.json"]; ok {
		t.Error("payload-less delivery should still be consumed")
	}
}

func TestRunAllUnparseableSkipsFolder(t *testing.T) {
	store := newFakeStore()
	store.objects["raw/2024-02-01/bad.json"] = []byte("{not json")
	store.objects["raw/2024-02-01/worse.json"] = []byte("also not json")
	sink := newFakeEventSink()

	if err := newTestJob(store, sink).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.rows) != 0 {
		t.Errorf("inserted %d rows, want 0", len(sink.rows))
	}
	if len(sink.partitions) != 0 {
		t.Error("no partition should be registered for a skipped folder")
	}
	for _, name := range []string{"raw/2024-02-01/bad.json", "raw/2024-02-01/worse.json"} {
		if _, ok := store.objects[name]; !ok {
			t.Errorf("unparseable object %s should stay in raw/ for inspection", name)
		}
	}
}

func TestRunIgnoresNonJSONObjects(t *testing.T) {
	store := newFakeStore()
	store.objects["raw/2024-02-01/a.json"] = rawDelivery("a@example.com")
	store.objects["raw/2024-02-01/notes.txt"] = []byte("not a delivery")
	sink := newFakeEventSink()

	if err := newTestJob(store, sink).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sink.rows) != 1 {
		t.Fatalf("inserted %d rows, want 1", len(sink.rows))
	}
	if _, ok := store.objects["raw/2024-02-01/notes.txt"]; !ok {
		t.Error("non-JSON object should be left alone")
	}
	if _, ok := store.objects["raw/2024-02-01/a.json"]; ok {
		t.Error("processed delivery should have been deleted")
	}
}

func TestRunFoldersAreIndependent(t *testing.T) {
	store := newFakeStore()
	store.objects["raw/2024-02-01/good.json"] = rawDelivery("a@example.com")
	store.objects["raw/not-a-date/stray.json"] = rawDelivery("b@example.com")
	sink := newFakeEventSink()

	err := newTestJob(store, sink).Run(context.Background())
	if err == nil {
		t.Fatal("expected an error naming the failed folder")
	}
	if !strings.Contains(err.Error(), "raw/not-a-date/") {
		t.Errorf("err = %v, want the failed folder named", err)
	}

	// The healthy folder still went through in full.
	if len(sink.rows) != 1 {
		t.Errorf("inserted %d rows, want 1", len(sink.rows))
	}
	if _, ok := sink.partitions["2024-02-01"]; !ok {
		t.Error("partition for the healthy folder should be registered")
	}
}

func TestRerunAfterFailedDeleteAppendsDuplicates(t *testing.T) {
	store := newFakeStore()
	store.objects["raw/2024-02-01/a.json"] = rawDelivery("a@example.com")
	sink := newFakeEventSink()
	job := newTestJob(store, sink)

	store.deleteErr = fmt.Errorf("delete unavailable")
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected the delete failure to propagate")
	}

	// The raw object survived the failed run, so the rerun processes it
	// again and the same event lands twice.
	store.deleteErr = nil
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("rerun: %v", err)
	}

	if len(sink.rows) != 2 {
		t.Errorf("inserted %d rows across both runs, want 2", len(sink.rows))
	}
	if _, ok := store.objects["raw/2024-02-01/a.json"]; ok {
		t.Error("raw object should be gone after the successful rerun")
	}
}

func TestRunNothingToProcess(t *testing.T) {
	store := newFakeStore()
	sink := newFakeEventSink()

	if err := newTestJob(store, sink).Run(context.Background()); err != nil {
		t.Fatalf("Run on an empty bucket: %v", err)
	}
	if len(sink.rows) != 0 || len(sink.partitions) != 0 {
		t.Error("nothing should have been written")
	}
}

func TestProcessDateEmptyFolderIsNoop(t *testing.T) {
	store := newFakeStore()
	sink := newFakeEventSink()
	job := newTestJob(store, sink)

	date := civil.Date{Year: 2024, Month: 2, Day: 1}
	if err := job.ProcessDate(context.Background(), date); err != nil {
		t.Fatalf("ProcessDate: %v", err)
	}
	if len(sink.rows) != 0 {
		t.Errorf("inserted %d rows, want 0", len(sink.rows))
	}
}

func TestRunInsertFailureLeavesRawInPlace(t *testing.T) {
	store := newFakeStore()
	store.objects["raw/2024-02-01/a.json"] = rawDelivery("a@example.com")
	sink := newFakeEventSink()
	sink.insertErr = fmt.Errorf("streaming quota exceeded")

	err := newTestJob(store, sink).Run(context.Background())
	if err == nil {
		t.Fatal("expected the insert failure to propagate")
	}
	if _, ok := store.objects["raw/2024-02-01/a.json"]; !ok {
		t.Error("raw object must survive a failed insert")
	}
}
