package exchange

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"testing"
	"time"

	"github.com/lotas/tabspeicher/internal/storage"
	"github.com/lotas/tabspeicher/internal/types"
)

func testExchanger(t *testing.T) (*Exchanger, *storage.RecordStore, string) {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.OpenDB(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	store := storage.NewRecordStore(db)
	t.Cleanup(func() {
		store.Close()
		db.Close()
	})
	exportDir := filepath.Join(dir, "exports")
	return New(store, exportDir), store, exportDir
}

func seed(t *testing.T, store *storage.RecordStore) []types.Record {
	t.Helper()
	records := []types.Record{
		{ID: 1700000000123, Title: "Example", URL: "https://example.com", Favicon: "https://example.com/favicon.ico", Date: "2024-01-01T00:00:00.000Z"},
		{ID: 1700000000124, Title: "Go docs", URL: "https://go.dev/doc", Date: "2024-01-02T10:30:00.000Z"},
	}
	if err := store.AppendMany(context.Background(), records); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return records
}

func TestExportWritesTimestampedFile(t *testing.T) {
	e, store, _ := testExchanger(t)
	seed(t, store)
	e.now = func() time.Time { return time.Date(2024, 5, 1, 10, 20, 30, 450e6, time.UTC) }

	path, err := e.Export(context.Background())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if filepath.Base(path) != "tabs_export_2024-05-01T10-20-30-450Z.json" {
		t.Errorf("unexpected file name %q", filepath.Base(path))
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("export file missing: %v", err)
	}

	loc, _ := store.Location(context.Background())
	if loc != filepath.Base(path) {
		t.Errorf("location = %q, want export file name", loc)
	}
}

func TestExportDoesNotMutateRecords(t *testing.T) {
	e, store, _ := testExchanger(t)
	before := seed(t, store)

	if _, err := e.Export(context.Background()); err != nil {
		t.Fatalf("export: %v", err)
	}
	after, _ := store.GetAll(context.Background())
	if !reflect.DeepEqual(before, after) {
		t.Errorf("export mutated the record set")
	}
}

func TestExportEmptySetIsArray(t *testing.T) {
	e, _, _ := testExchanger(t)

	path, err := e.Export(context.Background())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "[]\n" {
		t.Errorf("empty export = %q, want JSON array", data)
	}
}

func TestRoundTripIsIdempotent(t *testing.T) {
	e, store, _ := testExchanger(t)
	before := seed(t, store)
	ctx := context.Background()

	path, err := e.Export(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}

	count, err := e.ImportReplace(ctx, data, filepath.Base(path))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if count != len(before) {
		t.Errorf("import count = %d, want %d", count, len(before))
	}

	after, _ := store.GetAll(ctx)
	if !reflect.DeepEqual(before, after) {
		t.Errorf("round trip changed records:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestImportMalformedLeavesStoreUntouched(t *testing.T) {
	e, store, _ := testExchanger(t)
	before := seed(t, store)

	_, err := e.ImportReplace(context.Background(), []byte("{not json"), "broken.json")
	if !errors.Is(err, ErrImport) {
		t.Fatalf("expected ErrImport, got %v", err)
	}
	if !regexp.MustCompile(`^invalid JSON file: .+`).MatchString(err.Error()) {
		t.Errorf("error %q is not actionable", err)
	}

	after, _ := store.GetAll(context.Background())
	if !reflect.DeepEqual(before, after) {
		t.Errorf("failed import modified the record set")
	}
	loc, _ := store.Location(context.Background())
	if loc == "broken.json" {
		t.Errorf("failed import remembered the source file")
	}
}

func TestImportToleratesLegacyIDs(t *testing.T) {
	e, store, _ := testExchanger(t)

	doc := `[{"id": 1700000000123.4567, "title": "a", "url": "https://a.example", "date": "2024-01-01T00:00:00.000Z"},
	 {"id": "1700000000999", "title": "b", "url": "https://b.example", "date": "2024-01-01T00:00:00.000Z"}]`
	count, err := e.ImportReplace(context.Background(), []byte(doc), "legacy.json")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}

	records, _ := store.GetAll(context.Background())
	if records[0].ID != 1700000000123 || records[1].ID != 1700000000999 {
		t.Errorf("legacy ids decoded wrong: %v, %v", records[0].ID, records[1].ID)
	}
}

func TestCreateBlank(t *testing.T) {
	e, store, _ := testExchanger(t)
	seed(t, store)
	ctx := context.Background()

	path, err := e.CreateBlank(ctx)
	if err != nil {
		t.Fatalf("createblank: %v", err)
	}
	if !regexp.MustCompile(`^saved_tabs_.+\.json$`).MatchString(filepath.Base(path)) {
		t.Errorf("unexpected blank file name %q", filepath.Base(path))
	}
	data, _ := os.ReadFile(path)
	if string(data) != "[]\n" {
		t.Errorf("blank file = %q, want empty array", data)
	}

	records, _ := store.GetAll(ctx)
	if len(records) != 0 {
		t.Errorf("record set not cleared: %d records", len(records))
	}
}

func TestExportDetachedReportsSuccess(t *testing.T) {
	e, store, _ := testExchanger(t)
	seed(t, store)

	path, ok := e.ExportDetached(context.Background())
	if !ok || path == "" {
		t.Fatalf("detached export should succeed, ok=%v path=%q", ok, path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("export file missing: %v", err)
	}
}

func TestCompletionResolvesOnce(t *testing.T) {
	c := newCompletion()
	c.resolve("first", nil)
	c.resolve("second", errors.New("late"))

	path, err, ok := c.wait(time.Second)
	if !ok {
		t.Fatal("completion did not resolve")
	}
	if path != "first" || err != nil {
		t.Errorf("late resolution overwrote the first: path=%q err=%v", path, err)
	}
}

func TestCompletionTimeout(t *testing.T) {
	c := newCompletion()
	if _, _, ok := c.wait(10 * time.Millisecond); ok {
		t.Errorf("wait reported resolution that never happened")
	}
	// A resolution arriving after the timeout must not panic and must
	// still be observable by a later waiter.
	c.resolve("late", nil)
	if path, _, ok := c.wait(time.Second); !ok || path != "late" {
		t.Errorf("late resolution lost: ok=%v path=%q", ok, path)
	}
}
