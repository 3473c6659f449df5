package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/lotas/tabspeicher/internal/storage"
	"github.com/lotas/tabspeicher/internal/types"
)

func testEnricher(t *testing.T) (*Enricher, *storage.RecordStore) {
	t.Helper()
	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	store := storage.NewRecordStore(db)
	t.Cleanup(func() {
		store.Close()
		db.Close()
	})
	return New(store), store
}

func articleServer(t *testing.T, title string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html><head><title>` + title + `</title></head>
<body>
<article>
<h1>` + title + `</h1>
<p>This is the main content of the article. It has enough text to be considered readable content by the readability algorithm. The quick brown fox jumps over the lazy dog.</p>
<p>Second paragraph with more meaningful content that helps the readability parser understand this is a real article and not just navigation or boilerplate.</p>
</article>
</body></html>`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchTitle(t *testing.T) {
	e, _ := testEnricher(t)
	srv := articleServer(t, "Real Article Title")

	title, err := e.FetchTitle(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if title != "Real Article Title" {
		t.Errorf("title = %q, want 'Real Article Title'", title)
	}
}

func TestFetchTitleSkipsNonHTTP(t *testing.T) {
	e, _ := testEnricher(t)
	urls := []string{
		"about:newtab",
		"moz-extension://abc/page",
		"chrome-extension://abc/page",
		"file:///home/user/doc.html",
		"chrome://settings",
		"resource://gre/modules",
		"data:text/html,hello",
	}
	for _, u := range urls {
		if _, err := e.FetchTitle(context.Background(), u); err == nil {
			t.Errorf("expected error for %q, got nil", u)
		}
	}
}

func TestFetchTitleHTTPError(t *testing.T) {
	e, _ := testEnricher(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer srv.Close()

	if _, err := e.FetchTitle(context.Background(), srv.URL); err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestRunUpdatesOnlyPlaceholders(t *testing.T) {
	e, store := testEnricher(t)
	srv := articleServer(t, "Fetched Title")
	ctx := context.Background()

	store.AppendMany(ctx, []types.Record{
		{ID: 1, Title: types.UntitledTab, URL: srv.URL, Date: "2024-01-01T00:00:00.000Z"},
		{ID: 2, Title: "Already Named", URL: srv.URL, Date: "2024-01-01T00:00:00.000Z"},
		{ID: 3, Title: "", URL: srv.URL, Date: "2024-01-01T00:00:00.000Z"},
	})

	updated, err := e.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if updated != 2 {
		t.Errorf("updated = %d, want 2", updated)
	}

	records, _ := store.GetAll(ctx)
	if records[0].Title != "Fetched Title" || records[2].Title != "Fetched Title" {
		t.Errorf("placeholders not replaced: %+v", records)
	}
	if records[1].Title != "Already Named" {
		t.Errorf("named record was overwritten: %q", records[1].Title)
	}
}

func TestRunSkipsUnreachablePages(t *testing.T) {
	e, store := testEnricher(t)
	srv := articleServer(t, "Good Title")
	ctx := context.Background()

	store.AppendMany(ctx, []types.Record{
		{ID: 1, Title: types.UntitledTab, URL: "about:blank", Date: "2024-01-01T00:00:00.000Z"},
		{ID: 2, Title: types.UntitledTab, URL: srv.URL, Date: "2024-01-01T00:00:00.000Z"},
	})

	updated, err := e.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if updated != 1 {
		t.Errorf("updated = %d, want 1", updated)
	}

	records, _ := store.GetAll(ctx)
	if records[0].Title != types.UntitledTab {
		t.Errorf("unfetchable record should keep its placeholder, got %q", records[0].Title)
	}
	if records[1].Title != "Good Title" {
		t.Errorf("reachable record not titled: %q", records[1].Title)
	}
}
