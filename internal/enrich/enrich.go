// Package enrich fills in placeholder record titles by fetching the
// page and extracting the real title.
package enrich

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/lotas/tabspeicher/internal/applog"
	"github.com/lotas/tabspeicher/internal/storage"
	"github.com/lotas/tabspeicher/internal/types"
)

var skipPrefixes = []string{"about:", "moz-extension:", "chrome-extension:", "file:", "chrome:", "resource:", "data:"}

// Enricher rewrites placeholder titles in the record store.
type Enricher struct {
	store  *storage.RecordStore
	client *http.Client
}

func New(store *storage.RecordStore) *Enricher {
	return &Enricher{
		store:  store,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// needsTitle reports whether a record still carries the capture-time
// placeholder.
func needsTitle(r types.Record) bool {
	return r.Title == "" || r.Title == types.UntitledTab
}

// FetchTitle fetches a URL and extracts the page title. Non-HTTP URLs
// are an error, there is nothing to fetch.
func (e *Enricher) FetchTitle(ctx context.Context, url string) (string, error) {
	for _, prefix := range skipPrefixes {
		if strings.HasPrefix(url, prefix) {
			return "", fmt.Errorf("skipping non-HTTP URL: %s", url)
		}
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch %s: HTTP %d", url, resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, nil)
	if err != nil {
		return "", fmt.Errorf("extract title from %s: %w", url, err)
	}
	if article.Title == "" {
		return "", fmt.Errorf("no title found at %s", url)
	}
	return article.Title, nil
}

// Run enriches every record that still has a placeholder title and
// returns how many were updated. Fetch failures are logged and skipped,
// one unreachable page must not stall the rest.
func (e *Enricher) Run(ctx context.Context) (int, error) {
	records, err := e.store.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, r := range records {
		if !needsTitle(r) {
			continue
		}
		title, err := e.FetchTitle(ctx, r.URL)
		if err != nil {
			applog.Info("enrich.skip", "url", r.URL, "reason", err.Error())
			continue
		}
		if err := e.store.SetTitle(ctx, r.ID, title); err != nil {
			return updated, err
		}
		applog.Info("enrich.titled", "id", int64(r.ID), "title", title)
		updated++
	}
	return updated, nil
}
