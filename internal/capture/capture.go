// Package capture turns live browser tabs into persisted records.
package capture

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/lotas/tabspeicher/internal/applog"
	"github.com/lotas/tabspeicher/internal/storage"
	"github.com/lotas/tabspeicher/internal/types"
)

var (
	// ErrNoTab means the surface asked to save but sent no tab data.
	ErrNoTab = errors.New("no tab data provided")
	// ErrExcluded means the tab is an extension-internal page.
	ErrExcluded = errors.New("extension page is not captured")
)

// Extension-internal schemes. A tab is excluded from capture iff its
// URL carries one of these; this single rule covers the tab list page
// and every other extension-hosted page in both save paths.
var internalSchemes = []string{"moz-extension:", "chrome-extension:"}

// Excluded reports whether a URL belongs to an extension-internal page.
func Excluded(url string) bool {
	for _, scheme := range internalSchemes {
		if strings.HasPrefix(url, scheme) {
			return true
		}
	}
	return false
}

// IDSource hands out strictly increasing record ids. Seeded from the
// wall clock in millis so ids stay compatible with files written by the
// original extension, but uniqueness never depends on clock resolution:
// a batch captured within one millisecond still gets distinct ids.
type IDSource struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewIDSource() *IDSource {
	return &IDSource{now: time.Now}
}

func (g *IDSource) Next() types.RecordID {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.now().UnixMilli()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return types.RecordID(id)
}

// Closer closes browser tabs after their data is durably recorded.
// Implemented by the WebSocket connection that sent the tabs.
type Closer interface {
	CloseTabs(ctx context.Context, browserIDs []int) error
}

// Service builds records and commits them through the record store.
type Service struct {
	store *storage.RecordStore
	ids   *IDSource
	now   func() time.Time
}

func New(store *storage.RecordStore, ids *IDSource) *Service {
	return &Service{store: store, ids: ids, now: time.Now}
}

func (s *Service) record(tab types.WireTab) types.Record {
	title := tab.Title
	if title == "" {
		title = types.UntitledTab
	}
	return types.Record{
		ID:      s.ids.Next(),
		Title:   title,
		URL:     tab.URL,
		Favicon: tab.Favicon,
		Date:    s.now().UTC().Format("2006-01-02T15:04:05.000Z"),
	}
}

// One captures a single tab. The source tab is closed only after the
// append is confirmed; a failed close is logged, never rolled back.
func (s *Service) One(ctx context.Context, tab types.WireTab, closeAfter bool, closer Closer) error {
	if tab.URL == "" {
		return ErrNoTab
	}
	if Excluded(tab.URL) {
		return ErrExcluded
	}

	rec := s.record(tab)
	if err := s.store.Append(ctx, rec); err != nil {
		return err
	}
	applog.Info("capture.one", "id", rec.ID, "url", rec.URL)

	if closeAfter && closer != nil && tab.BrowserID != 0 {
		if err := closer.CloseTabs(ctx, []int{tab.BrowserID}); err != nil {
			applog.Error("capture.close", err, "browserId", tab.BrowserID)
		}
	}
	return nil
}

// All captures a batch in one append, skipping extension-internal
// pages. Returns the number of tabs actually captured. Source tabs are
// closed only after the batch append is confirmed.
func (s *Service) All(ctx context.Context, tabs []types.WireTab, closeAfter bool, closer Closer) (int, error) {
	var records []types.Record
	var browserIDs []int
	for _, tab := range tabs {
		if tab.URL == "" || Excluded(tab.URL) {
			continue
		}
		records = append(records, s.record(tab))
		if tab.BrowserID != 0 {
			browserIDs = append(browserIDs, tab.BrowserID)
		}
	}
	if len(records) == 0 {
		return 0, nil
	}

	if err := s.store.AppendMany(ctx, records); err != nil {
		return 0, err
	}
	applog.Info("capture.all", "count", len(records), "close", closeAfter)

	if closeAfter && closer != nil && len(browserIDs) > 0 {
		if err := closer.CloseTabs(ctx, browserIDs); err != nil {
			applog.Error("capture.close", err, "count", len(browserIDs))
		}
	}
	return len(records), nil
}
