// Package exchange moves the record set in and out of JSON files.
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lotas/tabspeicher/internal/applog"
	"github.com/lotas/tabspeicher/internal/storage"
	"github.com/lotas/tabspeicher/internal/types"
)

// ErrImport marks a rejected import; the existing record set is left
// untouched when it is returned.
var ErrImport = errors.New("invalid JSON file")

// Exchanger serializes the record set to export files and replaces it
// wholesale from user-supplied documents.
type Exchanger struct {
	store *storage.RecordStore
	dir   string
	now   func() time.Time
}

func New(store *storage.RecordStore, dir string) *Exchanger {
	return &Exchanger{store: store, dir: dir, now: time.Now}
}

// timestampName builds the conventional file name:
// <prefix>_<ISO timestamp with ':' and '.' replaced by '-'>.json
func timestampName(prefix string, t time.Time) string {
	ts := t.UTC().Format("2006-01-02T15:04:05.000Z")
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return fmt.Sprintf("%s_%s.json", prefix, ts)
}

func (e *Exchanger) writeDoc(name string, records []types.Record) (string, error) {
	if records == nil {
		records = []types.Record{} // an empty set exports as [], not null
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode records: %w", err)
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	path := filepath.Join(e.dir, name)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}

// Export writes the full current record set to a timestamped file and
// remembers its name as the storage location. The record set itself is
// never mutated.
func (e *Exchanger) Export(ctx context.Context) (string, error) {
	records, err := e.store.GetAll(ctx)
	if err != nil {
		return "", err
	}
	name := timestampName("tabs_export", e.now())
	path, err := e.writeDoc(name, records)
	if err != nil {
		return "", err
	}
	if err := e.store.SetLocation(ctx, name); err != nil {
		applog.Error("export.location", err)
	}
	applog.Info("export.done", "file", name, "count", len(records))
	return path, nil
}

// ImportReplace parses jsonText as an array of records and replaces
// the whole record set with it. A parse failure leaves the existing
// set untouched and reports an actionable error. Returns the number of
// imported records.
func (e *Exchanger) ImportReplace(ctx context.Context, jsonText []byte, filename string) (int, error) {
	var records []types.Record
	if err := json.Unmarshal(jsonText, &records); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrImport, err)
	}
	if err := e.store.ReplaceAll(ctx, records); err != nil {
		return 0, err
	}
	if filename != "" {
		if err := e.store.SetLocation(ctx, filename); err != nil {
			applog.Error("import.location", err)
		}
	}
	applog.Info("import.done", "file", filename, "count", len(records))
	return len(records), nil
}

// CreateBlank writes an empty document and resets the record set to
// empty, switching the user to a fresh collection. The file is written
// first; a failed write leaves the current collection alone.
func (e *Exchanger) CreateBlank(ctx context.Context) (string, error) {
	name := timestampName("saved_tabs", e.now())
	path, err := e.writeDoc(name, nil)
	if err != nil {
		return "", err
	}
	if err := e.store.ReplaceAll(ctx, nil); err != nil {
		return "", err
	}
	if err := e.store.SetLocation(ctx, name); err != nil {
		applog.Error("blank.location", err)
	}
	applog.Info("blank.created", "file", name)
	return path, nil
}
