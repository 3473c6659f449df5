package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Record is one saved tab.
type Record struct {
	ID      RecordID `json:"id"`
	Title   string   `json:"title"`
	URL     string   `json:"url"`
	Favicon string   `json:"favicon,omitempty"`
	Date    string   `json:"date"` // ISO-8601, set once at capture
}

// Time parses the capture timestamp. Returns the zero time if the
// stored string is unparsable.
func (r Record) Time() time.Time {
	t, err := time.Parse(time.RFC3339Nano, r.Date)
	if err != nil {
		return time.Time{}
	}
	return t
}

// RecordID is a numeric record identifier. Files written by older
// exporters contain fractional ids (wall clock plus a random fraction)
// or string-typed ids, so decoding is deliberately lenient: fractions
// are truncated and numeric strings are accepted.
type RecordID int64

func (id RecordID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

func (id *RecordID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 1 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	if n, err := strconv.ParseInt(string(data), 10, 64); err == nil {
		*id = RecordID(n)
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("record id %q: %w", data, err)
	}
	*id = RecordID(int64(f))
	return nil
}

// ViewMode selects how the tab list page sorts and groups records.
type ViewMode string

const (
	ViewByDate   ViewMode = "date"
	ViewByTitle  ViewMode = "title"
	ViewByDomain ViewMode = "domain"
)

// ParseViewMode validates a stored or user-supplied mode string,
// falling back to date view for anything unknown.
func ParseViewMode(s string) ViewMode {
	switch ViewMode(s) {
	case ViewByDate, ViewByTitle, ViewByDomain:
		return ViewMode(s)
	default:
		return ViewByDate
	}
}

// WireTab is a live browser tab as reported by a control surface or
// read from a Firefox session file. BrowserID identifies the tab for
// close commands; it is not the record id.
type WireTab struct {
	BrowserID int    `json:"id"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Favicon   string `json:"favIconUrl,omitempty"`
}

// UntitledTab is the placeholder title for tabs captured without one.
const UntitledTab = "Untitled Tab"
