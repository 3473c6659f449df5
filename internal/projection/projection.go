// Package projection turns the record set into a display-ready
// ordered, grouped and filtered structure. Project is a pure function:
// the render-time clock is a parameter and only influences the
// Today/Yesterday group labels.
package projection

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/lotas/tabspeicher/internal/types"
)

// Group is a named run of records under one header.
type Group struct {
	Label   string
	Records []types.Record
}

// Projection is the display structure for one view mode. Title mode
// produces a flat list; date and domain modes produce groups.
type Projection struct {
	Mode   types.ViewMode
	Flat   []types.Record
	Groups []Group
}

// Empty reports whether nothing is visible.
func (p Projection) Empty() bool {
	if len(p.Flat) > 0 {
		return false
	}
	for _, g := range p.Groups {
		if len(g.Records) > 0 {
			return false
		}
	}
	return true
}

// Visible returns the visible records in display order.
func (p Projection) Visible() []types.Record {
	if p.Flat != nil {
		return p.Flat
	}
	var out []types.Record
	for _, g := range p.Groups {
		out = append(out, g.Records...)
	}
	return out
}

// Project sorts, groups and filters records for the given mode. Search
// filtering happens after sorting and grouping: hidden records drop out
// of their group, a group left empty disappears with its header, and
// the survivors keep their order.
func Project(records []types.Record, mode types.ViewMode, search string, now time.Time) Projection {
	sorted := make([]types.Record, len(records))
	copy(sorted, records)

	p := Projection{Mode: mode}
	switch mode {
	case types.ViewByTitle:
		cl := collate.New(language.Und)
		sort.SliceStable(sorted, func(i, j int) bool {
			return cl.CompareString(sorted[i].Title, sorted[j].Title) < 0
		})
		p.Flat = sorted
	case types.ViewByDomain:
		cl := collate.New(language.Und)
		sort.SliceStable(sorted, func(i, j int) bool {
			return cl.CompareString(ExtractDomain(sorted[i].URL), ExtractDomain(sorted[j].URL)) < 0
		})
		p.Groups = groupBy(sorted, ExtractDomain)
	default: // date
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Time().After(sorted[j].Time())
		})
		p.Groups = groupByDay(sorted, now)
	}

	return filter(p, search)
}

// groupBy splits a sorted slice into runs sharing a key.
func groupBy(sorted []types.Record, key func(url string) string) []Group {
	var groups []Group
	for _, r := range sorted {
		label := key(r.URL)
		if n := len(groups); n > 0 && groups[n-1].Label == label {
			groups[n-1].Records = append(groups[n-1].Records, r)
			continue
		}
		groups = append(groups, Group{Label: label, Records: []types.Record{r}})
	}
	return groups
}

// groupByDay splits records (sorted newest first) by local calendar day.
func groupByDay(sorted []types.Record, now time.Time) []Group {
	var groups []Group
	var lastY, lastD int
	var lastM time.Month
	for _, r := range sorted {
		t := r.Time().Local()
		y, m, d := t.Date()
		if len(groups) > 0 && y == lastY && m == lastM && d == lastD {
			groups[len(groups)-1].Records = append(groups[len(groups)-1].Records, r)
			continue
		}
		lastY, lastM, lastD = y, m, d
		groups = append(groups, Group{Label: dayLabel(t, now), Records: []types.Record{r}})
	}
	return groups
}

// dayLabel names a calendar day relative to now. Day boundaries are
// local calendar date equality, not elapsed-24h windows.
func dayLabel(t, now time.Time) string {
	if sameDay(t, now) {
		return "Today"
	}
	if sameDay(t, now.AddDate(0, 0, -1)) {
		return "Yesterday"
	}
	return t.Format("Monday, January 2")
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Local().Date()
	by, bm, bd := b.Local().Date()
	return ay == by && am == bm && ad == bd
}

// ExtractDomain returns the URL's host with a leading "www." stripped.
// A malformed URL becomes its own group key rather than an error.
func ExtractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

func matches(r types.Record, term string) bool {
	return strings.Contains(strings.ToLower(r.Title), term) ||
		strings.Contains(strings.ToLower(r.URL), term)
}

func filter(p Projection, search string) Projection {
	term := strings.ToLower(strings.TrimSpace(search))
	if term == "" {
		return p
	}

	if p.Flat != nil {
		var kept []types.Record
		for _, r := range p.Flat {
			if matches(r, term) {
				kept = append(kept, r)
			}
		}
		p.Flat = kept
		return p
	}

	var groups []Group
	for _, g := range p.Groups {
		var kept []types.Record
		for _, r := range g.Records {
			if matches(r, term) {
				kept = append(kept, r)
			}
		}
		if len(kept) > 0 {
			groups = append(groups, Group{Label: g.Label, Records: kept})
		}
	}
	p.Groups = groups
	return p
}
